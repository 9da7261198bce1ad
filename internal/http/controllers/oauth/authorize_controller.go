package oauth

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/http/session"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// AuthorizeController maneja GET /authorize (front channel).
type AuthorizeController struct {
	engine   *engine.Engine
	sessions *session.Manager
	loginURL string
}

func NewAuthorizeController(e *engine.Engine, s *session.Manager, loginURL string) *AuthorizeController {
	if loginURL == "" {
		loginURL = "/login"
	}
	return &AuthorizeController{engine: e, sessions: s, loginURL: loginURL}
}

// Authorize valida el request, exige sesión de usuario y emite el código.
// La regla de oro del front channel: si client_id o redirect_uri no
// validan, el error se muestra acá y NUNCA se redirige; todo lo demás
// vuelve al cliente por redirect con error y state.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		wire.OAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "only GET is allowed")
		return
	}

	q := r.URL.Query()
	req := engine.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	authorized, err := c.engine.BeginAuthorize(ctx, req)
	if err != nil {
		log.Info("authorize request rejected", logger.Err(err), logger.ClientID(req.ClientID))
		switch {
		case errors.Is(err, engine.ErrInvalidClient), errors.Is(err, engine.ErrInvalidRedirectURI):
			// no hay redirect confiable: error en el propio endpoint
			wire.OAuthError(w, http.StatusBadRequest, "invalid_request", "unknown client or redirect_uri")
		default:
			redirectError(w, r, req.RedirectURI, req.State, err)
		}
		return
	}

	sess, ok := c.sessions.Get(r)
	if !ok {
		// sin sesión: al login, con el authorize completo como retorno
		returnTo := r.URL.Path + "?" + r.URL.RawQuery
		http.Redirect(w, r, c.loginURL+"?return_to="+url.QueryEscape(returnTo), http.StatusFound)
		return
	}

	code, err := c.engine.IssueCode(ctx, authorized, sess.SubjectID, sess.AuthTime)
	if err != nil {
		log.Error("code issuance failed", logger.Err(err))
		redirectError(w, r, authorized.RedirectURI, authorized.State, err)
		return
	}

	dest, _ := url.Parse(authorized.RedirectURI)
	dq := dest.Query()
	dq.Set("code", code)
	if authorized.State != "" {
		dq.Set("state", authorized.State)
	}
	dest.RawQuery = dq.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// redirectError devuelve el error por el redirect_uri ya validado.
func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state string, err error) {
	dest, perr := url.Parse(redirectURI)
	if redirectURI == "" || perr != nil {
		wire.OAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request")
		return
	}
	code := "server_error"
	switch {
	case errors.Is(err, engine.ErrUnsupportedResponseType):
		code = "unsupported_response_type"
	case errors.Is(err, engine.ErrUnauthorizedClient):
		code = "unauthorized_client"
	case errors.Is(err, engine.ErrInvalidScope):
		code = "invalid_scope"
	case errors.Is(err, engine.ErrInvalidRequest):
		code = "invalid_request"
	}
	dq := dest.Query()
	dq.Set("error", code)
	if state != "" {
		dq.Set("state", state)
	}
	dest.RawQuery = dq.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}
