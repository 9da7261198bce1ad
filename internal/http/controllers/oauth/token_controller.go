// Package oauth implementa los endpoints del protocolo OAuth2:
// token, revocación e introspección.
package oauth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/metrics"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// TokenController maneja POST /token.
type TokenController struct {
	engine *engine.Engine
}

func NewTokenController(e *engine.Engine) *TokenController {
	return &TokenController{engine: e}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token despacha por grant_type: authorization_code, refresh_token y
// client_credentials.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		wire.OAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "only POST is allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		wire.OAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	client, err := c.engine.AuthenticateClient(ctx, clientAuthFromRequest(r))
	if err != nil {
		wire.EngineError(w, r, err)
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	log = log.With(logger.GrantType(grantType), logger.ClientID(client.ClientID))

	var ts *engine.TokenSet
	switch grantType {
	case engine.GrantAuthorizationCode:
		ts, err = c.engine.RedeemCode(ctx, client,
			r.PostForm.Get("code"),
			r.PostForm.Get("redirect_uri"),
			r.PostForm.Get("code_verifier"),
		)
	case engine.GrantRefreshToken:
		ts, err = c.engine.Refresh(ctx, client,
			r.PostForm.Get("refresh_token"),
			r.PostForm.Get("scope"),
		)
	case engine.GrantClientCredentials:
		ts, err = c.engine.ClientCredentials(ctx, client, r.PostForm.Get("scope"))
	default:
		wire.OAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant type not supported")
		return
	}
	if err != nil {
		log.Info("token request rejected", logger.Err(err))
		metrics.GrantRejections.WithLabelValues(grantType).Inc()
		wire.EngineError(w, r, err)
		return
	}
	metrics.TokensIssued.WithLabelValues(grantType).Inc()

	wire.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  ts.AccessToken,
		TokenType:    ts.TokenType,
		ExpiresIn:    ts.ExpiresIn,
		RefreshToken: ts.RefreshToken,
		IDToken:      ts.IDToken,
		Scope:        ts.Scope,
	})
}

// clientAuthFromRequest extrae las credenciales del cliente. Prioridad:
// Authorization Basic, después el body del form; si no hay secreto el
// método es "none" (clientes públicos).
func clientAuthFromRequest(r *http.Request) engine.ClientAuth {
	if user, pass, ok := r.BasicAuth(); ok {
		return engine.ClientAuth{
			ClientID: user,
			Secret:   pass,
			Method:   "client_secret_basic",
		}
	}
	id := r.PostForm.Get("client_id")
	secret := r.PostForm.Get("client_secret")
	method := "none"
	if secret != "" {
		method = "client_secret_post"
	}
	return engine.ClientAuth{ClientID: id, Secret: secret, Method: method}
}
