package oauth

import (
	"net/http"

	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/security/token"
)

// IntrospectionController maneja POST /connect/introspect (RFC 7662).
// Lo consumen resource servers, autenticados con un par usuario/password
// dedicado: nunca se expone sin autenticación.
type IntrospectionController struct {
	engine    *engine.Engine
	basicUser string
	basicPass string
}

func NewIntrospectionController(e *engine.Engine, user, pass string) *IntrospectionController {
	return &IntrospectionController{engine: e, basicUser: user, basicPass: pass}
}

func (c *IntrospectionController) authorized(r *http.Request) bool {
	if c.basicUser == "" {
		return false // sin credenciales configuradas el endpoint queda cerrado
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return token.ConstantTimeEquals(user, c.basicUser) && token.ConstantTimeEquals(pass, c.basicPass)
}

func (c *IntrospectionController) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.introspect"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		wire.OAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "only POST is allowed")
		return
	}
	if !c.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="introspection"`)
		wire.OAuthError(w, http.StatusUnauthorized, "invalid_client", "authentication required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		wire.OAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	out, err := c.engine.Introspect(ctx, r.PostForm.Get("token"))
	if err != nil {
		log.Error("introspection failed", logger.Err(err))
		wire.EngineError(w, r, err)
		return
	}
	wire.WriteJSON(w, http.StatusOK, out)
}
