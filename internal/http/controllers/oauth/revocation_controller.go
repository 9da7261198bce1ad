package oauth

import (
	"net/http"

	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// RevocationController maneja POST /connect/revocation (RFC 7009).
type RevocationController struct {
	engine *engine.Engine
}

func NewRevocationController(e *engine.Engine) *RevocationController {
	return &RevocationController{engine: e}
}

// Revoke invalida el token presentado. Por RFC la respuesta es 200
// incluso si el token no existe: no confirmamos existencia de tokens.
func (c *RevocationController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.revoke"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		wire.OAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "only POST is allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		wire.OAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	client, err := c.engine.AuthenticateClient(ctx, clientAuthFromRequest(r))
	if err != nil {
		wire.EngineError(w, r, err)
		return
	}

	if err := c.engine.Revoke(ctx, client, r.PostForm.Get("token")); err != nil {
		log.Error("revocation failed", logger.Err(err))
		wire.EngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
