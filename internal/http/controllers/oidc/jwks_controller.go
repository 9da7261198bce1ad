package oidc

import (
	"net/http"

	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// JWKSController sirve /.well-known/jwks.json con las claves públicas
// vigentes (activa + en retiro). Las retiradas desaparecen del set.
type JWKSController struct {
	keys *jwt.Keystore
}

func NewJWKSController(ks *jwt.Keystore) *JWKSController {
	return &JWKSController{keys: ks}
}

func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	body, err := c.keys.JWKSJSON()
	if err != nil {
		logger.From(r.Context()).Error("jwks snapshot unavailable", logger.Err(err))
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(body)
}
