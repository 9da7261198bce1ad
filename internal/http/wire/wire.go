// Package wire concentra la serialización de respuestas y el mapeo de
// errores del engine a errores OAuth2 del protocolo.
package wire

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// OAuthError escribe un error OAuth2 wire-level.
func OAuthError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, oauthError{Error: code, ErrorDescription: description})
}

// EngineError mapea los sentinels del engine al error de protocolo.
// El detalle interno queda en los logs, nunca en la respuesta.
func EngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidClient):
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		OAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
	case errors.Is(err, engine.ErrInvalidGrant):
		OAuthError(w, http.StatusBadRequest, "invalid_grant", "grant is invalid, expired or revoked")
	case errors.Is(err, engine.ErrInvalidScope):
		OAuthError(w, http.StatusBadRequest, "invalid_scope", "requested scope is not allowed")
	case errors.Is(err, engine.ErrUnauthorizedClient):
		OAuthError(w, http.StatusBadRequest, "unauthorized_client", "client is not allowed to use this grant")
	case errors.Is(err, engine.ErrUnsupportedGrantType):
		OAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant type not supported")
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, engine.ErrInvalidRedirectURI):
		OAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request")
	case errors.Is(err, core.ErrTransient):
		logger.From(r.Context()).Error("backend unavailable", logger.Err(err))
		OAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "try again later")
	default:
		logger.From(r.Context()).Error("unhandled error", logger.Err(err))
		OAuthError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
