package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// WithRecover convierte panics en 500 y los loguea con stack. El proceso
// sigue vivo: un handler roto no voltea el servidor.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
