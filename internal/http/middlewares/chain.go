// Package middlewares reúne los decoradores HTTP transversales del provider.
package middlewares

import "net/http"

// Middleware decora un http.Handler. Los constructores WithX de este paquete
// devuelven este tipo; el router los compone en orden de declaración.
type Middleware func(http.Handler) http.Handler
