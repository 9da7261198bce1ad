// Package http arma el router público del provider y el server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/engine"
	authctl "github.com/dropDatabas3/donpedro/internal/http/controllers/auth"
	oauthctl "github.com/dropDatabas3/donpedro/internal/http/controllers/oauth"
	oidcctl "github.com/dropDatabas3/donpedro/internal/http/controllers/oidc"
	"github.com/dropDatabas3/donpedro/internal/http/middlewares"
	"github.com/dropDatabas3/donpedro/internal/http/session"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/profile"
	"github.com/dropDatabas3/donpedro/internal/rate"
)

// RouterConfig agrupa las dependencias ya construidas del router.
type RouterConfig struct {
	IssuerURL   string
	Engine      *engine.Engine
	Issuer      *jwt.Issuer
	Keystore    *jwt.Keystore
	ConfigStore *configstore.Store
	Credentials credentials.Store
	Profile     *profile.Service
	Sessions    *session.Manager

	Limiter     rate.Limiter // nil = sin rate limiting
	CORSOrigins []string

	IntrospectUser string
	IntrospectPass string

	MetricsHandler http.Handler // nil = /metrics apagado
}

// NewRouter arma el árbol de rutas completo del provider.
func NewRouter(cfg RouterConfig) http.Handler {
	tokenCtl := oauthctl.NewTokenController(cfg.Engine)
	authorizeCtl := oauthctl.NewAuthorizeController(cfg.Engine, cfg.Sessions, "/login")
	revokeCtl := oauthctl.NewRevocationController(cfg.Engine)
	introspectCtl := oauthctl.NewIntrospectionController(cfg.Engine, cfg.IntrospectUser, cfg.IntrospectPass)
	discoveryCtl := oidcctl.NewDiscoveryController(cfg.IssuerURL, cfg.ConfigStore)
	jwksCtl := oidcctl.NewJWKSController(cfg.Keystore)
	userinfoCtl := oidcctl.NewUserinfoController(cfg.Issuer, cfg.Profile)
	loginCtl := authctl.NewLoginController(cfg.Credentials, cfg.Sessions)

	r := chi.NewRouter()
	r.Use(
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithRecover(),
		middlewares.WithSecurityHeaders(),
		WithMetrics,
		middlewares.WithCORS(cfg.CORSOrigins),
	)

	noStore := middlewares.WithNoStore()
	limited := middlewares.WithRateLimit(cfg.Limiter, nil)

	// front channel
	r.Group(func(r chi.Router) {
		r.Use(noStore)
		r.Get("/authorize", authorizeCtl.Authorize)
		r.Get("/login", loginCtl.Login)
		r.With(limited).Post("/login", loginCtl.Login)
		r.Get("/logout", loginCtl.Logout)
		r.Post("/logout", loginCtl.Logout)
	})

	// back channel
	r.Group(func(r chi.Router) {
		r.Use(noStore, limited)
		r.Post("/token", tokenCtl.Token)
		r.Post("/connect/revocation", revokeCtl.Revoke)
		r.Post("/connect/introspect", introspectCtl.Introspect)
	})

	r.Get("/userinfo", userinfoCtl.Userinfo)
	r.Post("/userinfo", userinfoCtl.Userinfo)

	// documentos públicos
	r.Get("/.well-known/openid-configuration", discoveryCtl.Discovery)
	r.Get("/.well-known/jwks.json", jwksCtl.JWKS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
