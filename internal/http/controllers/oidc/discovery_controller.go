// Package oidc implementa los endpoints OpenID Connect: discovery,
// JWKS y userinfo.
package oidc

import (
	"net/http"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
)

// DiscoveryController sirve /.well-known/openid-configuration.
// El documento es estático para la vida del proceso: la configuración
// no cambia sin reinicio.
type DiscoveryController struct {
	doc map[string]any
}

func NewDiscoveryController(issuer string, cfg *configstore.Store) *DiscoveryController {
	return &DiscoveryController{doc: map[string]any{
		"issuer":                 issuer,
		"authorization_endpoint": issuer + "/authorize",
		"token_endpoint":         issuer + "/token",
		"userinfo_endpoint":      issuer + "/userinfo",
		"jwks_uri":               issuer + "/.well-known/jwks.json",
		"revocation_endpoint":    issuer + "/connect/revocation",
		"introspection_endpoint": issuer + "/connect/introspect",
		"end_session_endpoint":   issuer + "/logout",

		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token", "client_credentials"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"code_challenge_methods_supported":      []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_post", "client_secret_basic"},
		"scopes_supported":                      cfg.ScopeNames(),
		"claims_parameter_supported":            false,
		"request_parameter_supported":           false,
	}}
}

func (c *DiscoveryController) Discovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	wire.WriteJSON(w, http.StatusOK, c.doc)
}
