package validation

import (
	"net/url"
	"strings"
)

// ValidRedirectURI valida la forma de una redirect URI registrada:
// absoluta, esquema http/https (o custom scheme para apps nativas),
// sin fragmento. El matching contra la request es siempre por igualdad
// exacta de string (nada de wildcards ni prefijos).
func ValidRedirectURI(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !u.IsAbs() || u.Scheme == "" {
		return false
	}
	if u.Fragment != "" {
		return false
	}
	// http sólo para loopback (dev); https o custom scheme para el resto.
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return false
		}
	}
	return true
}

// RedirectAllowed compara la URI de la request contra las registradas.
func RedirectAllowed(registered []string, uri string) bool {
	for _, r := range registered {
		if r == uri {
			return true
		}
	}
	return false
}
