package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrExpired          = errors.New("expired")
	ErrAudienceMismatch = errors.New("audience_mismatch")
	ErrInvalidIssuer    = errors.New("invalid_issuer")
)

// Keyfunc devuelve un jwt.Keyfunc que elige la pubkey por 'kid' del token
// dentro del snapshot vigente (active + retiring).
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrKIDNotFound
		}
		return i.Keys.PublicKeyByKID(kid)
	}
}

// Verify parsea y valida un token emitido por este issuer: firma contra
// cualquier clave vigente del snapshot (incluidas retiring), expiración,
// issuer y — si expectedAud != "" — pertenencia de la audiencia.
// Devuelve las claims como map[string]any.
func (i *Issuer) Verify(token string, expectedAud string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		// exp/nbf los validamos a mano para distinguir Expired de firma mala
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSignature
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidSignature
	}

	if iss, _ := claims["iss"].(string); iss != i.Iss {
		return nil, ErrInvalidIssuer
	}

	now := time.Now()
	const leeway = 30 * time.Second
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(now.Add(-leeway)) {
			return nil, ErrExpired
		}
	}
	if nbff, ok := claims["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(leeway)) {
			return nil, ErrExpired
		}
	}

	if expectedAud != "" && !audContains(claims["aud"], expectedAud) {
		return nil, ErrAudienceMismatch
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

func audContains(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == want {
				return true
			}
		}
	}
	return false
}

// ScopesFromClaims extrae los scopes de un set de claims ("scp" lista o
// "scope" string separado por espacios).
func ScopesFromClaims(claims map[string]any) []string {
	if raw, ok := claims["scp"].([]any); ok {
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := claims["scope"].(string); ok && s != "" {
		return strings.Fields(s)
	}
	return nil
}
