package jwt

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma access/ID tokens usando la clave activa del keystore.
type Issuer struct {
	Iss  string // "iss"
	Keys *Keystore
}

func NewIssuer(iss string, ks *Keystore) *Issuer {
	return &Issuer{Iss: iss, Keys: ks}
}

// AccessTokenInput agrupa lo necesario para emitir un access token.
type AccessTokenInput struct {
	Subject   string
	ClientID  string
	Scopes    []string
	Audiences []string // resources; si está vacío, aud = client_id
	TTL       time.Duration
	Extra     map[string]any
}

// IssueAccess emite un access token firmado. Devuelve el JWT serializado,
// las claims (para introspección) y el expiry.
func (i *Issuer) IssueAccess(in AccessTokenInput) (string, map[string]any, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(in.TTL)

	aud := in.Audiences
	if len(aud) == 0 {
		aud = []string{in.ClientID}
	}

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       in.Subject,
		"aud":       audClaim(aud),
		"client_id": in.ClientID,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
		"scope":     strings.Join(in.Scopes, " "),
		"scp":       in.Scopes,
	}
	for k, v := range in.Extra {
		claims[k] = v
	}

	signed, _, err := i.signRaw(claims)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return signed, map[string]any(claims), exp, nil
}

// IDTokenInput agrupa lo necesario para emitir un ID token.
type IDTokenInput struct {
	Subject     string
	ClientID    string
	Nonce       string
	AuthTime    time.Time
	AccessToken string // para at_hash; opcional
	TTL         time.Duration
	Claims      map[string]any // claims de perfil ya filtradas por scope
}

// IssueIDToken emite un ID token OIDC. Audiencia = client_id; incluye nonce
// si el authorize request lo traía (binding anti-replay).
func (i *Issuer) IssueIDToken(in IDTokenInput) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(in.TTL)

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       in.Subject,
		"aud":       in.ClientID,
		"azp":       in.ClientID,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
		"auth_time": in.AuthTime.UTC().Unix(),
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}
	if in.AccessToken != "" {
		claims["at_hash"] = atHash(in.AccessToken)
	}
	for k, v := range in.Claims {
		claims[k] = v
	}

	signed, _, err := i.signRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// signRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve
// el JWT firmado más el KID usado.
func (i *Issuer) signRaw(claims jwtv5.MapClaims) (string, string, error) {
	kid, priv, err := i.Keys.Active()
	if err != nil {
		return "", "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", "", err
	}
	return signed, kid, nil
}

// JWKSJSON expone el JWKS vigente (active + retiring).
func (i *Issuer) JWKSJSON() []byte {
	j, _ := i.Keys.JWKSJSON()
	return j
}

// atHash = base64url(128 bits más significativos de SHA-256(access_token))
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func audClaim(aud []string) any {
	if len(aud) == 1 {
		return aud[0]
	}
	return aud
}
