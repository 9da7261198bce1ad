package core

import "time"

// AuthorizationGrant es el registro efímero de un authorization code.
// El código en sí nunca se persiste: sólo su hash SHA-256 (base64url).
// Single-use: el consumo atómico lo saca del store.
type AuthorizationGrant struct {
	CodeHash        string    `json:"code_hash"`
	ClientID        string    `json:"client_id"`
	SubjectID       string    `json:"subject_id"`
	Scopes          []string  `json:"scopes"`
	RedirectURI     string    `json:"redirect_uri"`
	Nonce           string    `json:"nonce,omitempty"`
	CodeChallenge   string    `json:"code_challenge,omitempty"`
	ChallengeMethod string    `json:"challenge_method,omitempty"` // "S256"
	AuthTime        time.Time `json:"auth_time"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// RefreshToken persiste entre sesiones. TokenHash es SHA-256 del valor opaco.
// RotatedFrom encadena padre→hijo; ChainID identifica toda la cadena para
// revocación en bloque ante reuso de un token ya rotado.
type RefreshToken struct {
	ID          string
	ChainID     string
	SubjectID   string
	ClientID    string
	Scopes      []string
	TokenHash   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedFrom *string
	RotatedAt   *time.Time
	RevokedAt   *time.Time
}

// Active indica si el token puede canjearse: no rotado, no revocado, no vencido.
func (rt *RefreshToken) Active(now time.Time) bool {
	return rt.RevokedAt == nil && rt.RotatedAt == nil && now.Before(rt.ExpiresAt)
}

type KeyStatus string

const (
	KeyActive   KeyStatus = "active"
	KeyRetiring KeyStatus = "retiring"
	KeyRetired  KeyStatus = "retired"
)

// SigningKey es una clave Ed25519 del keystore. Una sola clave está "active"
// (firma); las "retiring" sólo verifican hasta RetireAt; las "retired" no
// verifican más.
type SigningKey struct {
	KID        string
	Alg        string // "EdDSA"
	PublicKey  []byte
	PrivateKey []byte
	Status     KeyStatus
	NotBefore  time.Time
	RetireAt   *time.Time
	CreatedAt  time.Time
}
