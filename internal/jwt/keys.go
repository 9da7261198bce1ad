package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// GenerateEd25519 genera un par de claves Ed25519.
func GenerateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// NewSigningKey construye un registro de clave activa. El KID lleva el
// timestamp (legible en logs y JWKS) más un sufijo aleatorio: dos claves
// creadas en el mismo segundo no pueden colisionar.
func NewSigningKey(now time.Time) (*core.SigningKey, error) {
	pub, priv, err := GenerateEd25519()
	if err != nil {
		return nil, err
	}
	return &core.SigningKey{
		KID:        "key-" + now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Alg:        "EdDSA",
		PublicKey:  pub,
		PrivateKey: priv,
		Status:     core.KeyActive,
		NotBefore:  now.UTC(),
		CreatedAt:  now.UTC(),
	}, nil
}
