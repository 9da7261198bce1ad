package core

import (
	"context"
	"time"
)

// GrantStore guarda authorization codes (por hash). Consume debe ser atómico:
// de N llamadas concurrentes con el mismo hash, exactamente una recibe el
// grant; el resto ErrNotFound.
type GrantStore interface {
	Put(ctx context.Context, g *AuthorizationGrant, ttl time.Duration) error
	Consume(ctx context.Context, codeHash string) (*AuthorizationGrant, error)
	// Delete invalida un code sin canjearlo (cierre de ventana de replay
	// tras un intento fallido). Idempotente.
	Delete(ctx context.Context, codeHash string) error
}

// TokenStore persiste refresh tokens.
type TokenStore interface {
	Create(ctx context.Context, rt *RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Rotate marca el token viejo como rotado y crea el hijo en una sola
	// operación atómica. Si el viejo ya fue rotado o revocado retorna
	// ErrConflict (señal de reuso).
	Rotate(ctx context.Context, oldID string, child *RefreshToken) error
	Revoke(ctx context.Context, id string) error
	// RevokeChain revoca todos los tokens de una cadena (ante reuso).
	RevokeChain(ctx context.Context, chainID string) (int64, error)
	// DeleteExpired purga tokens vencidos antes del corte. Best-effort.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// KeyStore persiste claves de firma.
type KeyStore interface {
	Insert(ctx context.Context, k *SigningKey) error
	GetActive(ctx context.Context) (*SigningKey, error)
	// ListVerifiable retorna las claves active + retiring. El filtrado por
	// RetireAt vencido lo hacen los consumidores (snapshot del keystore).
	ListVerifiable(ctx context.Context) ([]SigningKey, error)
	SetStatus(ctx context.Context, kid string, status KeyStatus, retireAt *time.Time) error
}
