package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

var (
	ErrNoActiveKey = errors.New("no_active_signing_key")
	ErrKIDNotFound = errors.New("kid_not_found")
)

// keySnapshot es la vista consistente del keystore en un instante: la clave
// que firma y el set completo que verifica (active + retiring vigentes).
// La verificación en vuelo nunca ve un estado intermedio de la rotación.
type keySnapshot struct {
	activeKID  string
	activePriv ed25519.PrivateKey
	verify     map[string]ed25519.PublicKey
	jwks       []byte
	loadedAt   time.Time
}

// Keystore lee claves del KeyStore persistente y publica snapshots
// atómicos. Reload es la única escritura; el resto son lecturas lock-free.
type Keystore struct {
	store core.KeyStore
	snap  atomic.Value // *keySnapshot
}

func NewKeystore(s core.KeyStore) *Keystore {
	return &Keystore{store: s}
}

// EnsureBootstrap genera la primera clave si el store está vacío y carga
// el snapshot inicial.
func (k *Keystore) EnsureBootstrap(ctx context.Context) error {
	_, err := k.store.GetActive(ctx)
	if errors.Is(err, core.ErrNotFound) {
		key, genErr := NewSigningKey(time.Now())
		if genErr != nil {
			return genErr
		}
		if insErr := k.store.Insert(ctx, key); insErr != nil {
			return insErr
		}
	} else if err != nil {
		return err
	}
	return k.Reload(ctx)
}

// Reload reconstruye y publica un snapshot nuevo desde el store.
func (k *Keystore) Reload(ctx context.Context) error {
	active, err := k.store.GetActive(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNoActiveKey
		}
		return err
	}
	verifiable, err := k.store.ListVerifiable(ctx)
	if err != nil {
		return err
	}

	snap := &keySnapshot{
		activeKID:  active.KID,
		activePriv: ed25519.PrivateKey(active.PrivateKey),
		verify:     make(map[string]ed25519.PublicKey, len(verifiable)),
		loadedAt:   time.Now(),
	}
	now := time.Now()
	published := verifiable[:0]
	for _, rec := range verifiable {
		// retiring con ventana vencida: fuera del snapshot
		if rec.Status == core.KeyRetiring && rec.RetireAt != nil && now.After(*rec.RetireAt) {
			continue
		}
		pub := make([]byte, len(rec.PublicKey))
		copy(pub, rec.PublicKey)
		snap.verify[rec.KID] = ed25519.PublicKey(pub)
		published = append(published, rec)
	}
	snap.jwks = buildJWKS(published)

	k.snap.Store(snap)
	return nil
}

func (k *Keystore) snapshot() (*keySnapshot, error) {
	v := k.snap.Load()
	if v == nil {
		return nil, ErrNoActiveKey
	}
	return v.(*keySnapshot), nil
}

// Active devuelve la clave de firma actual.
func (k *Keystore) Active() (kid string, priv ed25519.PrivateKey, err error) {
	snap, err := k.snapshot()
	if err != nil {
		return "", nil, err
	}
	if snap.activeKID == "" || len(snap.activePriv) == 0 {
		return "", nil, ErrNoActiveKey
	}
	return snap.activeKID, snap.activePriv, nil
}

// PublicKeyByKID resuelve la pubkey de un KID verificable (active/retiring).
// Las claves removidas del snapshot fallan: su ventana de verificación pasó.
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	snap, err := k.snapshot()
	if err != nil {
		return nil, err
	}
	pub, ok := snap.verify[kid]
	if !ok {
		return nil, ErrKIDNotFound
	}
	return pub, nil
}

// JWKSJSON devuelve el JWKS del snapshot vigente.
func (k *Keystore) JWKSJSON() ([]byte, error) {
	snap, err := k.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.jwks, nil
}
