package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// Rotator reemplaza la clave activa en un cronograma fijo. La clave saliente
// queda "retiring" (sólo verifica) durante Overlap; pasado ese plazo queda
// "retired" y sale del snapshot de verificación.
type Rotator struct {
	Store    core.KeyStore
	Keys     *Keystore
	Interval time.Duration
	Overlap  time.Duration
}

func NewRotator(s core.KeyStore, ks *Keystore, interval, overlap time.Duration) *Rotator {
	return &Rotator{Store: s, Keys: ks, Interval: interval, Overlap: overlap}
}

// Run ejecuta el ciclo de rotación hasta que el contexto termine.
// Pensado para correr en un goroutine supervisado desde main.
func (r *Rotator) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Rotate(ctx); err != nil {
				logger.From(ctx).Error("key rotation failed", logger.Err(err))
			}
		}
	}
}

// Rotate introduce una clave nueva, retira la anterior y publica el
// snapshot actualizado. También degrada a "retired" las retiring vencidas.
func (r *Rotator) Rotate(ctx context.Context) error {
	now := time.Now().UTC()
	log := logger.From(ctx).With(logger.Component("jwt.rotator"), logger.Op("Rotate"))

	prev, err := r.Store.GetActive(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}

	next, err := NewSigningKey(now)
	if err != nil {
		return err
	}

	// La clave nueva entra primero: si el Insert falla la anterior sigue
	// activa y firmando, y el próximo tick reintenta.
	if err := r.Store.Insert(ctx, next); err != nil {
		return err
	}
	if prev != nil {
		retireAt := now.Add(r.Overlap)
		if err := r.Store.SetStatus(ctx, prev.KID, core.KeyRetiring, &retireAt); err != nil {
			return err
		}
	}

	if err := r.retireExpired(ctx, now); err != nil {
		log.Warn("retiring sweep failed", logger.Err(err))
	}

	if err := r.Keys.Reload(ctx); err != nil {
		return err
	}

	log.Info("signing key rotated", logger.KID(next.KID))
	return nil
}

// retireExpired marca retired las claves retiring cuya ventana venció.
func (r *Rotator) retireExpired(ctx context.Context, now time.Time) error {
	keys, err := r.Store.ListVerifiable(ctx)
	if err != nil {
		return err
	}
	for i := range keys {
		k := &keys[i]
		if k.Status == core.KeyRetiring && k.RetireAt != nil && now.After(*k.RetireAt) {
			if err := r.Store.SetStatus(ctx, k.KID, core.KeyRetired, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
