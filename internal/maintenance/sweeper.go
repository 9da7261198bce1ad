// Package maintenance corre tareas periódicas de limpieza.
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// SweepFunc borra registros vencidos anteriores a before.
type SweepFunc func(ctx context.Context, before time.Time) (int64, error)

// Sweeper purga refresh tokens y grants vencidos. La expiración se
// valida igual en cada acceso; esto sólo recupera espacio.
type Sweeper struct {
	Tokens   core.TokenStore
	Grants   SweepFunc // nil si el backend expira solo (TTL de Redis)
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	log := logger.Named("sweeper")
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger) {
	now := time.Now().UTC()

	if s.Tokens != nil {
		n, err := s.Tokens.DeleteExpired(ctx, now)
		if err != nil {
			log.Warn("refresh token sweep failed", logger.Err(err))
		} else if n > 0 {
			log.Info("expired refresh tokens removed", logger.Int64("removed", n))
		}
	}

	if s.Grants != nil {
		n, err := s.Grants(ctx, now)
		if err != nil {
			log.Warn("grant sweep failed", logger.Err(err))
		} else if n > 0 {
			log.Info("expired grants removed", logger.Int64("removed", n))
		}
	}
}
