// Package pg implementa los stores persistentes sobre PostgreSQL (pgx).
// Las operaciones con semántica de carrera (consume de códigos, rotación
// de refresh tokens) se resuelven con UPDATE/DELETE condicionales: gana
// exactamente una transacción y el resto ve 0 filas afectadas.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// queryTimeout acota cada acceso a la base; un backend colgado se reporta
// como transient, nunca bloquea el request indefinidamente.
const queryTimeout = 5 * time.Second

type Store struct{ pool *pgxpool.Pool }

type Options struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/health).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// EnsureSchema crea las tablas si no existen. Pensado para arranque en
// desarrollo; en producción corre el migrador del CLI.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS authorization_grants (
	code_hash        TEXT PRIMARY KEY,
	client_id        TEXT NOT NULL,
	subject_id       TEXT NOT NULL,
	scopes           TEXT[] NOT NULL,
	redirect_uri     TEXT NOT NULL,
	nonce            TEXT NOT NULL DEFAULT '',
	code_challenge   TEXT NOT NULL DEFAULT '',
	challenge_method TEXT NOT NULL DEFAULT '',
	auth_time        TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	expires_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id           TEXT PRIMARY KEY,
	chain_id     TEXT NOT NULL,
	subject_id   TEXT NOT NULL,
	client_id    TEXT NOT NULL,
	scopes       TEXT[] NOT NULL,
	token_hash   TEXT NOT NULL UNIQUE,
	issued_at    TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	rotated_from TEXT,
	rotated_at   TIMESTAMPTZ,
	revoked_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS refresh_tokens_chain_idx ON refresh_tokens (chain_id);
CREATE TABLE IF NOT EXISTS signing_keys (
	kid         TEXT PRIMARY KEY,
	alg         TEXT NOT NULL,
	public_key  BYTEA NOT NULL,
	private_key BYTEA NOT NULL,
	status      TEXT NOT NULL,
	not_before  TIMESTAMPTZ NOT NULL,
	retire_at   TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL
);`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
