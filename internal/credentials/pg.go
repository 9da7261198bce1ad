package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/donpedro/internal/security/password"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// PGStore lee usuarios desde PostgreSQL. Los claims de identidad viven
// en una columna JSONB plana (string → string).
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

// EnsureSchema crea la tabla de usuarios si no existe.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS subjects (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	claims        JSONB NOT NULL DEFAULT '{}'::jsonb
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Authenticate(ctx context.Context, username, pass string) (*Identity, error) {
	const q = `SELECT id, username, password_hash, claims FROM subjects WHERE lower(username)=lower($1)`
	var id Identity
	var hash string
	err := s.pool.QueryRow(ctx, q, username).Scan(&id.ID, &id.Username, &hash, &id.Claims)
	if errors.Is(err, pgx.ErrNoRows) {
		// mismo costo que el camino con usuario: no filtrar existencia
		// por timing
		_ = password.Verify(pass, dummyHash)
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	if !password.Verify(pass, hash) {
		return nil, ErrAuthFailed
	}
	return &id, nil
}

func (s *PGStore) FindByID(ctx context.Context, subjectID string) (*Identity, error) {
	const q = `SELECT id, username, claims FROM subjects WHERE id=$1`
	var id Identity
	err := s.pool.QueryRow(ctx, q, subjectID).Scan(&id.ID, &id.Username, &id.Claims)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return &id, nil
}

// UpsertSubject crea o actualiza un usuario (CLI de administración).
func (s *PGStore) UpsertSubject(ctx context.Context, id Identity, passwordHash string) error {
	const q = `
		INSERT INTO subjects (id, username, password_hash, claims)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET username=EXCLUDED.username, password_hash=EXCLUDED.password_hash, claims=EXCLUDED.claims`
	if _, err := s.pool.Exec(ctx, q, id.ID, id.Username, passwordHash, id.Claims); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}
