package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

func (s *Store) PutGrant(ctx context.Context, g *core.AuthorizationGrant, ttl time.Duration) error {
	const q = `
		INSERT INTO authorization_grants
			(code_hash, client_id, subject_id, scopes, redirect_uri, nonce,
			 code_challenge, challenge_method, auth_time, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, q,
		g.CodeHash, g.ClientID, g.SubjectID, g.Scopes, g.RedirectURI, g.Nonce,
		g.CodeChallenge, g.ChallengeMethod, g.AuthTime, g.CreatedAt, g.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

// ConsumeGrant borra y devuelve en una sola sentencia: DELETE ... RETURNING
// es atómico, de N redenciones concurrentes una sola recibe la fila.
func (s *Store) ConsumeGrant(ctx context.Context, codeHash string) (*core.AuthorizationGrant, error) {
	const q = `
		DELETE FROM authorization_grants WHERE code_hash=$1
		RETURNING code_hash, client_id, subject_id, scopes, redirect_uri, nonce,
		          code_challenge, challenge_method, auth_time, created_at, expires_at`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var g core.AuthorizationGrant
	err := s.pool.QueryRow(ctx, q, codeHash).Scan(
		&g.CodeHash, &g.ClientID, &g.SubjectID, &g.Scopes, &g.RedirectURI, &g.Nonce,
		&g.CodeChallenge, &g.ChallengeMethod, &g.AuthTime, &g.CreatedAt, &g.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return &g, nil
}

func (s *Store) DeleteGrant(ctx context.Context, codeHash string) error {
	const q = `DELETE FROM authorization_grants WHERE code_hash=$1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, q, codeHash); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

func (s *Store) DeleteExpiredGrants(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM authorization_grants WHERE expires_at < $1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	ct, err := s.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return ct.RowsAffected(), nil
}

// GrantStore es la vista core.GrantStore del Store.
type GrantStore struct{ s *Store }

func (s *Store) Grants() *GrantStore { return &GrantStore{s: s} }

func (g *GrantStore) Put(ctx context.Context, grant *core.AuthorizationGrant, ttl time.Duration) error {
	return g.s.PutGrant(ctx, grant, ttl)
}

func (g *GrantStore) Consume(ctx context.Context, codeHash string) (*core.AuthorizationGrant, error) {
	return g.s.ConsumeGrant(ctx, codeHash)
}

func (g *GrantStore) Delete(ctx context.Context, codeHash string) error {
	return g.s.DeleteGrant(ctx, codeHash)
}
