package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

const rtColumns = `id, chain_id, subject_id, client_id, scopes, token_hash,
	issued_at, expires_at, rotated_from, rotated_at, revoked_at`

func scanRefreshToken(row pgx.Row) (*core.RefreshToken, error) {
	var rt core.RefreshToken
	err := row.Scan(&rt.ID, &rt.ChainID, &rt.SubjectID, &rt.ClientID, &rt.Scopes,
		&rt.TokenHash, &rt.IssuedAt, &rt.ExpiresAt, &rt.RotatedFrom, &rt.RotatedAt, &rt.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return &rt, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) error {
	const q = `
		INSERT INTO refresh_tokens (` + rtColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, q, rt.ID, rt.ChainID, rt.SubjectID, rt.ClientID, rt.Scopes,
		rt.TokenHash, rt.IssuedAt, rt.ExpiresAt, rt.RotatedFrom, rt.RotatedAt, rt.RevokedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	const q = `SELECT ` + rtColumns + ` FROM refresh_tokens WHERE token_hash=$1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return scanRefreshToken(s.pool.QueryRow(ctx, q, tokenHash))
}

// RotateRefreshToken marca el padre y crea el hijo en una transacción.
// El UPDATE condicional decide la carrera: si otra rotación ya marcó el
// padre (o fue revocado) afecta 0 filas y devolvemos ErrConflict.
func (s *Store) RotateRefreshToken(ctx context.Context, oldID string, child *core.RefreshToken) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	const mark = `
		UPDATE refresh_tokens SET rotated_at=NOW()
		WHERE id=$1 AND rotated_at IS NULL AND revoked_at IS NULL`
	ct, err := tx.Exec(ctx, mark, oldID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE id=$1)`, oldID).Scan(&exists); err != nil {
			return fmt.Errorf("%w: %v", core.ErrTransient, err)
		}
		if !exists {
			return core.ErrNotFound
		}
		return core.ErrConflict
	}

	const ins = `
		INSERT INTO refresh_tokens (` + rtColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	if _, err := tx.Exec(ctx, ins, child.ID, child.ChainID, child.SubjectID, child.ClientID,
		child.Scopes, child.TokenHash, child.IssuedAt, child.ExpiresAt,
		child.RotatedFrom, child.RotatedAt, child.RevokedAt); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	const q = `UPDATE refresh_tokens SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE id=$1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("%w: %v", core.ErrTransient, err)
		}
		if !exists {
			return core.ErrNotFound
		}
	}
	return nil
}

func (s *Store) RevokeRefreshChain(ctx context.Context, chainID string) (int64, error) {
	const q = `UPDATE refresh_tokens SET revoked_at=NOW() WHERE chain_id=$1 AND revoked_at IS NULL`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	ct, err := s.pool.Exec(ctx, q, chainID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return ct.RowsAffected(), nil
}

func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	ct, err := s.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return ct.RowsAffected(), nil
}

// TokenStore es la vista core.TokenStore del Store.
type TokenStore struct{ s *Store }

func (s *Store) Tokens() *TokenStore { return &TokenStore{s: s} }

func (t *TokenStore) Create(ctx context.Context, rt *core.RefreshToken) error {
	return t.s.CreateRefreshToken(ctx, rt)
}

func (t *TokenStore) GetByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	return t.s.GetRefreshTokenByHash(ctx, tokenHash)
}

func (t *TokenStore) Rotate(ctx context.Context, oldID string, child *core.RefreshToken) error {
	return t.s.RotateRefreshToken(ctx, oldID, child)
}

func (t *TokenStore) Revoke(ctx context.Context, id string) error {
	return t.s.RevokeRefreshToken(ctx, id)
}

func (t *TokenStore) RevokeChain(ctx context.Context, chainID string) (int64, error) {
	return t.s.RevokeRefreshChain(ctx, chainID)
}

func (t *TokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return t.s.DeleteExpiredRefreshTokens(ctx, before)
}
