package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

const keyColumns = `kid, alg, public_key, private_key, status, not_before, retire_at, created_at`

func (s *Store) InsertSigningKey(ctx context.Context, k *core.SigningKey) error {
	const q = `
		INSERT INTO signing_keys (` + keyColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, q, k.KID, k.Alg, k.PublicKey, k.PrivateKey,
		string(k.Status), k.NotBefore, k.RetireAt, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

func (s *Store) GetActiveSigningKey(ctx context.Context) (*core.SigningKey, error) {
	const q = `
		SELECT ` + keyColumns + ` FROM signing_keys
		WHERE status=$1 ORDER BY created_at DESC LIMIT 1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, q, string(core.KeyActive))
	return scanSigningKey(row)
}

func (s *Store) ListVerifiableSigningKeys(ctx context.Context) ([]core.SigningKey, error) {
	const q = `
		SELECT ` + keyColumns + ` FROM signing_keys
		WHERE status IN ($1,$2) ORDER BY created_at`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, q, string(core.KeyActive), string(core.KeyRetiring))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer rows.Close()

	var out []core.SigningKey
	for rows.Next() {
		k, err := scanSigningKeyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return out, nil
}

func (s *Store) SetSigningKeyStatus(ctx context.Context, kid string, status core.KeyStatus, retireAt *time.Time) error {
	const q = `
		UPDATE signing_keys SET status=$2, retire_at=COALESCE($3, retire_at)
		WHERE kid=$1`
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	ct, err := s.pool.Exec(ctx, q, kid, string(status), retireAt)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanSigningKey(row pgx.Row) (*core.SigningKey, error) {
	var k core.SigningKey
	var status string
	err := row.Scan(&k.KID, &k.Alg, &k.PublicKey, &k.PrivateKey, &status,
		&k.NotBefore, &k.RetireAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	k.Status = core.KeyStatus(status)
	return &k, nil
}

func scanSigningKeyRows(rows pgx.Rows) (*core.SigningKey, error) {
	var k core.SigningKey
	var status string
	if err := rows.Scan(&k.KID, &k.Alg, &k.PublicKey, &k.PrivateKey, &status,
		&k.NotBefore, &k.RetireAt, &k.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	k.Status = core.KeyStatus(status)
	return &k, nil
}

// KeyStore es la vista core.KeyStore del Store.
type KeyStore struct{ s *Store }

func (s *Store) Keys() *KeyStore { return &KeyStore{s: s} }

func (k *KeyStore) Insert(ctx context.Context, key *core.SigningKey) error {
	return k.s.InsertSigningKey(ctx, key)
}

func (k *KeyStore) GetActive(ctx context.Context) (*core.SigningKey, error) {
	return k.s.GetActiveSigningKey(ctx)
}

func (k *KeyStore) ListVerifiable(ctx context.Context) ([]core.SigningKey, error) {
	return k.s.ListVerifiableSigningKeys(ctx)
}

func (k *KeyStore) SetStatus(ctx context.Context, kid string, status core.KeyStatus, retireAt *time.Time) error {
	return k.s.SetSigningKeyStatus(ctx, kid, status, retireAt)
}
