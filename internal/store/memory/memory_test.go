package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

func TestGrantStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewGrantStore()
	g := &core.AuthorizationGrant{
		CodeHash:  "h1",
		ClientID:  "webapp1",
		SubjectID: "u1",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, s.Put(ctx, g, 5*time.Minute))

	got, err := s.Consume(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "webapp1", got.ClientID)

	_, err = s.Consume(ctx, "h1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestGrantStore_ConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewGrantStore()
	require.NoError(t, s.Put(ctx, &core.AuthorizationGrant{CodeHash: "race"}, time.Minute))

	const n = 32
	var wg sync.WaitGroup
	var wins int64
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "race"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins, "exactamente un consume debe ganar")
}

func TestGrantStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewGrantStore()
	now := time.Now()
	require.NoError(t, s.Put(ctx, &core.AuthorizationGrant{CodeHash: "old", ExpiresAt: now.Add(-time.Minute)}, 0))
	require.NoError(t, s.Put(ctx, &core.AuthorizationGrant{CodeHash: "new", ExpiresAt: now.Add(time.Minute)}, time.Minute))
	require.Equal(t, 1, s.Sweep(now))
	_, err := s.Consume(ctx, "new")
	require.NoError(t, err)
}

func newRT(chain, hash string) *core.RefreshToken {
	now := time.Now().UTC()
	return &core.RefreshToken{
		ID:        uuid.NewString(),
		ChainID:   chain,
		SubjectID: "u1",
		ClientID:  "webapp1",
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestTokenStore_RotateOnce(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	parent := newRT("c1", "ph")
	require.NoError(t, s.Create(ctx, parent))

	require.NoError(t, s.Rotate(ctx, parent.ID, newRT("c1", "ch")))

	// segunda rotación del mismo padre = reuso
	err := s.Rotate(ctx, parent.ID, newRT("c1", "ch2"))
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestTokenStore_RevokeChain(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	require.NoError(t, s.Create(ctx, newRT("c1", "a")))
	require.NoError(t, s.Create(ctx, newRT("c1", "b")))
	require.NoError(t, s.Create(ctx, newRT("c2", "c")))

	n, err := s.RevokeChain(ctx, "c1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	rt, err := s.GetByHash(ctx, "a")
	require.NoError(t, err)
	require.False(t, rt.Active(time.Now()))

	other, err := s.GetByHash(ctx, "c")
	require.NoError(t, err)
	require.True(t, other.Active(time.Now()))
}

func TestTokenStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	old := newRT("c1", "old")
	old.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, old))
	require.NoError(t, s.Create(ctx, newRT("c1", "live")))

	n, err := s.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.GetByHash(ctx, "old")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestKeyStore_ActiveNewest(t *testing.T) {
	ctx := context.Background()
	s := NewKeyStore()
	now := time.Now().UTC()
	require.NoError(t, s.Insert(ctx, &core.SigningKey{KID: "k1", Status: core.KeyActive, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Insert(ctx, &core.SigningKey{KID: "k2", Status: core.KeyActive, CreatedAt: now}))

	k, err := s.GetActive(ctx)
	require.NoError(t, err)
	require.Equal(t, "k2", k.KID)

	require.NoError(t, s.SetStatus(ctx, "k1", core.KeyRetired, nil))
	verifiable, err := s.ListVerifiable(ctx)
	require.NoError(t, err)
	require.Len(t, verifiable, 1)
	require.Equal(t, "k2", verifiable[0].KID)
}
