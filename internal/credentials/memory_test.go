package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/security/password"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	hash, err := password.Hash(password.Default, "hunter2!")
	require.NoError(t, err)
	s, err := NewMemoryStore([]config.SeedUser{{
		ID:           "u1",
		Username:     "Alice",
		PasswordHash: hash,
		Claims:       map[string]string{"email": "alice@example.com", "name": "Alice"},
	}})
	require.NoError(t, err)
	return s
}

func TestMemoryStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	id, err := s.Authenticate(ctx, "alice", "hunter2!")
	require.NoError(t, err)
	require.Equal(t, "u1", id.ID)
	require.Equal(t, "alice@example.com", id.Claims["email"])

	_, err = s.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrAuthFailed)

	// usuario inexistente: mismo error, sin distinguir causa
	_, err = s.Authenticate(ctx, "nobody", "hunter2!")
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestMemoryStore_FindByID(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	id, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", id.Username)

	_, err = s.FindByID(ctx, "u2")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestNewMemoryStore_Invalid(t *testing.T) {
	_, err := NewMemoryStore([]config.SeedUser{{ID: "u1", Username: "a"}})
	require.ErrorContains(t, err, "missing password_hash")

	_, err = NewMemoryStore([]config.SeedUser{
		{ID: "u1", Username: "a", PasswordHash: "x"},
		{ID: "u2", Username: "A", PasswordHash: "x"},
	})
	require.ErrorContains(t, err, "duplicate username")

	_, err = NewMemoryStore([]config.SeedUser{{Username: "a", PasswordHash: "x"}})
	require.ErrorContains(t, err, "id and username are required")
}

// El hash dummy de los caminos usuario-desconocido tiene que ser un PHC
// argon2id real: si no parsea, Verify retorna al instante y la
// equalización de timing no existe.
func TestDummyHashEqualizesUnknownUserPath(t *testing.T) {
	params, ok := password.ParsePHC(dummyHash)
	require.True(t, ok, "dummyHash must be a well-formed argon2id PHC string")
	require.Equal(t, password.Default.Memory, params.Memory)

	require.False(t, password.Verify("whatever", dummyHash))
}
