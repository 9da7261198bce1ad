package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/configstore"
)

func testConfigStore(t *testing.T) *configstore.Store {
	t.Helper()
	cs, err := configstore.New(&config.Config{
		Scopes: []config.Scope{
			{Name: "openid", Identity: true, Claims: []string{"sub"}},
			{Name: "profile", Identity: true, Claims: []string{"name", "preferred_username"}},
			{Name: "email", Identity: true, Claims: []string{"email", "email_verified"}},
			{Name: "api1.read"},
		},
	})
	require.NoError(t, err)
	return cs
}

func staticSource(claims map[string]any) Source {
	return SourceFunc(func(ctx context.Context, subjectID string) (map[string]any, error) {
		return claims, nil
	})
}

func TestClaimsFor_ScopeFiltered(t *testing.T) {
	svc := New(testConfigStore(t), staticSource(map[string]any{
		"name":               "Alice",
		"preferred_username": "alice",
		"email":              "alice@example.com",
		"phone_number":       "+1555",
	}))

	got, err := svc.ClaimsFor(context.Background(), "u1", []string{"openid", "profile"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "Alice", "preferred_username": "alice"}, got)

	// sin el scope email, el claim no sale aunque la fuente lo tenga
	_, hasEmail := got["email"]
	require.False(t, hasEmail)
}

func TestClaimsFor_LaterSourceWins(t *testing.T) {
	svc := New(testConfigStore(t),
		staticSource(map[string]any{"name": "from-db"}),
		staticSource(map[string]any{"name": "from-override"}),
	)

	got, err := svc.ClaimsFor(context.Background(), "u1", []string{"profile"})
	require.NoError(t, err)
	require.Equal(t, "from-override", got["name"])
}

func TestClaimsFor_SourceError(t *testing.T) {
	boom := errors.New("backend down")
	svc := New(testConfigStore(t), SourceFunc(func(ctx context.Context, _ string) (map[string]any, error) {
		return nil, boom
	}))

	_, err := svc.ClaimsFor(context.Background(), "u1", []string{"profile"})
	require.ErrorIs(t, err, boom)
}

func TestClaimsFor_NonIdentityScope(t *testing.T) {
	svc := New(testConfigStore(t), staticSource(map[string]any{"name": "Alice"}))

	got, err := svc.ClaimsFor(context.Background(), "u1", []string{"api1.read"})
	require.NoError(t, err)
	require.Empty(t, got)
}
