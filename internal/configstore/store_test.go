package configstore

import (
	"testing"
	"time"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scopes = []config.Scope{
		{Name: "openid", Identity: true, Claims: []string{"sub"}},
		{Name: "profile", Identity: true, Claims: []string{"name", "given_name"}},
		{Name: "api1.read"},
	}
	cfg.Resources = []config.Resource{
		{Name: "api1", Scopes: []string{"api1.read"}},
	}
	cfg.Clients = []config.Client{
		{
			ClientID:     "webapp1",
			Type:         "public",
			GrantTypes:   []string{"authorization_code", "refresh_token"},
			RedirectURIs: []string{"https://app.example/callback"},
			Scopes:       []string{"openid", "profile", "api1.read"},
		},
	}
	return cfg
}

func TestNew_Valid(t *testing.T) {
	s, err := New(baseConfig())
	require.NoError(t, err)

	c, err := s.LookupClient("webapp1")
	require.NoError(t, err)
	require.True(t, c.GrantAllowed("authorization_code"))
	require.False(t, c.GrantAllowed("client_credentials"))
	require.True(t, c.ScopeAllowed("api1.read"))
	require.False(t, c.ScopeAllowed("admin"))
	require.True(t, c.RequirePKCE) // public client default
	require.True(t, c.RotateRefreshTokens)
	require.Equal(t, 15*time.Minute, c.AccessTTL)
}

func TestNew_FailFast(t *testing.T) {
	t.Run("duplicate client_id", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Clients = append(cfg.Clients, cfg.Clients[0])
		_, err := New(cfg)
		require.ErrorContains(t, err, "duplicate client_id")
	})

	t.Run("unknown scope reference", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Clients[0].Scopes = append(cfg.Clients[0].Scopes, "nope")
		_, err := New(cfg)
		require.ErrorContains(t, err, "unknown scope")
	})

	t.Run("invalid scope name", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Scopes = append(cfg.Scopes, config.Scope{Name: "BAD NAME"})
		_, err := New(cfg)
		require.ErrorContains(t, err, "invalid scope name")
	})

	t.Run("confidential without secret", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Clients[0].Type = "confidential"
		_, err := New(cfg)
		require.ErrorContains(t, err, "no secret_hash")
	})

	t.Run("invalid redirect uri", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Clients[0].RedirectURIs = []string{"not-a-uri"}
		_, err := New(cfg)
		require.ErrorContains(t, err, "invalid redirect_uri")
	})

	t.Run("resource references unknown scope", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Resources[0].Scopes = []string{"ghost"}
		_, err := New(cfg)
		require.ErrorContains(t, err, "unknown scope")
	})
}

func TestAudiencesFor(t *testing.T) {
	s, err := New(baseConfig())
	require.NoError(t, err)

	require.Equal(t, []string{"api1"}, s.AudiencesFor([]string{"openid", "api1.read"}))
	require.Empty(t, s.AudiencesFor([]string{"openid", "profile"}))
}

func TestIdentityClaimsFor(t *testing.T) {
	s, err := New(baseConfig())
	require.NoError(t, err)

	claims := s.IdentityClaimsFor([]string{"openid", "profile", "api1.read"})
	require.ElementsMatch(t, []string{"sub", "name", "given_name"}, claims)

	// api scope alone projects nothing
	require.Empty(t, s.IdentityClaimsFor([]string{"api1.read"}))
}
