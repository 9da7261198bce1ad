package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/profile"
	"github.com/dropDatabas3/donpedro/internal/security/password"
	"github.com/dropDatabas3/donpedro/internal/security/token"
	"github.com/dropDatabas3/donpedro/internal/store/core"
	"github.com/dropDatabas3/donpedro/internal/store/memory"
)

const (
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk-vercero"
	m2mSecret    = "s3cr3t-m2m"
)

type testEnv struct {
	engine *Engine
	tokens *memory.TokenStore
	issuer *jwt.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	secretHash, err := password.Hash(password.Default, m2mSecret)
	require.NoError(t, err)
	userHash, err := password.Hash(password.Default, "hunter2!")
	require.NoError(t, err)

	rotateOff := false
	cfg := &config.Config{
		Scopes: []config.Scope{
			{Name: "openid", Identity: true, Claims: []string{"sub"}},
			{Name: "profile", Identity: true, Claims: []string{"name", "preferred_username"}},
			{Name: "api1.read"},
			{Name: "api1.write"},
		},
		Resources: []config.Resource{
			{Name: "api1", Scopes: []string{"api1.read", "api1.write"}},
		},
		Clients: []config.Client{
			{
				ClientID:     "webapp1",
				Type:         "public",
				GrantTypes:   []string{"authorization_code", "refresh_token"},
				RedirectURIs: []string{"https://app.example/callback"},
				Scopes:       []string{"openid", "profile", "api1.read"},
			},
			{
				ClientID:                "legacy",
				Type:                    "public",
				GrantTypes:              []string{"authorization_code", "refresh_token"},
				RedirectURIs:            []string{"https://legacy.example/cb"},
				Scopes:                  []string{"openid", "api1.read"},
				RotateRefreshTokens:     &rotateOff,
			},
			{
				ClientID:   "m2m",
				Type:       "confidential",
				SecretHash: secretHash,
				GrantTypes: []string{"client_credentials"},
				Scopes:     []string{"api1.read", "api1.write"},
			},
		},
		Users: []config.SeedUser{{
			ID:           "u1",
			Username:     "alice",
			PasswordHash: userHash,
			Claims:       map[string]string{"name": "Alice"},
		}},
	}

	cs, err := configstore.New(cfg)
	require.NoError(t, err)
	creds, err := credentials.NewMemoryStore(cfg.Users)
	require.NoError(t, err)

	ks := jwt.NewKeystore(memory.NewKeyStore())
	require.NoError(t, ks.EnsureBootstrap(ctx))
	issuer := jwt.NewIssuer("https://op.example", ks)

	tokens := memory.NewTokenStore()
	e := New(Options{
		Config:      cs,
		Grants:      memory.NewGrantStore(),
		Tokens:      tokens,
		Credentials: creds,
		Profile:     profile.New(cs, profile.CredentialsSource(creds)),
		Issuer:      issuer,
		CodeTTL:     5 * time.Minute,
	})
	return &testEnv{engine: e, tokens: tokens, issuer: issuer}
}

func (env *testEnv) authorize(t *testing.T, clientID string) *AuthorizedRequest {
	t.Helper()
	scope := "openid profile api1.read"
	if clientID == "legacy" {
		scope = "openid api1.read"
	}
	req, err := env.engine.BeginAuthorize(context.Background(), AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         "",
		Scope:               scope,
		State:               "xyz",
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       token.SHA256Base64URL(testVerifier),
		CodeChallengeMethod: "S256",
	})
	require.NoError(t, err)
	return req
}

func (env *testEnv) client(t *testing.T, id string) *configstore.Client {
	t.Helper()
	c, err := env.engine.AuthenticateClient(context.Background(), ClientAuth{ClientID: id, Method: "none"})
	require.NoError(t, err)
	return c
}

func TestBeginAuthorize_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            "webapp1",
		Scope:               "openid",
		CodeChallenge:       token.SHA256Base64URL(testVerifier),
		CodeChallengeMethod: "S256",
	}

	t.Run("ok_defaults_single_redirect", func(t *testing.T) {
		req, err := env.engine.BeginAuthorize(ctx, base)
		require.NoError(t, err)
		require.Equal(t, "https://app.example/callback", req.RedirectURI)
	})

	t.Run("unknown_client", func(t *testing.T) {
		r := base
		r.ClientID = "ghost"
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unregistered_redirect", func(t *testing.T) {
		r := base
		r.RedirectURI = "https://evil.example/cb"
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrInvalidRedirectURI)
	})

	t.Run("bad_response_type", func(t *testing.T) {
		r := base
		r.ResponseType = "token"
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrUnsupportedResponseType)
	})

	t.Run("scope_not_granted_to_client", func(t *testing.T) {
		r := base
		r.Scope = "openid api1.write"
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("pkce_required_for_public", func(t *testing.T) {
		r := base
		r.CodeChallenge = ""
		r.CodeChallengeMethod = ""
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("plain_method_rejected", func(t *testing.T) {
		r := base
		r.CodeChallengeMethod = "plain"
		_, err := env.engine.BeginAuthorize(ctx, r)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestRedeemCode_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	authTime := time.Now().Add(-time.Minute)

	req := env.authorize(t, "webapp1")
	code, err := env.engine.IssueCode(ctx, req, "u1", authTime)
	require.NoError(t, err)

	client := env.client(t, "webapp1")
	ts, err := env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier)
	require.NoError(t, err)
	require.Equal(t, "Bearer", ts.TokenType)
	require.NotEmpty(t, ts.AccessToken)
	require.NotEmpty(t, ts.IDToken)
	require.NotEmpty(t, ts.RefreshToken)
	require.Positive(t, ts.ExpiresIn)

	// el access token verifica contra la audiencia del resource
	claims, err := env.issuer.Verify(ts.AccessToken, "api1")
	require.NoError(t, err)
	require.Equal(t, "u1", claims["sub"])
	require.ElementsMatch(t, []string{"openid", "profile", "api1.read"}, jwt.ScopesFromClaims(claims))

	// el ID token lleva nonce y auth_time del authorize original
	idClaims, err := env.issuer.Verify(ts.IDToken, "webapp1")
	require.NoError(t, err)
	require.Equal(t, "n-0S6_WzA2Mj", idClaims["nonce"])
	require.Equal(t, "Alice", idClaims["name"])
	require.InDelta(t, authTime.Unix(), idClaims["auth_time"].(float64), 1)
}

func TestRedeemCode_DoubleRedemption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.authorize(t, "webapp1")
	code, err := env.engine.IssueCode(ctx, req, "u1", time.Now())
	require.NoError(t, err)

	client := env.client(t, "webapp1")
	_, err = env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier)
	require.NoError(t, err)

	_, err = env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCode_ConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.authorize(t, "webapp1")
	code, err := env.engine.IssueCode(ctx, req, "u1", time.Now())
	require.NoError(t, err)
	client := env.client(t, "webapp1")

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestRedeemCode_PKCEMismatchBurnsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.authorize(t, "webapp1")
	code, err := env.engine.IssueCode(ctx, req, "u1", time.Now())
	require.NoError(t, err)
	client := env.client(t, "webapp1")

	_, err = env.engine.RedeemCode(ctx, client, code, req.RedirectURI, "wrong-verifier-wrong-verifier-wrong-verifier")
	require.ErrorIs(t, err, ErrInvalidGrant)

	// el intento fallido consumió el código: el verifier correcto ya no sirve
	_, err = env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCode_RedirectMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.authorize(t, "webapp1")
	code, err := env.engine.IssueCode(ctx, req, "u1", time.Now())
	require.NoError(t, err)
	client := env.client(t, "webapp1")

	_, err = env.engine.RedeemCode(ctx, client, code, "https://app.example/other", testVerifier)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func redeem(t *testing.T, env *testEnv, clientID string) (*configstore.Client, *TokenSet) {
	t.Helper()
	ctx := context.Background()
	req := env.authorize(t, clientID)
	code, err := env.engine.IssueCode(ctx, req, "u1", time.Now())
	require.NoError(t, err)
	client := env.client(t, clientID)
	ts, err := env.engine.RedeemCode(ctx, client, code, req.RedirectURI, testVerifier)
	require.NoError(t, err)
	return client, ts
}

func TestRefresh_Rotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "webapp1")

	ts2, err := env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.NoError(t, err)
	require.NotEmpty(t, ts2.RefreshToken)
	require.NotEqual(t, ts.RefreshToken, ts2.RefreshToken)
	require.NotEmpty(t, ts2.IDToken)

	// el hijo sigue vivo, el padre ya no
	_, err = env.engine.Refresh(ctx, client, ts2.RefreshToken, "")
	require.NoError(t, err)
}

func TestRefresh_ReuseRevokesChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "webapp1")

	ts2, err := env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.NoError(t, err)

	// presentar el padre ya rotado es reuso: cae la cadena completa
	_, err = env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.engine.Refresh(ctx, client, ts2.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefresh_ScopeNarrowing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "webapp1")

	ts2, err := env.engine.Refresh(ctx, client, ts.RefreshToken, "api1.read")
	require.NoError(t, err)
	require.Equal(t, "api1.read", ts2.Scope)
	require.Empty(t, ts2.IDToken)

	// ampliar scopes está prohibido
	_, err = env.engine.Refresh(ctx, client, ts2.RefreshToken, "api1.read api1.write")
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefresh_RotationDisabledKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "legacy")

	ts2, err := env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.NoError(t, err)
	require.Equal(t, ts.RefreshToken, ts2.RefreshToken)

	// sin rotación no hay señal de reuso: el mismo token sigue sirviendo
	_, err = env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.NoError(t, err)
}

func TestRefresh_WrongClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, ts := redeem(t, env, "webapp1")

	other := env.client(t, "legacy")
	_, err := env.engine.Refresh(ctx, other, ts.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestClientCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, err := env.engine.AuthenticateClient(ctx, ClientAuth{
		ClientID: "m2m", Secret: m2mSecret, Method: "client_secret_post",
	})
	require.NoError(t, err)

	ts, err := env.engine.ClientCredentials(ctx, client, "api1.read")
	require.NoError(t, err)
	require.Empty(t, ts.RefreshToken)
	require.Empty(t, ts.IDToken)

	claims, err := env.issuer.Verify(ts.AccessToken, "api1")
	require.NoError(t, err)
	require.Equal(t, "m2m", claims["sub"])

	// openid no tiene sentido sin sujeto
	_, err = env.engine.ClientCredentials(ctx, client, "openid")
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestAuthenticateClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.AuthenticateClient(ctx, ClientAuth{
		ClientID: "m2m", Secret: "wrong", Method: "client_secret_post",
	})
	require.ErrorIs(t, err, ErrInvalidClient)

	_, err = env.engine.AuthenticateClient(ctx, ClientAuth{
		ClientID: "m2m", Secret: m2mSecret, Method: "client_secret_basic",
	})
	require.ErrorIs(t, err, ErrInvalidClient, "método distinto al registrado")

	_, err = env.engine.AuthenticateClient(ctx, ClientAuth{
		ClientID: "webapp1", Secret: "whatever", Method: "none",
	})
	require.ErrorIs(t, err, ErrInvalidClient, "cliente público con secreto")
}

func TestRevoke_ChainAndIdempotence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "webapp1")

	require.NoError(t, env.engine.Revoke(ctx, client, ts.RefreshToken))
	_, err := env.engine.Refresh(ctx, client, ts.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidGrant)

	// revocar de nuevo o revocar basura no es error
	require.NoError(t, env.engine.Revoke(ctx, client, ts.RefreshToken))
	require.NoError(t, env.engine.Revoke(ctx, client, "garbage"))

	// un cliente ajeno no puede revocar tokens de otro
	_, ts2 := redeem(t, env, "webapp1")
	other := env.client(t, "legacy")
	require.NoError(t, env.engine.Revoke(ctx, other, ts2.RefreshToken))
	_, err = env.engine.Refresh(ctx, client, ts2.RefreshToken, "")
	require.NoError(t, err, "el token sigue vivo")
}

func TestIntrospect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, ts := redeem(t, env, "webapp1")

	t.Run("access_token", func(t *testing.T) {
		out, err := env.engine.Introspect(ctx, ts.AccessToken)
		require.NoError(t, err)
		require.True(t, out.Active)
		require.Equal(t, "u1", out.Subject)
		require.Equal(t, "webapp1", out.ClientID)
	})

	t.Run("refresh_token", func(t *testing.T) {
		out, err := env.engine.Introspect(ctx, ts.RefreshToken)
		require.NoError(t, err)
		require.True(t, out.Active)
		require.Equal(t, "refresh_token", out.TokenType)
	})

	t.Run("revoked_refresh_is_inactive", func(t *testing.T) {
		require.NoError(t, env.engine.Revoke(ctx, client, ts.RefreshToken))
		out, err := env.engine.Introspect(ctx, ts.RefreshToken)
		require.NoError(t, err)
		require.False(t, out.Active)
	})

	t.Run("garbage_is_inactive", func(t *testing.T) {
		out, err := env.engine.Introspect(ctx, "not-a-token")
		require.NoError(t, err)
		require.False(t, out.Active)
	})
}

// transientGrantStore simula un backend caído: todo falla con ErrTransient.
type transientGrantStore struct{}

func (transientGrantStore) Put(ctx context.Context, g *core.AuthorizationGrant, ttl time.Duration) error {
	return fmt.Errorf("%w: connection refused", core.ErrTransient)
}

func (transientGrantStore) Consume(ctx context.Context, codeHash string) (*core.AuthorizationGrant, error) {
	return nil, fmt.Errorf("%w: connection refused", core.ErrTransient)
}

func (transientGrantStore) Delete(ctx context.Context, codeHash string) error {
	return fmt.Errorf("%w: connection refused", core.ErrTransient)
}

func TestRedeemCode_TransientErrorIsNotInvalidGrant(t *testing.T) {
	env := newTestEnv(t)
	env.engine.grants = transientGrantStore{}

	client := env.client(t, "webapp1")
	_, err := env.engine.RedeemCode(context.Background(), client, "some-code", "https://app.example/callback", testVerifier)

	require.ErrorIs(t, err, core.ErrTransient)
	require.False(t, errors.Is(err, ErrInvalidGrant), "transient failure must not look like a validation failure")
	require.False(t, errors.Is(err, ErrInvalidRequest))
}
