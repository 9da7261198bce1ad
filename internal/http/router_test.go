package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/donpedro/internal/cache/memory"
	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/engine"
	"github.com/dropDatabas3/donpedro/internal/http/session"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/profile"
	"github.com/dropDatabas3/donpedro/internal/rate"
	"github.com/dropDatabas3/donpedro/internal/security/password"
	"github.com/dropDatabas3/donpedro/internal/security/token"
	memstore "github.com/dropDatabas3/donpedro/internal/store/memory"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk-vercero"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	userHash, err := password.Hash(password.Default, "hunter2!")
	require.NoError(t, err)

	cfg := &config.Config{
		Scopes: []config.Scope{
			{Name: "openid", Identity: true, Claims: []string{"sub"}},
			{Name: "profile", Identity: true, Claims: []string{"name", "preferred_username"}},
			{Name: "api1.read"},
		},
		Resources: []config.Resource{{Name: "api1", Scopes: []string{"api1.read"}}},
		Clients: []config.Client{{
			ClientID:     "webapp1",
			Type:         "public",
			GrantTypes:   []string{"authorization_code", "refresh_token"},
			RedirectURIs: []string{"https://app.example/callback"},
			Scopes:       []string{"openid", "profile", "api1.read"},
		}},
		Users: []config.SeedUser{{
			ID: "u1", Username: "alice", PasswordHash: userHash,
			Claims: map[string]string{"name": "Alice"},
		}},
	}

	cs, err := configstore.New(cfg)
	require.NoError(t, err)
	creds, err := credentials.NewMemoryStore(cfg.Users)
	require.NoError(t, err)

	ks := jwt.NewKeystore(memstore.NewKeyStore())
	require.NoError(t, ks.EnsureBootstrap(ctx))
	issuer := jwt.NewIssuer("https://op.example", ks)
	prof := profile.New(cs, profile.CredentialsSource(creds))

	eng := engine.New(engine.Options{
		Config:      cs,
		Grants:      memstore.NewGrantStore(),
		Tokens:      memstore.NewTokenStore(),
		Credentials: creds,
		Profile:     prof,
		Issuer:      issuer,
		CodeTTL:     5 * time.Minute,
	})

	sessions := session.NewManager(memory.New(10*time.Minute), session.Options{TTL: time.Hour})

	return NewRouter(RouterConfig{
		IssuerURL:      "https://op.example",
		Engine:         eng,
		Issuer:         issuer,
		Keystore:       ks,
		ConfigStore:    cs,
		Credentials:    creds,
		Profile:        prof,
		Sessions:       sessions,
		Limiter:        rate.NewMemoryLimiter(1000, time.Minute),
		IntrospectUser: "rs",
		IntrospectPass: "rs-pass",
	})
}

func TestDiscoveryDocument(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "https://op.example", doc["issuer"])
	require.Equal(t, "https://op.example/token", doc["token_endpoint"])
	require.Contains(t, doc["code_challenge_methods_supported"], "S256")
}

func TestJWKS(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0]["kty"])
	require.Equal(t, "Ed25519", jwks.Keys[0]["crv"])
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

// login abre sesión y devuelve la cookie sid.
func login(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"alice"}, "password": {"hunter2!"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLogin_BadPassword(t *testing.T) {
	router := newTestRouter(t)
	form := url.Values{"username": {"alice"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorize_RedirectsToLoginWithoutSession(t *testing.T) {
	router := newTestRouter(t)
	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"webapp1"},
		"scope":                 {"openid profile"},
		"state":                 {"abc"},
		"code_challenge":        {token.SHA256Base64URL(testVerifier)},
		"code_challenge_method": {"S256"},
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/login?return_to="), loc)
}

func TestAuthorize_UnknownClientDoesNotRedirect(t *testing.T) {
	router := newTestRouter(t)
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {"ghost"},
		"redirect_uri":  {"https://evil.example/cb"},
		"scope":         {"openid"},
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// authorizationCodeFlow corre el flujo completo por HTTP y devuelve la
// respuesta del token endpoint.
func authorizationCodeFlow(t *testing.T, router http.Handler) map[string]any {
	t.Helper()
	sid := login(t, router)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"webapp1"},
		"redirect_uri":          {"https://app.example/callback"},
		"scope":                 {"openid profile api1.read"},
		"state":                 {"abc"},
		"nonce":                 {"n-123"},
		"code_challenge":        {token.SHA256Base64URL(testVerifier)},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "app.example", loc.Host)
	require.Equal(t, "abc", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"webapp1"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/callback"},
		"code_verifier": {testVerifier},
	}
	tokReq := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokRec := httptest.NewRecorder()
	router.ServeHTTP(tokRec, tokReq)
	require.Equal(t, http.StatusOK, tokRec.Code, tokRec.Body.String())
	require.Equal(t, "no-store", tokRec.Header().Get("Cache-Control"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(tokRec.Body.Bytes(), &resp))
	return resp
}

func TestAuthorizationCodeFlow_EndToEnd(t *testing.T) {
	router := newTestRouter(t)
	resp := authorizationCodeFlow(t, router)

	require.Equal(t, "Bearer", resp["token_type"])
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["id_token"])
	require.NotEmpty(t, resp["refresh_token"])
}

func TestUserinfo(t *testing.T) {
	router := newTestRouter(t)
	resp := authorizationCodeFlow(t, router)

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+resp["access_token"].(string))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Equal(t, "u1", claims["sub"])
	require.Equal(t, "Alice", claims["name"])
}

func TestUserinfo_NoToken(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/userinfo", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestIntrospection(t *testing.T) {
	router := newTestRouter(t)
	resp := authorizationCodeFlow(t, router)

	form := url.Values{"token": {resp["access_token"].(string)}}
	req := httptest.NewRequest(http.MethodPost, "/connect/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("rs", "rs-pass")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, true, out["active"])
	require.Equal(t, "u1", out["sub"])

	// sin basic auth el endpoint está cerrado
	noAuth := httptest.NewRequest(http.MethodPost, "/connect/introspect", strings.NewReader(form.Encode()))
	noAuth.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recNA := httptest.NewRecorder()
	router.ServeHTTP(recNA, noAuth)
	require.Equal(t, http.StatusUnauthorized, recNA.Code)
}

func TestRevocationEndpoint(t *testing.T) {
	router := newTestRouter(t)
	resp := authorizationCodeFlow(t, router)
	refresh := resp["refresh_token"].(string)

	form := url.Values{"token": {refresh}, "client_id": {"webapp1"}}
	req := httptest.NewRequest(http.MethodPost, "/connect/revocation", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// el refresh revocado ya no canjea
	refreshForm := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {"webapp1"},
		"refresh_token": {refresh},
	}
	req2 := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(refreshForm.Encode()))
	req2.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusBadRequest, rec2.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &out))
	require.Equal(t, "invalid_grant", out["error"])
}

func TestTokenEndpoint_UnsupportedGrant(t *testing.T) {
	router := newTestRouter(t)
	form := url.Values{"grant_type": {"password"}, "client_id": {"webapp1"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "unsupported_grant_type", out["error"])
}
