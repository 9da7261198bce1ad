package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/metrics"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/security/token"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// RedeemCode canjea un authorization code por tokens. El consume del
// store es atómico: con N canjes concurrentes del mismo código gana
// exactamente uno. Cualquier validación que falle DESPUÉS del consume
// deja el código quemado, que es lo que queremos ante un código robado.
func (e *Engine) RedeemCode(ctx context.Context, client *configstore.Client, code, redirectURI, codeVerifier string) (*TokenSet, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}
	grant, err := e.grants.Consume(ctx, token.SHA256Base64URL(code))
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown or already used code", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case grant.ClientID != client.ClientID:
		e.log.Warn("code redeemed by wrong client",
			logger.ClientID(client.ClientID),
			logger.String("code_client", grant.ClientID),
		)
		return nil, fmt.Errorf("%w: code was not issued to this client", ErrInvalidGrant)
	case now.After(grant.ExpiresAt):
		return nil, fmt.Errorf("%w: code expired", ErrInvalidGrant)
	case grant.RedirectURI != redirectURI:
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}

	if grant.CodeChallenge != "" {
		if codeVerifier == "" {
			return nil, fmt.Errorf("%w: code_verifier required", ErrInvalidGrant)
		}
		if !token.ConstantTimeEquals(token.SHA256Base64URL(codeVerifier), grant.CodeChallenge) {
			e.log.Warn("pkce verification failed", logger.ClientID(client.ClientID))
			return nil, fmt.Errorf("%w: pkce verification failed", ErrInvalidGrant)
		}
	} else if client.RequirePKCE {
		return nil, fmt.Errorf("%w: pkce required", ErrInvalidGrant)
	}

	return e.issueTokens(ctx, client, issueInput{
		SubjectID: grant.SubjectID,
		Scopes:    grant.Scopes,
		Nonce:     grant.Nonce,
		AuthTime:  grant.AuthTime,
		NewChain:  true,
	})
}

// Refresh rota (o reutiliza, según el cliente) un refresh token.
// La detección de reuso vive acá: un token ya rotado que vuelve a
// presentarse revoca la cadena completa.
func (e *Engine) Refresh(ctx context.Context, client *configstore.Client, refreshToken, scope string) (*TokenSet, error) {
	if !client.GrantAllowed(GrantRefreshToken) {
		return nil, fmt.Errorf("%w: refresh_token not enabled", ErrUnauthorizedClient)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh_token", ErrInvalidRequest)
	}

	rt, err := e.tokens.GetByHash(ctx, token.SHA256Base64URL(refreshToken))
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown refresh token", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}
	if rt.ClientID != client.ClientID {
		return nil, fmt.Errorf("%w: token was not issued to this client", ErrInvalidGrant)
	}

	now := time.Now()
	if rt.RotatedAt != nil || rt.RevokedAt != nil {
		// reuso de un token ya consumido o revocado: quemamos la cadena
		e.revokeChainOnReuse(ctx, rt)
		return nil, fmt.Errorf("%w: refresh token reuse detected", ErrInvalidGrant)
	}
	if now.After(rt.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidGrant)
	}

	// el scope pedido sólo puede achicar el original
	scopes := rt.Scopes
	if requested := strings.Fields(scope); len(requested) > 0 {
		if !subsetOf(requested, rt.Scopes) {
			return nil, fmt.Errorf("%w: scope exceeds original grant", ErrInvalidScope)
		}
		scopes = requested
	}

	in := issueInput{
		SubjectID: rt.SubjectID,
		Scopes:    scopes,
		AuthTime:  rt.IssuedAt,
	}

	if !client.RotateRefreshTokens {
		ts, err := e.issueTokens(ctx, client, in)
		if err != nil {
			return nil, err
		}
		ts.RefreshToken = refreshToken
		return ts, nil
	}

	plain, child, err := e.mintRefreshToken(client, rt.SubjectID, rt.Scopes, rt.ChainID, &rt.ID)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Rotate(ctx, rt.ID, child); err != nil {
		if errors.Is(err, core.ErrConflict) {
			// perdimos la carrera contra otra rotación del mismo token:
			// eso también es reuso
			e.revokeChainOnReuse(ctx, rt)
			return nil, fmt.Errorf("%w: refresh token reuse detected", ErrInvalidGrant)
		}
		return nil, err
	}

	ts, err := e.issueTokens(ctx, client, in)
	if err != nil {
		return nil, err
	}
	ts.RefreshToken = plain
	return ts, nil
}

// ClientCredentials emite un access token máquina-a-máquina. No hay
// sujeto ni refresh token; sub = client_id.
func (e *Engine) ClientCredentials(ctx context.Context, client *configstore.Client, scope string) (*TokenSet, error) {
	if !client.Confidential() {
		return nil, fmt.Errorf("%w: public clients cannot use client_credentials", ErrUnauthorizedClient)
	}
	if !client.GrantAllowed(GrantClientCredentials) {
		return nil, fmt.Errorf("%w: client_credentials not enabled", ErrUnauthorizedClient)
	}

	scopes := strings.Fields(scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	for _, sc := range scopes {
		if sc == "openid" {
			return nil, fmt.Errorf("%w: openid has no meaning without a subject", ErrInvalidScope)
		}
		if !client.ScopeAllowed(sc) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, sc)
		}
	}

	access, _, exp, err := e.issuer.IssueAccess(jwt.AccessTokenInput{
		Subject:   client.ClientID,
		ClientID:  client.ClientID,
		Scopes:    scopes,
		Audiences: e.cfg.AudiencesFor(scopes),
		TTL:       client.AccessTTL,
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("tokens issued",
		logger.ClientID(client.ClientID),
		logger.GrantType(GrantClientCredentials),
		logger.Scope(strings.Join(scopes, " ")),
	)
	return &TokenSet{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

type issueInput struct {
	SubjectID string
	Scopes    []string
	Nonce     string
	AuthTime  time.Time
	// NewChain arranca una cadena de refresh nueva (canje de código);
	// el refresh reutiliza la cadena del padre vía Rotate.
	NewChain bool
}

func (e *Engine) issueTokens(ctx context.Context, client *configstore.Client, in issueInput) (*TokenSet, error) {
	access, _, exp, err := e.issuer.IssueAccess(jwt.AccessTokenInput{
		Subject:   in.SubjectID,
		ClientID:  client.ClientID,
		Scopes:    in.Scopes,
		Audiences: e.cfg.AudiencesFor(in.Scopes),
		TTL:       client.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	ts := &TokenSet{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       strings.Join(in.Scopes, " "),
	}

	if hasScope(in.Scopes, "openid") {
		claims, err := e.profile.ClaimsFor(ctx, in.SubjectID, in.Scopes)
		if err != nil {
			return nil, err
		}
		idToken, _, err := e.issuer.IssueIDToken(jwt.IDTokenInput{
			Subject:     in.SubjectID,
			ClientID:    client.ClientID,
			Nonce:       in.Nonce,
			AuthTime:    in.AuthTime,
			AccessToken: access,
			TTL:         client.IDTokenTTL,
			Claims:      claims,
		})
		if err != nil {
			return nil, err
		}
		ts.IDToken = idToken
	}

	if in.NewChain && client.GrantAllowed(GrantRefreshToken) {
		chainID := uuid.NewString()
		plain, rt, err := e.mintRefreshToken(client, in.SubjectID, in.Scopes, chainID, nil)
		if err != nil {
			return nil, err
		}
		if err := e.tokens.Create(ctx, rt); err != nil {
			return nil, err
		}
		ts.RefreshToken = plain
	}

	e.log.Info("tokens issued",
		logger.ClientID(client.ClientID),
		logger.SubjectID(in.SubjectID),
		logger.Scope(ts.Scope),
	)
	return ts, nil
}

// mintRefreshToken genera el par (plain, registro). El plain sale una
// sola vez; persiste sólo el hash.
func (e *Engine) mintRefreshToken(client *configstore.Client, subjectID string, scopes []string, chainID string, rotatedFrom *string) (string, *core.RefreshToken, error) {
	plain, err := token.GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		return "", nil, err
	}
	now := time.Now().UTC()
	rt := &core.RefreshToken{
		ID:          uuid.NewString(),
		ChainID:     chainID,
		SubjectID:   subjectID,
		ClientID:    client.ClientID,
		Scopes:      scopes,
		TokenHash:   token.SHA256Base64URL(plain),
		IssuedAt:    now,
		ExpiresAt:   now.Add(client.RefreshTTL),
		RotatedFrom: rotatedFrom,
	}
	return plain, rt, nil
}

func (e *Engine) revokeChainOnReuse(ctx context.Context, rt *core.RefreshToken) {
	n, err := e.tokens.RevokeChain(ctx, rt.ChainID)
	if err != nil {
		e.log.Error("chain revocation after reuse failed",
			logger.ClientID(rt.ClientID),
			logger.Err(err),
		)
		return
	}
	e.log.Warn("refresh token reuse, chain revoked",
		logger.ClientID(rt.ClientID),
		logger.SubjectID(rt.SubjectID),
		logger.Int64("revoked", n),
	)
	metrics.RefreshReuseDetected.Inc()
	e.alerts.RefreshReuse(rt.ClientID, rt.SubjectID, n)
}
