package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/security/token"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// Revoke invalida un refresh token y toda su cadena. Los access tokens
// son JWT autocontenidos y expiran solos, así que un token desconocido
// (o ajeno) no es error: la revocación es idempotente hacia el cliente.
func (e *Engine) Revoke(ctx context.Context, client *configstore.Client, presented string) error {
	if presented == "" {
		return nil
	}
	rt, err := e.tokens.GetByHash(ctx, token.SHA256Base64URL(presented))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// un cliente sólo revoca lo suyo; lo ajeno se ignora en silencio
	// para no confirmar existencia
	if rt.ClientID != client.ClientID {
		e.log.Warn("revocation attempt for foreign token", logger.ClientID(client.ClientID))
		return nil
	}
	n, err := e.tokens.RevokeChain(ctx, rt.ChainID)
	if err != nil {
		return err
	}
	e.log.Info("refresh chain revoked",
		logger.ClientID(client.ClientID),
		logger.SubjectID(rt.SubjectID),
		logger.Int64("revoked", n),
	)
	return nil
}

// Introspection es la respuesta RFC 7662 ya resuelta.
type Introspection struct {
	Active    bool           `json:"active"`
	Scope     string         `json:"scope,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
	Subject   string         `json:"sub,omitempty"`
	TokenType string         `json:"token_type,omitempty"`
	Exp       int64          `json:"exp,omitempty"`
	Iat       int64          `json:"iat,omitempty"`
	Iss       string         `json:"iss,omitempty"`
	Extra     map[string]any `json:"-"`
}

// Introspect clasifica un token presentado: primero como JWT de este
// issuer, después como refresh token opaco. Todo lo no verificable es
// simplemente inactive, nunca un error hacia el caller.
func (e *Engine) Introspect(ctx context.Context, presented string) (*Introspection, error) {
	if presented == "" {
		return &Introspection{}, nil
	}

	if claims, err := e.issuer.Verify(presented, ""); err == nil {
		out := &Introspection{
			Active:    true,
			TokenType: "Bearer",
			Iss:       e.issuer.Iss,
		}
		if v, ok := claims["sub"].(string); ok {
			out.Subject = v
		}
		if v, ok := claims["client_id"].(string); ok {
			out.ClientID = v
		}
		if v, ok := claims["scope"].(string); ok {
			out.Scope = v
		}
		if v, ok := claims["exp"].(float64); ok {
			out.Exp = int64(v)
		}
		if v, ok := claims["iat"].(float64); ok {
			out.Iat = int64(v)
		}
		return out, nil
	} else if errors.Is(err, jwt.ErrExpired) {
		return &Introspection{}, nil
	}

	rt, err := e.tokens.GetByHash(ctx, token.SHA256Base64URL(presented))
	if errors.Is(err, core.ErrNotFound) {
		return &Introspection{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !rt.Active(time.Now()) {
		return &Introspection{}, nil
	}
	return &Introspection{
		Active:    true,
		TokenType: "refresh_token",
		ClientID:  rt.ClientID,
		Subject:   rt.SubjectID,
		Scope:     strings.Join(rt.Scopes, " "),
		Exp:       rt.ExpiresAt.Unix(),
		Iat:       rt.IssuedAt.Unix(),
		Iss:       e.issuer.Iss,
	}, nil
}
