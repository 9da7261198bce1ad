package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/security/token"
	"github.com/dropDatabas3/donpedro/internal/store/core"
	"github.com/dropDatabas3/donpedro/internal/validation"
)

// AuthorizeRequest son los parámetros crudos del front channel.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string // separado por espacios, como llega en el query
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizedRequest es el request ya validado contra la configuración.
// Sólo un AuthorizedRequest puede producir un código.
type AuthorizedRequest struct {
	Client      *configstore.Client
	RedirectURI string
	Scopes      []string
	State       string
	Nonce       string

	CodeChallenge       string
	CodeChallengeMethod string
}

// BeginAuthorize valida el authorize request. El orden importa: hasta no
// validar client_id y redirect_uri NO se puede redirigir el error al
// cliente; a partir de ahí los errores restantes viajan por redirect.
func (e *Engine) BeginAuthorize(ctx context.Context, req AuthorizeRequest) (*AuthorizedRequest, error) {
	client, err := e.cfg.LookupClient(req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		// sólo se permite omitir si hay exactamente una registrada
		if len(client.RedirectURIs) != 1 {
			return nil, fmt.Errorf("%w: redirect_uri required", ErrInvalidRedirectURI)
		}
		redirectURI = client.RedirectURIs[0]
	}
	if !validation.RedirectAllowed(client.RedirectURIs, redirectURI) {
		return nil, fmt.Errorf("%w: redirect_uri not registered", ErrInvalidRedirectURI)
	}

	// desde acá el error es redirigible
	if req.ResponseType != "code" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResponseType, req.ResponseType)
	}
	if !client.GrantAllowed(GrantAuthorizationCode) {
		return nil, fmt.Errorf("%w: authorization_code not enabled", ErrUnauthorizedClient)
	}

	scopes := strings.Fields(req.Scope)
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: empty scope", ErrInvalidScope)
	}
	for _, sc := range scopes {
		if !client.ScopeAllowed(sc) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, sc)
		}
	}

	switch {
	case req.CodeChallenge != "":
		if req.CodeChallengeMethod != "S256" {
			return nil, fmt.Errorf("%w: code_challenge_method must be S256", ErrInvalidRequest)
		}
		if l := len(req.CodeChallenge); l < 43 || l > 128 {
			return nil, fmt.Errorf("%w: malformed code_challenge", ErrInvalidRequest)
		}
	case client.RequirePKCE:
		return nil, fmt.Errorf("%w: code_challenge required", ErrInvalidRequest)
	}

	return &AuthorizedRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}, nil
}

// IssueCode emite un authorization code para un sujeto ya autenticado.
// El código viaja en claro una sola vez; en el store queda sólo su hash.
func (e *Engine) IssueCode(ctx context.Context, req *AuthorizedRequest, subjectID string, authTime time.Time) (string, error) {
	code, err := token.GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	grant := &core.AuthorizationGrant{
		CodeHash:        token.SHA256Base64URL(code),
		ClientID:        req.Client.ClientID,
		SubjectID:       subjectID,
		Scopes:          req.Scopes,
		RedirectURI:     req.RedirectURI,
		Nonce:           req.Nonce,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: req.CodeChallengeMethod,
		AuthTime:        authTime.UTC(),
		CreatedAt:       now,
		ExpiresAt:       now.Add(e.codeTTL),
	}
	if err := e.grants.Put(ctx, grant, e.codeTTL); err != nil {
		return "", err
	}
	e.log.Info("authorization code issued",
		logger.ClientID(req.Client.ClientID),
		logger.SubjectID(subjectID),
		logger.Scope(strings.Join(req.Scopes, " ")),
	)
	return code, nil
}
