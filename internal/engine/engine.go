// Package engine implementa la mecánica de los grants OAuth2/OIDC:
// validación del authorize request, emisión y redención de códigos,
// rotación de refresh tokens, client_credentials, revocación e
// introspección. Los handlers HTTP sólo traducen wire ↔ engine.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/email"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/profile"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// Errores del protocolo. Los handlers los mapean a los códigos de error
// OAuth2 del wire; el engine nunca filtra detalle interno en el mensaje.
var (
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidRedirectURI      = errors.New("invalid_redirect_uri")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// opaqueTokenBytes es la entropía de códigos y refresh tokens.
const opaqueTokenBytes = 32

// Engine ata configuración, stores y firmado. Es seguro para uso
// concurrente: todo el estado mutable vive en los stores.
type Engine struct {
	cfg     *configstore.Store
	grants  core.GrantStore
	tokens  core.TokenStore
	creds   credentials.Store
	profile *profile.Service
	issuer  *jwt.Issuer

	codeTTL time.Duration
	alerts  *email.SecurityAlerter // nil = apagado
	log     *zap.Logger
}

type Options struct {
	Config      *configstore.Store
	Grants      core.GrantStore
	Tokens      core.TokenStore
	Credentials credentials.Store
	Profile     *profile.Service
	Issuer      *jwt.Issuer
	CodeTTL     time.Duration
	Alerts      *email.SecurityAlerter
}

func New(o Options) *Engine {
	codeTTL := o.CodeTTL
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	return &Engine{
		cfg:     o.Config,
		grants:  o.Grants,
		tokens:  o.Tokens,
		creds:   o.Credentials,
		profile: o.Profile,
		issuer:  o.Issuer,
		codeTTL: codeTTL,
		alerts:  o.Alerts,
		log:     logger.Named("engine"),
	}
}

// TokenSet es la respuesta del token endpoint ya resuelta.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	IDToken      string
	Scope        string
}

func transient(err error) bool { return errors.Is(err, core.ErrTransient) }

// hasScope chequea membresía en un slice corto.
func hasScope(scopes []string, name string) bool {
	for _, s := range scopes {
		if s == name {
			return true
		}
	}
	return false
}

// subsetOf verifica que cada elemento de want esté en have.
func subsetOf(want, have []string) bool {
	for _, w := range want {
		if !hasScope(have, w) {
			return false
		}
	}
	return true
}
