package engine

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/security/password"
)

// ClientAuth es la autenticación presentada en el token endpoint.
// Method refleja por dónde llegó el secreto, no lo que el cliente
// tiene registrado: el engine exige que coincidan.
type ClientAuth struct {
	ClientID string
	Secret   string
	Method   string // none | client_secret_post | client_secret_basic
}

// AuthenticateClient resuelve y autentica al cliente. Todo fallo de
// credenciales es ErrInvalidClient, sin distinguir causa.
func (e *Engine) AuthenticateClient(ctx context.Context, auth ClientAuth) (*configstore.Client, error) {
	client, err := e.cfg.LookupClient(auth.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}

	if !client.Confidential() {
		// público: no hay secreto que validar, pero tampoco aceptamos uno
		if auth.Secret != "" {
			return nil, fmt.Errorf("%w: public client must not send a secret", ErrInvalidClient)
		}
		return client, nil
	}

	if auth.Method != client.TokenEndpointAuthMethod {
		e.log.Warn("client auth method mismatch",
			logger.ClientID(auth.ClientID),
			logger.String("presented", auth.Method),
		)
		return nil, fmt.Errorf("%w: auth method not allowed", ErrInvalidClient)
	}
	if auth.Secret == "" || !password.Verify(auth.Secret, client.SecretHash) {
		return nil, fmt.Errorf("%w: bad credentials", ErrInvalidClient)
	}
	return client, nil
}
