// Package credentials autentica sujetos (resource owners) y expone sus
// atributos de identidad. El engine sólo ve esta interfaz; el backend
// puede ser el seed en memoria o PostgreSQL.
package credentials

import (
	"context"
	"errors"
)

// ErrAuthFailed cubre tanto "usuario no existe" como "password incorrecto":
// nunca distinguimos entre ambos hacia afuera.
var ErrAuthFailed = errors.New("authentication failed")

// Identity es un sujeto autenticable. Claims lleva los atributos de
// identidad crudos (email, name, locale...); el profile service decide
// qué subconjunto sale en cada token según los scopes.
type Identity struct {
	ID       string
	Username string
	Claims   map[string]string
}

type Store interface {
	// Authenticate verifica username+password. Devuelve ErrAuthFailed en
	// cualquier fallo de credenciales, sin distinguir causa.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)

	// FindByID busca un sujeto por su id estable.
	FindByID(ctx context.Context, id string) (*Identity, error)
}
