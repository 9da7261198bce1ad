package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/security/password"
	"github.com/dropDatabas3/donpedro/internal/store/core"
)

// MemoryStore sirve usuarios sembrados desde la config (dev/tests).
// Los passwords llegan ya hasheados (PHC argon2id), nunca en claro.
type MemoryStore struct {
	byUsername map[string]*seedEntry
	byID       map[string]*seedEntry
}

type seedEntry struct {
	identity     Identity
	passwordHash string
}

func NewMemoryStore(users []config.SeedUser) (*MemoryStore, error) {
	s := &MemoryStore{
		byUsername: make(map[string]*seedEntry, len(users)),
		byID:       make(map[string]*seedEntry, len(users)),
	}
	for _, u := range users {
		if u.ID == "" || u.Username == "" {
			return nil, fmt.Errorf("seed user: id and username are required")
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("seed user %q: missing password_hash", u.Username)
		}
		uname := strings.ToLower(u.Username)
		if _, dup := s.byUsername[uname]; dup {
			return nil, fmt.Errorf("seed user %q: duplicate username", u.Username)
		}
		claims := make(map[string]string, len(u.Claims))
		for k, v := range u.Claims {
			claims[k] = v
		}
		e := &seedEntry{
			identity:     Identity{ID: u.ID, Username: u.Username, Claims: claims},
			passwordHash: u.PasswordHash,
		}
		s.byUsername[uname] = e
		s.byID[u.ID] = e
	}
	return s, nil
}

func (s *MemoryStore) Authenticate(ctx context.Context, username, pass string) (*Identity, error) {
	e, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		// igualamos el costo verificando contra un hash dummy para no
		// filtrar existencia por timing
		_ = password.Verify(pass, dummyHash)
		return nil, ErrAuthFailed
	}
	if !password.Verify(pass, e.passwordHash) {
		return nil, ErrAuthFailed
	}
	id := e.identity
	return &id, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := e.identity
	return &out, nil
}

// dummyHash es un PHC argon2id válido de un password aleatorio descartado.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$3PyOiC3B1WMDlIpBYgdGAZb8z8VS6Wuo3sHRyXikON0"
