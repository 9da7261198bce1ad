// Package memory implementa los stores sobre estructuras en proceso.
// Cumple las mismas garantías de atomicidad que los backends persistentes
// (consume single-use, rotación CAS) usando un mutex por store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

type GrantStore struct {
	mu     sync.Mutex
	grants map[string]*core.AuthorizationGrant
}

func NewGrantStore() *GrantStore {
	return &GrantStore{grants: make(map[string]*core.AuthorizationGrant)}
}

func (s *GrantStore) Put(ctx context.Context, g *core.AuthorizationGrant, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.CodeHash] = &cp
	return nil
}

// Consume saca el grant del map bajo lock: de N llamadas concurrentes con
// el mismo hash exactamente una lo recibe.
func (s *GrantStore) Consume(ctx context.Context, codeHash string) (*core.AuthorizationGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[codeHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	delete(s.grants, codeHash)
	cp := *g
	return &cp, nil
}

func (s *GrantStore) Delete(ctx context.Context, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, codeHash)
	return nil
}

// Sweep purga grants vencidos. La expiración se chequea igual en cada
// acceso; esto sólo libera memoria.
func (s *GrantStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, g := range s.grants {
		if now.After(g.ExpiresAt) {
			delete(s.grants, k)
			n++
		}
	}
	return n
}
