package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

type TokenStore struct {
	mu     sync.Mutex
	byID   map[string]*core.RefreshToken
	byHash map[string]string // token_hash -> id
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		byID:   make(map[string]*core.RefreshToken),
		byHash: make(map[string]string),
	}
}

func (s *TokenStore) Create(ctx context.Context, rt *core.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rt.ID]; ok {
		return core.ErrConflict
	}
	if _, ok := s.byHash[rt.TokenHash]; ok {
		return core.ErrConflict
	}
	cp := *rt
	s.byID[rt.ID] = &cp
	s.byHash[rt.TokenHash] = rt.ID
	return nil
}

func (s *TokenStore) GetByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// Rotate marca el padre como rotado y crea el hijo en la misma sección
// crítica. Si el padre ya fue rotado o revocado devuelve ErrConflict:
// esa es la señal de reuso que dispara la revocación de la cadena.
func (s *TokenStore) Rotate(ctx context.Context, oldID string, child *core.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[oldID]
	if !ok {
		return core.ErrNotFound
	}
	if old.RotatedAt != nil || old.RevokedAt != nil {
		return core.ErrConflict
	}
	now := time.Now().UTC()
	old.RotatedAt = &now
	cp := *child
	s.byID[child.ID] = &cp
	s.byHash[child.TokenHash] = child.ID
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	if rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
	}
	return nil
}

func (s *TokenStore) RevokeChain(ctx context.Context, chainID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, rt := range s.byID {
		if rt.ChainID == chainID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *TokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rt := range s.byID {
		if rt.ExpiresAt.Before(before) {
			delete(s.byHash, rt.TokenHash)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}
