package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

type KeyStore struct {
	mu   sync.Mutex
	keys map[string]*core.SigningKey
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]*core.SigningKey)}
}

func (s *KeyStore) Insert(ctx context.Context, k *core.SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k.KID]; ok {
		return core.ErrConflict
	}
	cp := *k
	s.keys[k.KID] = &cp
	return nil
}

func (s *KeyStore) GetActive(ctx context.Context) (*core.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *core.SigningKey
	for _, k := range s.keys {
		if k.Status != core.KeyActive {
			continue
		}
		if newest == nil || k.CreatedAt.After(newest.CreatedAt) {
			newest = k
		}
	}
	if newest == nil {
		return nil, core.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *KeyStore) ListVerifiable(ctx context.Context) ([]core.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SigningKey, 0, len(s.keys))
	for _, k := range s.keys {
		if k.Status == core.KeyActive || k.Status == core.KeyRetiring {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s *KeyStore) SetStatus(ctx context.Context, kid string, status core.KeyStatus, retireAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[kid]
	if !ok {
		return core.ErrNotFound
	}
	k.Status = status
	if retireAt != nil {
		t := *retireAt
		k.RetireAt = &t
	}
	return nil
}
