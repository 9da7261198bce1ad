// Package redis implementa GrantStore sobre Redis. El consume usa GETDEL,
// que es atómico en el server: bajo concurrencia exactamente un cliente
// recibe el valor y el resto ve nil.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/donpedro/internal/store/core"
)

type GrantStore struct {
	client *rdb.Client
	prefix string
}

func NewGrantStore(client *rdb.Client, prefix string) *GrantStore {
	if prefix == "" {
		prefix = "donpedro"
	}
	return &GrantStore{client: client, prefix: prefix}
}

func (s *GrantStore) key(codeHash string) string {
	return s.prefix + ":grant:" + codeHash
}

func (s *GrantStore) Put(ctx context.Context, g *core.AuthorizationGrant, ttl time.Duration) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	if err := s.client.Set(ctx, s.key(g.CodeHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}

func (s *GrantStore) Consume(ctx context.Context, codeHash string) (*core.AuthorizationGrant, error) {
	raw, err := s.client.GetDel(ctx, s.key(codeHash)).Bytes()
	if err == rdb.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	var g core.AuthorizationGrant
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("unmarshal grant: %w", err)
	}
	return &g, nil
}

func (s *GrantStore) Delete(ctx context.Context, codeHash string) error {
	if err := s.client.Del(ctx, s.key(codeHash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	return nil
}
