// Package memory implementa cache.Cache sobre go-cache para despliegues
// de un solo nodo (dev, tests). Las sesiones no sobreviven un restart.
package memory

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/donpedro/internal/cache"
)

const janitorInterval = time.Minute

type store struct{ inner *gocache.Cache }

// New crea un cache en memoria. defaultTTL aplica cuando Set recibe ttl 0.
func New(defaultTTL time.Duration) cache.Cache {
	return &store{inner: gocache.New(defaultTTL, janitorInterval)}
}

func (s *store) Get(key string) ([]byte, bool) {
	v, ok := s.inner.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (s *store) Set(key string, value []byte, ttl time.Duration) {
	s.inner.Set(key, value, ttl)
}

func (s *store) Delete(key string) { s.inner.Delete(key) }
