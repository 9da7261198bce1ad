// Package cache define la abstracción de cache byte-oriented usada para
// sesiones y material efímero. Backends: memoria (dev/tests) y Redis.
package cache

import "time"

// Cache son las operaciones mínimas que necesitan sesiones y helpers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
