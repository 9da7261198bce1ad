package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	initOnce sync.Once
	root     *zap.Logger
)

// Init construye el logger global. Idempotente: llamadas posteriores no
// tienen efecto. Se invoca una vez desde main antes de servir tráfico.
func Init(cfg Config) {
	initOnce.Do(func() {
		root = build(cfg)
	})
}

// L devuelve el logger global. Si nadie llamó Init (tests, herramientas)
// arma uno de desarrollo en nivel info.
func L() *zap.Logger {
	if root == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return root
}

// Named devuelve un child logger con nombre de componente.
func Named(name string) *zap.Logger { return L().Named(name) }

// With devuelve un child logger con campos fijos.
func With(fields ...zap.Field) *zap.Logger { return L().With(fields...) }

// Sync vacía los buffers pendientes. Para el defer de main.
func Sync() error {
	if root == nil {
		return nil
	}
	return root.Sync()
}
