package logger

import (
	"time"

	"go.uber.org/zap"
)

// ───── Campos estándar HTTP ─────

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// ───── Campos estándar de negocio ─────

func ClientID(v string) zap.Field  { return zap.String("client_id", v) }
func SubjectID(v string) zap.Field { return zap.String("sub", v) }
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Scope(v string) zap.Field     { return zap.String("scope", v) }
func KID(v string) zap.Field       { return zap.String("kid", v) }

// ───── Campos estándar de sistema ─────

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ───── Genéricos ─────

func String(key, v string) zap.Field           { return zap.String(key, v) }
func Int(key string, v int) zap.Field          { return zap.Int(key, v) }
func Int64(key string, v int64) zap.Field      { return zap.Int64(key, v) }
func Bool(key string, v bool) zap.Field        { return zap.Bool(key, v) }
func Duration(v time.Duration) zap.Field       { return zap.Duration("duration", v) }
func Any(key string, v any) zap.Field          { return zap.Any(key, v) }
func Strings(key string, v []string) zap.Field { return zap.Strings(key, v) }
