// Package profile proyecta atributos de identidad a claims de token.
// Compone fuentes ordenadas (la última pisa) y filtra por los identity
// scopes otorgados: nunca sale un claim que el scope no habilite.
package profile

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
)

// Source aporta claims crudos para un sujeto. El error corta la emisión:
// preferimos fallar el token a emitirlo con identidad incompleta.
type Source interface {
	Claims(ctx context.Context, subjectID string) (map[string]any, error)
}

// SourceFunc adapta una función a Source.
type SourceFunc func(ctx context.Context, subjectID string) (map[string]any, error)

func (f SourceFunc) Claims(ctx context.Context, subjectID string) (map[string]any, error) {
	return f(ctx, subjectID)
}

// Service resuelve los claims finales de un sujeto para un set de scopes.
type Service struct {
	cfg     *configstore.Store
	sources []Source
}

func New(cfg *configstore.Store, sources ...Source) *Service {
	return &Service{cfg: cfg, sources: sources}
}

// ClaimsFor combina las fuentes en orden y proyecta el resultado al
// subconjunto permitido por los scopes otorgados.
func (s *Service) ClaimsFor(ctx context.Context, subjectID string, scopes []string) (map[string]any, error) {
	merged := make(map[string]any)
	for _, src := range s.sources {
		c, err := src.Claims(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("claim source: %w", err)
		}
		for k, v := range c {
			merged[k] = v
		}
	}

	allowed := s.cfg.IdentityClaimsFor(scopes)
	out := make(map[string]any, len(allowed))
	for _, name := range allowed {
		if v, ok := merged[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// CredentialsSource adapta un credentials.Store como fuente de claims.
func CredentialsSource(store credentials.Store) Source {
	return SourceFunc(func(ctx context.Context, subjectID string) (map[string]any, error) {
		id, err := store.FindByID(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(id.Claims)+1)
		for k, v := range id.Claims {
			out[k] = v
		}
		out["preferred_username"] = id.Username
		return out, nil
	})
}
