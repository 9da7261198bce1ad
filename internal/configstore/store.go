// Package configstore congela la configuración de clients, scopes y
// resources en una estructura inmutable, validada al arranque.
// No hay API de mutación: si la configuración es inválida el proceso
// no debe empezar a aceptar conexiones.
package configstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/store/core"
	"github.com/dropDatabas3/donpedro/internal/validation"
)

const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

var knownGrantTypes = map[string]bool{
	"authorization_code": true,
	"refresh_token":      true,
	"client_credentials": true,
}

var knownAuthMethods = map[string]bool{
	"none":                true,
	"client_secret_post":  true,
	"client_secret_basic": true,
}

// Client es un cliente ya validado, con TTLs resueltos.
type Client struct {
	ClientID                string
	Name                    string
	Type                    string
	SecretHash              string
	TokenEndpointAuthMethod string
	GrantTypes              []string
	RedirectURIs            []string
	Scopes                  []string
	AllowedOrigins          []string

	AccessTTL  time.Duration
	IDTokenTTL time.Duration
	RefreshTTL time.Duration

	RotateRefreshTokens bool
	RequirePKCE         bool

	scopeSet map[string]bool
	grantSet map[string]bool
}

// GrantAllowed indica si el grant type está habilitado para el cliente.
func (c *Client) GrantAllowed(grantType string) bool {
	return c.grantSet[grantType]
}

// ScopeAllowed indica si el scope está dentro de los permitidos del cliente.
func (c *Client) ScopeAllowed(name string) bool {
	return c.scopeSet[name]
}

// Confidential indica si el cliente tiene secreto.
func (c *Client) Confidential() bool {
	return c.Type == ClientTypeConfidential
}

// Scope es un scope ya validado.
type Scope struct {
	Name        string
	DisplayName string
	Identity    bool
	Claims      []string
}

// Resource es un API resource ya validado.
type Resource struct {
	Name        string
	DisplayName string
	Scopes      []string
}

// Store es el snapshot inmutable. Seguro para acceso concurrente: después
// de New no se escribe nunca más.
type Store struct {
	clients   map[string]*Client
	scopes    map[string]*Scope
	resources map[string]*Resource
	// scope name -> resources que lo incluyen (para audiencias)
	scopeAudiences map[string][]string
}

// New valida y congela la configuración. Cualquier inconsistencia es un
// error fatal de arranque.
func New(cfg *config.Config) (*Store, error) {
	s := &Store{
		clients:        make(map[string]*Client, len(cfg.Clients)),
		scopes:         make(map[string]*Scope, len(cfg.Scopes)),
		resources:      make(map[string]*Resource, len(cfg.Resources)),
		scopeAudiences: make(map[string][]string),
	}

	for i := range cfg.Scopes {
		sc := cfg.Scopes[i]
		if !validation.ValidScopeName(sc.Name) {
			return nil, fmt.Errorf("configstore: invalid scope name %q", sc.Name)
		}
		if _, dup := s.scopes[sc.Name]; dup {
			return nil, fmt.Errorf("configstore: duplicate scope %q", sc.Name)
		}
		s.scopes[sc.Name] = &Scope{
			Name:        sc.Name,
			DisplayName: sc.DisplayName,
			Identity:    sc.Identity,
			Claims:      append([]string(nil), sc.Claims...),
		}
	}

	for i := range cfg.Resources {
		r := cfg.Resources[i]
		if r.Name == "" {
			return nil, fmt.Errorf("configstore: resource without name")
		}
		if _, dup := s.resources[r.Name]; dup {
			return nil, fmt.Errorf("configstore: duplicate resource %q", r.Name)
		}
		for _, sc := range r.Scopes {
			if _, ok := s.scopes[sc]; !ok {
				return nil, fmt.Errorf("configstore: resource %q references unknown scope %q", r.Name, sc)
			}
			s.scopeAudiences[sc] = append(s.scopeAudiences[sc], r.Name)
		}
		s.resources[r.Name] = &Resource{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Scopes:      append([]string(nil), r.Scopes...),
		}
	}

	defaultAccess := config.Dur(cfg.JWT.AccessTTL, 15*time.Minute)
	defaultID := config.Dur(cfg.JWT.IDTokenTTL, 15*time.Minute)
	defaultRefresh := config.Dur(cfg.JWT.RefreshTTL, 720*time.Hour)

	for i := range cfg.Clients {
		cc := cfg.Clients[i]
		if strings.TrimSpace(cc.ClientID) == "" {
			return nil, fmt.Errorf("configstore: client without client_id")
		}
		if _, dup := s.clients[cc.ClientID]; dup {
			return nil, fmt.Errorf("configstore: duplicate client_id %q", cc.ClientID)
		}
		c, err := buildClient(cc, s.scopes, defaultAccess, defaultID, defaultRefresh)
		if err != nil {
			return nil, err
		}
		s.clients[cc.ClientID] = c
	}

	return s, nil
}

func buildClient(cc config.Client, scopes map[string]*Scope, defAccess, defID, defRefresh time.Duration) (*Client, error) {
	typ := cc.Type
	if typ == "" {
		typ = ClientTypePublic
	}
	if typ != ClientTypePublic && typ != ClientTypeConfidential {
		return nil, fmt.Errorf("configstore: client %q has invalid type %q", cc.ClientID, typ)
	}
	if typ == ClientTypeConfidential && cc.SecretHash == "" {
		return nil, fmt.Errorf("configstore: confidential client %q has no secret_hash", cc.ClientID)
	}

	authMethod := cc.TokenEndpointAuthMethod
	if authMethod == "" {
		if typ == ClientTypeConfidential {
			authMethod = "client_secret_post"
		} else {
			authMethod = "none"
		}
	}
	if !knownAuthMethods[authMethod] {
		return nil, fmt.Errorf("configstore: client %q has unknown auth method %q", cc.ClientID, authMethod)
	}

	grants := cc.GrantTypes
	if len(grants) == 0 {
		grants = []string{"authorization_code", "refresh_token"}
	}
	grantSet := make(map[string]bool, len(grants))
	for _, g := range grants {
		if !knownGrantTypes[g] {
			return nil, fmt.Errorf("configstore: client %q has unknown grant type %q", cc.ClientID, g)
		}
		grantSet[g] = true
	}
	if grantSet["authorization_code"] && len(cc.RedirectURIs) == 0 {
		return nil, fmt.Errorf("configstore: client %q allows authorization_code but has no redirect_uris", cc.ClientID)
	}
	for _, uri := range cc.RedirectURIs {
		if !validation.ValidRedirectURI(uri) {
			return nil, fmt.Errorf("configstore: client %q has invalid redirect_uri %q", cc.ClientID, uri)
		}
	}

	scopeSet := make(map[string]bool, len(cc.Scopes))
	for _, sc := range cc.Scopes {
		if _, ok := scopes[sc]; !ok {
			return nil, fmt.Errorf("configstore: client %q references unknown scope %q", cc.ClientID, sc)
		}
		scopeSet[sc] = true
	}

	rotate := true
	if cc.RotateRefreshTokens != nil {
		rotate = *cc.RotateRefreshTokens
	}
	pkce := typ == ClientTypePublic
	if cc.RequirePKCE != nil {
		pkce = *cc.RequirePKCE
	}

	return &Client{
		ClientID:                cc.ClientID,
		Name:                    cc.Name,
		Type:                    typ,
		SecretHash:              cc.SecretHash,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              append([]string(nil), grants...),
		RedirectURIs:            append([]string(nil), cc.RedirectURIs...),
		Scopes:                  append([]string(nil), cc.Scopes...),
		AllowedOrigins:          append([]string(nil), cc.AllowedOrigins...),
		AccessTTL:               config.Dur(cc.AccessTTL, defAccess),
		IDTokenTTL:              config.Dur(cc.IDTokenTTL, defID),
		RefreshTTL:              config.Dur(cc.RefreshTTL, defRefresh),
		RotateRefreshTokens:     rotate,
		RequirePKCE:             pkce,
		scopeSet:                scopeSet,
		grantSet:                grantSet,
	}, nil
}

// LookupClient retorna el cliente o core.ErrNotFound.
func (s *Store) LookupClient(clientID string) (*Client, error) {
	c, ok := s.clients[clientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return c, nil
}

// LookupScopes resuelve nombres a scopes. Falla con core.ErrNotFound si
// alguno no existe.
func (s *Store) LookupScopes(names []string) ([]*Scope, error) {
	out := make([]*Scope, 0, len(names))
	for _, n := range names {
		sc, ok := s.scopes[n]
		if !ok {
			return nil, fmt.Errorf("scope %q: %w", n, core.ErrNotFound)
		}
		out = append(out, sc)
	}
	return out, nil
}

// LookupResources resuelve nombres a resources.
func (s *Store) LookupResources(names []string) ([]*Resource, error) {
	out := make([]*Resource, 0, len(names))
	for _, n := range names {
		r, ok := s.resources[n]
		if !ok {
			return nil, fmt.Errorf("resource %q: %w", n, core.ErrNotFound)
		}
		out = append(out, r)
	}
	return out, nil
}

// AudiencesFor calcula las audiencias (resources) asociadas a un set de
// scopes, sin duplicados, en orden estable.
func (s *Store) AudiencesFor(scopeNames []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, sc := range scopeNames {
		for _, aud := range s.scopeAudiences[sc] {
			if !seen[aud] {
				seen[aud] = true
				out = append(out, aud)
			}
		}
	}
	return out
}

// IdentityClaimsFor retorna los claim types permitidos por los identity
// scopes solicitados (proyección de mínimo privilegio del Profile Service).
func (s *Store) IdentityClaimsFor(scopeNames []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range scopeNames {
		sc, ok := s.scopes[n]
		if !ok || !sc.Identity {
			continue
		}
		for _, cl := range sc.Claims {
			if !seen[cl] {
				seen[cl] = true
				out = append(out, cl)
			}
		}
	}
	return out
}

// ScopeNames lista todos los scopes declarados (para discovery).
func (s *Store) ScopeNames() []string {
	out := make([]string, 0, len(s.scopes))
	for n := range s.scopes {
		out = append(out, n)
	}
	return out
}
