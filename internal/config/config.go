package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración estática del proceso. Se carga una vez al
// arranque; los registros de clients/scopes/resources son inmutables durante
// la vida del proceso (los valida y congela configstore).
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		IDTokenTTL string `yaml:"id_token_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		CodeTTL    string `yaml:"code_ttl"`
		Rotation   struct {
			Interval string `yaml:"interval"`
			// Overlap es la ventana en la que una clave "retiring" sigue
			// verificando firmas después de dejar de firmar.
			Overlap string `yaml:"overlap"`
		} `yaml:"rotation"`
	} `yaml:"jwt"`

	Auth struct {
		Session struct {
			CookieName string `yaml:"cookie_name"`
			TTL        string `yaml:"ttl"`
			Secure     bool   `yaml:"secure"`
			SameSite   string `yaml:"samesite"`
		} `yaml:"session"`
		IntrospectBasicUser string `yaml:"introspect_basic_user"`
		IntrospectBasicPass string `yaml:"introspect_basic_pass"`
	} `yaml:"auth"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		// auto | starttls | ssl | none
		TLSMode string `yaml:"tls_mode"`
		// AlertsTo recibe las alertas de seguridad (reuso de refresh
		// tokens). Vacío = alertas deshabilitadas.
		AlertsTo string `yaml:"alerts_to"`
	} `yaml:"smtp"`

	Sweep struct {
		Interval string `yaml:"interval"`
	} `yaml:"sweep"`

	Clients   []Client   `yaml:"clients"`
	Scopes    []Scope    `yaml:"scopes"`
	Resources []Resource `yaml:"resources"`
	Users     []SeedUser `yaml:"users"`
}

// Client es la declaración estática de un cliente OAuth2/OIDC.
type Client struct {
	ClientID string `yaml:"client_id"`
	Name     string `yaml:"name"`
	// public | confidential
	Type string `yaml:"type"`
	// SecretHash es un PHC string argon2id (nunca el secreto en claro).
	SecretHash string `yaml:"secret_hash"`
	// none | client_secret_post | client_secret_basic
	TokenEndpointAuthMethod string   `yaml:"token_endpoint_auth_method"`
	GrantTypes              []string `yaml:"grant_types"`
	RedirectURIs            []string `yaml:"redirect_uris"`
	Scopes                  []string `yaml:"scopes"`
	AllowedOrigins          []string `yaml:"allowed_origins"`

	AccessTTL  string `yaml:"access_ttl"`
	IDTokenTTL string `yaml:"id_token_ttl"`
	RefreshTTL string `yaml:"refresh_ttl"`

	// RotateRefreshTokens habilita rotación one-time-use con cadena.
	// Default true; los clientes que no toleran rotación lo apagan.
	RotateRefreshTokens *bool `yaml:"rotate_refresh_tokens"`
	RequirePKCE         *bool `yaml:"require_pkce"`
}

// Scope declara un scope. Identity=true lo marca como identity scope
// (proyecta claims de usuario en el ID token / userinfo); si no, es un
// API scope (audiencia del access token).
type Scope struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Identity    bool     `yaml:"identity"`
	Claims      []string `yaml:"claims"`
}

// Resource declara un API resource: agrupa scopes y aporta su audiencia.
type Resource struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Scopes      []string `yaml:"scopes"`
}

// SeedUser siembra el credential store en memoria (dev/tests).
type SeedUser struct {
	ID           string            `yaml:"id"`
	Username     string            `yaml:"username"`
	PasswordHash string            `yaml:"password_hash"`
	Claims       map[string]string `yaml:"claims"`
}

// Load lee y parsea el YAML, aplicando defaults sanos.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.IDTokenTTL == "" {
		c.JWT.IDTokenTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.JWT.CodeTTL == "" {
		c.JWT.CodeTTL = "5m"
	}
	if c.JWT.Rotation.Interval == "" {
		c.JWT.Rotation.Interval = "24h"
	}
	if c.JWT.Rotation.Overlap == "" {
		c.JWT.Rotation.Overlap = "48h"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "sid"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "12h"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "10m"
	}
}

// Dur parsea una duración con fallback.
func Dur(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
