// Package session maneja la sesión de login del usuario final sobre una
// cookie opaca. El contenido vive en el cache backend (memoria o Redis);
// la cookie sólo lleva el identificador.
package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/donpedro/internal/cache"
	"github.com/dropDatabas3/donpedro/internal/security/token"
)

// Session es el estado autenticado de un usuario en el navegador.
// AuthTime es el momento del login: viaja al claim auth_time de los
// ID tokens emitidos bajo esta sesión.
type Session struct {
	SubjectID string    `json:"sub"`
	Username  string    `json:"username"`
	AuthTime  time.Time `json:"auth_time"`
}

type Manager struct {
	cache      cache.Cache
	cookieName string
	ttl        time.Duration
	secure     bool
	sameSite   http.SameSite
}

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   string // lax | strict | none
}

func NewManager(c cache.Cache, o Options) *Manager {
	name := o.CookieName
	if name == "" {
		name = "sid"
	}
	ttl := o.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	ss := http.SameSiteLaxMode
	switch o.SameSite {
	case "strict":
		ss = http.SameSiteStrictMode
	case "none":
		ss = http.SameSiteNoneMode
	}
	return &Manager{cache: c, cookieName: name, ttl: ttl, secure: o.Secure, sameSite: ss}
}

func (m *Manager) key(sid string) string { return "sess:" + token.SHA256Base64URL(sid) }

// Create abre una sesión nueva y setea la cookie.
func (m *Manager) Create(w http.ResponseWriter, subjectID, username string) error {
	sid, err := token.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Session{
		SubjectID: subjectID,
		Username:  username,
		AuthTime:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	m.cache.Set(m.key(sid), raw, m.ttl)

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
	return nil
}

// Get devuelve la sesión activa del request, si la hay.
func (m *Manager) Get(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	raw, ok := m.cache.Get(m.key(c.Value))
	if !ok {
		return nil, false
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Destroy borra la sesión del backend y expira la cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		m.cache.Delete(m.key(c.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
}
