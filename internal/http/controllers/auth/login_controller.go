// Package auth implementa el login interactivo del usuario final.
// La UI es deliberadamente mínima: un form server-side que abre la
// sesión y devuelve al flujo de autorización que la pidió.
package auth

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/http/session"
	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p style="color:#b00">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="return_to" value="{{.ReturnTo}}">
  <label>Username <input name="username" autocomplete="username" autofocus></label><br>
  <label>Password <input name="password" type="password" autocomplete="current-password"></label><br>
  <button type="submit">Sign in</button>
</form>
</body></html>`))

type LoginController struct {
	creds    credentials.Store
	sessions *session.Manager
}

func NewLoginController(c credentials.Store, s *session.Manager) *LoginController {
	return &LoginController{creds: c, sessions: s}
}

// Login sirve el form (GET) y procesa credenciales (POST).
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c.renderForm(w, sanitizeReturnTo(r.URL.Query().Get("return_to")), "")
	case http.MethodPost:
		c.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (c *LoginController) renderForm(w http.ResponseWriter, returnTo, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTmpl.Execute(w, struct {
		ReturnTo string
		Error    string
	}{ReturnTo: returnTo, Error: errMsg})
}

func (c *LoginController) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.login"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	returnTo := sanitizeReturnTo(r.PostForm.Get("return_to"))
	username := strings.TrimSpace(r.PostForm.Get("username"))
	pass := r.PostForm.Get("password")

	id, err := c.creds.Authenticate(ctx, username, pass)
	if err != nil {
		if errors.Is(err, credentials.ErrAuthFailed) {
			log.Info("login rejected", logger.String("username", username))
			w.WriteHeader(http.StatusUnauthorized)
			c.renderForm(w, returnTo, "Invalid username or password.")
			return
		}
		log.Error("credential backend failed", logger.Err(err))
		wire.EngineError(w, r, err)
		return
	}

	if err := c.sessions.Create(w, id.ID, id.Username); err != nil {
		log.Error("session creation failed", logger.Err(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	log.Info("login ok", logger.SubjectID(id.ID))

	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// Logout cierra la sesión. Acepta POST (form) y GET (end_session simple).
func (c *LoginController) Logout(w http.ResponseWriter, r *http.Request) {
	c.sessions.Destroy(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// sanitizeReturnTo sólo admite paths relativos locales: corta cualquier
// intento de open redirect.
func sanitizeReturnTo(v string) string {
	if v == "" || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return ""
	}
	return v
}
