package oidc

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/donpedro/internal/http/wire"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/profile"
)

// UserinfoController sirve /userinfo: claims de identidad del sujeto
// del access token presentado, filtradas por los scopes del token.
type UserinfoController struct {
	issuer  *jwt.Issuer
	profile *profile.Service
}

func NewUserinfoController(iss *jwt.Issuer, p *profile.Service) *UserinfoController {
	return &UserinfoController{issuer: iss, profile: p}
}

func (c *UserinfoController) Userinfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oidc.userinfo"))

	raw := bearerToken(r)
	if raw == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		wire.OAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token required")
		return
	}

	claims, err := c.issuer.Verify(raw, "")
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		wire.OAuthError(w, http.StatusUnauthorized, "invalid_token", "token is not valid")
		return
	}

	scopes := jwt.ScopesFromClaims(claims)
	hasOpenID := false
	for _, s := range scopes {
		if s == "openid" {
			hasOpenID = true
			break
		}
	}
	sub, _ := claims["sub"].(string)
	if !hasOpenID || sub == "" {
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
		wire.OAuthError(w, http.StatusForbidden, "insufficient_scope", "openid scope required")
		return
	}

	out, err := c.profile.ClaimsFor(ctx, sub, scopes)
	if err != nil {
		log.Error("profile resolution failed", logger.Err(err), logger.SubjectID(sub))
		wire.EngineError(w, r, err)
		return
	}
	out["sub"] = sub
	wire.WriteJSON(w, http.StatusOK, out)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
