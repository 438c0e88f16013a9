package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/workspark/datasource"
	"github.com/jrsteele09/workspark/identity"
	"github.com/jrsteele09/workspark/internal/envelope"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	ssoFlowCookie   = "workspark_sso"
	ssoFlowLifetime = 10 * time.Minute
	maxBodyBytes    = 1 << 20
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ssoRequest struct {
	IDToken string `json:"idToken"`
}

type tenantInfo struct {
	Key      string `json:"key"`
	Database string `json:"database"`
}

type meResponse struct {
	User   *identity.Principal `json:"user"`
	Tenant tenantInfo          `json:"tenant"`
}

func (s *Server) SignIn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}
		var req signInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := s.deps.Auth.SignIn(r.Context(), tenant, req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		envelope.Write(w, http.StatusOK, envelope.OK(pair))
	}
}

func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := s.deps.Auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		envelope.Write(w, http.StatusOK, envelope.OK(pair))
	}
}

func (s *Server) CompleteSSO() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}
		var req ssoRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := s.deps.Auth.CompleteSSO(r.Context(), tenant, req.IDToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		envelope.Write(w, http.StatusOK, envelope.OK(pair))
	}
}

// SSOLogin redirects the browser to the SSO provider. The state and PKCE verifier
// travel in a short lived cookie back to SSOCallback.
func (s *Server) SSOLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		verifier := oauth2.GenerateVerifier()

		loginURL, err := s.deps.Auth.SSOLoginURL(r.Context(), state, verifier)
		if err != nil {
			writeError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     ssoFlowCookie,
			Value:    state + "." + verifier,
			Path:     RouteAuthAPI + RouteSSOCallback,
			MaxAge:   int(ssoFlowLifetime.Seconds()),
			HttpOnly: true,
			Secure:   getScheme(r) == "https",
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, loginURL, http.StatusFound)
	}
}

func (s *Server) SSOCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := requireTenant(w, r)
		if !ok {
			return
		}

		cookie, err := r.Cookie(ssoFlowCookie)
		if err != nil {
			writeError(w, r, apperrors.Wrap(apperrors.KindMissingCredential, err, "Missing sign-on state"))
			return
		}
		state, verifier, found := strings.Cut(cookie.Value, ".")
		if !found || state == "" || state != r.URL.Query().Get("state") {
			writeError(w, r, apperrors.New(apperrors.KindInvalidToken, "Invalid sign-on state"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: ssoFlowCookie, Path: RouteAuthAPI + RouteSSOCallback, MaxAge: -1})

		pair, err := s.deps.Auth.ExchangeCode(r.Context(), tenant, r.URL.Query().Get("code"), verifier)
		if err != nil {
			writeError(w, r, err)
			return
		}
		envelope.Write(w, http.StatusOK, envelope.OK(pair))
	}
}

func (s *Server) SignOut() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identity.PrincipalFromContext(r.Context())
		if !ok || principal.SessionID == "" {
			writeError(w, r, apperrors.New(apperrors.KindMissingCredential, "Missing user identity"))
			return
		}

		if err := s.deps.Auth.SignOut(r.Context(), principal.SessionID); err != nil {
			writeError(w, r, err)
			return
		}
		envelope.Write(w, http.StatusOK, envelope.OK(nil))
	}
}

// Me returns the caller and the tenant database the request was bound to.
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identity.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, apperrors.New(apperrors.KindMissingCredential, "Missing user identity"))
			return
		}

		resp := meResponse{User: principal}
		if tenant, ok := datasource.TenantFromContext(r.Context()); ok {
			resp.Tenant = tenantInfo{Key: tenant.Key, Database: tenant.DatabaseName}
		}
		envelope.Write(w, http.StatusOK, envelope.OK(resp))
	}
}

// JWKS serves the public signing keys. Symmetric signers publish nothing.
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Keys == nil {
			envelope.Write(w, http.StatusNotFound, envelope.Response{Message: "No published keys", Error: "Not Found"})
			return
		}
		jwks, ok := s.deps.Keys.JWKS()
		if !ok {
			envelope.Write(w, http.StatusNotFound, envelope.Response{Message: "No published keys", Error: "Not Found"})
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

const contentTypeJSON = "application/json; charset=utf-8"

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant, ok := tenants.KeyFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.Wrap(apperrors.KindTenantUnresolved, apperrors.ErrTenantUnresolved, "Unable to resolve tenant"))
		return "", false
	}
	return tenant, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("invalid request body")
		envelope.Write(w, http.StatusBadRequest, envelope.Response{Message: "Invalid request body", Error: "Bad Request"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	event := zerolog.Ctx(r.Context()).Warn()
	if !kind.Unauthenticated() {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request failed")
	envelope.WriteError(w, err)
}
