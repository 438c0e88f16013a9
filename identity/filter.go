// Package identity re-establishes the caller at a downstream service boundary
// from the identity header the gateway injected, using the shared session store
// as the only source of truth.
package identity

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/workspark/internal/envelope"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/internal/pathmatch"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
)

type Headers struct {
	Tenant   string
	Identity string
	SkipAuth string
}

type Filter struct {
	sessions  sessions.Store
	whitelist *pathmatch.Whitelist
	headers   Headers
	metrics   *metrics.Metrics
}

type Option func(*Filter)

func WithHeaders(headers Headers) Option {
	return func(f *Filter) {
		f.headers = headers
	}
}

func WithWhitelist(whitelist *pathmatch.Whitelist) Option {
	return func(f *Filter) {
		f.whitelist = whitelist
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

func New(store sessions.Store, options ...Option) *Filter {
	f := &Filter{
		sessions: store,
		headers: Headers{
			Tenant:   "X-Tenant",
			Identity: "X-User-Id",
			SkipAuth: "X-Internal-Skip-Auth",
		},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Middleware puts the tenant key and the caller's Principal into the request
// context. Whitelisted paths pass through with the tenant key only.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenant := r.Header.Get(f.headers.Tenant)
		if tenant != "" {
			ctx = tenants.WithKey(ctx, tenant)
		}

		if f.whitelist.Match(r.URL.Path) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if strings.EqualFold(r.Header.Get(f.headers.SkipAuth), "true") {
			if _, ok := PrincipalFromContext(ctx); !ok {
				system := SystemPrincipal
				ctx = WithPrincipal(ctx, &system)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		sessionID := strings.TrimSpace(r.Header.Get(f.headers.Identity))
		if sessionID == "" {
			f.reject(w, r, apperrors.New(apperrors.KindMissingCredential, "Missing user identity"))
			return
		}

		session, err := f.sessions.Get(ctx, sessionID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrSessionNotFound) {
				f.reject(w, r, apperrors.Wrap(apperrors.KindSessionNotFound, err, "No user found"))
				return
			}
			f.reject(w, r, apperrors.Wrap(apperrors.KindInternal, err, "session lookup failed"))
			return
		}
		if tenant != "" && session.Tenant != "" && session.Tenant != tenant {
			f.reject(w, r, apperrors.New(apperrors.KindSessionNotFound, "No user found"))
			return
		}

		principal := &Principal{
			UserID:    session.Profile.UserID,
			SessionID: session.ID,
			Name:      session.Profile.Name,
			Email:     session.Profile.Email,
			Roles:     session.Profile.Roles,
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

func (f *Filter) reject(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	zerolog.Ctx(r.Context()).Info().Err(err).Str("path", r.URL.Path).Msg("identity rejected")
	f.metrics.IdentityRejected(kind.String())
	envelope.WriteError(w, err)
}
