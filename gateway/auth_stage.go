package gateway

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/pathmatch"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/jrsteele09/workspark/token"
)

// Headers names the headers the gateway reads and writes.
type Headers struct {
	Tenant    string
	Identity  string
	SkipAuth  string
	RequestID string
}

func DefaultHeaders() Headers {
	return Headers{
		Tenant:    "X-Tenant",
		Identity:  "X-User-Id",
		SkipAuth:  "X-Internal-Skip-Auth",
		RequestID: "X-Request-ID",
	}
}

// TokenValidator is satisfied by *token.Manager.
type TokenValidator interface {
	Validate(raw, expectedMarker string) (*token.Claims, error)
}

// AuthStage authenticates every non-whitelisted request with a bearer access token
// and forwards the token's session id in the identity header.
type AuthStage struct {
	tokens    TokenValidator
	sessions  sessions.Store
	whitelist *pathmatch.Whitelist
	headers   Headers
}

type AuthOption func(*AuthStage)

// WithSessionStore makes the stage reject tokens whose session no longer exists.
func WithSessionStore(store sessions.Store) AuthOption {
	return func(s *AuthStage) {
		s.sessions = store
	}
}

func WithWhitelist(whitelist *pathmatch.Whitelist) AuthOption {
	return func(s *AuthStage) {
		s.whitelist = whitelist
	}
}

func NewAuthStage(tokens TokenValidator, headers Headers, options ...AuthOption) *AuthStage {
	s := &AuthStage{tokens: tokens, headers: headers}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *AuthStage) Process(r *http.Request) Result {
	if s.whitelist.Match(r.URL.Path) {
		return Continue(r)
	}

	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Reject(apperrors.New(apperrors.KindMissingCredential, "Missing or invalid JWT token"))
	}

	tenant := r.Header.Get(s.headers.Tenant)
	if tenant == "" {
		return Reject(apperrors.New(apperrors.KindMissingCredential, fmt.Sprintf("Missing required header %s", s.headers.Tenant)))
	}

	claims, err := s.tokens.Validate(raw, token.MarkerAccess)
	if err != nil {
		return Reject(err)
	}
	if claims.Tenant != tenant {
		return Reject(apperrors.New(apperrors.KindInvalidToken, "Invalid token"))
	}

	if s.sessions != nil {
		if _, err := s.sessions.Get(r.Context(), claims.SessionID); err != nil {
			if apperrors.Is(err, apperrors.ErrSessionNotFound) {
				return Reject(apperrors.Wrap(apperrors.KindSessionNotFound, err, "No user found"))
			}
			return Reject(apperrors.Wrap(apperrors.KindInternal, err, "session lookup failed"))
		}
	}

	out := r.Clone(r.Context())
	out.Header.Set(s.headers.Identity, claims.SessionID)
	return Continue(out)
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
