package auth

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/jrsteele09/workspark/token"
	"github.com/jrsteele09/workspark/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultSessionTTL = 24 * time.Hour

// ExternalVerifier verifies an ID token issued by the SSO provider.
type ExternalVerifier interface {
	Verify(ctx context.Context, raw, issuerURL, clientID string) (*token.ExternalIdentity, error)
}

// SSOConfig describes the single sign-on provider users may sign in with.
type SSOConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c SSOConfig) Enabled() bool {
	return c.IssuerURL != ""
}

// Service signs users in and out of a tenant. Every sign-in creates a session in
// the shared store and returns a token pair bound to that session and tenant.
type Service struct {
	users      users.RepoSource
	sessions   sessions.Store
	tokens     *token.Manager
	verifier   ExternalVerifier
	sso        SSOConfig
	sessionTTL time.Duration
	nowTime    func() time.Time
	logger     zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// WithSSO enables sign-in with ID tokens issued by config.IssuerURL.
func WithSSO(config SSOConfig, verifier ExternalVerifier) ServiceOption {
	return func(s *Service) {
		s.sso = config
		s.verifier = verifier
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(userSource users.RepoSource, sessionStore sessions.Store, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if userSource == nil {
		return nil, errors.New("[NewService] user source is required")
	}
	if sessionStore == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		users:      userSource,
		sessions:   sessionStore,
		tokens:     tokens,
		sessionTTL: defaultSessionTTL,
		nowTime:    time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.sso.Enabled() && s.verifier == nil {
		return nil, errors.New("[NewService] SSO requires an external verifier")
	}
	if s.sso.Enabled() && s.sso.ClientID == "" {
		return nil, errors.New("[NewService] SSO requires a client id")
	}
	return s, nil
}

// SignIn checks the user's password and opens a session.
func (s *Service) SignIn(ctx context.Context, tenant, email, password string) (*token.Pair, error) {
	if email == "" || password == "" {
		return nil, invalidCredentials(errors.New("email and password required"))
	}

	repo, err := s.users.Users(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.SignIn] users")
	}
	user, err := repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUserNotFound) {
			return nil, invalidCredentials(err)
		}
		return nil, errors.Wrap(err, "[Service.SignIn] GetByEmail")
	}
	if user.Blocked {
		return nil, invalidCredentials(errors.New("user blocked"))
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, invalidCredentials(errors.New("password mismatch"))
	}

	return s.openSession(ctx, tenant, user)
}

// Refresh re-issues a token pair from a refresh token while its session is live.
// The pair carries the profile embedded in the presented token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := s.tokens.Validate(refreshToken, token.MarkerRefresh)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Get(ctx, claims.SessionID); err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, apperrors.Wrap(apperrors.KindSessionNotFound, err, "No user found")
		}
		return nil, errors.Wrap(err, "[Service.Refresh] sessions.Get")
	}
	return s.tokens.Refresh(refreshToken)
}

// SignOut removes the session. Tokens bound to it are rejected from then on.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Service.SignOut] sessions.Delete")
	}
	return nil
}

// CompleteSSO verifies an ID token from the SSO provider and opens a session for
// the tenant user with the token's email.
func (s *Service) CompleteSSO(ctx context.Context, tenant, idToken string) (*token.Pair, error) {
	if !s.sso.Enabled() {
		return nil, apperrors.New(apperrors.KindMissingCredential, "Single sign-on is not configured")
	}

	identity, err := s.verifier.Verify(ctx, idToken, s.sso.IssuerURL, s.sso.ClientID)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, apperrors.ErrInvalidToken, "Invalid token")
	}

	repo, err := s.users.Users(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteSSO] users")
	}
	user, err := repo.GetByEmail(ctx, strings.ToLower(identity.Email))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.Wrap(apperrors.KindSessionNotFound, err, "No user found")
		}
		return nil, errors.Wrap(err, "[Service.CompleteSSO] GetByEmail")
	}
	if user.Blocked {
		return nil, apperrors.New(apperrors.KindSessionNotFound, "No user found")
	}
	return s.openSession(ctx, tenant, user)
}

// SSOLoginURL returns the provider URL to send the browser to. verifier is the
// PKCE code verifier the callback must present.
func (s *Service) SSOLoginURL(ctx context.Context, state, verifier string) (string, error) {
	config, err := s.oauth2Config(ctx)
	if err != nil {
		return "", err
	}
	return config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// ExchangeCode swaps an authorization code for the provider's ID token and
// completes sign-in with it.
func (s *Service) ExchangeCode(ctx context.Context, tenant, code, verifier string) (*token.Pair, error) {
	config, err := s.oauth2Config(ctx)
	if err != nil {
		return nil, err
	}

	oauth2Token, err := config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, errors.Wrap(err, "code exchange"), "Invalid token")
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, apperrors.ErrInvalidToken, "Invalid token")
	}
	return s.CompleteSSO(ctx, tenant, rawIDToken)
}

func (s *Service) oauth2Config(ctx context.Context) (*oauth2.Config, error) {
	if !s.sso.Enabled() {
		return nil, apperrors.New(apperrors.KindMissingCredential, "Single sign-on is not configured")
	}
	provider, err := oidc.NewProvider(ctx, s.sso.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.oauth2Config] discovery")
	}
	return &oauth2.Config{
		ClientID:     s.sso.ClientID,
		ClientSecret: s.sso.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  s.sso.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}, nil
}

func (s *Service) openSession(ctx context.Context, tenant string, user *users.User) (*token.Pair, error) {
	profile := user.Profile()
	session := sessions.New(tenant, profile, s.nowTime(), s.sessionTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Service.openSession] sessions.Create")
	}

	pair, err := s.tokens.IssuePair(profile, session.ID, tenant)
	if err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, errors.Wrap(err, "[Service.openSession] IssuePair")
	}
	s.logger.Info().Str("tenant", tenant).Str("user_id", user.ID).Str("session_id", session.ID).Msg("session opened")
	return pair, nil
}

func invalidCredentials(cause error) error {
	return apperrors.Wrap(apperrors.KindMissingCredential, errors.Wrap(apperrors.ErrInvalidCredentials, cause.Error()), "Invalid email or password")
}
