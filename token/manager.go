package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/sessions"
)

// Subject markers distinguishing the two token kinds.
const (
	MarkerAccess  = "access"
	MarkerRefresh = "refresh"
)

// Pair is the token response returned at sign-in and refresh.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Manager issues and validates the platform's own access and refresh tokens.
type Manager struct {
	signer             Signer
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (m *Manager) IssueAccess(profile sessions.Profile, sessionID, tenant string) (string, error) {
	return m.issue(MarkerAccess, m.accessTokenExpiry, profile, sessionID, tenant)
}

func (m *Manager) IssueRefresh(profile sessions.Profile, sessionID, tenant string) (string, error) {
	return m.issue(MarkerRefresh, m.refreshTokenExpiry, profile, sessionID, tenant)
}

// IssuePair issues an access and a refresh token bound to the same session.
func (m *Manager) IssuePair(profile sessions.Profile, sessionID, tenant string) (*Pair, error) {
	access, err := m.IssueAccess(profile, sessionID, tenant)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefresh(profile, sessionID, tenant)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
	}, nil
}

func (m *Manager) issue(marker string, ttl time.Duration, profile sessions.Profile, sessionID, tenant string) (string, error) {
	now := m.nowFunc()
	roles := profile.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := jwt.MapClaims{
		claimSubject:   marker,
		claimName:      profile.Name,
		claimEmail:     profile.Email,
		claimRoles:     roles,
		claimSessionID: sessionID,
		claimTenant:    tenant,
		claimIssuedAt:  now.Unix(),
		claimExpiresAt: now.Add(ttl).Unix(),
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "could not issue token")
	}
	return signed, nil
}

// Validate checks the signature, expiry and subject marker of raw. A token whose
// only defect is expiry fails with ErrTokenExpired; anything else fails with
// ErrInvalidToken.
func (m *Manager) Validate(raw, expectedMarker string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
	)

	mapClaims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, mapClaims, m.signer.GetVerificationKey)
	expired := errors.Is(err, jwt.ErrTokenExpired)
	if err != nil && !expired {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, errors.Join(apperrors.ErrInvalidToken, err), "Invalid token")
	}

	claims := claimsFromMap(mapClaims)
	if claims.Subject != expectedMarker {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, apperrors.ErrInvalidToken, "Invalid token")
	}
	if expired {
		return nil, apperrors.Wrap(apperrors.KindExpiredToken, apperrors.ErrTokenExpired, "Token expired")
	}
	return claims, nil
}

// Refresh validates raw as a refresh token and issues a new pair from the claims it
// carries. The user record is not consulted, so profile changes only appear once
// the presented refresh token has itself expired.
func (m *Manager) Refresh(raw string) (*Pair, error) {
	claims, err := m.Validate(raw, MarkerRefresh)
	if err != nil {
		return nil, err
	}
	return m.IssuePair(claims.Profile(), claims.SessionID, claims.Tenant)
}

// JWKS returns the published key set when the signer is asymmetric.
func (m *Manager) JWKS() (*JWKS, bool) {
	publisher, ok := m.signer.(KeySetPublisher)
	if !ok {
		return nil, false
	}
	jwks, err := publisher.GetJWKS()
	if err != nil {
		return nil, false
	}
	return jwks, true
}
