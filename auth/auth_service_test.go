package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/workspark/auth"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	sessionrepofakes "github.com/jrsteele09/workspark/sessions/repofakes"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/jrsteele09/workspark/token"
	"github.com/jrsteele09/workspark/users"
	userrepofakes "github.com/jrsteele09/workspark/users/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	secretStr        = "1234"
	testTenant       = "acme"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Password123"
	testIDToken      = "provider-id-token"
	testClientID     = "workspark"
)

type fakeVerifier struct {
	identity *token.ExternalIdentity
	calls    int
}

func (v *fakeVerifier) Verify(_ context.Context, raw, issuerURL, clientID string) (*token.ExternalIdentity, error) {
	v.calls++
	if raw != testIDToken || clientID != testClientID {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, apperrors.ErrInvalidToken, "Invalid token")
	}
	return v.identity, nil
}

// testFixture holds all test dependencies
type testFixture struct {
	now      time.Time
	users    userrepofakes.TenantUsers
	sessions *sessionrepofakes.FakeSessionStore
	tokens   *token.Manager
	verifier *fakeVerifier
	service  *auth.Service
}

func setupTestFixture(t *testing.T, options ...auth.ServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		users:    userrepofakes.TenantUsers{},
		sessions: sessionrepofakes.NewFakeSessionStore(),
		verifier: &fakeVerifier{identity: &token.ExternalIdentity{Email: testUserEmail, Subject: "ext-1"}},
	}
	f.sessions.WithNowFunc(func() time.Time { return f.now })
	f.tokens = token.New(token.NewHMACSigner(secretStr),
		token.WithNowFunc(func() time.Time { return f.now }),
	)

	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.users.ForTenant(testTenant).Upsert(context.Background(), &users.User{
		ID:           "user-1",
		Email:        testUserEmail,
		Name:         "John Doe",
		PasswordHash: hash,
		Roles:        []users.RoleType{users.RoleTenantUser},
	}))
	f.users.ForTenant("globex")

	source := users.RepoSourceFunc(func(ctx context.Context) (users.UserRepo, error) {
		key, _ := tenants.KeyFromContext(ctx)
		return f.users.ForTenant(key), nil
	})

	opts := append([]auth.ServiceOption{
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithSessionTTL(time.Hour),
	}, options...)
	f.service, err = auth.NewService(source, f.sessions, f.tokens, opts...)
	require.NoError(t, err)
	return f
}

func tenantCtx(tenant string) context.Context {
	return tenants.WithKey(context.Background(), tenant)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := auth.NewService(nil, sessionrepofakes.NewFakeSessionStore(), token.New(token.NewHMACSigner(secretStr)))
	require.Error(t, err)

	_, err = auth.NewService(users.RepoSourceFunc(nil), nil, token.New(token.NewHMACSigner(secretStr)))
	require.Error(t, err)

	_, err = auth.NewService(users.RepoSourceFunc(nil), sessionrepofakes.NewFakeSessionStore(), token.New(token.NewHMACSigner(secretStr)),
		auth.WithSSO(auth.SSOConfig{IssuerURL: "https://sso.example.com", ClientID: testClientID}, nil))
	require.Error(t, err)

	_, err = auth.NewService(users.RepoSourceFunc(nil), sessionrepofakes.NewFakeSessionStore(), token.New(token.NewHMACSigner(secretStr)),
		auth.WithSSO(auth.SSOConfig{IssuerURL: "https://sso.example.com"}, &fakeVerifier{}))
	require.Error(t, err)
}

func TestSignIn(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.service.SignIn(tenantCtx(testTenant), testTenant, testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.Equal(t, "bearer", pair.TokenType)

	claims, err := f.tokens.Validate(pair.AccessToken, token.MarkerAccess)
	require.NoError(t, err)
	require.Equal(t, testTenant, claims.Tenant)
	require.Equal(t, []string{"tenant_user"}, claims.Roles)

	session, err := f.sessions.Get(context.Background(), claims.SessionID)
	require.NoError(t, err)
	require.Equal(t, "user-1", session.Profile.UserID)
	require.Equal(t, testTenant, session.Tenant)
	require.Equal(t, testUserEmail, session.Profile.Email)
	require.Equal(t, time.Hour, session.TTL)
}

func TestSignInFailures(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		email    string
		password string
	}{
		{"wrong password", testTenant, testUserEmail, "Wrong123"},
		{"unknown user", testTenant, "nobody@example.com", testUserPassword},
		{"user of another tenant", "globex", testUserEmail, testUserPassword},
		{"empty password", testTenant, testUserEmail, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)

			_, err := f.service.SignIn(tenantCtx(tt.tenant), tt.tenant, tt.email, tt.password)
			require.Error(t, err)
			require.Equal(t, apperrors.KindMissingCredential, apperrors.KindOf(err))
			require.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
			require.Equal(t, "Invalid email or password", apperrors.MessageOf(err, ""))
		})
	}
}

func TestSignInBlockedUser(t *testing.T) {
	f := setupTestFixture(t)
	repo := f.users.ForTenant(testTenant)
	user, err := repo.GetByEmail(context.Background(), testUserEmail)
	require.NoError(t, err)
	user.Blocked = true
	require.NoError(t, repo.Upsert(context.Background(), user))

	_, err = f.service.SignIn(tenantCtx(testTenant), testTenant, testUserEmail, testUserPassword)
	require.Equal(t, apperrors.KindMissingCredential, apperrors.KindOf(err))
}

func TestRefresh(t *testing.T) {
	f := setupTestFixture(t)
	pair, err := f.service.SignIn(tenantCtx(testTenant), testTenant, testUserEmail, testUserPassword)
	require.NoError(t, err)

	f.now = f.now.Add(20 * time.Minute)
	refreshed, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := f.tokens.Validate(refreshed.AccessToken, token.MarkerAccess)
	require.NoError(t, err)
	require.Equal(t, testTenant, claims.Tenant)

	_, err = f.service.Refresh(context.Background(), pair.AccessToken)
	require.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	pair, err := f.service.SignIn(tenantCtx(testTenant), testTenant, testUserEmail, testUserPassword)
	require.NoError(t, err)
	claims, err := f.tokens.Validate(pair.AccessToken, token.MarkerAccess)
	require.NoError(t, err)

	require.NoError(t, f.service.SignOut(context.Background(), claims.SessionID))

	_, err = f.sessions.Get(context.Background(), claims.SessionID)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperrors.KindSessionNotFound, apperrors.KindOf(err))
}

func TestCompleteSSO(t *testing.T) {
	verifier := &fakeVerifier{identity: &token.ExternalIdentity{Email: "John.Doe@example.com"}}
	f := setupTestFixture(t, auth.WithSSO(auth.SSOConfig{IssuerURL: "https://sso.example.com", ClientID: testClientID}, verifier))

	pair, err := f.service.CompleteSSO(tenantCtx(testTenant), testTenant, testIDToken)
	require.NoError(t, err)
	claims, err := f.tokens.Validate(pair.AccessToken, token.MarkerAccess)
	require.NoError(t, err)
	session, err := f.sessions.Get(context.Background(), claims.SessionID)
	require.NoError(t, err)
	require.Equal(t, "user-1", session.Profile.UserID)

	_, err = f.service.CompleteSSO(tenantCtx(testTenant), testTenant, "forged")
	require.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))

	_, err = f.service.CompleteSSO(tenantCtx("globex"), "globex", testIDToken)
	require.Equal(t, apperrors.KindSessionNotFound, apperrors.KindOf(err))
	require.Equal(t, 3, verifier.calls)
}

func TestCompleteSSONotConfigured(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.CompleteSSO(tenantCtx(testTenant), testTenant, testIDToken)
	require.Equal(t, apperrors.KindMissingCredential, apperrors.KindOf(err))
}

func newSSOProvider(t *testing.T) (*httptest.Server, *token.KeyPairSigner) {
	t.Helper()
	keyPair, err := token.GenerateRSAKeyPair("sso-key-1", 2048)
	require.NoError(t, err)
	signer := token.NewKeyPairSigner(keyPair)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		jwks, err := signer.GetJWKS()
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     testIDToken,
		})
	})
	return srv, signer
}

func TestCompleteSSOChecksAudience(t *testing.T) {
	provider, signer := newSSOProvider(t)
	f := setupTestFixture(t, auth.WithSSO(auth.SSOConfig{
		IssuerURL: provider.URL,
		ClientID:  testClientID,
	}, token.NewExternalVerifier(provider.Client())))

	idToken := func(audience string) string {
		raw, err := signer.Sign(jwt.MapClaims{
			"iss":   provider.URL,
			"aud":   audience,
			"sub":   "ext-1",
			"email": testUserEmail,
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)
		return raw
	}

	pair, err := f.service.CompleteSSO(tenantCtx(testTenant), testTenant, idToken(testClientID))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	pair, err = f.service.CompleteSSO(tenantCtx(testTenant), testTenant, idToken("some-other-app"))
	require.Nil(t, pair)
	require.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))
}

func TestSSOCodeFlow(t *testing.T) {
	provider, _ := newSSOProvider(t)
	verifier := &fakeVerifier{identity: &token.ExternalIdentity{Email: testUserEmail}}
	f := setupTestFixture(t, auth.WithSSO(auth.SSOConfig{
		IssuerURL:    provider.URL,
		ClientID:     testClientID,
		ClientSecret: "client-secret",
		RedirectURL:  "https://acme.workspark.com/auth/api/v1/public/sso/callback",
	}, verifier))

	loginURL, err := f.service.SSOLoginURL(context.Background(), "state-1", "verifier-0123456789-0123456789-0123456789")
	require.NoError(t, err)
	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)
	require.Equal(t, "/authorize", parsed.Path)
	require.Equal(t, "workspark", parsed.Query().Get("client_id"))
	require.Equal(t, "state-1", parsed.Query().Get("state"))
	require.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
	require.NotEmpty(t, parsed.Query().Get("code_challenge"))

	pair, err := f.service.ExchangeCode(tenantCtx(testTenant), testTenant, "good-code", "verifier-0123456789-0123456789-0123456789")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	_, err = f.service.ExchangeCode(tenantCtx(testTenant), testTenant, "bad-code", "verifier-0123456789-0123456789-0123456789")
	require.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))
}
