package gateway_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/workspark/gateway"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/sessions"
	sessionrepofakes "github.com/jrsteele09/workspark/sessions/repofakes"
	"github.com/jrsteele09/workspark/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	secretStr  = "gateway-secret"
	acmeHost   = "acme.workspark.com"
	securePath = "/auth/api/v1/x"
	publicPath = "/auth/api/v1/public/signin"
)

var testProfile = sessions.Profile{UserID: "user-1", Name: "Jane Doe", Email: "jane@acme.com", Roles: []string{"tenant_user"}}

type recordedRequest struct {
	header http.Header
	body   string
}

type recordingUpstream struct {
	lock     sync.Mutex
	requests []recordedRequest
}

func (u *recordingUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.lock.Lock()
	u.requests = append(u.requests, recordedRequest{header: r.Header.Clone(), body: string(body)})
	u.lock.Unlock()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("upstream ok"))
}

func (u *recordingUpstream) last(t *testing.T) recordedRequest {
	t.Helper()
	u.lock.Lock()
	defer u.lock.Unlock()
	require.NotEmpty(t, u.requests, "upstream was not called")
	return u.requests[len(u.requests)-1]
}

func (u *recordingUpstream) calls() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	return len(u.requests)
}

type testFixture struct {
	now      time.Time
	tokens   *token.Manager
	sessions *sessionrepofakes.FakeSessionStore
	upstream *recordingUpstream
	metrics  *metrics.Metrics
	logs     *bytes.Buffer
	chain    *gateway.Chain
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		sessions: sessionrepofakes.NewFakeSessionStore(),
		upstream: &recordingUpstream{},
		metrics:  metrics.New(prometheus.NewRegistry()),
		logs:     &bytes.Buffer{},
	}
	f.sessions.WithNowFunc(func() time.Time { return f.now })
	f.tokens = token.New(token.NewHMACSigner(secretStr),
		token.WithTokenExpiry(15*time.Minute, time.Hour),
		token.WithNowFunc(func() time.Time { return f.now }),
	)
	f.chain = gateway.New(f.upstream, gateway.Options{
		Logger:    zerolog.New(f.logs),
		Headers:   gateway.DefaultHeaders(),
		Tokens:    f.tokens,
		Sessions:  f.sessions,
		Whitelist: []string{"/*/api/v1/public/**"},
		Metrics:   f.metrics,
	})
	return f
}

func (f *testFixture) signIn(t *testing.T, tenant string) (*sessions.Session, *token.Pair) {
	t.Helper()
	s := sessions.New(tenant, testProfile, f.now, time.Hour)
	require.NoError(t, f.sessions.Create(context.Background(), s))
	pair, err := f.tokens.IssuePair(testProfile, s.ID, tenant)
	require.NoError(t, err)
	return s, pair
}

func (f *testFixture) do(method, host, path, bearer, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Host = host
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.chain.ServeHTTP(rec, req)
	return rec
}

func TestMissingBearerToken(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(http.MethodGet, acmeHost, securePath, "", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"item":null,"success":false,"message":"Missing or invalid JWT token","error":"Authentication Error"}`, rec.Body.String())
	require.Equal(t, 0, f.upstream.calls())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GatewayRejections.WithLabelValues("missing_credential")))
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	f := setupTestFixture(t)

	for _, value := range []string{"Basic dXNlcjpwYXNz", "Bearer", "Bearer   ", "token"} {
		t.Run(value, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, securePath, nil)
			req.Host = acmeHost
			req.Header.Set("Authorization", value)
			rec := httptest.NewRecorder()
			f.chain.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), "Missing or invalid JWT token")
		})
	}
}

func TestValidRequestIsForwarded(t *testing.T) {
	f := setupTestFixture(t)
	session, pair := f.signIn(t, "acme")
	body := `{"nominee":"john","category":"teamwork"}`

	rec := f.do(http.MethodPost, acmeHost, securePath, pair.AccessToken, body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "upstream ok", rec.Body.String())

	forwarded := f.upstream.last(t)
	require.Equal(t, session.ID, forwarded.header.Get("X-User-Id"))
	require.Equal(t, "acme", forwarded.header.Get("X-Tenant"))
	require.NotEmpty(t, forwarded.header.Get("X-Request-ID"))
	require.Equal(t, body, forwarded.body)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GatewayRequests.WithLabelValues("forwarded")))
}

func TestRefreshTokenOnAccessRoute(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.signIn(t, "acme")

	rec := f.do(http.MethodGet, acmeHost, securePath, pair.RefreshToken, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"item":null,"success":false,"message":"Invalid token","error":"Authentication Error"}`, rec.Body.String())
	require.Equal(t, 0, f.upstream.calls())
}

func TestExpiredAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.signIn(t, "acme")
	f.now = f.now.Add(16 * time.Minute)

	rec := f.do(http.MethodGet, acmeHost, securePath, pair.AccessToken, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"item":null,"success":false,"message":"Token expired","error":"Token Expired"}`, rec.Body.String())
}

func TestTokenForAnotherTenant(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.signIn(t, "globex")

	rec := f.do(http.MethodGet, acmeHost, securePath, pair.AccessToken, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid token")
	require.Equal(t, 0, f.upstream.calls())
}

func TestSessionMissingFromStore(t *testing.T) {
	f := setupTestFixture(t)
	session, pair := f.signIn(t, "acme")
	require.NoError(t, f.sessions.Delete(context.Background(), session.ID))

	rec := f.do(http.MethodGet, acmeHost, securePath, pair.AccessToken, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "No user found")
}

func TestWhitelistedPathSkipsAuthentication(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(http.MethodPost, acmeHost, publicPath, "garbage-token", `{"email":"jane@acme.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(0), f.sessions.Gets())
	require.Equal(t, "acme", f.upstream.last(t).header.Get("X-Tenant"))
}

func TestClientIdentityHeadersAreStripped(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(http.MethodGet, acmeHost, publicPath, "", "",
		"X-User-Id", "forged-session",
		"X-Internal-Skip-Auth", "true",
		"X-Tenant", "globex",
	)

	require.Equal(t, http.StatusOK, rec.Code)
	forwarded := f.upstream.last(t)
	require.Empty(t, forwarded.header.Get("X-User-Id"))
	require.Empty(t, forwarded.header.Get("X-Internal-Skip-Auth"))
	require.Equal(t, "acme", forwarded.header.Get("X-Tenant"))
}

func TestUnresolvableHost(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.signIn(t, "acme")

	for _, host := range []string{"", "[::1]:8080", "127.0.0.1:8080"} {
		t.Run(host, func(t *testing.T) {
			rec := f.do(http.MethodGet, host, securePath, pair.AccessToken, "")

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, `{"item":null,"success":false,"message":"Unable to resolve tenant","error":"Authentication Error"}`, rec.Body.String())
		})
	}
	require.Equal(t, 0, f.upstream.calls())
}

func TestCompletionIsLogged(t *testing.T) {
	f := setupTestFixture(t)

	f.do(http.MethodGet, acmeHost, securePath+"?page=2", "", "")

	logs := f.logs.String()
	require.Contains(t, logs, `"message":"request received"`)
	require.Contains(t, logs, `"query":"page=2"`)
	require.Contains(t, logs, `"message":"request completed"`)
	require.Contains(t, logs, `"status":401`)
	require.Contains(t, logs, `"request_id"`)
}

func TestAuthStageRequiresTenantHeader(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.signIn(t, "acme")
	stage := gateway.NewAuthStage(f.tokens, gateway.DefaultHeaders())

	req := httptest.NewRequest(http.MethodGet, securePath, nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	res := stage.Process(req)
	require.True(t, res.Terminated())
	require.Equal(t, http.StatusUnauthorized, res.Status)

	req.Header.Set("X-Tenant", "acme")
	res = stage.Process(req)
	require.False(t, res.Terminated())
	require.NotEmpty(t, res.Request.Header.Get("X-User-Id"))
	require.Empty(t, req.Header.Get("X-User-Id"), "original request must not be mutated")
}

func TestChainStopsAtFirstTermination(t *testing.T) {
	var secondRan bool
	first := gateway.StageFunc(func(r *http.Request) gateway.Result {
		return gateway.Terminate(http.StatusTeapot, map[string]string{"stop": "here"})
	})
	second := gateway.StageFunc(func(r *http.Request) gateway.Result {
		secondRan = true
		return gateway.Continue(r)
	})
	upstream := &recordingUpstream{}
	chain := gateway.NewChain(upstream, []gateway.Stage{first, second})

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.JSONEq(t, `{"stop":"here"}`, rec.Body.String())
	require.False(t, secondRan)
	require.Equal(t, 0, upstream.calls())
}
