package config

type GatewayConfig interface {
	GetTenantHeader() string
	GetIdentityHeader() string
	GetSkipAuthHeader() string
	GetRequestIDHeader() string
	GetWhitelist() []string
	GetRoutes() map[string]string
	GetCheckSessions() bool
}

// Gateway holds the edge settings. Routes maps a path prefix to an upstream base URL,
// e.g. GATEWAY_ROUTES="/auth/=http://auth:8081,/nominations/=http://nominations:8082".
type Gateway struct {
	TenantHeader    string            `env:"TENANT_HEADER" envDefault:"X-Tenant"`
	IdentityHeader  string            `env:"IDENTITY_HEADER" envDefault:"X-User-Id"`
	SkipAuthHeader  string            `env:"SKIP_AUTH_HEADER" envDefault:"X-Internal-Skip-Auth"`
	RequestIDHeader string            `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	Whitelist       []string          `env:"AUTH_WHITELIST" envSeparator:"," envDefault:"/*/api/v1/public/**,/.well-known/**,/metrics"`
	Routes          map[string]string `env:"GATEWAY_ROUTES" envSeparator:"," envKeyValSeparator:"="`
	CheckSessions   bool              `env:"GATEWAY_CHECK_SESSIONS" envDefault:"true"`
}

var _ GatewayConfig = Gateway{}

func (g Gateway) GetTenantHeader() string {
	return g.TenantHeader
}

func (g Gateway) GetIdentityHeader() string {
	return g.IdentityHeader
}

func (g Gateway) GetSkipAuthHeader() string {
	return g.SkipAuthHeader
}

func (g Gateway) GetRequestIDHeader() string {
	return g.RequestIDHeader
}

func (g Gateway) GetWhitelist() []string {
	return g.Whitelist
}

func (g Gateway) GetRoutes() map[string]string {
	return g.Routes
}

func (g Gateway) GetCheckSessions() bool {
	return g.CheckSessions
}
