package config

import "time"

type StorageConfig interface {
	GetDatabaseURL() string
	GetMaxConns() int32
	GetMinConns() int32
	GetHealthCheckPeriod() time.Duration
	GetDefaultDatabase() string
	GetRedisURL() string
	GetSessionTTL() time.Duration
	GetSessionKeyPrefix() string
	GetBootstrapTenants() map[string]string
	GetTenantAdminPassword() string
}

// Storage configures the shared Postgres cluster and the Redis session cache.
// Each tenant database name maps to a schema inside DatabaseURL.
type Storage struct {
	DatabaseURL       string        `env:"PG_CONN_URL"`
	MaxConns          int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"PG_MIN_CONNS" envDefault:"1"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	DefaultDatabase   string        `env:"TENANT_DEFAULT_DATABASE" envDefault:"public"`
	RedisURL          string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionKeyPrefix  string        `env:"SESSION_KEY_PREFIX" envDefault:"session:"`

	// BootstrapTenants maps tenant keys to database names registered and onboarded at startup.
	BootstrapTenants    map[string]string `env:"TENANT_BOOTSTRAP" envSeparator:"," envKeyValSeparator:"="`
	TenantAdminPassword string            `env:"TENANT_ADMIN_PASSWORD"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) GetMaxConns() int32 {
	return s.MaxConns
}

func (s Storage) GetMinConns() int32 {
	return s.MinConns
}

func (s Storage) GetHealthCheckPeriod() time.Duration {
	return s.HealthCheckPeriod
}

func (s Storage) GetDefaultDatabase() string {
	return s.DefaultDatabase
}

func (s Storage) GetRedisURL() string {
	return s.RedisURL
}

func (s Storage) GetSessionTTL() time.Duration {
	return s.SessionTTL
}

func (s Storage) GetSessionKeyPrefix() string {
	return s.SessionKeyPrefix
}

func (s Storage) GetBootstrapTenants() map[string]string {
	return s.BootstrapTenants
}

func (s Storage) GetTenantAdminPassword() string {
	return s.TenantAdminPassword
}
