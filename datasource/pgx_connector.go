package datasource

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
)

type PgxConfig struct {
	ConnectionString  string
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
}

// PgxConnector opens a pgxpool whose connections default to the tenant's schema.
type PgxConnector struct {
	config PgxConfig
}

var _ Connector[*pgxpool.Pool] = (*PgxConnector)(nil)

func NewPgxConnector(config PgxConfig) *PgxConnector {
	return &PgxConnector{config: config}
}

func (c *PgxConnector) Connect(ctx context.Context, tenant *tenants.Tenant) (*pgxpool.Pool, error) {
	poolConfig, err := c.PoolConfig(tenant.DatabaseName)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.Wrapf(err, "PgxConnector.Connect %s", tenant.DatabaseName)
	}
	return pool, nil
}

// PoolConfig returns the pgxpool configuration for schema.
func (c *PgxConnector) PoolConfig(schema string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.config.ConnectionString)
	if err != nil {
		return nil, apperrors.Wrapf(err, "PgxConnector.PoolConfig")
	}
	if c.config.MaxConns > 0 {
		poolConfig.MaxConns = c.config.MaxConns
	}
	if c.config.MinConns > 0 {
		poolConfig.MinConns = c.config.MinConns
	}
	if c.config.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = c.config.HealthCheckPeriod
	}
	poolConfig.ConnConfig.RuntimeParams["search_path"] = pgx.Identifier{schema}.Sanitize()
	return poolConfig, nil
}
