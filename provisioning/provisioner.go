// Package provisioning creates a tenant's schema and applies its migrations the
// first time the tenant is used.
package provisioning

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type SchemaManager interface {
	SchemaExists(ctx context.Context, schema string) (bool, error)
	CreateSchema(ctx context.Context, schema string) error
}

// Migrator applies the fixed tenant migration set to a schema.
type Migrator interface {
	Migrate(ctx context.Context, schema string) error
}

// Registrar publishes a pool for a prepared tenant.
type Registrar interface {
	Register(ctx context.Context, tenant *tenants.Tenant) error
}

type Provisioner struct {
	registry    tenants.Repo
	schemas     SchemaManager
	migrator    Migrator
	registrar   Registrar
	initialized sync.Map // schema -> struct{}
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

type Option func(*Provisioner)

func WithRegistrar(r Registrar) Option {
	return func(p *Provisioner) {
		p.registrar = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

func New(registry tenants.Repo, schemas SchemaManager, migrator Migrator, options ...Option) *Provisioner {
	p := &Provisioner{
		registry: registry,
		schemas:  schemas,
		migrator: migrator,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Onboard provisions the tenant registered under key and publishes its pool.
func (p *Provisioner) Onboard(ctx context.Context, key string) error {
	tenant, err := p.registry.Lookup(ctx, key)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrTenantNotFound) {
			return apperrors.Wrap(apperrors.KindTenantNotOnboarded, apperrors.Wrapf(apperrors.ErrTenantNotOnboarded, "tenant %q", key), "Tenant not onboarded")
		}
		return apperrors.Wrap(apperrors.KindInternal, err, "Unable to look up tenant")
	}

	if err := p.Prepare(ctx, tenant); err != nil {
		return err
	}
	if p.registrar == nil {
		return nil
	}
	return p.registrar.Register(ctx, tenant)
}

// Prepare makes sure the tenant's schema exists and is migrated. Success is
// remembered for the life of the process, and concurrent callers for the same
// schema share one run.
func (p *Provisioner) Prepare(ctx context.Context, tenant *tenants.Tenant) error {
	schema := tenant.DatabaseName
	if err := tenants.ValidateDatabaseName(schema); err != nil {
		return p.failed(p.logger.With().Str("tenant", tenant.Key).Logger(), err, "validate schema")
	}
	if p.Initialized(schema) {
		return nil
	}

	_, err, _ := p.group.Do(schema, func() (any, error) {
		if p.Initialized(schema) {
			return nil, nil
		}
		ctx := context.WithoutCancel(ctx)
		logger := p.logger.With().Str("tenant", tenant.Key).Str("schema", schema).Logger()

		exists, err := p.schemas.SchemaExists(ctx, schema)
		if err != nil {
			return nil, p.failed(logger, err, "check schema")
		}
		if !exists {
			if err := p.schemas.CreateSchema(ctx, schema); err != nil {
				return nil, p.failed(logger, err, "create schema")
			}
			logger.Info().Msg("tenant schema created")
		}
		if err := p.migrator.Migrate(ctx, schema); err != nil {
			return nil, p.failed(logger, err, "migrate schema")
		}

		p.initialized.Store(schema, struct{}{})
		p.metrics.Provisioned(true)
		logger.Info().Msg("tenant schema provisioned")
		return nil, nil
	})
	return err
}

// Initialized reports whether schema has been provisioned by this process.
func (p *Provisioner) Initialized(schema string) bool {
	_, ok := p.initialized.Load(schema)
	return ok
}

func (p *Provisioner) failed(logger zerolog.Logger, err error, step string) error {
	p.metrics.Provisioned(false)
	logger.Error().Err(err).Str("step", step).Msg("tenant provisioning failed")
	return apperrors.Wrap(apperrors.KindPoolCreationFailure, apperrors.Wrapf(err, "provisioning %s", step), "Unable to provision tenant database")
}
