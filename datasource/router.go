// Package datasource routes each request to the connection pool of its tenant's
// database, creating pools lazily and at most once per database name.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Pool is a live connection pool to one tenant database.
type Pool interface {
	Ping(ctx context.Context) error
	Close()
}

// Connector builds a candidate pool for a tenant database.
type Connector[P Pool] interface {
	Connect(ctx context.Context, tenant *tenants.Tenant) (P, error)
}

type ConnectorFunc[P Pool] func(ctx context.Context, tenant *tenants.Tenant) (P, error)

func (f ConnectorFunc[P]) Connect(ctx context.Context, tenant *tenants.Tenant) (P, error) {
	return f(ctx, tenant)
}

// Preparer readies a tenant database before its first pool is built.
type Preparer interface {
	Prepare(ctx context.Context, tenant *tenants.Tenant) error
}

// Router owns the process-wide database name to pool map.
type Router[P Pool] struct {
	registry        tenants.Repo
	connector       Connector[P]
	defaultDatabase string
	pools           sync.Map // database name -> P
	group           singleflight.Group
	preparer        atomic.Pointer[Preparer]
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

type RouterOption[P Pool] func(*Router[P])

func WithMetrics[P Pool](m *metrics.Metrics) RouterOption[P] {
	return func(r *Router[P]) {
		r.metrics = m
	}
}

func WithLogger[P Pool](logger zerolog.Logger) RouterOption[P] {
	return func(r *Router[P]) {
		r.logger = logger
	}
}

func NewRouter[P Pool](registry tenants.Repo, connector Connector[P], defaultDatabase string, options ...RouterOption[P]) *Router[P] {
	r := &Router[P]{
		registry:        registry,
		connector:       connector,
		defaultDatabase: defaultDatabase,
		logger:          zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// UsePreparer installs p to run before a tenant's first pool is built. It is
// meant to be called once during startup.
func (r *Router[P]) UsePreparer(p Preparer) {
	if p == nil {
		r.preparer.Store(nil)
		return
	}
	r.preparer.Store(&p)
}

// Lookup maps a tenant key to its registry entry. An empty key maps to the
// default database. A key with no registry row is not onboarded.
func (r *Router[P]) Lookup(ctx context.Context, key string) (*tenants.Tenant, error) {
	if key == "" {
		return &tenants.Tenant{DatabaseName: r.defaultDatabase, Onboarded: true}, nil
	}
	tenant, err := r.registry.Lookup(ctx, key)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrTenantNotFound) {
			return nil, apperrors.Wrap(apperrors.KindTenantNotOnboarded, apperrors.Wrapf(apperrors.ErrTenantNotOnboarded, "tenant %q", key), "Tenant not onboarded")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "Unable to look up tenant")
	}
	return tenant, nil
}

// Resolve returns the pool for the tenant identified by key, creating it on first use.
func (r *Router[P]) Resolve(ctx context.Context, key string) (P, error) {
	tenant, err := r.Lookup(ctx, key)
	if err != nil {
		var zero P
		return zero, err
	}
	return r.Pool(ctx, tenant)
}

// Pool returns the pool for tenant, running the preparer and connector when none
// exists yet. Concurrent first callers for one database share a single creation.
func (r *Router[P]) Pool(ctx context.Context, tenant *tenants.Tenant) (P, error) {
	return r.getOrCreate(ctx, tenant, tenant.Key != "")
}

// Register publishes a pool for an already prepared tenant.
func (r *Router[P]) Register(ctx context.Context, tenant *tenants.Tenant) error {
	_, err := r.getOrCreate(ctx, tenant, false)
	return err
}

func (r *Router[P]) getOrCreate(ctx context.Context, tenant *tenants.Tenant, prepare bool) (P, error) {
	name := tenant.DatabaseName
	if existing, ok := r.pools.Load(name); ok {
		return existing.(P), nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		if existing, ok := r.pools.Load(name); ok {
			return existing, nil
		}
		// shared by every waiter, so one caller going away must not fail the rest
		ctx := context.WithoutCancel(ctx)

		if prepare {
			if p := r.preparer.Load(); p != nil {
				if err := (*p).Prepare(ctx, tenant); err != nil {
					r.metrics.PoolFailed()
					return nil, poolFailure(apperrors.Wrapf(err, "prepare %s", name), "Unable to prepare tenant database")
				}
			}
		}

		candidate, err := r.connector.Connect(ctx, tenant)
		if err != nil {
			r.metrics.PoolFailed()
			return nil, poolFailure(apperrors.Wrapf(err, "connect %s", name), "Unable to connect to tenant database")
		}
		if err := candidate.Ping(ctx); err != nil {
			candidate.Close()
			r.metrics.PoolFailed()
			return nil, poolFailure(apperrors.Wrapf(err, "ping %s", name), "Unable to connect to tenant database")
		}

		actual, loaded := r.pools.LoadOrStore(name, candidate)
		if loaded {
			candidate.Close()
			r.metrics.PoolDiscarded()
			return actual, nil
		}
		r.metrics.PoolCreated()
		r.logger.Info().Str("tenant", tenant.Key).Str("database", name).Msg("tenant pool created")
		return candidate, nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("tenant", tenant.Key).Str("database", name).Msg("tenant pool creation failed")
		var zero P
		return zero, err
	}
	return v.(P), nil
}

func poolFailure(err error, message string) error {
	return apperrors.Wrap(apperrors.KindPoolCreationFailure, fmt.Errorf("%w: %w", apperrors.ErrPoolCreationFailure, err), message)
}

// Len returns the number of live pools.
func (r *Router[P]) Len() int {
	n := 0
	r.pools.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close closes and forgets every pool.
func (r *Router[P]) Close() {
	closed := 0
	r.pools.Range(func(key, value any) bool {
		if _, ok := r.pools.LoadAndDelete(key); ok {
			value.(P).Close()
			closed++
		}
		return true
	})
	r.metrics.PoolsClosed(closed)
}
