package datasource

import (
	"context"
	"net/http"

	"github.com/jrsteele09/workspark/internal/envelope"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
)

// retryAfterSeconds is sent with failures a later request may not hit.
const retryAfterSeconds = "1"

type poolKey struct{}
type tenantKey struct{}

func WithPool[P Pool](ctx context.Context, pool P) context.Context {
	return context.WithValue(ctx, poolKey{}, pool)
}

func PoolFromContext[P Pool](ctx context.Context) (P, bool) {
	pool, ok := ctx.Value(poolKey{}).(P)
	return pool, ok
}

func WithTenant(ctx context.Context, tenant *tenants.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the registry entry the request was bound to.
func TenantFromContext(ctx context.Context) (*tenants.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(*tenants.Tenant)
	return tenant, ok && tenant != nil
}

// Bind resolves the pool for the tenant key in the request context and makes it
// available to handlers through PoolFromContext.
func (r *Router[P]) Bind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		key, _ := tenants.KeyFromContext(ctx)

		tenant, err := r.Lookup(ctx, key)
		if err != nil {
			bindFailed(ctx, w, key, err)
			return
		}
		pool, err := r.Pool(ctx, tenant)
		if err != nil {
			bindFailed(ctx, w, key, err)
			return
		}

		ctx = WithTenant(ctx, tenant)
		ctx = WithPool(ctx, pool)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bindFailed(ctx context.Context, w http.ResponseWriter, key string, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Str("tenant", key).Msg("unable to bind tenant data source")
	if apperrors.KindOf(err).Recoverable() {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	envelope.WriteError(w, err)
}
