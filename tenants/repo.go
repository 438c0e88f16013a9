package tenants

import "context"

// Repo is the master tenant registry. Lookup returns errors.ErrTenantNotFound
// from internal/errors when no row exists for the key. Upsert rejects rows that
// fail Tenant.Validate.
type Repo interface {
	Lookup(ctx context.Context, key string) (*Tenant, error)
	Upsert(ctx context.Context, tenant *Tenant) error
}
