package tenantrepofakes

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
	lookups atomic.Int64
}

func NewFakeTenantRepo(initial ...*tenants.Tenant) *FakeTenantRepo {
	tr := &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
	}
	for _, t := range initial {
		tr.tenants[t.Key] = t
	}
	return tr
}

func (tr *FakeTenantRepo) Lookup(_ context.Context, key string) (*tenants.Tenant, error) {
	tr.lookups.Add(1)
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	t, ok := tr.tenants[key]
	if !ok {
		return nil, apperrors.ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

func (tr *FakeTenantRepo) Upsert(_ context.Context, t *tenants.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	copied := *t
	tr.tenants[t.Key] = &copied
	return nil
}

// Lookups returns how many times Lookup has been called.
func (tr *FakeTenantRepo) Lookups() int64 {
	return tr.lookups.Load()
}
