package provisioning_test

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/workspark/datasource"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/provisioning"
	schemarepofakes "github.com/jrsteele09/workspark/provisioning/repofakes"
	"github.com/jrsteele09/workspark/tenants"
	tenantrepofakes "github.com/jrsteele09/workspark/tenants/repofakes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	database string
}

func (p *fakePool) Ping(context.Context) error { return nil }
func (p *fakePool) Close()                     {}

type testFixture struct {
	registry    *tenantrepofakes.FakeTenantRepo
	schemas     *schemarepofakes.FakeSchemaManager
	migrator    *schemarepofakes.FakeMigrator
	metrics     *metrics.Metrics
	connects    atomic.Int64
	router      *datasource.Router[*fakePool]
	provisioner *provisioning.Provisioner
}

func setupTestFixture(t *testing.T, existingSchemas ...string) *testFixture {
	t.Helper()
	f := &testFixture{
		registry: tenantrepofakes.NewFakeTenantRepo(
			&tenants.Tenant{Key: "newco", DatabaseName: "newco_db", Onboarded: true},
			&tenants.Tenant{Key: "acme", DatabaseName: "acme_db", Onboarded: true},
		),
		schemas:  schemarepofakes.NewFakeSchemaManager(existingSchemas...),
		migrator: schemarepofakes.NewFakeMigrator(),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	connector := datasource.ConnectorFunc[*fakePool](func(_ context.Context, tenant *tenants.Tenant) (*fakePool, error) {
		f.connects.Add(1)
		time.Sleep(5 * time.Millisecond)
		return &fakePool{database: tenant.DatabaseName}, nil
	})
	f.router = datasource.NewRouter[*fakePool](f.registry, connector, "public")
	f.provisioner = provisioning.New(f.registry, f.schemas, f.migrator,
		provisioning.WithRegistrar(f.router),
		provisioning.WithMetrics(f.metrics),
	)
	f.router.UsePreparer(f.provisioner)
	t.Cleanup(f.router.Close)
	return f
}

func TestFirstRequestProvisionsTenant(t *testing.T) {
	f := setupTestFixture(t)

	pool, err := f.router.Resolve(context.Background(), "newco")
	require.NoError(t, err)
	require.Equal(t, "newco_db", pool.database)
	require.Equal(t, 1, f.schemas.Creates("newco_db"))
	require.Equal(t, 1, f.migrator.Runs("newco_db"))
	require.True(t, f.provisioner.Initialized("newco_db"))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProvisioningRuns.WithLabelValues("succeeded")))
}

func TestConcurrentFirstRequestsProvisionOnce(t *testing.T) {
	f := setupTestFixture(t)

	const callers = 40
	pools := make([]*fakePool, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pools[i], errs[i] = f.router.Resolve(context.Background(), "newco")
		}()
	}
	close(start)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Same(t, pools[0], pools[i])
	}
	require.Equal(t, 1, f.schemas.Creates("newco_db"))
	require.Equal(t, 1, f.migrator.Runs("newco_db"))
	require.Equal(t, int64(1), f.connects.Load())
}

func TestExistingSchemaIsMigratedNotCreated(t *testing.T) {
	f := setupTestFixture(t, "acme_db")

	require.NoError(t, f.provisioner.Onboard(context.Background(), "acme"))

	require.Equal(t, 0, f.schemas.Creates("acme_db"))
	require.Equal(t, 1, f.migrator.Runs("acme_db"))
	require.Equal(t, 1, f.router.Len())
}

func TestOnboardIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)

	for range 3 {
		require.NoError(t, f.provisioner.Onboard(context.Background(), "newco"))
	}
	_, err := f.router.Resolve(context.Background(), "newco")
	require.NoError(t, err)

	require.Equal(t, 1, f.schemas.Creates("newco_db"))
	require.Equal(t, 1, f.migrator.Runs("newco_db"))
	require.Equal(t, int64(1), f.connects.Load())
}

func TestOnboardUnknownTenant(t *testing.T) {
	f := setupTestFixture(t)

	err := f.provisioner.Onboard(context.Background(), "initech")
	require.Error(t, err)
	require.Equal(t, apperrors.KindTenantNotOnboarded, apperrors.KindOf(err))
	require.Equal(t, 0, f.router.Len())
}

func TestFailedMigrationIsRetried(t *testing.T) {
	f := setupTestFixture(t)
	f.migrator.Fail("newco_db", errors.New("syntax error"))

	_, err := f.router.Resolve(context.Background(), "newco")
	require.Error(t, err)
	require.Equal(t, apperrors.KindPoolCreationFailure, apperrors.KindOf(err))
	require.False(t, f.provisioner.Initialized("newco_db"))
	require.Equal(t, 0, f.router.Len())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProvisioningRuns.WithLabelValues("failed")))

	f.migrator.Fail("newco_db", nil)
	_, err = f.router.Resolve(context.Background(), "newco")
	require.NoError(t, err)
	require.Equal(t, 1, f.schemas.Creates("newco_db"))
	require.Equal(t, 2, f.migrator.Runs("newco_db"))
}

func TestInvalidSchemaNameIsNotProvisioned(t *testing.T) {
	f := setupTestFixture(t)

	for _, name := range []string{"Acme", "acme-db", `acme"; drop schema public; --`} {
		err := f.provisioner.Prepare(context.Background(), &tenants.Tenant{Key: "acme", DatabaseName: name})
		require.ErrorIs(t, err, tenants.ErrInvalidDatabaseName)
		require.Equal(t, apperrors.KindPoolCreationFailure, apperrors.KindOf(err))
		require.Equal(t, 0, f.schemas.Creates(name))
		require.Equal(t, 0, f.migrator.Runs(name))
		require.False(t, f.provisioner.Initialized(name))
	}
}

func TestGooseMigratorRejectsInvalidSchemaName(t *testing.T) {
	var configured atomic.Int64
	migrator := provisioning.NewGooseMigrator(func(string) (*pgxpool.Config, error) {
		configured.Add(1)
		return nil, errors.New("not reached")
	}, provisioning.TenantMigrations(), zerolog.Nop())

	err := migrator.Migrate(context.Background(), "Acme-DB")
	require.ErrorIs(t, err, tenants.ErrInvalidDatabaseName)
	require.Equal(t, int64(0), configured.Load())
}

func TestSlowTenantDoesNotBlockOthers(t *testing.T) {
	f := setupTestFixture(t)
	release := make(chan struct{})
	f.migrator.Block("newco_db", release)

	slow := make(chan error, 1)
	go func() {
		_, err := f.router.Resolve(context.Background(), "newco")
		slow <- err
	}()

	done := make(chan error, 1)
	go func() {
		_, err := f.router.Resolve(context.Background(), "acme")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("acme was blocked by newco provisioning")
	}

	close(release)
	require.NoError(t, <-slow)
	require.Equal(t, 2, f.router.Len())
}

func TestEmbeddedMigrations(t *testing.T) {
	tenantFiles, err := fs.Glob(provisioning.TenantMigrations(), "*.sql")
	require.NoError(t, err)
	require.Contains(t, tenantFiles, "00001_init.sql")

	registryFiles, err := fs.Glob(provisioning.RegistryMigrations(), "*.sql")
	require.NoError(t, err)
	require.Contains(t, registryFiles, "00001_tenants.sql")

	require.Equal(t, "acme_db.goose_db_version", provisioning.VersionTable("acme_db"))
}
