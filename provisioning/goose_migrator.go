package provisioning

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/rs/zerolog"
)

//go:embed migrations/tenant/*.sql migrations/registry/*.sql
var migrations embed.FS

// TenantMigrations is the fixed migration set applied to every tenant schema.
func TenantMigrations() fs.FS {
	return mustSub("migrations/tenant")
}

// RegistryMigrations creates the master tenant registry in the default schema.
func RegistryMigrations() fs.FS {
	return mustSub("migrations/registry")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// PoolConfigFunc returns a pool configuration whose connections default to schema.
type PoolConfigFunc func(schema string) (*pgxpool.Config, error)

// GooseMigrator runs goose migrations inside a single schema. Each schema keeps
// its own version table.
type GooseMigrator struct {
	poolConfig PoolConfigFunc
	migrations fs.FS
	logger     zerolog.Logger
}

var _ Migrator = (*GooseMigrator)(nil)

func NewGooseMigrator(poolConfig PoolConfigFunc, migrations fs.FS, logger zerolog.Logger) *GooseMigrator {
	return &GooseMigrator{
		poolConfig: poolConfig,
		migrations: migrations,
		logger:     logger,
	}
}

func (m *GooseMigrator) Migrate(ctx context.Context, schema string) error {
	if err := tenants.ValidateDatabaseName(schema); err != nil {
		return apperrors.Wrapf(err, "GooseMigrator.Migrate")
	}
	config, err := m.poolConfig(schema)
	if err != nil {
		return err
	}
	config.MaxConns = 1
	config.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return apperrors.Wrapf(err, "GooseMigrator.Migrate connect %s", schema)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			m.logger.Error().Err(err).Str("schema", schema).Msg("failed to close migration connection")
		}
	}()

	store, err := database.NewStore(database.DialectPostgres, VersionTable(schema))
	if err != nil {
		return apperrors.Wrapf(err, "GooseMigrator.Migrate store %s", schema)
	}
	provider, err := goose.NewProvider("", db, m.migrations, goose.WithStore(store))
	if err != nil {
		return apperrors.Wrapf(err, "GooseMigrator.Migrate provider %s", schema)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return apperrors.Wrapf(err, "GooseMigrator.Migrate up %s", schema)
	}
	for _, r := range results {
		m.logger.Info().
			Str("schema", schema).
			Int64("version", r.Source.Version).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}
	return nil
}

// VersionTable returns the goose version table for schema. goose splits the name
// on the dot and does not quote it, so callers validate schema with
// tenants.ValidateDatabaseName first.
func VersionTable(schema string) string {
	return schema + ".goose_db_version"
}
