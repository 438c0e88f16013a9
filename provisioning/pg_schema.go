package provisioning

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
)

// Execer is the subset of *pgxpool.Pool used by PgSchemaManager.
type Execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgSchemaManager manages tenant schemas in the shared Postgres database.
type PgSchemaManager struct {
	db Execer
}

var _ SchemaManager = (*PgSchemaManager)(nil)

func NewPgSchemaManager(db Execer) *PgSchemaManager {
	return &PgSchemaManager{db: db}
}

func (m *PgSchemaManager) SchemaExists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrapf(err, "PgSchemaManager.SchemaExists %s", schema)
	}
	return exists, nil
}

func (m *PgSchemaManager) CreateSchema(ctx context.Context, schema string) error {
	if _, err := m.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return apperrors.Wrapf(err, "PgSchemaManager.CreateSchema %s", schema)
	}
	return nil
}
