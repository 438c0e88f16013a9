package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
)

// RegistryTable is the fully qualified master registry table.
const RegistryTable = "public.tenants"

// Querier is the subset of *pgxpool.Pool used by PgRepo.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepo reads the tenant registry from the shared Postgres database.
type PgRepo struct {
	db Querier
}

var _ Repo = (*PgRepo)(nil)

func NewPgRepo(db Querier) *PgRepo {
	return &PgRepo{db: db}
}

func (r *PgRepo) Lookup(ctx context.Context, key string) (*Tenant, error) {
	query := fmt.Sprintf(`SELECT subdomain, database_name, onboarded FROM %s WHERE subdomain = $1`, RegistryTable)

	var t Tenant
	err := r.db.QueryRow(ctx, query, key).Scan(&t.Key, &t.DatabaseName, &t.Onboarded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrapf(apperrors.ErrTenantNotFound, "tenant %q", key)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "PgRepo.Lookup %q", key)
	}
	if err := ValidateDatabaseName(t.DatabaseName); err != nil {
		return nil, apperrors.Wrapf(err, "PgRepo.Lookup %q", key)
	}
	return &t, nil
}

func (r *PgRepo) Upsert(ctx context.Context, t *Tenant) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (subdomain, database_name, onboarded) VALUES ($1, $2, $3)
		ON CONFLICT (subdomain) DO UPDATE SET database_name = EXCLUDED.database_name, onboarded = EXCLUDED.onboarded`,
		RegistryTable)

	if err := t.Validate(); err != nil {
		return apperrors.Wrapf(err, "PgRepo.Upsert")
	}
	if _, err := r.db.Exec(ctx, query, t.Key, t.DatabaseName, t.Onboarded); err != nil {
		return apperrors.Wrapf(err, "PgRepo.Upsert %q", t.Key)
	}
	return nil
}
