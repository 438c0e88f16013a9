package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
)

// Querier is the subset of *pgxpool.Pool used by PgRepo. The pool's search_path
// selects the tenant schema.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepo struct {
	db Querier
}

var _ UserRepo = (*PgRepo)(nil)

func NewPgRepo(db Querier) *PgRepo {
	return &PgRepo{db: db}
}

const userColumns = `id, email, name, password_hash, roles, blocked, created_at`

func (r *PgRepo) Upsert(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, roles, blocked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			roles = EXCLUDED.roles,
			blocked = EXCLUDED.blocked`,
		user.ID, user.Email, user.Name, user.PasswordHash, roleStrings(user.Roles), user.Blocked,
	)
	if err != nil {
		return apperrors.Wrapf(err, "PgRepo.Upsert %s", user.Email)
	}
	return nil
}

func (r *PgRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "PgRepo.GetByEmail %s", email)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u     User
		roles []string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &roles, &u.Blocked, &u.CreatedAt); err != nil {
		return nil, err
	}
	for _, r := range roles {
		u.Roles = append(u.Roles, RoleType(r))
	}
	return &u, nil
}

func roleStrings(roles []RoleType) []string {
	result := make([]string, 0, len(roles))
	for _, r := range roles {
		result = append(result, string(r))
	}
	return result
}
