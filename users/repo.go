package users

import "context"

// UserRepo reads and writes the users of one tenant. GetByEmail returns
// errors.ErrUserNotFound from internal/errors on a miss.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// RepoSource returns the UserRepo of the tenant bound to ctx.
type RepoSource interface {
	Users(ctx context.Context) (UserRepo, error)
}

type RepoSourceFunc func(ctx context.Context) (UserRepo, error)

func (f RepoSourceFunc) Users(ctx context.Context) (UserRepo, error) {
	return f(ctx)
}
