package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/jrsteele09/workspark/users"
	"github.com/rs/zerolog"
)

const DefaultTenantAdminUsername = "admin"

// TenantOnboarder provisions a registered tenant and publishes its pool.
type TenantOnboarder interface {
	Onboard(ctx context.Context, key string) error
}

// SystemDeps are the collaborators InitialiseSystem needs.
type SystemDeps struct {
	Registry  tenants.Repo
	Onboarder TenantOnboarder
	Users     users.RepoSource
	Logger    zerolog.Logger
}

type SystemConfig interface {
	GetBaseURL() string
	GetBootstrapTenants() map[string]string
	GetTenantAdminPassword() string
}

// InitialiseSystem registers and onboards every bootstrap tenant and makes sure
// each one has an admin user. A configured admin password must pass
// users.ValidatePasswordStrength. Generated admin passwords are logged once.
func InitialiseSystem(ctx context.Context, config SystemConfig, deps SystemDeps) error {
	if password := config.GetTenantAdminPassword(); password != "" {
		if err := users.ValidatePasswordStrength(password); err != nil {
			return fmt.Errorf("[server InitialiseSystem] TENANT_ADMIN_PASSWORD: %w", err)
		}
	}

	bootstrap := config.GetBootstrapTenants()
	keys := make([]string, 0, len(bootstrap))
	for key := range bootstrap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		tenant := &tenants.Tenant{Key: key, DatabaseName: bootstrap[key], Onboarded: true}
		if err := deps.Registry.Upsert(ctx, tenant); err != nil {
			return fmt.Errorf("[server InitialiseSystem] failed to register tenant %s: %w", key, err)
		}
		if err := deps.Onboarder.Onboard(ctx, key); err != nil {
			return fmt.Errorf("[server InitialiseSystem] failed to onboard tenant %s: %w", key, err)
		}

		adminEmail := generateEmailFromBaseURL(DefaultTenantAdminUsername, key, config.GetBaseURL())
		generatedPassword, err := createTenantAdmin(tenants.WithKey(ctx, key), deps.Users, adminEmail, config.GetTenantAdminPassword())
		if err != nil {
			return fmt.Errorf("[server InitialiseSystem] failed to bootstrap admin for %s: %w", key, err)
		}

		deps.Logger.Info().Str("tenant", key).Str("database", tenant.DatabaseName).Msg("tenant ready")
		if generatedPassword != "" {
			deps.Logger.Info().
				Str("tenant", key).
				Str("email", adminEmail).
				Str("password", generatedPassword).
				Msg("tenant admin created")
		}
	}
	return nil
}

// createTenantAdmin creates the tenant admin user if none exists
func createTenantAdmin(ctx context.Context, source users.RepoSource, adminUserEmail, defaultPassword string) (generatedPassword string, err error) {
	repo, err := source.Users(ctx)
	if err != nil {
		return "", fmt.Errorf("[server createTenantAdmin] users: %w", err)
	}

	existingUser, err := repo.GetByEmail(ctx, adminUserEmail)
	if err == nil && existingUser != nil {
		return "", nil
	}
	if err != nil && !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return "", fmt.Errorf("[server createTenantAdmin] GetByEmail: %w", err)
	}

	generatedPassword = defaultPassword

	if generatedPassword == "" {
		// Generate a secure random password
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("[server createTenantAdmin] failed to generate password: %w", err)
		}
		generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)
	}

	// Hash the password
	passwordHash, err := users.HashPassword(generatedPassword)
	if err != nil {
		return "", fmt.Errorf("[server createTenantAdmin] failed to hash password: %w", err)
	}

	adminUser := &users.User{
		Email:        adminUserEmail,
		Name:         "Tenant Administrator",
		PasswordHash: passwordHash,
		Roles:        []users.RoleType{users.RoleTenantAdmin},
	}
	if err := repo.Upsert(ctx, adminUser); err != nil {
		return "", fmt.Errorf("[server createTenantAdmin] failed to create tenant admin: %w", err)
	}
	return generatedPassword, nil
}

// generateEmailFromBaseURL creates an email address on a tenant's subdomain
// Example: ("admin", "acme", "https://workspark.com/path") -> "admin@acme.workspark.com"
func generateEmailFromBaseURL(user, tenant, baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0] // Remove any path - safe because SplitN always returns at least 1 element
	domain = strings.SplitN(domain, ":", 2)[0] // Remove port if present
	return fmt.Sprintf("%s@%s.%s", user, tenant, domain)
}
