package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jrsteele09/workspark/sessions"
	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user role within a tenant
type RoleType string

const (
	RoleTenantAdmin  RoleType = "tenant_admin"  // Can manage users, categories and settings within a tenant
	RoleTenantUser   RoleType = "tenant_user"   // Regular user within a tenant
	RoleTenantViewer RoleType = "tenant_viewer" // Read-only access within a tenant
)

// User is a member of a single tenant. Users live in the tenant's own schema.
type User struct {
	ID           string     `json:"id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	Roles        []RoleType `json:"roles,omitempty"`
	Blocked      bool       `json:"blocked,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

// ErrWeakPassword is returned for a password that would not be accepted for a
// tenant account.
var ErrWeakPassword = errors.New("weak password")

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
)

// ValidatePasswordStrength requires minPasswordLength characters with an upper
// case letter, a lower case letter and a digit. Every missing requirement is
// named in the returned error.
func ValidatePasswordStrength(password string) error {
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, maxPasswordBytes)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var missing []string
	if utf8.RuneCountInString(password) < minPasswordLength {
		missing = append(missing, fmt.Sprintf("%d characters", minPasswordLength))
	}
	if !upper {
		missing = append(missing, "an upper case letter")
	}
	if !lower {
		missing = append(missing, "a lower case letter")
	}
	if !digit {
		missing = append(missing, "a digit")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", ErrWeakPassword, strings.Join(missing, ", "))
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Profile is the identity captured into a session when the user signs in.
func (u *User) Profile() sessions.Profile {
	return sessions.Profile{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Roles:  roleStrings(u.Roles),
	}
}
