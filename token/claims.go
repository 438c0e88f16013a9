package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/workspark/internal/utils"
	"github.com/jrsteele09/workspark/sessions"
)

const (
	claimSubject   = "sub"
	claimName      = "name"
	claimEmail     = "email"
	claimRoles     = "roles"
	claimSessionID = "uuid"
	claimTenant    = "tenant"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
)

// Claims is the decoded form of an access or refresh token.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	Roles     []string
	SessionID string
	Tenant    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Profile rebuilds the session profile embedded in the token.
func (c *Claims) Profile() sessions.Profile {
	return sessions.Profile{
		Name:  c.Name,
		Email: c.Email,
		Roles: c.Roles,
	}
}

func claimsFromMap(m jwt.MapClaims) *Claims {
	c := &Claims{}
	c.Subject, _ = m[claimSubject].(string)
	c.Name, _ = m[claimName].(string)
	c.Email, _ = m[claimEmail].(string)
	c.SessionID, _ = m[claimSessionID].(string)
	c.Tenant, _ = m[claimTenant].(string)
	if roles, ok := m[claimRoles].([]any); ok {
		c.Roles = utils.ToStringSlice(roles)
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time.UTC()
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time.UTC()
	}
	return c
}
