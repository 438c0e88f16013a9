package tenants

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// ErrInvalidDatabaseName is returned for registry rows whose database name is not
// a plain lower case Postgres identifier.
var ErrInvalidDatabaseName = errors.New("invalid tenant database name")

// databaseName must be usable unquoted as a schema name, so the schema created for
// it and the goose version table inside it resolve to the same identifier.
var databaseName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Tenant is a row of the master tenant registry. Key is the subdomain a tenant is
// reached on and DatabaseName is the schema holding its data.
type Tenant struct {
	Key          string `json:"key"`
	DatabaseName string `json:"database_name"`
	Onboarded    bool   `json:"onboarded"`
}

// ValidateDatabaseName accepts lower case letters, digits and underscores, not
// starting with a digit, at most 63 bytes long.
func ValidateDatabaseName(name string) error {
	if !databaseName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidDatabaseName, name)
	}
	return nil
}

// Validate checks a registry row before it is stored or provisioned.
func (t *Tenant) Validate() error {
	if t.Key == "" {
		return errors.New("tenant key is required")
	}
	return ValidateDatabaseName(t.DatabaseName)
}

// ResolveKey derives the tenant key from a Host header value. Any port is stripped
// and the left-most dot separated label is returned. An empty host, an IP
// literal, or a host whose first label is empty resolves to nothing. The label is
// returned as sent.
func ResolveKey(host string) (string, bool) {
	host = stripPort(host)
	if host == "" || isIPLiteral(host) {
		return "", false
	}
	key, _, _ := strings.Cut(host, ".")
	if key == "" {
		return "", false
	}
	return key, true
}

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			return host[:end+1]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

func isIPLiteral(host string) bool {
	if strings.HasPrefix(host, "[") {
		return true
	}
	_, err := netip.ParseAddr(host)
	return err == nil
}
