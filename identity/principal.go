package identity

import "context"

// Principal is the caller a downstream handler acts for.
type Principal struct {
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId,omitempty"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	System    bool     `json:"system"`
}

// SystemPrincipal is assigned to trusted service-to-service calls.
var SystemPrincipal = Principal{
	UserID: "system",
	Name:   "system",
	Roles:  []string{"system"},
	System: true,
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
