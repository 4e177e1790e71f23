package shared

import "context"

// Role identifies what an authenticated account may do. It is stored
// explicitly on every account at creation time.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDealer         Role = "dealer"
	RoleVisitor        Role = "visitor"
	RoleAccountManager Role = "account-management"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDealer, RoleVisitor, RoleAccountManager:
		return true
	}
	return false
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	SessionID string `json:"-"`
}

// Is reports whether the principal holds any of roles.
func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.AccountID != ""
}
