package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role enumerates the caller roles known to the system.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleBaseCommander    Role = "BASE_COMMANDER"
	RoleLogisticsOfficer Role = "LOGISTICS_OFFICER"
)

// Identity describes the authenticated caller for the current request.
// BaseID is the caller's bound home base, zero when unbound.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   Role
	BaseID uuid.UUID
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(Identity)
	return ident, ok
}
