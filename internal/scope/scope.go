// Package scope resolves the set of bases a caller may act on.
package scope

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Scope is either unrestricted (admin) or an explicit, possibly empty,
// set of base identifiers.
type Scope struct {
	all   bool
	bases map[uuid.UUID]struct{}
}

// Unrestricted returns the sentinel scope that allows every base.
func Unrestricted() Scope {
	return Scope{all: true}
}

// Restricted returns a scope allowing exactly the given bases.
func Restricted(baseIDs ...uuid.UUID) Scope {
	bases := make(map[uuid.UUID]struct{}, len(baseIDs))
	for _, id := range baseIDs {
		if id != uuid.Nil {
			bases[id] = struct{}{}
		}
	}
	return Scope{bases: bases}
}

// Unrestricted reports whether the scope allows every base.
func (s Scope) Unrestricted() bool { return s.all }

// Allows reports whether the scope permits acting on baseID.
func (s Scope) Allows(baseID uuid.UUID) bool {
	if s.all {
		return true
	}
	_, ok := s.bases[baseID]
	return ok
}

// Empty reports whether the scope permits no base at all.
func (s Scope) Empty() bool { return !s.all && len(s.bases) == 0 }

// BaseIDs returns the explicit base set. Callers must check
// Unrestricted first; an unrestricted scope has no explicit set.
func (s Scope) BaseIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.bases))
	for id := range s.bases {
		ids = append(ids, id)
	}
	return ids
}

// Require returns ErrForbidden unless the scope permits baseID. Scope
// violations are explicit denials, never silent filters.
func (s Scope) Require(baseID uuid.UUID) error {
	if s.Allows(baseID) {
		return nil
	}
	return fmt.Errorf("no access to base %s: %w", baseID, shared.ErrForbidden)
}

// AccessReader loads the many-to-many base grants for a user.
type AccessReader interface {
	BasesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// roleResolver is the per-role scope contract. Adding a role means
// adding a variant here, not editing branch chains.
type roleResolver interface {
	resolve(ctx context.Context, access AccessReader, ident shared.Identity) (Scope, error)
}

type adminRole struct{}

func (adminRole) resolve(context.Context, AccessReader, shared.Identity) (Scope, error) {
	return Unrestricted(), nil
}

type commanderRole struct{}

// Commanders see exactly their bound base. Unbound commanders fail closed.
func (commanderRole) resolve(_ context.Context, _ AccessReader, ident shared.Identity) (Scope, error) {
	if ident.BaseID == uuid.Nil {
		return Restricted(), nil
	}
	return Restricted(ident.BaseID), nil
}

type logisticsRole struct{}

// Logistics officers resolve via the access mapping, falling back to
// their bound base when the mapping is empty.
func (logisticsRole) resolve(ctx context.Context, access AccessReader, ident shared.Identity) (Scope, error) {
	baseIDs, err := access.BasesForUser(ctx, ident.UserID)
	if err != nil {
		return Scope{}, fmt.Errorf("scope: access mapping: %w", err)
	}
	if len(baseIDs) > 0 {
		return Restricted(baseIDs...), nil
	}
	if ident.BaseID != uuid.Nil {
		return Restricted(ident.BaseID), nil
	}
	return Restricted(), nil
}

var roleResolvers = map[shared.Role]roleResolver{
	shared.RoleAdmin:            adminRole{},
	shared.RoleBaseCommander:    commanderRole{},
	shared.RoleLogisticsOfficer: logisticsRole{},
}

// Resolver computes caller scopes from role plus the access mapping.
type Resolver struct {
	access AccessReader
}

// NewResolver constructs a Resolver.
func NewResolver(access AccessReader) *Resolver {
	return &Resolver{access: access}
}

// Resolve returns the caller's scope. Unknown roles resolve to the
// empty scope.
func (r *Resolver) Resolve(ctx context.Context, ident shared.Identity) (Scope, error) {
	variant, ok := roleResolvers[ident.Role]
	if !ok {
		return Restricted(), nil
	}
	return variant.resolve(ctx, r.access, ident)
}
