package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/shared"
)

type staticAccess struct {
	grants map[uuid.UUID][]uuid.UUID
	err    error
	calls  int
}

func (a *staticAccess) BasesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.grants[userID], nil
}

func TestAdminResolvesUnrestricted(t *testing.T) {
	resolver := NewResolver(&staticAccess{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Unrestricted())
	require.True(t, s.Allows(uuid.New()))
}

func TestCommanderResolvesBoundBaseOnly(t *testing.T) {
	resolver := NewResolver(&staticAccess{})
	baseID := uuid.New()
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander, BaseID: baseID}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Allows(baseID))
	require.False(t, s.Allows(uuid.New()))
	require.NoError(t, s.Require(baseID))
	require.ErrorIs(t, s.Require(uuid.New()), shared.ErrForbidden)
}

func TestUnboundCommanderFailsClosed(t *testing.T) {
	resolver := NewResolver(&staticAccess{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Empty())
	require.ErrorIs(t, s.Require(uuid.New()), shared.ErrForbidden)
}

func TestLogisticsResolvesViaAccessMapping(t *testing.T) {
	userID := uuid.New()
	granted := []uuid.UUID{uuid.New(), uuid.New()}
	resolver := NewResolver(&staticAccess{grants: map[uuid.UUID][]uuid.UUID{userID: granted}})
	ident := shared.Identity{UserID: userID, Role: shared.RoleLogisticsOfficer, BaseID: uuid.New()}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	for _, id := range granted {
		require.True(t, s.Allows(id))
	}
	// The bound base does not leak in when explicit grants exist.
	require.False(t, s.Allows(ident.BaseID))
}

func TestLogisticsFallsBackToBoundBase(t *testing.T) {
	baseID := uuid.New()
	resolver := NewResolver(&staticAccess{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer, BaseID: baseID}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Allows(baseID))
	require.False(t, s.Allows(uuid.New()))
}

func TestLogisticsWithoutGrantsOrBaseIsEmpty(t *testing.T) {
	resolver := NewResolver(&staticAccess{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Empty())
}

func TestUnknownRoleResolvesEmpty(t *testing.T) {
	resolver := NewResolver(&staticAccess{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.Role("OBSERVER"), BaseID: uuid.New()}

	s, err := resolver.Resolve(context.Background(), ident)
	require.NoError(t, err)
	require.True(t, s.Empty())
}

func TestAccessMappingErrorPropagates(t *testing.T) {
	resolver := NewResolver(&staticAccess{err: errors.New("mapping down")})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}

	_, err := resolver.Resolve(context.Background(), ident)
	require.Error(t, err)
}
