package equipment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/shared"
)

type memoryStore struct {
	types []Type
}

func (m *memoryStore) Create(_ context.Context, t Type) (Type, error) {
	t.ID = uuid.New()
	m.types = append(m.types, t)
	return t, nil
}

func (m *memoryStore) List(context.Context) ([]Type, error) {
	return m.types, nil
}

func TestCreateCarriesSerializationFlag(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}
	unit := "each"

	created, err := svc.Create(context.Background(), ident, CreateTypeRequest{
		Name:         "Rifle M4",
		Category:     "WEAPON",
		Unit:         &unit,
		IsSerialized: true,
	})
	require.NoError(t, err)
	require.True(t, created.IsSerialized)

	bulk, err := svc.Create(context.Background(), ident, CreateTypeRequest{
		Name:     "5.56mm Rounds",
		Category: "AMMUNITION",
	})
	require.NoError(t, err)
	require.False(t, bulk.IsSerialized)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.True(t, listed[0].IsSerialized)
	require.False(t, listed[1].IsSerialized)
}

func TestCreateRequiresAdmin(t *testing.T) {
	svc := NewService(&memoryStore{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}

	_, err := svc.Create(context.Background(), ident, CreateTypeRequest{Name: "Radio", Category: "COMMS"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc := NewService(&memoryStore{})
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	_, err := svc.Create(context.Background(), ident, CreateTypeRequest{Category: "COMMS"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), ident, CreateTypeRequest{Name: "Radio"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
