package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

// User is an authenticated principal. BaseID is uuid.Nil for users not
// bound to a home base.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	Role         shared.Role `json:"role"`
	BaseID       uuid.UUID   `json:"base_id,omitempty"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Identity converts the user row into the request identity.
func (u User) Identity() shared.Identity {
	return shared.Identity{UserID: u.ID, Email: u.Email, Role: u.Role, BaseID: u.BaseID}
}
