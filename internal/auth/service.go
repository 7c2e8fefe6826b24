package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garrison-ops/garrison/internal/shared"
)

// UserStore abstracts user persistence for the service.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
}

// Service implements credential verification and user provisioning.
// Deliberately thin: all inventory authorization lives in the scope
// resolver and per-operation contracts.
type Service struct {
	store  UserStore
	tokens *TokenManager
}

// NewService constructs a Service.
func NewService(store UserStore, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

// TokenPair is the login/refresh result.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, TokenPair{}, shared.ErrInvalidCredentials
		}
		return User{}, TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, TokenPair{}, shared.ErrInvalidCredentials
	}
	pair, err := s.issue(user.ID)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return TokenPair{}, shared.ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return s.issue(userID)
}

func (s *Service) issue(userID uuid.UUID) (TokenPair, error) {
	access, err := s.tokens.SignAccess(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: sign access: %w", err)
	}
	refresh, err := s.tokens.SignRefresh(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: sign refresh: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Register provisions a user. Commanders must be bound to a base.
func (s *Service) Register(ctx context.Context, email, password string, role shared.Role, baseID uuid.UUID) (User, error) {
	switch role {
	case shared.RoleAdmin, shared.RoleBaseCommander, shared.RoleLogisticsOfficer:
	default:
		return User{}, fmt.Errorf("invalid role %q: %w", role, shared.ErrValidation)
	}
	if role == shared.RoleBaseCommander && baseID == uuid.Nil {
		return User{}, fmt.Errorf("base_id is required for %s: %w", shared.RoleBaseCommander, shared.ErrValidation)
	}
	if len(password) < 6 {
		return User{}, fmt.Errorf("password must be at least 6 chars: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.store.Create(ctx, User{
		Email:        email,
		Role:         role,
		BaseID:       baseID,
		PasswordHash: string(hash),
	})
}
