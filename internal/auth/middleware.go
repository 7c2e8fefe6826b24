package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/platform/httpx"
	"github.com/garrison-ops/garrison/internal/shared"
)

// UserLoader loads the authoritative user row for a verified subject.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
}

// Middleware authenticates bearer tokens and injects the caller
// identity. Role and base binding come from the store, not the token,
// so revoked or re-scoped users are picked up immediately.
type Middleware struct {
	Tokens *TokenManager
	Users  UserLoader
	Logger *slog.Logger
}

// Authenticate rejects requests without a valid bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid Authorization header")
			return
		}

		userID, err := m.Tokens.VerifyAccess(strings.TrimSpace(token))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired access token")
			return
		}

		user, err := m.Users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user not found")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("auth load user", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}

		ctx := shared.ContextWithIdentity(r.Context(), user.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route to the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := shared.IdentityFromContext(r.Context())
		if !ok || ident.Role != shared.RoleAdmin {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
