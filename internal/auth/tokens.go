package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the bearer tokens. Claims carry only
// the subject; role and base scope are re-read from the store on every
// request so a stale token cannot carry stale authority.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// SignAccess issues a short-lived access token for the user.
func (m *TokenManager) SignAccess(userID uuid.UUID) (string, error) {
	return m.sign(userID, tokenTypeAccess, m.accessTTL)
}

// SignRefresh issues a refresh token. The type claim prevents a refresh
// token from being replayed as an access token.
func (m *TokenManager) SignRefresh(userID uuid.UUID) (string, error) {
	return m.sign(userID, tokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) sign(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyAccess validates an access token and returns its subject.
func (m *TokenManager) VerifyAccess(token string) (uuid.UUID, error) {
	return m.verify(token, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its subject.
func (m *TokenManager) VerifyRefresh(token string) (uuid.UUID, error) {
	return m.verify(token, tokenTypeRefresh)
}

func (m *TokenManager) verify(token, wantType string) (uuid.UUID, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", shared.ErrUnauthorized)
	}
	if claims.TokenType != wantType {
		return uuid.Nil, fmt.Errorf("wrong token type: %w", shared.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", shared.ErrUnauthorized)
	}
	return userID, nil
}
