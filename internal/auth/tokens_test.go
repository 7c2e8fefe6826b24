package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/shared"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Minute, time.Hour)
	userID := uuid.New()

	signed, err := tokens.SignAccess(userID)
	require.NoError(t, err)

	got, err := tokens.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

func TestRefreshTokenCannotActAsAccess(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Minute, time.Hour)
	userID := uuid.New()

	refresh, err := tokens.SignRefresh(userID)
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(refresh)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	got, err := tokens.VerifyRefresh(refresh)
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

func TestExpiredTokenRejected(t *testing.T) {
	tokens := NewTokenManager("test-secret", -time.Minute, time.Hour)

	signed, err := tokens.SignAccess(uuid.New())
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(signed)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTamperedTokenRejected(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Minute, time.Hour)
	other := NewTokenManager("other-secret", time.Minute, time.Hour)

	signed, err := other.SignAccess(uuid.New())
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(signed)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
