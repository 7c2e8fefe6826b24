package scope

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCacheFixture(t *testing.T, source AccessReader) (*CachedAccessReader, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCachedAccessReader(source, client, time.Minute, nil), srv
}

func TestCachedReaderServesFromCacheAfterMiss(t *testing.T) {
	userID := uuid.New()
	granted := []uuid.UUID{uuid.New(), uuid.New()}
	source := &staticAccess{grants: map[uuid.UUID][]uuid.UUID{userID: granted}}
	cached, _ := newCacheFixture(t, source)
	ctx := context.Background()

	first, err := cached.BasesForUser(ctx, userID)
	require.NoError(t, err)
	require.ElementsMatch(t, granted, first)
	require.Equal(t, 1, source.calls)

	second, err := cached.BasesForUser(ctx, userID)
	require.NoError(t, err)
	require.ElementsMatch(t, granted, second)
	require.Equal(t, 1, source.calls, "second read must come from the cache")
}

func TestCachedReaderInvalidate(t *testing.T) {
	userID := uuid.New()
	source := &staticAccess{grants: map[uuid.UUID][]uuid.UUID{userID: {uuid.New()}}}
	cached, _ := newCacheFixture(t, source)
	ctx := context.Background()

	_, err := cached.BasesForUser(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(ctx, userID))

	_, err = cached.BasesForUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls, "invalidate must force a source reload")
}

func TestCachedReaderDegradesWhenRedisDown(t *testing.T) {
	userID := uuid.New()
	granted := []uuid.UUID{uuid.New()}
	source := &staticAccess{grants: map[uuid.UUID][]uuid.UUID{userID: granted}}
	cached, srv := newCacheFixture(t, source)

	srv.Close()

	result, err := cached.BasesForUser(context.Background(), userID)
	require.NoError(t, err)
	require.ElementsMatch(t, granted, result)
}
