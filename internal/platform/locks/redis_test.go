package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker, err := NewRedisLocker(client, "checkout:", ttl)
	require.NoError(t, err)
	return locker, mr
}

func TestRedisLockerIsExclusive(t *testing.T) {
	locker, mr := setupLocker(t, time.Minute)
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, "buyer-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("checkout:buyer-1"))
	assert.Equal(t, time.Minute, mr.TTL("checkout:buyer-1"))

	_, ok, err = locker.TryAcquire(ctx, "buyer-1")
	require.NoError(t, err)
	assert.False(t, ok, "second holder should be refused")

	_, ok, err = locker.TryAcquire(ctx, "buyer-2")
	require.NoError(t, err)
	assert.True(t, ok, "other buyers are independent")

	release()
	assert.False(t, mr.Exists("checkout:buyer-1"))

	_, ok, err = locker.TryAcquire(ctx, "buyer-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	locker, mr := setupLocker(t, time.Second)
	ctx := context.Background()

	staleRelease, ok, err := locker.TryAcquire(ctx, "buyer-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryAcquire(ctx, "buyer-1")
	require.NoError(t, err)
	require.True(t, ok, "expired lease should be reacquirable")

	staleRelease()
	assert.True(t, mr.Exists("checkout:buyer-1"), "stale holder must not delete the new lease")
}

func TestRedisLockerBackendDown(t *testing.T) {
	locker, mr := setupLocker(t, time.Minute)
	mr.Close()

	_, ok, err := locker.TryAcquire(context.Background(), "buyer-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisLockerRequiresClient(t *testing.T) {
	_, err := NewRedisLocker(nil, "checkout", time.Second)
	assert.Error(t, err)
}
