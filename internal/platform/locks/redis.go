// Package locks provides short-lived leases shared across API instances.
package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL     = 30 * time.Second
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an expired lease that was
// taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker grants leases with SET NX PX. A lease expires after its TTL even if the holder dies.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLocker constructs a locker whose keys are namespaced by prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("locks: redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client: client,
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ":"),
		ttl:    ttl,
	}, nil
}

// TryAcquire attempts to take the lease on key without waiting. acquired is false when another
// holder owns it.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error) {
	fullKey := l.key(key)
	token := ulid.Make().String()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("locks: acquire %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}, true, nil
}

func (l *RedisLocker) key(key string) string {
	if l.prefix == "" {
		return strings.TrimSpace(key)
	}
	return l.prefix + ":" + strings.TrimSpace(key)
}
