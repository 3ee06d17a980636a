package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON values whose Redis TTL matches the record expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a store that namespaces keys with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client, prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ":")}, nil
}

// Reserve implements the Store interface. The pending record is written with SET NX so only one
// request wins a fresh key.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	ttl = ttlOrDefault(ttl)
	record := pendingRecord(key, fingerprint, now, ttl)
	payload, err := json.Marshal(newRedisRecord(record))
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}

	id := s.key(key)
	var existing Record
	for attempt := 0; ; attempt++ {
		created, err := s.client.SetNX(ctx, id, payload, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if created {
			return Reservation{State: ReservationStateNew, Record: record}, nil
		}
		existing, err = s.load(ctx, id)
		if err == nil {
			break
		}
		// The record can expire between SETNX and GET; try the reservation once more.
		if !errors.Is(err, redis.Nil) || attempt > 0 {
			return Reservation{}, err
		}
	}
	return existing.reservation(fingerprint)
}

// SaveResponse implements the Store interface.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	ttl = ttlOrDefault(ttl)
	id := s.key(key)

	record, err := s.load(ctx, id)
	switch {
	case errors.Is(err, redis.Nil):
		record = Record{Key: key, Fingerprint: fingerprint}
	case err != nil:
		return err
	case record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	}

	payload, err := json.Marshal(newRedisRecord(record.complete(resp, now, ttl)))
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

// Release implements the Store interface. Records owned by another fingerprint are kept.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	id := s.key(key)
	record, err := s.load(ctx, id)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Fingerprint != fingerprint {
		return nil
	}
	if err := s.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var stored redisRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return stored.toRecord(), nil
}

func (s *RedisStore) key(key string) string {
	id := recordID(key)
	if s.prefix == "" {
		return id
	}
	return s.prefix + ":" + id
}

type redisRecord struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`
	ResponseBody    []byte              `json:"responseBody,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	ExpiresAt       time.Time           `json:"expiresAt"`
}

func newRedisRecord(record Record) redisRecord {
	return redisRecord(record)
}

func (r redisRecord) toRecord() Record {
	return Record(r)
}
