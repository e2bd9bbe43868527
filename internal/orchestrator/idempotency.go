package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyStore hands out idempotency keys per submission fingerprint. A key is
// obtained once and reused across every retry of the same logical
// submission, including across process restarts when backed by redis.
type KeyStore interface {
	Obtain(ctx context.Context, fingerprint string) (string, error)
	Release(ctx context.Context, fingerprint string) error
}

// Fingerprint derives a stable identity for one logical submission from the
// user, engine, and the exact engine input. Marshal of a map sorts keys, so
// equal inputs always hash equal.
func Fingerprint(userID, engineID string, engineInput map[string]interface{}) string {
	raw, err := json.Marshal(engineInput)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", engineInput))
	}
	sum := sha256.Sum256([]byte(userID + "|" + engineID + "|" + string(raw)))
	return hex.EncodeToString(sum[:])
}

const idemKeyPrefix = "genflow:idem:"

// RedisKeyStore persists idempotency keys in redis with a TTL so a crashed
// and retried submission reuses the same key.
type RedisKeyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisKeyStore(client *redis.Client, ttl time.Duration) *RedisKeyStore {
	return &RedisKeyStore{client: client, ttl: ttl}
}

func (s *RedisKeyStore) Obtain(ctx context.Context, fingerprint string) (string, error) {
	key := idemKeyPrefix + fingerprint
	token := uuid.NewString()

	set, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("storing idempotency key: %w", err)
	}
	if set {
		return token, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SetNX and Get. Extremely tight race, start over.
			return s.Obtain(ctx, fingerprint)
		}
		return "", fmt.Errorf("reading idempotency key: %w", err)
	}
	return existing, nil
}

func (s *RedisKeyStore) Release(ctx context.Context, fingerprint string) error {
	return s.client.Del(ctx, idemKeyPrefix+fingerprint).Err()
}

// MemoryKeyStore is the in-process fallback used when redis is unavailable
// and in tests. Keys do not survive a restart.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]string)}
}

func (s *MemoryKeyStore) Obtain(_ context.Context, fingerprint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.keys[fingerprint]; ok {
		return token, nil
	}
	token := uuid.NewString()
	s.keys[fingerprint] = token
	return token, nil
}

func (s *MemoryKeyStore) Release(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, fingerprint)
	return nil
}
