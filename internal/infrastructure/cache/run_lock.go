package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/config"
)

const (
	runLockPrefix = "marketsync:lock:"
	pingTimeout   = 5 * time.Second
)

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose TTL expired cannot drop a lock taken over by another process.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX and a TTL
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisRunLock connects to Redis and checks the connection
func NewRedisRunLock(cfg config.RedisConfig) (*RedisRunLock, error) {
	client := NewRedisClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisRunLockWithClient(client), nil
}

// NewRedisRunLockWithClient creates a lock on an existing client
func NewRedisRunLockWithClient(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{
		client:    client,
		keyPrefix: runLockPrefix,
		tokens:    make(map[string]string),
	}
}

// Acquire takes the lock for key with a TTL
func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release drops the lock for key if this process still holds it
func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MemoryRunLock implements RunLock within one process
type MemoryRunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryRunLock creates an in-process run lock
func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes the lock unless an unexpired holder exists
func (l *MemoryRunLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

// Release drops the lock for key
func (l *MemoryRunLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}

// Close is a no-op
func (l *MemoryRunLock) Close() error {
	return nil
}

// NewRunLock returns a Redis lock when Redis is configured and reachable.
// Otherwise it falls back to process memory, which only serializes runs
// inside this process.
func NewRunLock(cfg config.RedisConfig, logger *zap.Logger) shared.RunLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		logger.Info("Redis not configured, using in-memory run lock")
		return NewMemoryRunLock()
	}
	lock, err := NewRedisRunLock(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
			"Catalog builds on other instances are not serialized.",
			zap.Error(err))
		return NewMemoryRunLock()
	}
	logger.Info("Using Redis run lock", zap.String("addr", cfg.Addr()))
	return lock
}

var (
	_ shared.RunLock = (*RedisRunLock)(nil)
	_ shared.RunLock = (*MemoryRunLock)(nil)
)
