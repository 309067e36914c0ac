package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/andyscpalmer/atproto-scheduler/internal/atproto"
	"github.com/andyscpalmer/atproto-scheduler/pkg/config"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
)

// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
var ErrCacheDisabled = fmt.Errorf("cache is disabled")

// keyPrefix namespaces every key so the scheduler can share a Redis
// instance with other services.
const keyPrefix = "atsched:"

// sessionTTL bounds how long a Bluesky access token is reused before the
// next dispatch logs in fresh.
const sessionTTL = 90 * time.Minute

// Cache wraps Redis client
type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache client. Returns (nil, nil) when the cache
// is disabled; a nil *Cache is safe to call.
func New(cfg *config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &Cache{client: client}, nil
}

// namespaceKey prefixes a key with the service namespace.
func namespaceKey(key string) string {
	return keyPrefix + key
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrCacheDisabled
	}
	return c.client.Get(ctx, namespaceKey(key)).Result()
}

// Set sets a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, namespaceKey(key), value, ttl).Err()
}

// GetJSON retrieves a value and unmarshals it into out.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// SetJSON marshals value and stores it with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

// Delete removes a key from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, namespaceKey(key)).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// SessionStore keeps Bluesky login sessions in Redis between ticks.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore wraps a cache for session reuse. Returns nil when the
// cache is disabled so callers can pass it straight through.
func NewSessionStore(c *Cache) *SessionStore {
	if c == nil {
		return nil
	}
	return &SessionStore{cache: c}
}

func sessionKey(username string) string {
	return "session:" + username
}

// GetSession returns the cached session for username, or (nil, nil) on a
// miss.
func (s *SessionStore) GetSession(ctx context.Context, username string) (*atproto.Session, error) {
	var session atproto.Session
	err := s.cache.GetJSON(ctx, sessionKey(username), &session)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// PutSession stores the session for username.
func (s *SessionStore) PutSession(ctx context.Context, username string, session *atproto.Session) error {
	return s.cache.SetJSON(ctx, sessionKey(username), session, sessionTTL)
}
