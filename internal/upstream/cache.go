package upstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CacheConfig holds the Redis connection settings.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Cache is the Redis transport.
type Cache struct {
	cfg CacheConfig

	mu     sync.RWMutex
	client *redis.Client
}

// NewCache creates the cache transport.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{cfg: cfg}
}

// Open creates the client and verifies it with PING.
func (c *Cache) Open(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Addr,
		Password: c.cfg.Password,
		DB:       c.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping cache: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Close releases the client. Safe when not open.
func (c *Cache) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// Probe pings the cache.
func (c *Cache) Probe(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return ErrNotOpen
	}
	return client.Ping(ctx).Err()
}

// Client returns the live client for cache callers, or nil when closed.
func (c *Cache) Client() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
