package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ─────────────────────────────────────────────────────────────────────────────
// RedisStore
// ─────────────────────────────────────────────────────────────────────────────

// RedisStore is the concrete Store backed by github.com/redis/go-redis/v9.
// A single Redis TCP endpoint hosts several numbered logical databases, and
// go-redis binds one *redis.Client per DB index, so RedisStore lazily opens
// and caches one client per db — adapted from a semaphore-gated worker
// pool's lazy-connection-on-demand shape into a per-index connection cache.
type RedisStore struct {
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	clients map[int]*redis.Client
}

// NewRedisStore returns a Store talking to the Redis endpoint at addr
// ("host:port"). No connection is made until first use.
func NewRedisStore(addr string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &RedisStore{addr: addr, logger: logger, clients: make(map[int]*redis.Client)}
}

func (s *RedisStore) clientFor(db int) *redis.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[db]; ok {
		return c
	}
	c := redis.NewClient(&redis.Options{Addr: s.addr, DB: db})
	s.clients[db] = c
	return c
}

func (s *RedisStore) Get(ctx context.Context, db int, key string) (map[string]string, error) {
	c := s.clientFor(db)
	vals, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL db=%d key=%s: %w", db, key, err)
	}
	return vals, nil
}

func (s *RedisStore) Keys(ctx context.Context, db int, pattern string) ([]string, error) {
	c := s.clientFor(db)
	keys, err := c.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("redis KEYS db=%d pattern=%s: %w", db, pattern, err)
	}
	return keys, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, db int, patterns []string) (<-chan Message, func() error, error) {
	c := s.clientFor(db)
	pubsub := c.PSubscribe(ctx, patterns...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis PSUBSCRIBE db=%d: %w", db, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	closeFn := func() error {
		return pubsub.Close()
	}
	return out, closeFn, nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for db, c := range s.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close client for db %d: %w", db, err)
		}
	}
	return firstErr
}

// Addr formats an Instance as a go-redis "host:port" address.
func Addr(inst Instance) string {
	return inst.Hostname + ":" + strconv.Itoa(inst.Port)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
