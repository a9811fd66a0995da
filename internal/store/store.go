// Package store defines the Redis-compatible key-value store abstraction
// that the MIB updaters and trap engine read from: numbered databases,
// hash/key reads, and keyspace-notification subscriptions. The Store
// interface itself stays free of the github.com/redis/go-redis/v9 import
// that RedisStore (redis.go) wraps, so updaters and trap handlers can be
// tested against a fake.
package store

import "context"

// Store is the subset of Redis-compatible database operations MIB updaters
// and trap handlers consume. One Store instance may multiplex several
// numbered databases, as a single Redis connection does via SELECT/db-index.
type Store interface {
	// Get returns the hash fields stored at key in database db. A missing
	// key returns an empty, non-nil map and no error.
	Get(ctx context.Context, db int, key string) (map[string]string, error)

	// Keys returns every key in database db matching the Redis glob
	// pattern (the same `*`/`?`/`[...]` dialect KEYS/SCAN use).
	Keys(ctx context.Context, db int, pattern string) ([]string, error)

	// Subscribe opens a keyspace-notification subscription for patterns in
	// database db, returning a channel of raw messages and a close func.
	// patterns are Redis pub/sub patterns, e.g. "__keyspace@0__:PORT_TABLE:*".
	Subscribe(ctx context.Context, db int, patterns []string) (<-chan Message, func() error, error)

	// Close releases all resources held by the store (all databases).
	Close() error
}

// Message is one keyspace-notification delivery.
type Message struct {
	// Channel is the full pub/sub channel name, e.g.
	// "__keyspace@0__:PORT_TABLE:Ethernet0".
	Channel string
	// Payload is the operation verb (e.g. "hset", "del").
	Payload string
}
