// Package redis persists bitemporal collections in Redis. Records live as
// JSON lines in a list per identity; the storage contract's uniqueness
// claims live in a set per identity, taken atomically with the append by a
// server-side script.
package redis

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DB wraps a Redis client holding any number of collections.
type DB struct {
	client *goredis.Client

	mu          sync.Mutex
	collections []string
}

// Open connects a client for addr and verifies it with a ping.
func Open(ctx context.Context, addr string) (*DB, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:            addr,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &DB{client: client}, nil
}

func (d *DB) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *DB) register(collection string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.collections, collection) {
		d.collections = append(d.collections, collection)
	}
}

// ClearAll wipes every collection opened through this DB.
func (d *DB) ClearAll(ctx context.Context) error {
	d.mu.Lock()
	collections := slices.Clone(d.collections)
	d.mu.Unlock()

	for _, collection := range collections {
		if err := clearCollection(ctx, d.client, collection); err != nil {
			return err
		}
	}
	return nil
}

func recordsKey(collection, id string) string {
	return "bt:" + collection + ":rec:" + id
}

func claimKey(collection, id string) string {
	return "bt:" + collection + ":claim:" + id
}

func identitiesKey(collection string) string {
	return "bt:" + collection + ":ids"
}

func clearCollection(ctx context.Context, client *goredis.Client, collection string) error {
	ids, err := client.SMembers(ctx, identitiesKey(collection)).Result()
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	keys := []string{identitiesKey(collection)}
	for _, id := range ids {
		keys = append(keys, recordsKey(collection, id), claimKey(collection, id))
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}
