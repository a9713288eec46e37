// Package cache stores API responses with a freshness window.
package cache

import (
	"context"
	"time"
)

// Stats describes the live entries of a store.
type Stats struct {
	Entries int64 `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Store is a TTL key/value store. Expired entries behave as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}
