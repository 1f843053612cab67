// Package cache stores JSON-encoded values with a time to live.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a keyed store of JSON values. Get reports whether target was filled.
type Cache interface {
	Get(ctx context.Context, key string, target any) (bool, error)
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// BuildKey creates semantic cache keys
func BuildKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// SnapshotKey is the key of a market snapshot for a marketplace and normalized query
func SnapshotKey(marketplace, query string) string {
	return BuildKey("market", "v1", marketplace, strings.ToLower(strings.TrimSpace(query)))
}
