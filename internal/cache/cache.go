package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// QueryKey builds the cache key for a query result set. The fingerprint
// digests the full identifier, so two queries share a key only when they
// would send identical datasets to the same node.
func QueryKey(nodeAET, level, fingerprint string) string {
	return "query:" + nodeAET + ":" + strings.ToLower(level) + ":" + fingerprint
}

// Fingerprint digests an ordered list of identifier entries.
func Fingerprint(parts []string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
