package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key building
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache key builders, one per cached read path
func WalletKey(userID uint) string {
	return "wallet:user:" + strconv.Itoa(int(userID)) // Wallet cache key
}

func TxHistoryPrefix(userID uint) string {
	return "txhistory:user:" + strconv.Itoa(int(userID)) // Transaction history prefix
}

func CatalogKey(page, pageSize int) string {
	return "catalog:page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize) // Catalog page key
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes a key from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err() // Delete key from Redis
}

// InvalidateWallet drops a user's wallet cache and the first pages of
// their transaction history cache (simple version: first 5 pages at
// the default size)
func InvalidateWallet(ctx context.Context, rdb *redis.Client, userID uint) {
	if rdb == nil {
		return // Cache not wired
	}
	_ = DeleteCache(ctx, rdb, WalletKey(userID)) // Invalidate wallet cache
	prefix := TxHistoryPrefix(userID)
	for i := 1; i <= 5; i++ {
		// Delete paginated history cache entries
		_ = DeleteCache(ctx, rdb, prefix+":page:"+strconv.Itoa(i)+":size:20")
	}
}

// InvalidateCatalog drops the first pages of the public catalog cache
func InvalidateCatalog(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		return // Cache not wired
	}
	for i := 1; i <= 5; i++ {
		_ = DeleteCache(ctx, rdb, CatalogKey(i, 20)) // Default page size entries
	}
}
