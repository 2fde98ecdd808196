package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

const defaultCacheTTL = 10 * time.Minute

var (
	localCache     *ristretto.Cache
	localCacheOnce sync.Once
)

func getLocalCache() *ristretto.Cache {
	localCacheOnce.Do(func() {
		c, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     32 << 20,
			BufferItems: 64,
		})
		if err != nil {
			Sugar.Errorf("local cache init failed: %v", err)
			return
		}
		localCache = c
	})
	return localCache
}

// CacheKey builds a namespaced key; free-form parts (search terms) are hashed.
func CacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return fmt.Sprintf("%s%016x", prefix, xxhash.Sum64String(strings.Join(parts, "\x00")))
}

// CacheGetBytes returns cached bytes for a key from Redis, or the local cache when Redis is off.
func CacheGetBytes(key string) ([]byte, bool) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b, err := rc.Get(ctx, key).Bytes()
		if err != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
			return nil, false
		}
		return b, true
	}
	lc := getLocalCache()
	if lc == nil {
		return nil, false
	}
	v, ok := lc.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// CacheSetBytes stores bytes; ttl <= 0 uses the default.
func CacheSetBytes(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
		return
	}
	if lc := getLocalCache(); lc != nil {
		lc.SetWithTTL(key, b, int64(len(b)), ttl)
		lc.Wait()
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnf("cache marshal failed key=%s err=%v", key, err)
		return
	}
	CacheSetBytes(key, b, ttl)
}

// CacheGetJSON loads a cached JSON value into out.
func CacheGetJSON(key string, out interface{}) bool {
	b, ok := CacheGetBytes(key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
// The local cache cannot enumerate keys and is cleared entirely.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		if lc := getLocalCache(); lc != nil {
			lc.Clear()
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ {
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
