package utils

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	blacklist   = map[uint64]time.Time{}
	blacklistMu sync.RWMutex
)

func blacklistKey(token string) string {
	return "jwt:blacklist:" + strconv.FormatUint(xxhash.Sum64String(token), 16)
}

// BlacklistToken revokes a token until its natural expiration.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
			Sugar.Warnf("blacklist token in redis failed: %v", err)
		}
		return
	}
	blacklistMu.Lock()
	blacklist[xxhash.Sum64String(token)] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			// fail open: a redis outage must not log everyone out
			return false
		}
		return n > 0
	}

	h := xxhash.Sum64String(token)
	blacklistMu.RLock()
	exp, ok := blacklist[h]
	blacklistMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		blacklistMu.Lock()
		delete(blacklist, h)
		blacklistMu.Unlock()
		return false
	}
	return true
}
