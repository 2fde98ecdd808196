package utils

import (
	"context"
	"strings"
	"sync"
	"time"
)

var (
	cooldowns   = map[string]time.Time{}
	cooldownsMu sync.Mutex
)

// CooldownTry reports whether an action identified by parts may run now.
// A successful try blocks the same key for ttl. Redis is preferred so the
// window is shared between instances; errors fail open.
func CooldownTry(ttl time.Duration, parts ...string) bool {
	if ttl <= 0 {
		return true
	}
	key := "cooldown:" + strings.Join(parts, ":")
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		ok, err := rc.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return true
		}
		return ok
	}

	now := time.Now()
	cooldownsMu.Lock()
	defer cooldownsMu.Unlock()
	if len(cooldowns) > 4096 {
		for k, until := range cooldowns {
			if now.After(until) {
				delete(cooldowns, k)
			}
		}
	}
	if until, ok := cooldowns[key]; ok && now.Before(until) {
		return false
	}
	cooldowns[key] = now.Add(ttl)
	return true
}
