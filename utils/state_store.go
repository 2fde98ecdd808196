package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const oauthStatePrefix = "oauth:state:"

var (
	stateStore   = map[string]time.Time{}
	stateStoreMu sync.Mutex
)

// IssueState creates a single-use OAuth state value valid for ttl.
func IssueState(ttl time.Duration) string {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	state := uuid.NewString()
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, oauthStatePrefix+state, "1", ttl).Err(); err == nil {
			return state
		}
	}
	stateStoreMu.Lock()
	now := time.Now()
	for k, exp := range stateStore {
		if now.After(exp) {
			delete(stateStore, k)
		}
	}
	stateStore[state] = now.Add(ttl)
	stateStoreMu.Unlock()
	return state
}

// ConsumeState validates and removes a state token.
func ConsumeState(state string) bool {
	if state == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, oauthStatePrefix+state).Result(); err == nil {
			return v != ""
		}
	}
	stateStoreMu.Lock()
	exp, ok := stateStore[state]
	delete(stateStore, state)
	stateStoreMu.Unlock()
	return ok && time.Now().Before(exp)
}
