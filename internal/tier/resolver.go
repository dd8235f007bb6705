// Package tier implements TierResolver (spec §4.1, §4.5): resolves a
// user's current subscription tier with a short TTL cache so the hot
// path (every chat/quick-scan/deep-dive/photo request) doesn't hit the
// database on every call. Grounded on tarsy's pkg/config in-process
// RWMutex-guarded cache pattern, optionally backed by go-redis for
// cross-pod sharing the way tarsy's session cache is structured.
package tier

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// TTL is the cache lifetime for a resolved tier (spec §4.1: 5 minutes).
const TTL = 5 * time.Minute

// SubscriptionStore is the read-side persistence dependency: fetching
// the current subscription row for a user. Implemented by
// internal/storage; kept as a narrow interface here to avoid a storage
// import cycle.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

type cacheEntry struct {
	tier    models.Tier
	expires time.Time
}

// Resolver resolves and caches tiers. Falls back to models.TierFree on
// any store error, missing row, or inactive subscription, per spec
// §4.1's "default to most restrictive tier on any resolution failure".
type Resolver struct {
	store SubscriptionStore
	redis *redis.Client // optional; nil means in-process cache only

	mu    sync.RWMutex
	local map[string]cacheEntry
}

// New builds a Resolver. redisClient may be nil to use a purely
// in-process cache (fine for a single-instance deployment).
func New(store SubscriptionStore, redisClient *redis.Client) *Resolver {
	return &Resolver{
		store: store,
		redis: redisClient,
		local: make(map[string]cacheEntry),
	}
}

// Resolve returns the user's current tier, consulting the cache before
// the store. Never returns an error: a resolution failure degrades to
// TierFree rather than blocking the request.
func (r *Resolver) Resolve(ctx context.Context, userID string) models.Tier {
	if t, ok := r.readCache(ctx, userID); ok {
		return t
	}

	sub, err := r.store.GetSubscription(ctx, userID)
	tier := models.TierFree
	if err == nil && sub != nil && sub.Active(time.Now()) {
		tier = sub.Tier
	}

	r.writeCache(ctx, userID, tier)
	return tier
}

func (r *Resolver) readCache(ctx context.Context, userID string) (models.Tier, bool) {
	r.mu.RLock()
	entry, ok := r.local[userID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.tier, true
	}

	if r.redis == nil {
		return "", false
	}
	val, err := r.redis.Get(ctx, redisKey(userID)).Result()
	if err != nil {
		return "", false
	}
	tier := models.Tier(val)
	r.mu.Lock()
	r.local[userID] = cacheEntry{tier: tier, expires: time.Now().Add(TTL)}
	r.mu.Unlock()
	return tier, true
}

func (r *Resolver) writeCache(ctx context.Context, userID string, tier models.Tier) {
	r.mu.Lock()
	r.local[userID] = cacheEntry{tier: tier, expires: time.Now().Add(TTL)}
	r.mu.Unlock()

	if r.redis != nil {
		r.redis.Set(ctx, redisKey(userID), string(tier), TTL)
	}
}

// Invalidate drops any cached tier for userID, forcing the next Resolve
// to hit the store. No code in this module calls it.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	r.mu.Lock()
	delete(r.local, userID)
	r.mu.Unlock()

	if r.redis != nil {
		r.redis.Del(ctx, redisKey(userID))
	}
}

func redisKey(userID string) string { return "oracle:tier:" + userID }
