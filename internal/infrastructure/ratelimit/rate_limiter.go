package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionLogin       = "login"
)

// Policy describes one action's bucket: Burst tokens, refilled one every
// Every.
type Policy struct {
	Every time.Duration
	Burst int
}

// PerMinute builds a policy allowing n actions per minute with a burst of n.
func PerMinute(n int) Policy {
	if n <= 0 {
		return Policy{}
	}
	return Policy{Every: time.Minute / time.Duration(n), Burst: n}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for different users and actions
type RateLimiter struct {
	policies map[string]Policy
	fallback Policy
	buckets  map[string]*bucket
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter creates a limiter. Actions without a policy use fallback; a
// zero policy means unlimited.
func NewRateLimiter(policies map[string]Policy, fallback Policy) *RateLimiter {
	return &RateLimiter{
		policies: policies,
		fallback: fallback,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow checks if a user action is allowed. When it is not, the returned
// duration is how long until the next token.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	policy, ok := rl.policies[action]
	if !ok {
		policy = rl.fallback
	}
	if policy.Every <= 0 || policy.Burst <= 0 {
		return true, 0
	}

	key := userID + ":" + action
	now := rl.now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(policy.Every), policy.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, policy.Every
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup removes buckets that have not been used for idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine prunes idle buckets every interval until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()
}
