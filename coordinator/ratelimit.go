package coordinator

import (
	"time"

	"github.com/tooniverse/groupworld/engine/common"
)

// RateLimiter is a sliding window limiter keyed by avatar id. Windows are
// created lazily on first use and pruned on every check, so idle avatars
// cost nothing.
//
// Requests beyond the limit are dropped silently by the caller. This is an
// anti-flood measure, not a user-facing validation.
type RateLimiter struct {
	max    int
	period time.Duration
	hits   map[common.AvatarID][]time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing max hits per period per avatar
func NewRateLimiter(max int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		period: period,
		hits:   map[common.AvatarID][]time.Time{},
		now:    time.Now,
	}
}

// Allow records a hit of the avatar and reports whether it is within limit
func (rl *RateLimiter) Allow(avId common.AvatarID) bool {
	now := rl.now()
	deadline := now.Add(-rl.period)

	window := rl.hits[avId]
	live := window[:0]
	for _, t := range window {
		if t.After(deadline) {
			live = append(live, t)
		}
	}

	if len(live) >= rl.max {
		rl.hits[avId] = live
		return false
	}
	rl.hits[avId] = append(live, now)
	return true
}

// Forget drops the window of the avatar, used when it disconnects
func (rl *RateLimiter) Forget(avId common.AvatarID) {
	delete(rl.hits, avId)
}
