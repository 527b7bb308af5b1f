// Package ratelimit shares the cooldown learned from HTTP 429 responses
// between sessions that use the same access token. A session that was told
// to back off records the deadline here so that other sessions, possibly in
// other processes, wait instead of spending another request on a 429.
package ratelimit

import (
	"time"
)

// Redis keys for cooldown state storage. The namespace segment separates
// bots that share one Redis instance but use different tokens.
const (
	RedisKeyPrefix       = "spark:rate_limit:"
	RedisKeyBlockedUntil = "blocked_until"
	RedisKeyLastUpdate   = "last_update"
)

// Cooldown is the rate-limit state shared through a Store.
type Cooldown struct {
	// BlockedUntil is the instant before which no request should be sent.
	// The zero value means no cooldown is active.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when the cooldown was last recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether the cooldown is still in effect at now.
func (c Cooldown) Active(now time.Time) bool {
	return now.Before(c.BlockedUntil)
}

// Remaining returns how long the cooldown lasts from now.
// Returns 0 if it has already passed.
func (c Cooldown) Remaining(now time.Time) time.Duration {
	d := c.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Extends reports whether until would lengthen the current cooldown.
// Stores only ever extend a cooldown, never shorten it.
func (c Cooldown) Extends(until time.Time) bool {
	return until.After(c.BlockedUntil)
}
