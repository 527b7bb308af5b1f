package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cooldown tracking.
var (
	sparkRateLimitCooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_rate_limit_cooldowns_total",
		Help: "Total number of rate-limit cooldowns recorded by store backend",
	}, []string{"backend"})

	sparkRateLimitBlockedUntil = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spark_rate_limit_blocked_until_seconds",
		Help: "Unix time until which requests are held back, by store backend",
	}, []string{"backend"})
)

// Store records and reports the shared cooldown.
type Store interface {
	// Get returns the current cooldown. A store with no data returns the
	// zero Cooldown and no error.
	Get(ctx context.Context) (Cooldown, error)

	// Block records that no request should be sent before until. A deadline
	// earlier than the stored one is ignored.
	Block(ctx context.Context, until time.Time) error
}

// MemoryStore is a process-local Store, safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	state Cooldown
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Get returns the current cooldown.
func (s *MemoryStore) Get(ctx context.Context) (Cooldown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Block extends the cooldown to until.
func (s *MemoryStore) Block(ctx context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Extends(until) {
		return nil
	}

	s.state = Cooldown{BlockedUntil: until, LastUpdate: s.now()}
	sparkRateLimitCooldownsTotal.WithLabelValues("memory").Inc()
	sparkRateLimitBlockedUntil.WithLabelValues("memory").Set(float64(until.Unix()))
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
