package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig mirrors the teacher's per-second/burst shape for
// throttling external callers.
type RateConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func DefaultRateConfig() RateConfig {
	return RateConfig{RequestsPerSecond: 5, Burst: 10}
}

// PartnerLimiter keeps one token bucket per coupling partner label, so
// one noisy partner cannot starve another's throttle budget.
type PartnerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateConfig
}

func NewPartnerLimiter(cfg RateConfig) *PartnerLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &PartnerLimiter{limiters: make(map[string]*rate.Limiter), cfg: cfg}
}

func (p *PartnerLimiter) Allow(partner string) bool {
	return p.limiterFor(partner).Allow()
}

func (p *PartnerLimiter) limiterFor(partner string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[partner]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst)
		p.limiters[partner] = l
	}
	return l
}

// Cleanup drops all tracked limiters once the set grows unbounded,
// matching the teacher's blunt-but-bounded map reset strategy.
func (p *PartnerLimiter) Cleanup(max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.limiters) > max {
		p.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup periodically bounds limiter growth; returns a stop func.
func (p *PartnerLimiter) StartCleanup(interval time.Duration, max int) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				p.Cleanup(max)
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
