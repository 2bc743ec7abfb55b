package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"newsmatch/internal/config"
)

// DomainLimiter spaces static fetches to the same host. It is shared by every
// worker in the process.
type DomainLimiter struct {
	delay time.Duration
	rate  config.RateLimitConfig

	mu       sync.Mutex
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter creates a limiter with a minimum per-host delay and an
// optional token bucket.
func NewDomainLimiter(delay time.Duration, rateCfg config.RateLimitConfig) *DomainLimiter {
	return &DomainLimiter{
		delay:    delay,
		rate:     rateCfg,
		last:     make(map[string]time.Time),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host may be contacted again.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || host == "" {
		return nil
	}
	if d.delay <= 0 && !d.rate.Enabled() {
		return nil
	}
	host = strings.ToLower(host)

	var sleep time.Duration
	var limiter *rate.Limiter
	now := time.Now()

	d.mu.Lock()
	if d.delay > 0 {
		if last, ok := d.last[host]; ok {
			if rest := last.Add(d.delay).Sub(now); rest > 0 {
				sleep = rest
			}
		}
		// Reserve the slot so concurrent callers queue behind us.
		d.last[host] = now.Add(sleep)
	}
	if d.rate.Enabled() {
		limiter = d.limiterLocked(host)
	}
	d.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}

func (d *DomainLimiter) limiterLocked(host string) *rate.Limiter {
	if limiter, ok := d.limiters[host]; ok {
		return limiter
	}
	interval := d.rate.Window.Duration / time.Duration(d.rate.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), d.rate.Requests)
	d.limiters[host] = limiter
	return limiter
}
