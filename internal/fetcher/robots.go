package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"

	"newsmatch/internal/config"
)

// RobotsGate evaluates robots.txt rules before static fetches.
type RobotsGate struct {
	client    *http.Client
	userAgent string
	respect   bool
	overrides map[string]struct{}
	cache     *expirable.LRU[string, *robotstxt.RobotsData]
}

// NewRobotsGate constructs a gate from configuration.
func NewRobotsGate(cfg config.RobotsConfig, client *http.Client) *RobotsGate {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	overrides := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			overrides[host] = struct{}{}
		}
	}
	return &RobotsGate{
		client:    client,
		userAgent: cfg.UserAgent,
		respect:   cfg.Respect,
		overrides: overrides,
		cache:     expirable.NewLRU[string, *robotstxt.RobotsData](size, nil, ttl),
	}
}

// Allowed reports whether target may be fetched. Robots errors fail open.
func (g *RobotsGate) Allowed(ctx context.Context, target *url.URL) bool {
	if g == nil || !g.respect {
		return true
	}
	if target == nil || !target.IsAbs() {
		return false
	}
	if _, ok := g.overrides[strings.ToLower(target.Hostname())]; ok {
		return true
	}
	rules, err := g.rules(ctx, target)
	if err != nil {
		return true
	}
	return rules.TestAgent(target.EscapedPath(), g.userAgent)
}

func (g *RobotsGate) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)
	if data, ok := g.cache.Get(host); ok {
		return data, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	g.cache.Add(host, data)
	return data, nil
}
