package fetcher

import (
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// BodyCache remembers extracted article bodies by canonical URL so the same
// article found for several posts is fetched once per process.
type BodyCache struct {
	lru *expirable.LRU[string, string]
}

// NewBodyCache returns a cache holding up to size bodies for ttl.
func NewBodyCache(size int, ttl time.Duration) *BodyCache {
	if size <= 0 {
		size = 1024
	}
	return &BodyCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the cached body for rawURL.
func (c *BodyCache) Get(rawURL string) (string, bool) {
	if c == nil {
		return "", false
	}
	key, ok := canonicalKey(rawURL)
	if !ok {
		return "", false
	}
	return c.lru.Get(key)
}

// Add stores a non-empty body.
func (c *BodyCache) Add(rawURL, body string) {
	if c == nil || body == "" {
		return
	}
	if key, ok := canonicalKey(rawURL); ok {
		c.lru.Add(key, body)
	}
}

// Len reports the number of cached bodies.
func (c *BodyCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func canonicalKey(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPortForScheme(scheme) {
		host = host + ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := scheme + "://" + host + path
	if q := u.RawQuery; q != "" {
		key += "?" + q
	}
	return key, true
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}
