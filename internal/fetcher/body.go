package fetcher

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsmatch/internal/extract"
)

// BodyFetcher resolves an article URL to its body text, trying the browser
// first and a plain HTTP GET second.
type BodyFetcher struct {
	http    *HTTPFetcher
	chain   *extract.Chain
	limiter *DomainLimiter
	robots  *RobotsGate
	cache   *BodyCache
	logger  *slog.Logger
}

// BodyFetcherOptions wires the optional collaborators of a BodyFetcher.
type BodyFetcherOptions struct {
	Limiter *DomainLimiter
	Robots  *RobotsGate
	Cache   *BodyCache
	Logger  *slog.Logger
}

// generationer is implemented by renderers that count browser launches.
type generationer interface {
	Generation() int
}

// NewBodyFetcher builds a fetcher over the static client and extraction chain.
func NewBodyFetcher(httpFetcher *HTTPFetcher, chain *extract.Chain, opts BodyFetcherOptions) *BodyFetcher {
	if chain == nil {
		chain = extract.NewChain(extract.ChainOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BodyFetcher{
		http:    httpFetcher,
		chain:   chain,
		limiter: opts.Limiter,
		robots:  opts.Robots,
		cache:   opts.Cache,
		logger:  logger,
	}
}

// Fetch returns the article text for rawURL or "" when neither path yields
// anything. It never fails; a nil renderer skips the browser path. Any render
// error recreates the renderer's browser before the static fallback.
func (b *BodyFetcher) Fetch(ctx context.Context, rawURL string, renderer Renderer) string {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !target.IsAbs() {
		b.logger.Warn("skipping invalid article url", "url", rawURL)
		return ""
	}
	if body, ok := b.cache.Get(rawURL); ok {
		return body
	}

	logger := b.logger.With("url", rawURL)
	if renderer != nil {
		if text, ok := b.rendered(ctx, target, renderer, logger); ok {
			b.cache.Add(rawURL, text)
			return text
		}
	}
	if ctx.Err() != nil {
		return ""
	}
	text := b.static(ctx, target, logger)
	b.cache.Add(rawURL, text)
	return text
}

func (b *BodyFetcher) rendered(ctx context.Context, target *url.URL, renderer Renderer, logger *slog.Logger) (string, bool) {
	html, err := renderer.Render(ctx, target.String())
	if err != nil {
		logger.Warn("render failed, recreating browser", "error", err)
		if rerr := renderer.Recreate(ctx); rerr != nil {
			logger.Error("browser recreate failed", "error", rerr)
		} else if g, ok := renderer.(generationer); ok {
			logger.Info("browser recreated", "generation", g.Generation())
		}
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("parse rendered page failed", "error", err)
		return "", false
	}
	text, err := b.chain.Rendered(doc, target.Hostname())
	if err != nil {
		logger.Debug("rendered page had no usable body", "error", err)
		return "", false
	}
	return text, true
}

func (b *BodyFetcher) static(ctx context.Context, target *url.URL, logger *slog.Logger) string {
	if b.http == nil {
		return ""
	}
	if !b.robots.Allowed(ctx, target) {
		logger.Info("robots.txt disallows static fetch")
		return ""
	}
	if err := b.limiter.Wait(ctx, target.Hostname()); err != nil {
		return ""
	}
	page, err := b.http.Get(ctx, target.String())
	if err != nil {
		logger.Warn("static fetch failed", "error", err)
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		logger.Warn("parse static page failed", "error", err)
		return ""
	}
	text, err := b.chain.Static(doc, page.Body, page.FinalURL)
	if err != nil {
		logger.Debug("static page had no usable body", "error", err)
		return ""
	}
	return text
}
