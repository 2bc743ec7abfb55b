package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"newsmatch/internal/config"
	"newsmatch/internal/textnorm"
	"newsmatch/pkg/types"
)

// BodySource resolves an article URL to its body text, or "" on failure.
type BodySource interface {
	FetchBody(ctx context.Context, url string) string
}

// BodySourceFunc adapts a function to BodySource.
type BodySourceFunc func(ctx context.Context, url string) string

// FetchBody implements BodySource.
func (f BodySourceFunc) FetchBody(ctx context.Context, url string) string {
	return f(ctx, url)
}

// ClientOptions tunes candidate collection.
type ClientOptions struct {
	Display      int
	MinBodyChars int
	QuotaRetries int
	QuotaBackoff time.Duration

	// RequestsPerSecond paces provider calls across the process; 0 disables pacing.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Client gathers candidate articles for a post's queries.
type Client struct {
	provider Provider
	ring     *CredentialRing
	filter   *Filter
	opts     ClientOptions
	pace     *rate.Limiter
	logger   *slog.Logger
}

// NewClient wires a provider, credential ring and filter together. The
// client is shared by every worker of a process.
func NewClient(provider Provider, ring *CredentialRing, filter *Filter, opts ClientOptions) *Client {
	if opts.Display <= 0 {
		opts.Display = 15
	}
	if filter == nil {
		filter = NewFilter(nil, nil, nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{provider: provider, ring: ring, filter: filter, opts: opts, logger: logger}
	if opts.RequestsPerSecond > 0 {
		c.pace = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Collect runs every query, filters and deduplicates the hits across the
// whole call, fetches each surviving article and keeps those whose
// normalized body is long enough. Provider failures skip the query.
func (c *Client) Collect(ctx context.Context, queries []string, bodies BodySource) []types.CandidateArticle {
	seen := make(map[string]struct{})
	var out []types.CandidateArticle

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		logger := c.logger.With("query", q)
		items, err := c.search(ctx, q, logger)
		if err != nil {
			logger.Warn("news search failed, skipping query", "error", err)
			continue
		}
		logger.Debug("news search returned", "items", len(items))

		for _, item := range items {
			link := item.Link
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			if ok, reason := c.filter.Accept(link); !ok {
				logger.Debug("candidate skipped", "url", link, "reason", reason)
				continue
			}
			seen[link] = struct{}{}

			body := textnorm.Normalize(bodies.FetchBody(ctx, link))
			if textnorm.RuneLen(body) < c.opts.MinBodyChars {
				logger.Debug("candidate body too short", "url", link, "chars", textnorm.RuneLen(body))
				continue
			}
			out = append(out, types.CandidateArticle{
				Title: CleanTitle(item.Title),
				URL:   link,
				Body:  body,
			})
		}
	}
	return out
}

func (c *Client) search(ctx context.Context, query string, logger *slog.Logger) ([]Item, error) {
	cred, turn := c.ring.Current()
	if c.ring.Len() <= 1 {
		return c.searchWithBackoff(ctx, cred, query, logger)
	}

	items, err := c.call(ctx, cred, query)
	if !errors.Is(err, ErrProviderQuota) {
		return items, err
	}
	logger.Warn("search quota hit, rotating credential", "error", err)
	c.ring.Rotate(turn)
	cred, _ = c.ring.Current()
	return c.call(ctx, cred, query)
}

// searchWithBackoff retries quota failures of the only credential at a fixed
// interval. Other errors end the retries at once.
func (c *Client) searchWithBackoff(ctx context.Context, cred config.Credential, query string, logger *slog.Logger) ([]Item, error) {
	op := func() ([]Item, error) {
		items, err := c.call(ctx, cred, query)
		if err != nil && !errors.Is(err, ErrProviderQuota) {
			return nil, backoff.Permanent(err)
		}
		return items, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.QuotaBackoff)),
		backoff.WithMaxTries(uint(max(c.opts.QuotaRetries, 0))+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("search quota hit, backing off", "backoff", wait, "error", err)
		}),
	)
}

func (c *Client) call(ctx context.Context, cred config.Credential, query string) ([]Item, error) {
	if c.pace != nil {
		if err := c.pace.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.provider.Search(ctx, cred, query, c.opts.Display)
}
