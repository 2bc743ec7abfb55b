package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"newsmatch/internal/checkpoint"
	"newsmatch/internal/config"
	"newsmatch/internal/engine"
	"newsmatch/internal/extract"
	"newsmatch/internal/fetcher"
	"newsmatch/internal/matcher"
	"newsmatch/internal/query"
	"newsmatch/internal/search"
	"newsmatch/internal/similarity"
	"newsmatch/internal/storage"
)

// needsS3 reports whether any configured or requested path lives in S3.
func needsS3(cfg *config.Config, locs ...storage.Location) bool {
	if cfg.Checkpoint.Backend == "s3" {
		return true
	}
	for _, loc := range locs {
		if loc.IsS3() {
			return true
		}
	}
	for _, path := range cfg.Search.PublisherLists {
		if loc, err := storage.ParseLocation(path); err == nil && loc.IsS3() {
			return true
		}
	}
	return false
}

func openBlobs(ctx context.Context, cfg *config.Config, locs ...storage.Location) (*storage.Blobs, *storage.S3, error) {
	if !needsS3(cfg, locs...) {
		return storage.NewBlobs(nil), nil, nil
	}
	s3, err := storage.NewS3(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewBlobs(s3), s3, nil
}

func loadPublishers(ctx context.Context, blobs *storage.Blobs, lists map[string]string) (map[string]map[string]struct{}, error) {
	if len(lists) == 0 {
		return nil, nil
	}
	out := make(map[string]map[string]struct{}, len(lists))
	for host, path := range lists {
		loc, err := storage.ParseLocation(path)
		if err != nil {
			return nil, fmt.Errorf("%w: publisher list for %s: %w", config.ErrConfig, host, err)
		}
		data, err := blobs.ReadAll(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: publisher list for %s: %w", config.ErrConfig, host, err)
		}
		ids, err := search.LoadPublisherIDs(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: publisher list for %s: %w", config.ErrConfig, host, err)
		}
		out[host] = ids
	}
	return out, nil
}

// components is the assembled matching engine with the resources it owns.
type components struct {
	engine  *engine.Engine
	closers []io.Closer
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	return errors.Join(errs...)
}

func buildEngine(ctx context.Context, cfg *config.Config, blobs *storage.Blobs, s3 *storage.S3, logger *slog.Logger) (*components, error) {
	publishers, err := loadPublishers(ctx, blobs, cfg.Search.PublisherLists)
	if err != nil {
		return nil, err
	}

	provider := search.NewNaverProvider(cfg.Search, &http.Client{Timeout: cfg.Search.Timeout.Duration})
	client := search.NewClient(
		provider,
		search.NewCredentialRing(cfg.Search.Credentials),
		search.NewFilter(cfg.Search.TrustedDomains, cfg.Search.ExcludedDomains, publishers),
		search.ClientOptions{
			Display:           cfg.Search.Display,
			MinBodyChars:      cfg.Search.MinBodyChars,
			QuotaRetries:      cfg.Search.QuotaRetries,
			QuotaBackoff:      cfg.Search.QuotaBackoff.Duration,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
			Logger:            logger,
		},
	)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	rules := make([]extract.Rule, 0, len(cfg.Extract.Rules))
	for _, r := range cfg.Extract.Rules {
		rules = append(rules, extract.Rule{Domain: r.Domain, Selector: r.Selector, MinChars: r.MinChars})
	}
	chain := extract.NewChain(extract.ChainOptions{
		DomainRules:       rules,
		GenericSelectors:  cfg.Extract.GenericSelectors,
		GenericMinChars:   cfg.Extract.GenericMinChars,
		Readability:       cfg.Extract.Readability,
		ParagraphMinChars: cfg.Extract.ParagraphMinChars,
	})
	var cache *fetcher.BodyCache
	if cfg.Cache.Enabled {
		cache = fetcher.NewBodyCache(cfg.Cache.Size, cfg.Cache.TTL.Duration)
	}
	bodies := fetcher.NewBodyFetcher(httpFetcher, chain, fetcher.BodyFetcherOptions{
		Limiter: fetcher.NewDomainLimiter(cfg.Fetch.PerDomainDelay.Duration, cfg.Fetch.RateLimit),
		Robots:  fetcher.NewRobotsGate(cfg.Robots, httpFetcher.Client()),
		Cache:   cache,
		Logger:  logger,
	})

	link := matcher.RawLink
	if cfg.Output.Hyperlink {
		link = matcher.Hyperlink
	}
	pipeline := matcher.NewPipeline(client, matcher.PipelineOptions{
		Query: query.Options{
			MaxLength:                cfg.Query.MaxLength,
			KeywordCount:             cfg.Query.KeywordCount,
			IncludeTrailingSentences: cfg.Query.IncludeTrailingSentences,
		},
		Scorer: similarity.Scorer{SplitSentences: cfg.Scoring.SplitSentences},
		Link:   link,
		Logger: logger,
	})

	store, err := checkpoint.Open(ctx, cfg.Checkpoint, s3)
	if err != nil {
		return nil, err
	}

	var browsers engine.BrowserFactory
	if cfg.Rendering.Enabled {
		browsers = func(ctx context.Context) (engine.Browser, error) {
			session, err := fetcher.NewSession(ctx, cfg.Rendering, logger)
			if err != nil {
				return nil, err
			}
			return session, nil
		}
	}

	eng := engine.New(pipeline, bodies, engine.Options{
		RunID:              cfg.Checkpoint.RunID,
		Concurrency:        cfg.Worker.Concurrency,
		FlushEvery:         cfg.Worker.FlushEvery,
		ParallelPartitions: cfg.Worker.ParallelPartitions,
		Browsers:           browsers,
		Checkpoints:        store,
		Logger:             logger,
	})
	return &components{engine: eng, closers: []io.Closer{store}}, nil
}
