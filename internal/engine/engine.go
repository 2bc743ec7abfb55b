// Package engine drives the per-post pipeline across a batch: partitioning,
// per-worker browser sessions, checkpointing and resume.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsmatch/internal/checkpoint"
	"newsmatch/internal/fetcher"
	"newsmatch/internal/search"
	"newsmatch/pkg/types"
)

// Processor turns one post into its result.
type Processor interface {
	Process(ctx context.Context, post types.PostRecord, bodies search.BodySource) types.MatchResult
}

// BodyFetcher resolves article URLs using a worker's renderer.
type BodyFetcher interface {
	Fetch(ctx context.Context, url string, renderer fetcher.Renderer) string
}

// Browser is a renderer owned by exactly one worker.
type Browser interface {
	fetcher.Renderer
	Close() error
}

// BrowserFactory launches a browser for a worker.
type BrowserFactory func(ctx context.Context) (Browser, error)

// Options configures an Engine.
type Options struct {
	RunID       string
	Concurrency int
	FlushEvery  int
	// ParallelPartitions caps how many partitions RunBatch runs at once; 0 runs all.
	ParallelPartitions int
	Browsers           BrowserFactory
	Checkpoints        checkpoint.Store
	Logger             *slog.Logger
}

// Engine runs partitions of a batch.
type Engine struct {
	processor Processor
	bodies    BodyFetcher
	opts      Options
	logger    *slog.Logger
}

const finalFlushTimeout = 30 * time.Second

// New builds an engine. A nil Browsers factory runs every worker on the
// static fetch path.
func New(processor Processor, bodies BodyFetcher, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 1
	}
	if opts.RunID == "" {
		opts.RunID = "default"
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = checkpoint.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{processor: processor, bodies: bodies, opts: opts, logger: logger}
}

type worker struct {
	id      int
	browser Browser
}

func (w *worker) renderer() fetcher.Renderer {
	if w.browser == nil {
		return nil
	}
	return w.browser
}

func (e *Engine) acquire(logger *slog.Logger) func(context.Context, int) *worker {
	return func(ctx context.Context, id int) *worker {
		w := &worker{id: id}
		if e.opts.Browsers == nil {
			return w
		}
		browser, err := e.opts.Browsers(ctx)
		if err != nil {
			logger.Error("browser launch failed, worker uses static fetches only", "worker", id, "error", err)
			return w
		}
		w.browser = browser
		return w
	}
}

func (e *Engine) release(logger *slog.Logger) func(*worker) {
	return func(w *worker) {
		if w.browser == nil {
			return
		}
		if err := w.browser.Close(); err != nil {
			logger.Warn("browser close failed", "worker", w.id, "error", err)
		}
	}
}

// partitionRun accumulates one partition's results and flushes them.
type partitionRun struct {
	store      checkpoint.Store
	flushEvery int
	logger     *slog.Logger

	mu      sync.Mutex
	state   *types.PartitionState
	pending int

	flushMu sync.Mutex
}

func (r *partitionRun) record(ctx context.Context, res types.MatchResult) {
	r.mu.Lock()
	if ctx.Err() != nil {
		// Cancelled work may be degraded; leave the row for the resumed run.
		r.mu.Unlock()
		return
	}
	r.state.Record(res)
	r.pending++
	due := r.pending >= r.flushEvery
	r.mu.Unlock()

	if due {
		r.flush(ctx)
	}
}

func (r *partitionRun) flush(ctx context.Context) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if r.pending == 0 {
		r.mu.Unlock()
		return
	}
	snap := r.state.Clone()
	r.pending = 0
	r.mu.Unlock()

	if err := r.store.Save(ctx, snap); err != nil {
		r.logger.Warn("checkpoint save failed", "rows", len(snap.Results), "error", err)
		return
	}
	r.logger.Debug("checkpoint saved", "rows", len(snap.Results))
}

// RunPartition processes partition id of total over posts, resuming from the
// stored checkpoint. It returns the partition's results ordered by row. On
// cancellation it returns what was finished together with the context error.
func (e *Engine) RunPartition(ctx context.Context, posts []types.PostRecord, id, total int) ([]types.MatchResult, error) {
	return e.runPartition(ctx, posts, InputDigest(posts), id, total)
}

func (e *Engine) runPartition(ctx context.Context, posts []types.PostRecord, digest string, id, total int) ([]types.MatchResult, error) {
	lo, hi, err := Bounds(len(posts), id, total)
	if err != nil {
		return nil, err
	}
	part := posts[lo:hi]
	logger := e.logger.With("partition", id, "total_partitions", total)

	state, found, err := e.opts.Checkpoints.Load(ctx, e.opts.RunID, id, total)
	switch {
	case err != nil:
		logger.Warn("checkpoint unreadable, starting partition fresh", "error", err)
		found = false
	case found && state.InputDigest != digest:
		logger.Warn("checkpoint belongs to a different input, starting partition fresh",
			"run_id", e.opts.RunID, "checkpoint_digest", state.InputDigest, "input_digest", digest)
		found = false
	case found:
		logger.Info("resuming partition from checkpoint", "done", len(state.Results))
	}
	if !found {
		state = types.NewPartitionState(e.opts.RunID, id, total)
		state.InputDigest = digest
	}

	var todo []types.PostRecord
	for _, post := range part {
		if !state.Done(post.RowIndex) {
			todo = append(todo, post)
		}
	}
	logger.Info("partition started", "rows", len(part), "remaining", len(todo))

	run := &partitionRun{
		store:      e.opts.Checkpoints,
		flushEvery: e.opts.FlushEvery,
		logger:     logger,
		state:      state,
	}

	if len(todo) > 0 {
		e.process(ctx, todo, run, logger)
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	run.flush(flushCtx)
	cancel()

	results := make([]types.MatchResult, 0, len(part))
	run.mu.Lock()
	for _, post := range part {
		if res, ok := run.state.Results[post.RowIndex]; ok {
			results = append(results, res)
		}
	}
	run.mu.Unlock()
	sort.Slice(results, func(i, j int) bool { return results[i].RowIndex < results[j].RowIndex })

	if err := ctx.Err(); err != nil {
		logger.Warn("partition interrupted", "finished", len(results), "rows", len(part))
		return results, err
	}
	logger.Info("partition finished", "rows", len(results))
	return results, nil
}

func (e *Engine) process(ctx context.Context, todo []types.PostRecord, run *partitionRun, logger *slog.Logger) {
	workers := min(e.opts.Concurrency, len(todo))
	pool, err := NewWorkerPool(ctx, workers, workers, e.acquire(logger), e.release(logger))
	if err != nil {
		logger.Error("worker pool failed to start", "error", err)
		return
	}
	defer pool.Close()

	for _, post := range todo {
		job := func(ctx context.Context, w *worker) {
			bodies := search.BodySourceFunc(func(ctx context.Context, url string) string {
				return e.bodies.Fetch(ctx, url, w.renderer())
			})
			run.record(ctx, e.processor.Process(ctx, post, bodies))
		}
		if err := pool.Submit(ctx, job); err != nil {
			return
		}
	}
}

// RunBatch runs every partition of posts in this process and concatenates
// the results in partition order.
func (e *Engine) RunBatch(ctx context.Context, posts []types.PostRecord, total int) ([]types.MatchResult, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total partitions must be > 0 (got %d)", total)
	}
	digest := InputDigest(posts)
	parts := make([][]types.MatchResult, total)
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.ParallelPartitions > 0 {
		g.SetLimit(e.opts.ParallelPartitions)
	}
	for id := 0; id < total; id++ {
		g.Go(func() error {
			res, err := e.runPartition(gctx, posts, digest, id, total)
			parts[id] = res
			return err
		})
	}
	err := g.Wait()

	var out []types.MatchResult
	for _, p := range parts {
		out = append(out, p...)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return out, fmt.Errorf("run batch: %w", err)
	}
	return out, err
}

// InputDigest fingerprints a whole batch so a checkpoint is only resumed
// against the posts it was written for.
func InputDigest(posts []types.PostRecord) string {
	h := sha256.New()
	var n [8]byte
	field := func(s string) {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	binary.BigEndian.PutUint64(n[:], uint64(len(posts)))
	h.Write(n[:])
	for _, p := range posts {
		binary.BigEndian.PutUint64(n[:], uint64(p.RowIndex))
		h.Write(n[:])
		field(p.Keyword)
		field(p.Platform)
		field(p.URL)
		field(p.Title)
		field(p.Body)
		field(p.PublishedAt)
		field(p.Writer)
	}
	return hex.EncodeToString(h.Sum(nil))
}
