package engine

import (
	"context"
	"errors"
	"sync"
)

// Job runs on a worker with that worker's private state.
type Job[S any] func(ctx context.Context, state S)

// WorkerPool runs jobs on a fixed set of goroutines. Each worker acquires its
// own state when it starts and releases it when it exits, so state such as a
// browser session is never shared and jobs on one worker run one at a time.
type WorkerPool[S any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan Job[S]
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorkerPool starts concurrency workers. acquire is called once per worker
// with its index; release is called with the same state on every exit path.
func NewWorkerPool[S any](parent context.Context, concurrency, queueSize int, acquire func(ctx context.Context, worker int) S, release func(S)) (*WorkerPool[S], error) {
	if concurrency <= 0 || queueSize < 0 {
		return nil, errors.New("worker pool requires positive concurrency and non-negative queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	pool := &WorkerPool[S]{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan Job[S], queueSize),
	}
	for i := 0; i < concurrency; i++ {
		pool.wg.Add(1)
		go pool.run(i, acquire, release)
	}
	return pool, nil
}

func (p *WorkerPool[S]) run(worker int, acquire func(context.Context, int) S, release func(S)) {
	defer p.wg.Done()
	state := acquire(p.ctx, worker)
	if release != nil {
		defer release(state)
	}
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job(p.ctx, state)
		}
	}
}

// Submit queues a job, blocking while the queue is full.
func (p *WorkerPool[S]) Submit(ctx context.Context, job Job[S]) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close lets workers finish every queued job, then stops them. Cancelling
// the parent context stops workers without draining.
func (p *WorkerPool[S]) Close() {
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		p.cancel()
	})
}
