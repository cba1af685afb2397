// Package upload delivers page raster images to the object store without
// blocking the indexing critical path. A bounded task queue feeds a fixed
// worker pool; transient failures are retried with capped exponential backoff
// and every terminal outcome is recorded as a Result.
//
// Backpressure is explicit: Enqueue blocks once the queue is full rather than
// dropping tasks. Callers that cannot tolerate blocking should check Pending
// before submitting large batches.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/colgo/objectstore"
)

var (
	// ErrClosed is returned when enqueueing into a closed pipeline.
	ErrClosed = errors.New("upload pipeline closed")

	// ErrDraining is returned when enqueueing while a drain is in progress.
	ErrDraining = errors.New("upload pipeline draining")
)

type options struct {
	queueCapacity int
	workers       int
	maxAttempts   int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	putTimeout    time.Duration
	limiter       *rate.Limiter
	resultFn      func(Result)
	logger        *slog.Logger
}

// Option configures the pipeline.
type Option func(*options)

// WithQueueCapacity sets the bounded queue capacity (default 64).
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.queueCapacity = n
	}
}

// WithWorkers sets the fixed worker pool size (default 4).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMaxAttempts sets how often a transiently failing put is attempted
// before the task is reported as failed (default 3).
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithBackoff sets the exponential backoff base and ceiling between retry
// attempts (defaults 100ms and 5s).
func WithBackoff(base, ceiling time.Duration) Option {
	return func(o *options) {
		o.baseBackoff = base
		o.maxBackoff = ceiling
	}
}

// WithPutTimeout sets the per-attempt deadline for object store puts
// (default 30s). A timed-out attempt counts as a transient failure.
func WithPutTimeout(d time.Duration) Option {
	return func(o *options) {
		o.putTimeout = d
	}
}

// WithRateLimit throttles aggregate upload throughput to roughly
// bytesPerSec. Zero or negative disables throttling.
func WithRateLimit(bytesPerSec int) Option {
	return func(o *options) {
		if bytesPerSec > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
		}
	}
}

// WithResultFunc registers a callback invoked with every terminal Result,
// in addition to the drain summary. The callback runs on worker goroutines
// and must not block.
func WithResultFunc(fn func(Result)) Option {
	return func(o *options) {
		o.resultFn = fn
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Pipeline is the bounded-concurrency background upload pipeline.
type Pipeline struct {
	store objectstore.Store
	opts  options

	tasks    chan Task
	notify   chan struct{}
	wg       sync.WaitGroup
	submitMu sync.RWMutex
	closed   atomic.Bool
	draining atomic.Bool

	pending   atomic.Int64
	inFlight  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	results []Result
}

// New creates a pipeline and starts its workers immediately.
func New(store objectstore.Store, optFns ...Option) *Pipeline {
	o := options{
		queueCapacity: 64,
		workers:       4,
		maxAttempts:   3,
		baseBackoff:   100 * time.Millisecond,
		maxBackoff:    5 * time.Second,
		putTimeout:    30 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	p := &Pipeline{
		store:  store,
		opts:   o,
		tasks:  make(chan Task, o.queueCapacity),
		notify: make(chan struct{}, 1),
	}

	p.wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go p.worker()
	}

	return p
}

// Enqueue submits a task. It returns immediately while the queue has
// capacity and blocks otherwise until a worker frees a slot, the context is
// done, or the pipeline shuts down. Enqueueing during a drain fails with
// ErrDraining so the drain cannot wait forever.
func (p *Pipeline) Enqueue(ctx context.Context, task Task) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.draining.Load() {
		return ErrDraining
	}

	task.EnqueuedAt = time.Now()
	p.pending.Add(1)

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Pending counts tasks without a terminal outcome yet.
func (p *Pipeline) Pending() int {
	return int(p.pending.Load())
}

// Stats returns a point-in-time snapshot of pipeline state.
func (p *Pipeline) Stats() Stats {
	return Stats{
		QueueDepth: len(p.tasks),
		Pending:    int(p.pending.Load()),
		InFlight:   int(p.inFlight.Load()),
		Workers:    p.opts.workers,
		Succeeded:  p.succeeded.Load(),
		Failed:     p.failed.Load(),
	}
}

// Drain blocks until every task enqueued so far has a terminal outcome, then
// returns the Results accumulated since the last drain. New enqueues are
// rejected while draining. The context bounds the wait; on expiry the
// results collected so far are returned together with the context error.
func (p *Pipeline) Drain(ctx context.Context) ([]Result, error) {
	if !p.draining.CompareAndSwap(false, true) {
		return nil, ErrDraining
	}
	defer p.draining.Store(false)

	// Barrier: an Enqueue that read the draining flag before it was set may
	// still be mid-submit under the read lock. Waiting for the write lock
	// flushes those out, so the pending count below is complete.
	p.submitMu.Lock()
	p.submitMu.Unlock() //nolint:staticcheck // empty section is the barrier

	for p.pending.Load() > 0 {
		select {
		case <-p.notify:
		case <-ctx.Done():
			return p.takeResults(), ctx.Err()
		}
	}

	return p.takeResults(), nil
}

// Close shuts the pipeline down after finishing all queued tasks.
// It is idempotent.
func (p *Pipeline) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.tasks)
	p.submitMu.Unlock()

	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.process(task)
	}
}

// process drives one task to a terminal outcome: success, retries exhausted,
// or permanent failure.
func (p *Pipeline) process(task Task) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	var lastErr error
	attempts := 0

	for attempts < p.opts.maxAttempts {
		attempts++

		lastErr = p.attempt(task)
		if lastErr == nil {
			p.finish(Result{Key: task.Key, Success: true, Attempts: attempts})
			return
		}
		if !objectstore.IsTransient(lastErr) {
			p.opts.logger.Warn("upload failed permanently", "key", task.Key, "attempts", attempts, "error", lastErr)
			p.finish(Result{Key: task.Key, Attempts: attempts, Err: lastErr})
			return
		}

		if attempts < p.opts.maxAttempts {
			delay := backoff(attempts, p.opts.baseBackoff, p.opts.maxBackoff)
			p.opts.logger.Debug("upload retry", "key", task.Key, "attempt", attempts, "backoff", delay)
			time.Sleep(delay)
		}
	}

	p.opts.logger.Warn("upload retries exhausted", "key", task.Key, "attempts", attempts, "error", lastErr)
	p.finish(Result{Key: task.Key, Attempts: attempts, Err: lastErr})
}

func (p *Pipeline) attempt(task Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.putTimeout)
	defer cancel()

	if p.opts.limiter != nil {
		n := len(task.Payload)
		if burst := p.opts.limiter.Burst(); n > burst {
			n = burst
		}
		if err := p.opts.limiter.WaitN(ctx, n); err != nil {
			return objectstore.Transient(err)
		}
	}

	return p.store.Put(ctx, task.Key, task.Payload)
}

func (p *Pipeline) finish(res Result) {
	if res.Success {
		p.succeeded.Add(1)
	} else {
		p.failed.Add(1)
	}

	p.mu.Lock()
	p.results = append(p.results, res)
	p.mu.Unlock()

	if p.opts.resultFn != nil {
		p.opts.resultFn(res)
	}

	p.pending.Add(-1)

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipeline) takeResults() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := p.results
	p.results = nil
	return res
}

// backoff returns the capped exponential delay before the next attempt.
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	d := base << (attempt - 1)
	if d > ceiling || d <= 0 {
		d = ceiling
	}
	return d
}
