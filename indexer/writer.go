// Package indexer turns page-ingestion batches into durable vector-store
// records plus scheduled image uploads. Vector inserts are batched by count
// and approximate byte footprint; image uploads run through the background
// pipeline and never gate indexing progress.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/upload"
	"github.com/hupe1980/colgo/vectorstore"
)

// Page is one unit of ingestion: a page id, its patch vectors, the declared
// patch grid, and the raster image bytes destined for the object store.
type Page struct {
	ID      vectorstore.PageID
	Patches embedding.PatchSet
	Grid    embedding.Grid
	Image   []byte
}

// ImageKey returns the object-store key the page's raster is uploaded under.
func (p Page) ImageKey() string {
	return p.ID.String() + ".png"
}

// Summary aggregates the outcome of one ingestion run. Upload counts reflect
// the state at return time; images still in flight are reported as pending
// and settle when the caller drains the upload pipeline.
type Summary struct {
	BatchID       string
	PagesIndexed  int
	PagesFailed   int
	ImagesPending int
	ImagesFailed  int

	// Errors holds one entry per failed insert batch or rejected page.
	Errors []error
}

type options struct {
	dimension     int
	batchSize     int
	byteBudget    int
	insertRetries int
	insertBackoff time.Duration
	insertTimeout time.Duration
	logger        *slog.Logger
}

// Option configures the writer.
type Option func(*options)

// WithDimension sets the expected patch vector dimension. Pages whose vectors
// differ are rejected before any store call. Zero disables the check.
func WithDimension(n int) Option {
	return func(o *options) {
		o.dimension = n
	}
}

// WithBatchSize caps the number of pages per bulk insert (default 4).
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithByteBudget caps the approximate resident vector bytes per bulk insert
// (default 64MB). A single page exceeding the budget is sent alone.
func WithByteBudget(n int) Option {
	return func(o *options) {
		o.byteBudget = n
	}
}

// WithInsertRetries sets how often a failed bulk insert is retried at batch
// granularity (default 3 attempts total).
func WithInsertRetries(n int) Option {
	return func(o *options) {
		o.insertRetries = n
	}
}

// WithInsertBackoff sets the delay base between bulk insert retries
// (default 250ms).
func WithInsertBackoff(d time.Duration) Option {
	return func(o *options) {
		o.insertBackoff = d
	}
}

// WithInsertTimeout sets the per-attempt deadline for bulk inserts
// (default 60s).
func WithInsertTimeout(d time.Duration) Option {
	return func(o *options) {
		o.insertTimeout = d
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Writer drives the indexing path: transform, batch, bulk insert, schedule
// uploads. Safe for sequential use; one ingestion run at a time.
type Writer struct {
	transformer *embedding.Transformer
	store       vectorstore.Store
	uploads     *upload.Pipeline
	breaker     *gobreaker.CircuitBreaker
	opts        options
}

// NewWriter creates a Writer. The upload pipeline may be shared with other
// writers; the circuit breaker guards the vector store against hammering an
// unavailable endpoint.
func NewWriter(transformer *embedding.Transformer, store vectorstore.Store, uploads *upload.Pipeline, optFns ...Option) *Writer {
	o := options{
		batchSize:     4,
		byteBudget:    64 << 20,
		insertRetries: 3,
		insertBackoff: 250 * time.Millisecond,
		insertTimeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vectorstore-insert",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Writer{
		transformer: transformer,
		store:       store,
		uploads:     uploads,
		breaker:     breaker,
		opts:        o,
	}
}

// IndexBatch ingests the given pages: every page is transformed into its
// three representations, accumulated into size-bounded insert batches, and
// its raster image is enqueued for background upload. A page counts as
// indexed once its vector record is durably written; image-upload completion
// is tracked separately.
//
// A failed bulk insert fails all pages of that batch and none of them are
// marked indexed; remaining batches still proceed. The returned Summary is
// always complete, never silently truncated.
func (w *Writer) IndexBatch(ctx context.Context, pages []Page) (*Summary, error) {
	summary := &Summary{BatchID: uuid.NewString()}

	records, err := w.transform(ctx, pages, summary)
	if err != nil {
		return summary, err
	}

	// Schedule uploads before the inserts so object-store latency overlaps
	// with the bulk insert calls. Uploads of pages whose insert later fails
	// are harmless: keys are stable and re-ingestion overwrites them.
	for _, page := range pages {
		if len(page.Image) == 0 {
			continue
		}
		if err := w.uploads.Enqueue(ctx, upload.Task{Key: page.ImageKey(), Payload: page.Image}); err != nil {
			summary.ImagesFailed++
			summary.Errors = append(summary.Errors, fmt.Errorf("enqueue %s: %w", page.ImageKey(), err))
		} else {
			summary.ImagesPending++
		}
	}

	for start := 0; start < len(records); {
		end, bytes := w.cut(records, start)

		batch := records[start:end]
		if err := w.insertBatch(ctx, batch); err != nil {
			summary.PagesFailed += len(batch)
			summary.Errors = append(summary.Errors, fmt.Errorf("insert batch of %d pages (%d bytes): %w", len(batch), bytes, err))
			w.opts.logger.Error("bulk insert failed", "batch_id", summary.BatchID, "pages", len(batch), "error", err)
		} else {
			summary.PagesIndexed += len(batch)
			w.opts.logger.Debug("bulk insert ok", "batch_id", summary.BatchID, "pages", len(batch), "bytes", bytes)
		}

		start = end
	}

	return summary, nil
}

// transform runs the embedding transformation for all pages in parallel,
// bounded by GOMAXPROCS. A transformation error fails the whole run: it
// signals malformed input, not store trouble.
func (w *Writer) transform(ctx context.Context, pages []Page, summary *Summary) ([]vectorstore.Record, error) {
	records := make([]vectorstore.Record, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			page := pages[i]
			if w.opts.dimension > 0 && page.Patches.Dim() != w.opts.dimension {
				return fmt.Errorf("transform %s: %w", page.ID, &embedding.ErrDimensionMismatch{Expected: w.opts.dimension, Actual: page.Patches.Dim()})
			}

			full, pooled, binary, err := w.transformer.Transform(page.Patches, page.Grid)
			if err != nil {
				return fmt.Errorf("transform %s: %w", page.ID, err)
			}

			records[i] = vectorstore.Record{
				ID:       page.ID,
				Full:     full,
				Pooled:   pooled,
				Binary:   binary,
				ImageKey: page.ImageKey(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		summary.PagesFailed = len(pages)
		summary.Errors = append(summary.Errors, err)
		return nil, err
	}

	return records, nil
}

// cut returns the exclusive end index of the next insert batch starting at
// start, honoring both the page-count cap and the byte budget. A single
// oversized page is sent alone, never dropped.
func (w *Writer) cut(records []vectorstore.Record, start int) (int, int) {
	bytes := 0
	end := start

	for end < len(records) && end-start < w.opts.batchSize {
		size := records[end].SizeBytes()
		if end > start && bytes+size > w.opts.byteBudget {
			break
		}
		bytes += size
		end++
	}

	return end, bytes
}

// insertBatch performs one bulk insert with bounded retry. Each attempt runs
// through the circuit breaker and its own deadline; an open breaker counts
// as a transient failure.
func (w *Writer) insertBatch(ctx context.Context, batch []vectorstore.Record) error {
	var lastErr error

	for attempt := 1; attempt <= w.opts.insertRetries; attempt++ {
		_, lastErr = w.breaker.Execute(func() (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, w.opts.insertTimeout)
			defer cancel()

			return nil, w.store.InsertBatch(attemptCtx, batch)
		})
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		if attempt < w.opts.insertRetries {
			delay := w.opts.insertBackoff << (attempt - 1)
			w.opts.logger.Debug("bulk insert retry", "attempt", attempt, "backoff", delay, "error", lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}
