package colgo

import (
	"fmt"
	"time"

	"github.com/hupe1980/colgo/planner"
)

// Config is the single immutable configuration of a Pipeline. It is validated
// once at construction; ordering violations like SearchLimit > PrefetchLimit
// are configuration errors and fail fast at startup, never at query time.
type Config struct {
	// Dimension is the model-defined vector dimension D.
	Dimension int

	// GroupSize is the mean-pooling group size g. Changing it requires
	// re-indexing: index-time and query-time pooling must match.
	GroupSize int

	// BatchSize caps pages per bulk vector-store insert.
	BatchSize int

	// ByteBudget caps approximate resident vector bytes per bulk insert.
	ByteBudget int

	// InsertRetries bounds bulk insert attempts per batch.
	InsertRetries int

	// UploadWorkers is the fixed upload worker pool size W.
	UploadWorkers int

	// QueueCapacity is the bounded upload queue capacity Q.
	QueueCapacity int

	// MaxAttempts bounds put attempts per upload task.
	MaxAttempts int

	// BaseBackoff and MaxBackoff shape the retry delays for uploads.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// PutTimeout is the per-attempt deadline for object-store puts.
	PutTimeout time.Duration

	// DrainTimeout bounds how long ingestion waits for in-flight uploads.
	DrainTimeout time.Duration

	// PrefetchLimit is the stage-1 candidate count.
	PrefetchLimit int

	// SearchLimit is the final result count, at most PrefetchLimit.
	SearchLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:     dimension,
		GroupSize:     27,
		BatchSize:     4,
		ByteBudget:    64 << 20,
		InsertRetries: 3,
		UploadWorkers: 4,
		QueueCapacity: 64,
		MaxAttempts:   3,
		BaseBackoff:   100 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
		PutTimeout:    30 * time.Second,
		DrainTimeout:  30 * time.Second,
		PrefetchLimit: 200,
		SearchLimit:   20,
	}
}

// Validate checks the configuration once, at startup.
func (c Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	if c.GroupSize <= 0 {
		return fmt.Errorf("pooling group size must be positive, got %d", c.GroupSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.ByteBudget <= 0 {
		return fmt.Errorf("byte budget must be positive, got %d", c.ByteBudget)
	}
	if c.UploadWorkers <= 0 {
		return fmt.Errorf("upload workers must be positive, got %d", c.UploadWorkers)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.PrefetchLimit <= 0 || c.SearchLimit <= 0 || c.SearchLimit > c.PrefetchLimit {
		return &planner.ErrInvalidLimits{SearchLimit: c.SearchLimit, PrefetchLimit: c.PrefetchLimit}
	}
	return nil
}
