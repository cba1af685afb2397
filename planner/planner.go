// Package planner executes the two-stage retrieval protocol for one query:
// an approximate prefetch over compact pooled vectors narrows the collection
// to a candidate set, then an exact MaxSim rerank over the candidates'
// full-resolution vectors produces the final ranking. Stage 2 never returns a
// page absent from stage 1's candidates.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/colgo/distance"
	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/queue"
	"github.com/hupe1980/colgo/vectorstore"
)

var (
	// ErrEmptyQuery is returned for queries that produce no vectors. It is a
	// client error, detected before contacting the vector store.
	ErrEmptyQuery = errors.New("empty query vector set")
)

// ErrInvalidLimits indicates a configuration where searchLimit exceeds
// prefetchLimit. It fails planner construction, never a query.
type ErrInvalidLimits struct {
	SearchLimit   int
	PrefetchLimit int
}

func (e *ErrInvalidLimits) Error() string {
	return fmt.Sprintf("invalid limits: searchLimit %d exceeds prefetchLimit %d", e.SearchLimit, e.PrefetchLimit)
}

// Result is one ranked search hit.
type Result struct {
	// ID is the matched page.
	ID vectorstore.PageID

	// Score is the exact stage-2 MaxSim score.
	Score float32

	// Rank starts at 1 for the best hit.
	Rank int

	// ImageKey references the page's raster image in the object store. The
	// image may still be mid-upload; the reference becomes fetchable once the
	// background upload completes.
	ImageKey string
}

// Planner executes queries against one collection. Safe for concurrent use;
// queries share no mutable state.
type Planner struct {
	encoder       embedding.Encoder
	store         vectorstore.Store
	transformer   *embedding.Transformer
	dimension     int
	prefetchLimit int
	searchLimit   int
	logger        *slog.Logger
}

// New validates the configuration and creates a Planner. The transformer must
// be the one used at index time: index-time and query-time pooling have to use
// the same group size or relevance silently degrades. dimension is the vector
// dimension of the indexed collection; query vectors are checked against it
// before any store call, so an encoder whose output arity diverges from the
// stored records fails typed instead of corrupting scores.
func New(encoder embedding.Encoder, store vectorstore.Store, transformer *embedding.Transformer, dimension, prefetchLimit, searchLimit int, logger *slog.Logger) (*Planner, error) {
	if prefetchLimit <= 0 || searchLimit <= 0 || searchLimit > prefetchLimit {
		return nil, &ErrInvalidLimits{SearchLimit: searchLimit, PrefetchLimit: prefetchLimit}
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension: %d", dimension)
	}
	if transformer.GroupSize() <= 0 {
		return nil, fmt.Errorf("invalid pooling group size: %d", transformer.GroupSize())
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Planner{
		encoder:       encoder,
		store:         store,
		transformer:   transformer,
		dimension:     dimension,
		prefetchLimit: prefetchLimit,
		searchLimit:   searchLimit,
		logger:        logger,
	}, nil
}

// Search runs the full protocol for one query string and returns up to
// searchLimit results, descending by exact score with ties broken by
// ascending page id.
func (p *Planner) Search(ctx context.Context, query string) ([]Result, error) {
	sets, err := p.encoder.EncodeQueries(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(sets) == 0 || sets[0].Len() == 0 {
		return nil, ErrEmptyQuery
	}

	queryVectors := sets[0]
	if queryVectors.Dim() != p.dimension {
		return nil, &embedding.ErrDimensionMismatch{Expected: p.dimension, Actual: queryVectors.Dim()}
	}

	// Prepare: pool the query symmetrically to index-time pooling. Queries
	// have no raster geometry, so the fixed-stride fallback applies.
	pooledQuery, err := p.transformer.Pool(queryVectors, embedding.AxisRows, embedding.Grid{})
	if err != nil {
		return nil, fmt.Errorf("pool query: %w", err)
	}

	candidates, err := p.store.SearchPooled(ctx, pooledQuery, p.prefetchLimit)
	if err != nil {
		return nil, fmt.Errorf("prefetch: %w", err)
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}
	p.logger.Debug("prefetch complete", "candidates", len(candidates))

	return p.rerank(ctx, queryVectors, candidates)
}

// rerank fetches the candidates' full-resolution vectors and scores them
// exactly. Only prefetched pages can appear in the output.
func (p *Planner) rerank(ctx context.Context, queryVectors embedding.PatchSet, candidates []vectorstore.Candidate) ([]Result, error) {
	ids := make([]vectorstore.PageID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	full, err := p.store.FetchFull(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch full vectors: %w", err)
	}

	items := make([]queue.Item, 0, len(full))
	for id, rec := range full {
		items = append(items, queue.Item{
			ID:    id,
			Score: distance.MaxSim(queryVectors, rec.Full),
		})
	}

	top := queue.TopK(items, p.searchLimit)
	results := make([]Result, len(top))
	for i, it := range top {
		results[i] = Result{
			ID:       it.ID,
			Score:    it.Score,
			Rank:     i + 1,
			ImageKey: full[it.ID].ImageKey,
		}
	}

	p.logger.Debug("rerank complete", "results", len(results))
	return results, nil
}

// SearchLimit returns the configured maximum result count.
func (p *Planner) SearchLimit() int { return p.searchLimit }

// PrefetchLimit returns the configured stage-1 candidate count.
func (p *Planner) PrefetchLimit() int { return p.prefetchLimit }
