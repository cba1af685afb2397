package colgo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/indexer"
	"github.com/hupe1980/colgo/objectstore"
	"github.com/hupe1980/colgo/planner"
	"github.com/hupe1980/colgo/upload"
	"github.com/hupe1980/colgo/vectorstore"
)

// SearchResult is one ranked hit returned by Ask.
type SearchResult = planner.Result

// PageInput is one page of a document to ingest: its patch vectors as
// produced by the embedding model, the declared patch grid, and the raster
// image bytes.
type PageInput struct {
	Page    int
	Patches embedding.PatchSet
	Grid    embedding.Grid
	Image   []byte
}

// IngestSummary reports the outcome of one ingestion run. Ingestion always
// completes with a summary; failures are counted, never silently truncated.
type IngestSummary struct {
	BatchID        string
	PagesIndexed   int
	PagesFailed    int
	ImagesUploaded int
	ImagesFailed   int
	ImagesPending  int

	// Errors holds one entry per failed insert batch, rejected page, or
	// failed upload.
	Errors []error
}

// Status is a point-in-time operational snapshot.
type Status struct {
	Uploads       upload.Stats
	Documents     int
	VectorStoreOK bool
	ObjectStoreOK bool
}

// Pipeline ties the indexing and retrieval paths together behind one handle.
// All collaborators are injected once at construction; there are no global
// client handles.
//
// Ingest runs one at a time; Ask may run concurrently with anything.
type Pipeline struct {
	cfg     Config
	opts    options
	encoder embedding.Encoder
	vectors vectorstore.Store
	objects objectstore.Store
	uploads *upload.Pipeline
	writer  *indexer.Writer
	planner *planner.Planner

	mu   sync.Mutex
	docs map[string]struct{}
}

// New validates cfg and wires the pipeline components. The encoder, vector
// store, and object store are external collaborators constructed by the
// caller.
func New(encoder embedding.Encoder, vectors vectorstore.Store, objects objectstore.Store, cfg Config, optFns ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := applyOptions(optFns)
	transformer := embedding.NewTransformer(cfg.GroupSize)

	uploads := upload.New(objects,
		upload.WithQueueCapacity(cfg.QueueCapacity),
		upload.WithWorkers(cfg.UploadWorkers),
		upload.WithMaxAttempts(cfg.MaxAttempts),
		upload.WithBackoff(cfg.BaseBackoff, cfg.MaxBackoff),
		upload.WithPutTimeout(cfg.PutTimeout),
		upload.WithRateLimit(o.uploadRateLimit),
		upload.WithResultFunc(o.uploadResultFn),
		upload.WithLogger(o.logger.Logger),
	)

	writer := indexer.NewWriter(transformer, vectors, uploads,
		indexer.WithDimension(cfg.Dimension),
		indexer.WithBatchSize(cfg.BatchSize),
		indexer.WithByteBudget(cfg.ByteBudget),
		indexer.WithInsertRetries(cfg.InsertRetries),
		indexer.WithLogger(o.logger.Logger),
	)

	pl, err := planner.New(encoder, vectors, transformer, cfg.Dimension, cfg.PrefetchLimit, cfg.SearchLimit, o.logger.Logger)
	if err != nil {
		uploads.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		opts:    o,
		encoder: encoder,
		vectors: vectors,
		objects: objects,
		uploads: uploads,
		writer:  writer,
		planner: pl,
		docs:    make(map[string]struct{}),
	}, nil
}

// Ingest indexes the given pages under docID and uploads their raster images
// in the background, then waits up to DrainTimeout for the uploads to settle.
// Pages whose vector records were written are queryable immediately, even if
// their image upload is still pending or failed.
func (p *Pipeline) Ingest(ctx context.Context, docID string, pages []PageInput) (*IngestSummary, error) {
	doc := sanitizeDocID(docID)
	logger := p.opts.logger.WithDocument(doc)

	in := make([]indexer.Page, len(pages))
	for i, page := range pages {
		in[i] = indexer.Page{
			ID:      vectorstore.PageID{DocID: doc, Page: page.Page},
			Patches: page.Patches,
			Grid:    page.Grid,
			Image:   page.Image,
		}
	}

	sum, err := p.writer.IndexBatch(ctx, in)
	out := &IngestSummary{
		BatchID:      sum.BatchID,
		PagesIndexed: sum.PagesIndexed,
		PagesFailed:  sum.PagesFailed,
		ImagesFailed: sum.ImagesFailed,
		Errors:       sum.Errors,
	}
	if err != nil {
		return out, err
	}

	if sum.PagesIndexed > 0 {
		p.mu.Lock()
		p.docs[doc] = struct{}{}
		p.mu.Unlock()
	}

	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout)
	defer cancel()

	results, drainErr := p.uploads.Drain(drainCtx)
	for _, res := range results {
		if res.Success {
			out.ImagesUploaded++
		} else {
			out.ImagesFailed++
			out.Errors = append(out.Errors, fmt.Errorf("upload %s after %d attempts: %w", res.Key, res.Attempts, res.Err))
		}
	}
	out.ImagesPending = p.uploads.Pending()
	if drainErr != nil && !errors.Is(drainErr, context.Canceled) {
		out.Errors = append(out.Errors, fmt.Errorf("drain uploads: %w", drainErr))
	}

	logger.Info("ingestion complete",
		"batch_id", out.BatchID,
		"pages_indexed", out.PagesIndexed,
		"pages_failed", out.PagesFailed,
		"images_uploaded", out.ImagesUploaded,
		"images_failed", out.ImagesFailed,
		"images_pending", out.ImagesPending,
	)

	return out, nil
}

// IngestImages is a convenience that first runs the embedding model over the
// raster images, then ingests the resulting patch sets. Pages are numbered
// from 1 in input order. grids may be nil when no patch layout is known.
func (p *Pipeline) IngestImages(ctx context.Context, docID string, images [][]byte, grids []embedding.Grid) (*IngestSummary, error) {
	sets, err := p.encoder.EncodeImages(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	if len(sets) != len(images) {
		return nil, fmt.Errorf("encoder returned %d sets for %d images", len(sets), len(images))
	}

	pages := make([]PageInput, len(images))
	for i := range images {
		var grid embedding.Grid
		if i < len(grids) {
			grid = grids[i]
		}
		pages[i] = PageInput{Page: i + 1, Patches: sets[i], Grid: grid, Image: images[i]}
	}

	return p.Ingest(ctx, docID, pages)
}

// Ask executes the two-stage retrieval protocol for one query and returns
// ranked results. Queries either succeed with a ranked list or fail with a
// single typed error; there are no partial result sets.
func (p *Pipeline) Ask(ctx context.Context, query string) ([]SearchResult, error) {
	return p.planner.Search(ctx, query)
}

// Clear removes every indexed document and its uploaded images. In-flight
// uploads are awaited first so the prefix delete cannot race a late put.
func (p *Pipeline) Clear(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout)
	defer cancel()

	if _, err := p.uploads.Drain(drainCtx); err != nil {
		return fmt.Errorf("await in-flight uploads: %w", err)
	}

	p.mu.Lock()
	docs := make([]string, 0, len(p.docs))
	for doc := range p.docs {
		docs = append(docs, doc)
	}
	p.mu.Unlock()

	for _, doc := range docs {
		if err := p.vectors.DeleteByDocument(ctx, doc); err != nil {
			return fmt.Errorf("delete document %s: %w", doc, err)
		}
		if err := p.objects.DeletePrefix(ctx, doc+"/"); err != nil {
			return fmt.Errorf("delete images of %s: %w", doc, err)
		}

		p.mu.Lock()
		delete(p.docs, doc)
		p.mu.Unlock()
	}

	return nil
}

// Status reports queue depth, worker utilization, and store connectivity.
func (p *Pipeline) Status(ctx context.Context) Status {
	p.mu.Lock()
	docs := len(p.docs)
	p.mu.Unlock()

	return Status{
		Uploads:       p.uploads.Stats(),
		Documents:     docs,
		VectorStoreOK: p.vectors.Ping(ctx) == nil,
		ObjectStoreOK: p.objects.Ping(ctx) == nil,
	}
}

// Close shuts down the background upload workers after finishing queued
// tasks. The pipeline must not be used afterwards.
func (p *Pipeline) Close() {
	p.uploads.Close()
}

// sanitizeDocID keeps object keys and page ids predictable: anything outside
// [A-Za-z0-9_-] becomes an underscore.
func sanitizeDocID(docID string) string {
	out := []byte(docID)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
