// Package colgo implements late-interaction visual document retrieval: pages
// are indexed as multi-vector patch embeddings and queried with a two-stage
// prefetch + rerank protocol.
//
// Each page is stored under three representations derived from the same patch
// snapshot: the full-resolution patch vectors, mean-pooled vectors per raster
// axis, and binary-quantized sign bits. Queries prefetch candidates cheaply
// over the pooled vectors, then rerank exactly with MaxSim over the full
// vectors, cutting query cost by an order of magnitude on large collections
// without changing the final ranking.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	vectors := memstore.New()
//	objects := objectstore.NewMemoryStore()
//
//	p, _ := colgo.New(encoder, vectors, objects, colgo.DefaultConfig(128))
//	defer p.Close()
//
//	summary, _ := p.Ingest(ctx, "ufo-report", pages)
//	results, _ := p.Ask(ctx, "What did the witness describe?")
//
// Page raster images are uploaded to the object store in the background with
// bounded concurrency; a page becomes queryable as soon as its vector record
// is durable, which means a result's image reference can briefly point at an
// object that is still uploading. That staleness window is deliberate: it
// keeps object-store latency off the indexing critical path.
//
// Production deployments plug in real collaborators: a remote multi-vector
// engine behind vectorstore.Store and a MinIO or S3 bucket behind
// objectstore.Store.
package colgo
