// Package vectorstore defines the contract of the external multi-vector
// search engine: batched record inserts keyed by page id, approximate search
// over pooled vectors, and exact full-resolution fetches for reranking.
package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/colgo/embedding"
)

// PageID identifies one page of one document.
type PageID struct {
	DocID string `json:"doc_id"`
	Page  int    `json:"page"`
}

// String returns the canonical "doc/page_N" form used for object keys and logs.
func (p PageID) String() string {
	return fmt.Sprintf("%s/page_%d", p.DocID, p.Page)
}

// Compare orders page ids lexicographically by document, then by page number.
// It returns -1, 0 or +1.
func (p PageID) Compare(o PageID) int {
	if c := strings.Compare(p.DocID, o.DocID); c != 0 {
		return c
	}
	switch {
	case p.Page < o.Page:
		return -1
	case p.Page > o.Page:
		return 1
	default:
		return 0
	}
}

// Record is one page's durable entry in the vector store. Its three embedding
// representations are always derived from the same patch snapshot and are
// inserted atomically as one record.
type Record struct {
	ID       PageID              `json:"id"`
	Full     embedding.PatchSet  `json:"full"`
	Pooled   embedding.PooledSet `json:"pooled"`
	Binary   embedding.BinarySet `json:"binary"`
	ImageKey string              `json:"image_key"`
}

// SizeBytes approximates the resident size of the record's vector data. Used
// by the index writer to bound peak batch memory.
func (r Record) SizeBytes() int {
	n := 4 * len(r.Full) * r.Full.Dim()
	n += 4 * len(r.Pooled.Rows) * r.Pooled.Rows.Dim()
	n += 4 * len(r.Pooled.Columns) * r.Pooled.Columns.Dim()
	for _, b := range r.Binary {
		n += len(b)
	}
	return n
}

// Candidate is a stage-1 match: a page id with its approximate pooled score.
type Candidate struct {
	ID    PageID
	Score float32
}

// Store is the vector-search collaborator. Implementations are expected to
// deduplicate inserts by page-id key (at-least-once delivery from the caller's
// retries) and to be safe for concurrent readers.
type Store interface {
	// InsertBatch durably writes all records or none of them.
	InsertBatch(ctx context.Context, records []Record) error

	// SearchPooled returns up to topK candidate pages ranked by aggregate
	// pooled similarity against the query's pooled vectors. Collections
	// smaller than topK return every page.
	SearchPooled(ctx context.Context, query embedding.PatchSet, topK int) ([]Candidate, error)

	// FetchFull returns the full-resolution records for the given page ids.
	// Unknown ids are silently absent from the result.
	FetchFull(ctx context.Context, ids []PageID) (map[PageID]Record, error)

	// DeleteByDocument removes every page record of the given document.
	DeleteByDocument(ctx context.Context, docID string) error

	// Ping reports store connectivity.
	Ping(ctx context.Context) error
}
