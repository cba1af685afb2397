// Package memstore provides an in-memory vectorstore.Store implementation.
// It performs exact pooled MaxSim scoring instead of approximate search, which
// makes it suitable for tests, small local collections, and as a reference for
// the store contract. Snapshots can be persisted as zstd-compressed JSON so a
// local collection survives restarts without a remote engine.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/colgo/distance"
	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/queue"
	"github.com/hupe1980/colgo/vectorstore"
)

// Compile time check to ensure Store satisfies the vectorstore contract.
var _ vectorstore.Store = (*Store)(nil)

// Store is an in-memory, concurrency-safe vector store keyed by page id.
// Re-inserting an existing page id overwrites the previous record, which gives
// the at-least-once insert semantics the index writer relies on.
type Store struct {
	mu      sync.RWMutex
	records map[vectorstore.PageID]vectorstore.Record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[vectorstore.PageID]vectorstore.Record),
	}
}

// InsertBatch writes all records. In-memory writes cannot partially fail, so
// batch atomicity holds trivially.
func (s *Store) InsertBatch(ctx context.Context, records []vectorstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// SearchPooled scores every page's pooled vectors (both axes) against the
// pooled query via MaxSim and returns the topK candidates, descending by
// score with ties broken by ascending page id. Collections smaller than topK
// return every page. A query whose dimension differs from the stored vectors
// fails with ErrDimensionMismatch.
func (s *Store) SearchPooled(ctx context.Context, query embedding.PatchSet, topK int) ([]vectorstore.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	items := make([]queue.Item, 0, len(s.records))
	for id, rec := range s.records {
		pooled := make([][]float32, 0, len(rec.Pooled.Rows)+len(rec.Pooled.Columns))
		pooled = append(pooled, rec.Pooled.Rows...)
		pooled = append(pooled, rec.Pooled.Columns...)
		if len(pooled) > 0 && query.Dim() != len(pooled[0]) {
			s.mu.RUnlock()
			return nil, &embedding.ErrDimensionMismatch{Expected: len(pooled[0]), Actual: query.Dim()}
		}
		items = append(items, queue.Item{
			ID:    id,
			Score: distance.MaxSim(query, pooled),
		})
	}
	s.mu.RUnlock()

	top := queue.TopK(items, topK)
	candidates := make([]vectorstore.Candidate, len(top))
	for i, it := range top {
		candidates[i] = vectorstore.Candidate{ID: it.ID, Score: it.Score}
	}
	return candidates, nil
}

// FetchFull returns the stored records for the given page ids. Unknown ids are
// absent from the result.
func (s *Store) FetchFull(ctx context.Context, ids []vectorstore.PageID) (map[vectorstore.PageID]vectorstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[vectorstore.PageID]vectorstore.Record, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

// DeleteByDocument removes every page record of the given document.
func (s *Store) DeleteByDocument(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.records {
		if id.DocID == docID {
			delete(s.records, id)
		}
	}
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored page records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Save writes a zstd-compressed JSON snapshot of all records to w.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	records := make([]vectorstore.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(records); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// Load replaces the store contents with the snapshot read from r.
func (s *Store) Load(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create decompressor: %w", err)
	}
	defer zr.Close()

	var records []vectorstore.Record
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[vectorstore.PageID]vectorstore.Record, len(records))
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return nil
}

// SaveFile writes a snapshot to path, replacing any existing file.
func (s *Store) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFile loads a snapshot previously written by SaveFile.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.Load(f)
}
