package memstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/vectorstore"
)

func record(doc string, page int, v float32) vectorstore.Record {
	return vectorstore.Record{
		ID:   vectorstore.PageID{DocID: doc, Page: page},
		Full: embedding.PatchSet{{v, 0}, {0, v}},
		Pooled: embedding.PooledSet{
			Rows:    embedding.PatchSet{{v, v}},
			Columns: embedding.PatchSet{{v, -v}},
		},
		Binary:   embedding.BinarySet{{0xAA}},
		ImageKey: vectorstore.PageID{DocID: doc, Page: page}.String() + ".png",
	}
}

func TestInsertBatch_DedupByPageID(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{record("doc", 1, 1)}))
	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{record("doc", 1, 2)}))

	assert.Equal(t, 1, s.Len())

	full, err := s.FetchFull(ctx, []vectorstore.PageID{{DocID: "doc", Page: 1}})
	require.NoError(t, err)
	assert.Equal(t, float32(2), full[vectorstore.PageID{DocID: "doc", Page: 1}].Full[0][0])
}

func TestSearchPooled_RanksAndLimits(t *testing.T) {
	ctx := context.Background()
	s := New()

	records := []vectorstore.Record{
		record("doc", 1, 1),
		record("doc", 2, 3),
		record("doc", 3, 2),
	}
	require.NoError(t, s.InsertBatch(ctx, records))

	query := embedding.PatchSet{{1, 1}}
	candidates, err := s.SearchPooled(ctx, query, 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, vectorstore.PageID{DocID: "doc", Page: 2}, candidates[0].ID)
	assert.Equal(t, vectorstore.PageID{DocID: "doc", Page: 3}, candidates[1].ID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
}

func TestSearchPooled_SmallCollectionReturnsAll(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{
		record("doc", 1, 1),
		record("doc", 2, 2),
	}))

	candidates, err := s.SearchPooled(ctx, embedding.PatchSet{{1, 0}}, 200)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestSearchPooled_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{record("doc", 1, 1)}))

	// 4-dim query against a 2-dim collection must fail typed, not panic.
	_, err := s.SearchPooled(ctx, embedding.PatchSet{{1, 0, 0, 0}}, 10)
	var dimErr *embedding.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 4, dimErr.Actual)
}

func TestDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{
		record("keep", 1, 1),
		record("drop", 1, 1),
		record("drop", 2, 1),
	}))

	require.NoError(t, s.DeleteByDocument(ctx, "drop"))
	assert.Equal(t, 1, s.Len())

	full, err := s.FetchFull(ctx, []vectorstore.PageID{
		{DocID: "keep", Page: 1},
		{DocID: "drop", Page: 1},
	})
	require.NoError(t, err)
	assert.Len(t, full, 1)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertBatch(ctx, []vectorstore.Record{
		record("doc", 1, 1),
		record("doc", 2, 2),
	}))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	restored := New()
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 2, restored.Len())

	id := vectorstore.PageID{DocID: "doc", Page: 2}
	full, err := restored.FetchFull(ctx, []vectorstore.PageID{id})
	require.NoError(t, err)
	assert.Equal(t, embedding.BinarySet{{0xAA}}, full[id].Binary)
	assert.Equal(t, "doc/page_2.png", full[id].ImageKey)
}
