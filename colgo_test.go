package colgo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/objectstore"
	"github.com/hupe1980/colgo/vectorstore"
	"github.com/hupe1980/colgo/vectorstore/memstore"
)

// stubEncoder deterministically derives patch vectors from its inputs.
type stubEncoder struct {
	dim     int
	patches int
}

func (s *stubEncoder) encode(seed byte) embedding.PatchSet {
	set := make(embedding.PatchSet, s.patches)
	for i := range set {
		set[i] = make([]float32, s.dim)
		for d := range set[i] {
			set[i][d] = float32(int(seed)+i+d%3) / 10
		}
	}
	return set
}

func (s *stubEncoder) EncodeImages(_ context.Context, images [][]byte) ([]embedding.PatchSet, error) {
	sets := make([]embedding.PatchSet, len(images))
	for i, img := range images {
		var seed byte
		if len(img) > 0 {
			seed = img[0]
		}
		sets[i] = s.encode(seed)
	}
	return sets, nil
}

func (s *stubEncoder) EncodeQueries(_ context.Context, queries []string) ([]embedding.PatchSet, error) {
	sets := make([]embedding.PatchSet, len(queries))
	for i, q := range queries {
		var seed byte
		if len(q) > 0 {
			seed = q[0]
		}
		sets[i] = s.encode(seed)
	}
	return sets, nil
}

func (s *stubEncoder) Dimension() int { return s.dim }

func testConfig() Config {
	cfg := DefaultConfig(16)
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.DrainTimeout = 5 * time.Second
	return cfg
}

func pageInputs(enc *stubEncoder, n int) []PageInput {
	pages := make([]PageInput, n)
	for i := range pages {
		pages[i] = PageInput{
			Page:    i + 1,
			Patches: enc.encode(byte(i)),
			Image:   []byte(fmt.Sprintf("raster-%d", i)),
		}
	}
	return pages
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig(128)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.SearchLimit = bad.PrefetchLimit + 1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.GroupSize = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Dimension = -1
	assert.Error(t, bad.Validate())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig(16)
	cfg.SearchLimit = 500 // exceeds PrefetchLimit

	enc := &stubEncoder{dim: 16, patches: 32}
	_, err := New(enc, memstore.New(), objectstore.NewMemoryStore(), cfg)
	require.Error(t, err)
}

func TestPipeline_IngestProducesPooledCounts(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 1024}
	vectors := memstore.New()

	p, err := New(enc, vectors, objectstore.NewMemoryStore(), testConfig())
	require.NoError(t, err)
	defer p.Close()

	sum, err := p.Ingest(ctx, "ufo report", pageInputs(enc, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.PagesIndexed)
	assert.Equal(t, 0, sum.PagesFailed)
	assert.Equal(t, 3, sum.ImagesUploaded)
	assert.Equal(t, 0, sum.ImagesPending)

	// groupSize=27 over 1024 patches pools to ceil(1024/27)=38 per axis.
	for page := 1; page <= 3; page++ {
		id := vectorstore.PageID{DocID: "ufo_report", Page: page}
		full, err := vectors.FetchFull(ctx, []vectorstore.PageID{id})
		require.NoError(t, err)
		rec, ok := full[id]
		require.True(t, ok, "page %d must be indexed", page)

		assert.Len(t, rec.Pooled.Rows, 38)
		assert.Len(t, rec.Pooled.Columns, 38)
		assert.Len(t, rec.Full, 1024)
		assert.Len(t, rec.Binary, 1024)
	}
}

func TestPipeline_AskReturnsRankedResults(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 64}

	p, err := New(enc, memstore.New(), objectstore.NewMemoryStore(), testConfig())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Ingest(ctx, "report", pageInputs(enc, 5))
	require.NoError(t, err)

	results, err := p.Ask(ctx, "what happened?")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), testConfig().SearchLimit)

	for i, res := range results {
		assert.Equal(t, i+1, res.Rank)
		assert.NotEmpty(t, res.ImageKey)
		if i > 0 {
			assert.LessOrEqual(t, res.Score, results[i-1].Score)
		}
	}
}

func TestPipeline_IndexedDespiteFailedUpload(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 32}
	vectors := memstore.New()
	objects := objectstore.NewMemoryStore()

	// All three attempts for page 1 fail; the page must stay indexed.
	objects.FailPuts("report/page_1.png", 99)

	p, err := New(enc, vectors, objects, testConfig())
	require.NoError(t, err)
	defer p.Close()

	sum, err := p.Ingest(ctx, "report", pageInputs(enc, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.PagesIndexed)
	assert.Equal(t, 1, sum.ImagesUploaded)
	assert.Equal(t, 1, sum.ImagesFailed)
	assert.NotEmpty(t, sum.Errors)
	assert.Equal(t, 3, objects.PutCount("report/page_1.png"))

	assert.Equal(t, 2, vectors.Len())
}

func TestPipeline_Clear(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 32}
	vectors := memstore.New()
	objects := objectstore.NewMemoryStore()

	p, err := New(enc, vectors, objects, testConfig())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Ingest(ctx, "report", pageInputs(enc, 3))
	require.NoError(t, err)
	require.Equal(t, 3, vectors.Len())
	require.Equal(t, 3, objects.Len())

	require.NoError(t, p.Clear(ctx))

	assert.Equal(t, 0, vectors.Len())
	assert.Equal(t, 0, objects.Len())
	assert.Equal(t, 0, p.Status(ctx).Documents)
}

func TestPipeline_Status(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 32}

	cfg := testConfig()
	cfg.UploadWorkers = 3

	p, err := New(enc, memstore.New(), objectstore.NewMemoryStore(), cfg)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Ingest(ctx, "report", pageInputs(enc, 2))
	require.NoError(t, err)

	status := p.Status(ctx)
	assert.True(t, status.VectorStoreOK)
	assert.True(t, status.ObjectStoreOK)
	assert.Equal(t, 3, status.Uploads.Workers)
	assert.Equal(t, 1, status.Documents)
	assert.Equal(t, int64(2), status.Uploads.Succeeded)
}

func TestPipeline_IngestImages(t *testing.T) {
	ctx := context.Background()
	enc := &stubEncoder{dim: 16, patches: 32}
	vectors := memstore.New()
	objects := objectstore.NewMemoryStore()

	p, err := New(enc, vectors, objects, testConfig())
	require.NoError(t, err)
	defer p.Close()

	sum, err := p.IngestImages(ctx, "scan", [][]byte{[]byte("img-a"), []byte("img-b")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.PagesIndexed)
	assert.Equal(t, 2, vectors.Len())

	// Pages number from 1, matching the Ingest path's object keys.
	keys, err := objects.List(ctx, "scan/")
	require.NoError(t, err)
	assert.Equal(t, []string{"scan/page_1.png", "scan/page_2.png"}, keys)
}

func TestPipeline_AskRejectsWrongModelDimension(t *testing.T) {
	ctx := context.Background()
	pageEnc := &stubEncoder{dim: 16, patches: 32}

	// Query-side model emits 32-dim vectors against a 16-dim collection.
	wide := &stubEncoder{dim: 32, patches: 32}

	p, err := New(wide, memstore.New(), objectstore.NewMemoryStore(), testConfig())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Ingest(ctx, "report", pageInputs(pageEnc, 2))
	require.NoError(t, err)

	_, err = p.Ask(ctx, "anything")
	require.Error(t, err)
	assert.True(t, IsDimensionMismatch(err))
}
