package embedding

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSet(p, dim int) PatchSet {
	set := make(PatchSet, p)
	for i := range set {
		set[i] = make([]float32, dim)
		for d := range set[i] {
			// Deterministic, sign-varied values.
			set[i][d] = float32((i*dim+d)%7) - 3
		}
	}
	return set
}

func TestPool_CountCorrect(t *testing.T) {
	tests := []struct {
		patches   int
		groupSize int
		want      int
	}{
		{1024, 27, 38},
		{10, 3, 4},
		{9, 3, 3},
		{1, 4, 1},
		{5, 5, 1},
	}

	for _, tt := range tests {
		tr := NewTransformer(tt.groupSize)
		pooled, err := tr.Pool(makeSet(tt.patches, 8), AxisRows, Grid{})
		require.NoError(t, err)
		assert.Len(t, pooled, tt.want, "P=%d g=%d", tt.patches, tt.groupSize)
	}
}

func TestPool_MeanCorrect(t *testing.T) {
	tr := NewTransformer(2)
	set := PatchSet{
		{1, 2},
		{3, 4},
		{5, 6},
	}

	pooled, err := tr.Pool(set, AxisRows, Grid{})
	require.NoError(t, err)
	require.Len(t, pooled, 2)

	assert.Equal(t, []float32{2, 3}, pooled[0])
	// Last group is shorter: mean of one vector is the vector itself.
	assert.Equal(t, []float32{5, 6}, pooled[1])
}

func TestPool_ColumnsTransposed(t *testing.T) {
	tr := NewTransformer(2)
	// 2x2 grid in row-major order.
	set := PatchSet{
		{0}, {1},
		{2}, {3},
	}
	grid := Grid{Width: 2, Height: 2}

	rows, err := tr.Pool(set, AxisRows, grid)
	require.NoError(t, err)
	cols, err := tr.Pool(set, AxisColumns, grid)
	require.NoError(t, err)

	// Rows keep sequence order: (0,1) and (2,3).
	assert.Equal(t, PatchSet{{0.5}, {2.5}}, rows)
	// Columns traverse column-major: (0,2) and (1,3).
	assert.Equal(t, PatchSet{{1}, {2}}, cols)
}

func TestPool_InvalidShape(t *testing.T) {
	tr := NewTransformer(4)
	set := makeSet(10, 4)

	_, err := tr.Pool(set, AxisColumns, Grid{Width: 3, Height: 4})
	var shapeErr *ErrInvalidShape
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 10, shapeErr.Patches)
}

func TestPool_Deterministic(t *testing.T) {
	tr := NewTransformer(27)
	set := makeSet(1024, 16)

	a, err := tr.Pool(set, AxisRows, Grid{Width: 32, Height: 32})
	require.NoError(t, err)
	b, err := tr.Pool(set, AxisRows, Grid{Width: 32, Height: 32})
	require.NoError(t, err)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("pooling identical input must yield bit-identical output")
	}
}

func TestPool_Empty(t *testing.T) {
	tr := NewTransformer(4)
	pooled, err := tr.Pool(PatchSet{}, AxisRows, Grid{})
	require.NoError(t, err)
	assert.Empty(t, pooled)
}

func TestQuantize_SignBits(t *testing.T) {
	tr := NewTransformer(4)
	set := PatchSet{
		{1.0, -1.0, 0.0, -0.5, 2.5, -2.5, 0.25, -0.25},
	}

	bin, err := tr.Quantize(set)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	require.Len(t, bin[0], 1)

	// >= 0 -> 1, MSB-first: 1,0,1,0,1,0,1,0 = 0xAA
	assert.Equal(t, byte(0xAA), bin[0][0])
}

func TestQuantize_Packing(t *testing.T) {
	tr := NewTransformer(4)

	// 10 dims -> 2 bytes, trailing bits zero.
	vec := make([]float32, 10)
	for i := range vec {
		vec[i] = 1
	}
	bin, err := tr.Quantize(PatchSet{vec})
	require.NoError(t, err)
	require.Len(t, bin[0], 2)
	assert.Equal(t, byte(0xFF), bin[0][0])
	assert.Equal(t, byte(0xC0), bin[0][1])
}

func TestQuantize_Idempotent(t *testing.T) {
	tr := NewTransformer(4)
	set := makeSet(64, 128)

	a, err := tr.Quantize(set)
	require.NoError(t, err)
	b, err := tr.Quantize(set)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestQuantize_DimensionMismatch(t *testing.T) {
	tr := NewTransformer(4)
	set := PatchSet{
		{1, 2, 3},
		{1, 2},
	}

	_, err := tr.Quantize(set)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)
}

func TestTransform_DerivedFromSameSnapshot(t *testing.T) {
	tr := NewTransformer(27)
	set := makeSet(1024, 32)

	full, pooled, bin, err := tr.Transform(set, Grid{Width: 32, Height: 32})
	require.NoError(t, err)

	assert.Equal(t, set, full)
	assert.Len(t, pooled.Rows, 38)
	assert.Len(t, pooled.Columns, 38)
	assert.Len(t, bin, 1024)
	assert.Len(t, bin[0], 4)
}
