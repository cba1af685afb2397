package embedding

// PatchSet is an ordered sequence of fixed-dimension embedding vectors, one per
// visual patch of a rasterized page. It is created once by the embedding model
// and never mutated afterwards.
type PatchSet [][]float32

// Len returns the number of vectors in the set.
func (s PatchSet) Len() int { return len(s) }

// Dim returns the vector dimension, or 0 for an empty set.
func (s PatchSet) Dim() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Uniform reports whether every vector in the set has the same dimension.
func (s PatchSet) Uniform() bool {
	if len(s) == 0 {
		return true
	}
	d := len(s[0])
	for _, v := range s[1:] {
		if len(v) != d {
			return false
		}
	}
	return true
}

// PooledSet holds the mean-pooled representations of one page, one sequence per
// raster axis. Both sequences preserve original patch order and are derived
// deterministically from the same PatchSet snapshot.
type PooledSet struct {
	Rows    PatchSet `json:"rows"`
	Columns PatchSet `json:"columns"`
}

// BinarySet is the bit-packed sign representation of a PatchSet: one bit per
// dimension, ceil(D/8) bytes per vector, MSB-first within each byte.
type BinarySet [][]byte

// Grid declares the patch layout of a page in raster order. A zero Grid means
// the layout is unknown and pooling falls back to fixed-stride chunking of the
// patch sequence.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether no layout was declared.
func (g Grid) IsZero() bool { return g.Width == 0 && g.Height == 0 }

// Axis selects the raster axis a pooling pass groups along.
type Axis int

const (
	// AxisRows groups patches in row-major traversal order.
	AxisRows Axis = iota
	// AxisColumns groups patches in column-major traversal order.
	AxisColumns
)

func (a Axis) String() string {
	switch a {
	case AxisRows:
		return "rows"
	case AxisColumns:
		return "columns"
	default:
		return "unknown"
	}
}
