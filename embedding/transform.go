package embedding

// Transformer derives the pooled and binary-quantized representations of a
// page from its raw patch vectors. It is stateless apart from configuration
// and safe for concurrent use.
//
// The same group size must be used at index time and query time; asymmetric
// pooling silently degrades relevance, so callers validate the configuration
// once at construction rather than per call.
type Transformer struct {
	groupSize int
	threshold float32
}

// NewTransformer creates a Transformer that pools contiguous groups of
// groupSize patches. The quantization threshold is 0.0 (sign-based).
func NewTransformer(groupSize int) *Transformer {
	return &Transformer{
		groupSize: groupSize,
		threshold: 0.0,
	}
}

// GroupSize returns the configured pooling group size.
func (t *Transformer) GroupSize() int { return t.groupSize }

// Pool partitions the patch sequence into contiguous groups of the configured
// size along the requested raster axis and returns the arithmetic mean vector
// per group, in original order. The last group may be shorter. For any P
// patches the result has exactly ceil(P/groupSize) vectors.
//
// AxisColumns requires a declared grid to define the column-major traversal;
// a grid whose area does not equal the patch count fails with ErrInvalidShape.
// With a zero grid both axes fall back to fixed-stride chunking in sequence
// order.
func (t *Transformer) Pool(set PatchSet, axis Axis, grid Grid) (PatchSet, error) {
	if len(set) == 0 {
		return PatchSet{}, nil
	}
	if !set.Uniform() {
		return nil, &ErrDimensionMismatch{Expected: set.Dim(), Actual: oddDim(set)}
	}

	ordered := set
	if !grid.IsZero() {
		if grid.Width <= 0 || grid.Height <= 0 || grid.Width*grid.Height != len(set) {
			return nil, &ErrInvalidShape{Width: grid.Width, Height: grid.Height, Patches: len(set)}
		}
		if axis == AxisColumns {
			ordered = transpose(set, grid)
		}
	}

	dim := set.Dim()
	groups := (len(ordered) + t.groupSize - 1) / t.groupSize
	pooled := make(PatchSet, 0, groups)

	for start := 0; start < len(ordered); start += t.groupSize {
		end := start + t.groupSize
		if end > len(ordered) {
			end = len(ordered)
		}
		mean := make([]float32, dim)
		for _, v := range ordered[start:end] {
			for d, x := range v {
				mean[d] += x
			}
		}
		inv := 1 / float32(end-start)
		for d := range mean {
			mean[d] *= inv
		}
		pooled = append(pooled, mean)
	}

	return pooled, nil
}

// Quantize converts each vector to its packed sign representation: bit i is 1
// iff the value at dimension i is >= the threshold. Bits are packed in
// dimension order, most-significant-bit-first per byte, ceil(D/8) bytes per
// vector. Fails with ErrDimensionMismatch if the set dimension is not uniform.
func (t *Transformer) Quantize(set PatchSet) (BinarySet, error) {
	if len(set) == 0 {
		return BinarySet{}, nil
	}
	if !set.Uniform() {
		return nil, &ErrDimensionMismatch{Expected: set.Dim(), Actual: oddDim(set)}
	}

	dim := set.Dim()
	out := make(BinarySet, len(set))
	for i, v := range set {
		packed := make([]byte, (dim+7)/8)
		for d, x := range v {
			if x >= t.threshold {
				packed[d/8] |= 1 << (7 - uint(d)%8)
			}
		}
		out[i] = packed
	}

	return out, nil
}

// Transform derives the full triple for one page: the original patch set plus
// its pooled and binary representations, all from the same snapshot.
func (t *Transformer) Transform(set PatchSet, grid Grid) (PatchSet, PooledSet, BinarySet, error) {
	rows, err := t.Pool(set, AxisRows, grid)
	if err != nil {
		return nil, PooledSet{}, nil, err
	}
	cols, err := t.Pool(set, AxisColumns, grid)
	if err != nil {
		return nil, PooledSet{}, nil, err
	}
	bin, err := t.Quantize(set)
	if err != nil {
		return nil, PooledSet{}, nil, err
	}
	return set, PooledSet{Rows: rows, Columns: cols}, bin, nil
}

// transpose reorders a row-major patch sequence into column-major traversal.
func transpose(set PatchSet, grid Grid) PatchSet {
	out := make(PatchSet, 0, len(set))
	for x := 0; x < grid.Width; x++ {
		for y := 0; y < grid.Height; y++ {
			out = append(out, set[y*grid.Width+x])
		}
	}
	return out
}

// oddDim returns the first dimension that differs from the head vector.
func oddDim(set PatchSet) int {
	d := len(set[0])
	for _, v := range set[1:] {
		if len(v) != d {
			return len(v)
		}
	}
	return d
}
