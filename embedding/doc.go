// Package embedding provides the multi-vector page representations used by the
// indexing and retrieval pipeline, together with the pure transformations that
// derive them: mean pooling over the patch grid and sign-based binary
// quantization.
//
// A page arrives as a PatchSet (one vector per visual patch, model-defined
// dimension). The Transformer derives two additional representations from it:
//
//   - PooledSet: mean-pooled vectors over contiguous patch groups, one sequence
//     per raster axis. An order of magnitude fewer vectors per page, used for
//     cheap stage-1 candidate prefetch.
//   - BinarySet: one sign bit per dimension, packed MSB-first. Used only for
//     optional coarse filtering paths.
//
// All transformations are deterministic: identical input yields bit-identical
// output, which re-indexing idempotence depends on.
package embedding
