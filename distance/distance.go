// Package distance provides the similarity primitives used by both retrieval
// stages: dot products for single vectors, MaxSim aggregation for multi-vector
// sets, and Hamming distance for binary-quantized vectors.
package distance

import "math/bits"

// Dot calculates the dot product of two vectors over their shared length.
// Callers are expected to validate dimensions up front; the truncation here
// only keeps a mismatch from panicking.
func Dot(a, b []float32) float32 {
	if len(b) < len(a) {
		a = a[:len(b)]
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// MaxSim computes the late-interaction similarity between a query vector set
// and a candidate vector set: for every query vector, the maximum dot product
// against any candidate vector, summed across query vectors.
//
// An empty candidate set scores 0.
func MaxSim(query, candidate [][]float32) float32 {
	var score float32
	for _, q := range query {
		var best float32
		first := true
		for _, c := range candidate {
			d := Dot(q, c)
			if first || d > best {
				best = d
				first = false
			}
		}
		if !first {
			score += best
		}
	}
	return score
}

// Hamming calculates the Hamming distance between two packed bit vectors.
// Assumes slices are the same length.
func Hamming(a, b []byte) int {
	var dist int
	i := 0
	for ; i+8 <= len(a) && i+8 <= len(b); i += 8 {
		aw := uint64(a[i]) | uint64(a[i+1])<<8 | uint64(a[i+2])<<16 | uint64(a[i+3])<<24 |
			uint64(a[i+4])<<32 | uint64(a[i+5])<<40 | uint64(a[i+6])<<48 | uint64(a[i+7])<<56
		bw := uint64(b[i]) | uint64(b[i+1])<<8 | uint64(b[i+2])<<16 | uint64(b[i+3])<<24 |
			uint64(b[i+4])<<32 | uint64(b[i+5])<<40 | uint64(b[i+6])<<48 | uint64(b[i+7])<<56
		dist += bits.OnesCount64(aw ^ bw)
	}
	for ; i < len(a) && i < len(b); i++ {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}
