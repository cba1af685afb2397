package embedding

import "context"

// Encoder is the embedding model collaborator. Implementations are expected to
// be synchronous, batched, and to return vectors of a fixed, model-defined
// dimension.
type Encoder interface {
	// EncodeImages returns one PatchSet per input image, in input order.
	EncodeImages(ctx context.Context, images [][]byte) ([]PatchSet, error)

	// EncodeQueries returns one PatchSet per input query string, in input order.
	EncodeQueries(ctx context.Context, queries []string) ([]PatchSet, error)

	// Dimension returns the model's fixed output vector dimension.
	Dimension() int
}
