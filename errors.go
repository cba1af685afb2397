package colgo

import (
	"errors"

	"github.com/hupe1980/colgo/embedding"
	"github.com/hupe1980/colgo/planner"
	"github.com/hupe1980/colgo/upload"
)

var (
	// ErrEmptyQuery is returned for queries that produce no vectors.
	ErrEmptyQuery = planner.ErrEmptyQuery

	// ErrDraining is returned when ingesting while uploads are draining.
	ErrDraining = upload.ErrDraining

	// ErrClosed is returned after the pipeline has been closed.
	ErrClosed = upload.ErrClosed
)

// IsDimensionMismatch reports whether err is a vector dimensionality mismatch
// between the query/page vectors and the configured model dimension.
func IsDimensionMismatch(err error) bool {
	var dm *embedding.ErrDimensionMismatch
	return errors.As(err, &dm)
}

// IsInvalidShape reports whether err stems from a declared patch grid that is
// inconsistent with the number of patches.
func IsInvalidShape(err error) bool {
	var is *embedding.ErrInvalidShape
	return errors.As(err, &is)
}
