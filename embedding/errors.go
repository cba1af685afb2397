package embedding

import "fmt"

// ErrDimensionMismatch indicates that vectors within a set, or a query against
// a configured store, do not share a single dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidShape indicates that a declared patch grid is inconsistent with the
// number of patches in the set.
type ErrInvalidShape struct {
	Width   int
	Height  int
	Patches int
}

func (e *ErrInvalidShape) Error() string {
	return fmt.Sprintf("invalid shape: %dx%d grid does not cover %d patches", e.Width, e.Height, e.Patches)
}
