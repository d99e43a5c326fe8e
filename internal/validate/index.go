package validate

import (
	"context"

	"chartedroots/internal/store"
)

// IndexChecker is the part of the index store the validator can
// cross-check against.
type IndexChecker interface {
	ListDanglingEdges(ctx context.Context) ([]store.Edge, error)
}
