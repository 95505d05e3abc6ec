package deletion

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/catalogkit/depengine/internal/objaddr"
)

// PerformDeletionBatch runs PerformDeletion concurrently across a set of
// independent roots — e.g. several schemas dropped in the same DROP OWNED
// sweep that share no dependency edges with each other. Callers are
// responsible for knowing the roots are independent; the registry's own
// row-exclusive locking still serializes any contention that turns out to
// overlap. The first error from any root cancels the remaining ones via the
// shared context and is returned; callers that need every root's individual
// outcome should call PerformDeletion in a loop instead.
func (e *Engine) PerformDeletionBatch(ctx context.Context, roots []objaddr.Address, mode Mode) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			return e.PerformDeletion(ctx, root, mode)
		})
	}
	return g.Wait()
}
