package exprwalk

import (
	"context"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// RecordDependencyOnExpr walks exprTree against rangeTable and records a
// dependency edge of type behavior from depender to every object the
// expression references. This is the general entry point used for rule
// actions and view query trees, where there is no single "owning" relation
// to partition self-references against.
func RecordDependencyOnExpr(ctx context.Context, store depgraph.Store, classes *catalog.Registry,
	depender objaddr.Address, expr Node, rangeTable []RTE, behavior depgraph.EdgeType) error {
	w := New(classes)
	out := objaddr.NewSet(8)
	if err := w.WalkExpr(expr, rangeTable, out); err != nil {
		return err
	}
	out.Dedupe()
	return store.RecordMultiple(ctx, depender, out.Iterate(), behavior)
}

// RecordDependencyOnSingleRelExpr walks expr as a column default, CHECK
// constraint, or index expression/predicate scoped to a single relation,
// recording references to relOid itself with selfBehavior and every other
// reference with behavior. This mirrors the split the index lifecycle and
// constraint machinery both need: a generated column referencing its own
// table is an internal self-dependency, not an ordinary one.
func RecordDependencyOnSingleRelExpr(ctx context.Context, store depgraph.Store, classes *catalog.Registry,
	depender objaddr.Address, expr Node, relOid int64, numAttrs int32,
	behavior, selfBehavior depgraph.EdgeType) error {
	w := New(classes)
	self, other, err := w.WalkSingleRelExpr(expr, relOid, numAttrs)
	if err != nil {
		return err
	}
	if err := store.RecordMultiple(ctx, depender, other.Iterate(), behavior); err != nil {
		return err
	}
	return store.RecordMultiple(ctx, depender, self.Iterate(), selfBehavior)
}
