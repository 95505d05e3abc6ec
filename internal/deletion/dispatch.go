package deletion

import (
	"context"
	"fmt"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// dispatch selects and invokes the per-class deletion routine for obj (§4.4
// "Deleter dispatch"). Each deleter is responsible only for its own catalog
// row; dependent objects have already been handled by cascadeToDependents,
// and a deleter must never itself recurse through dependencies. cat is the
// catalog store scoped to the caller's transaction (see recursiveDeletion),
// never e.Catalog directly, so these writes roll back with everything else
// if the overall operation later fails.
func (e *Engine) dispatch(ctx context.Context, cat catalogstore.Store, obj objaddr.Address) error {
	class := e.Classes.ClassOf(obj.ClassID)

	switch class {
	case catalog.ClassTable:
		if obj.SubID > 0 {
			return cat.DropRow(ctx, catalog.ClassTable, obj.ObjectID, obj.SubID)
		}
		kind, err := e.Hooks.RelKindOf(ctx, obj.ObjectID)
		if err != nil {
			return fmt.Errorf("resolve relation kind for %s: %w", e.describe(ctx, obj), err)
		}
		if kind == RelIndex {
			if e.Hooks.DropIndex == nil {
				return fmt.Errorf("%w: no DropIndex hook wired for index %s", ErrInternal, e.describe(ctx, obj))
			}
			return e.Hooks.DropIndex(ctx, cat, obj.ObjectID)
		}
		return e.dropHeapAndColumns(ctx, cat, obj.ObjectID)

	case catalog.ClassFunction, catalog.ClassType, catalog.ClassCast, catalog.ClassConstraint,
		catalog.ClassConversion, catalog.ClassColumnDefault, catalog.ClassLanguage,
		catalog.ClassOperator, catalog.ClassOperatorClass, catalog.ClassRewriteRule,
		catalog.ClassTrigger, catalog.ClassSchema:
		return cat.DropRow(ctx, class, obj.ObjectID, 0)

	default:
		return fmt.Errorf("%w: unknown object class for classID %d", ErrInternal, obj.ClassID)
	}
}

// dropHeapAndColumns performs the "anything else -> full heap drop with
// catalog cleanup" branch: the whole-relation row plus every column
// sub-object row it owns. Column dependency edges are the engine's own
// concern (already severed/cascaded before dispatch); this only cleans up
// the catalog rows themselves.
func (e *Engine) dropHeapAndColumns(ctx context.Context, cat catalogstore.Store, tableObjectID int64) error {
	cols, err := cat.ColumnsOf(ctx, tableObjectID)
	if err != nil {
		return fmt.Errorf("list columns of table %d before drop: %w", tableObjectID, err)
	}
	for _, col := range cols {
		if err := cat.DropRow(ctx, catalog.ClassTable, tableObjectID, col.SubID); err != nil {
			return fmt.Errorf("drop column %d of table %d: %w", col.SubID, tableObjectID, err)
		}
	}
	return cat.DropRow(ctx, catalog.ClassTable, tableObjectID, 0)
}
