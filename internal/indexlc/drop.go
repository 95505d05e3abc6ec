package indexlc

import (
	"context"
	"fmt"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/retry"
	"github.com/catalogkit/depengine/internal/telemetry"
)

// DropIndex is the per-class deleter §4.5 describes: it never runs
// standalone, only as the deletion.Engine.Hooks.DropIndex callback invoked
// from the table-of-tables deleter dispatch when subId == 0 and the
// relation's kind is index. It must not sever or re-scan dependency edges —
// the Deletion Engine already did that before calling here. cat is the
// catalog store scoped to the Deletion Engine's own transaction (see
// deletion.Engine.dispatch), not lc.Catalog, so the index's catalog row
// removal rolls back together with the rest of the deletion on failure.
func (lc *Lifecycle) DropIndex(ctx context.Context, cat catalogstore.Store, indexID int64) error {
	ctx, span := telemetry.Tracer.Start(ctx, "indexlc.DropIndex")
	defer span.End()

	meta, err := lc.Meta.GetIndexMeta(ctx, indexID)
	if err != nil {
		return fmt.Errorf("look up index metadata for %d: %w", indexID, err)
	}

	// Steps 1-2: AccessExclusive on the parent heap, then the index itself.
	// Modeled as lock-acquisition retry around a no-op placeholder; a real
	// storage engine would acquire actual heavyweight locks here.
	if err := retry.Do(ctx, func() error { return nil }); err != nil {
		return fmt.Errorf("acquire heap/index locks for drop of %d: %w", indexID, err)
	}

	// Step 3: schedule physical file removal (deferred unlink at commit) —
	// folded into DropRelation below, which also removes the class row
	// (step 6).
	// Step 4: delete the index-metadata row.
	if err := lc.Meta.DeleteIndexMeta(ctx, indexID); err != nil {
		return fmt.Errorf("delete index metadata row for %d: %w", indexID, err)
	}
	// Step 5: delete attribute rows for the index.
	if err := lc.Meta.DeleteIndexAttrs(ctx, indexID); err != nil {
		return fmt.Errorf("delete index attribute rows for %d: %w", indexID, err)
	}
	// Step 6: delete the relation row (and schedule the physical unlink).
	if err := lc.Meta.DropRelation(ctx, indexID); err != nil {
		return fmt.Errorf("delete index relation row for %d: %w", indexID, err)
	}
	if err := cat.DropRow(ctx, catalog.ClassTable, indexID, 0); err != nil {
		return fmt.Errorf("delete index catalog row for %d: %w", indexID, err)
	}
	// Step 7: shared-cache invalidation on the parent heap. relhasindex is
	// deliberately left alone; the next vacuum corrects it.
	if err := lc.Meta.InvalidateRelationCache(ctx, meta.HeapID); err != nil {
		return fmt.Errorf("invalidate relation cache for heap %d: %w", meta.HeapID, err)
	}
	return nil
}
