// Package deletion implements the two-phase cascade/restrict deletion
// engine (§4.4): a pre-scan that makes the outcome order-independent,
// followed by a recursive traversal that severs dependency edges and
// invokes a per-class deleter dispatch. Grounded on the teacher's
// internal/storage/sqlite/delete.go (resolveDeleteSet, expandWithDependents,
// validateNoDependents, trackOrphanedIssues, executeDelete — the same
// pre-scan/cascade/delete three-beat shape) and internal/storage/dolt/
// dependencies.go (DetectCycles, IsBlocked).
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
	"github.com/catalogkit/depengine/internal/telemetry"
)

// Mode selects CASCADE or RESTRICT semantics for performDeletion.
type Mode int

const (
	Cascade Mode = iota
	Restrict
)

func (m Mode) String() string {
	if m == Restrict {
		return "RESTRICT"
	}
	return "CASCADE"
}

// RelKind distinguishes the table-of-tables relation kinds the deleter
// dispatch must treat differently when subId == 0.
type RelKind int

const (
	RelOrdinary RelKind = iota
	RelIndex
	RelSequence
	RelView
	RelToast
	RelComposite
	RelSpecial
)

// Errors, matching the taxonomy in §7.
var (
	ErrDependentObjectsStillExist = errors.New("dependent objects still exist")
	ErrInternal                   = errors.New("internal error")
)

// Hooks plugs in the collaborators the engine needs but does not own:
// relation-kind lookup (to route a whole-table drop to the index-drop
// pipeline), the index-drop pipeline itself, and comment cleanup. Index
// creation/drop lives in internal/indexlc, which depends on this package
// (dropIndex is "driven only through the Deletion Engine", per §4.5) — so
// the engine takes the index dropper as an injected function rather than
// importing indexlc, to avoid a cycle.
type Hooks struct {
	RelKindOf func(ctx context.Context, tableObjectID int64) (RelKind, error)
	// DropIndex takes the tx-scoped catalog store the dispatch is currently
	// running under, so its own catalog-row deletion participates in the
	// same transaction as the rest of the deletion (§4.4 step 4 / §5).
	DropIndex      func(ctx context.Context, cat catalogstore.Store, indexOid int64) error
	DeleteComments func(ctx context.Context, classID, objectID int64, subID int32) error
}

// Engine runs performDeletion / deleteWhatDependsOn against a dependency
// registry and a catalog row store.
type Engine struct {
	Store   depgraph.TxStore
	Catalog catalogstore.Store
	Classes *catalog.Registry
	Hooks   Hooks
	Log     *slog.Logger
}

// New builds an Engine. A nil logger falls back to slog.Default.
func New(store depgraph.TxStore, cat catalogstore.Store, classes *catalog.Registry, hooks Hooks, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Store: store, Catalog: cat, Classes: classes, Hooks: hooks, Log: log}
}

// catalogTxKey carries the tx-scoped catalog store on the context inside
// PerformDeletion / DeleteWhatDependsOn, so describe reads through the open
// catalog transaction rather than waiting for a second connection.
type catalogTxKey struct{}

func (e *Engine) describe(ctx context.Context, addr objaddr.Address) string {
	class := e.Classes.ClassOf(addr.ClassID)
	cat := e.Catalog
	if tx, ok := ctx.Value(catalogTxKey{}).(catalogstore.Store); ok {
		cat = tx
	}
	row, err := cat.Get(ctx, class, addr.ObjectID, addr.SubID)
	if err != nil {
		return fmt.Sprintf("%s %d", class, addr.ObjectID)
	}
	return catalogstore.Describe(row)
}

// PerformDeletion is the top-level contract (§4.4): compute the root's
// description, open the registry for row-exclusive access, run Phase A then
// Phase B, and fail the whole operation if Phase B reports any RESTRICT
// violation.
func (e *Engine) PerformDeletion(ctx context.Context, root objaddr.Address, mode Mode) error {
	ctx, span := telemetry.Tracer.Start(ctx, "deletion.PerformDeletion")
	defer span.End()

	rootDesc := e.describe(ctx, root)

	// The catalog transaction wraps the dependency-registry transaction: if
	// the inner closure returns an error for any reason (a RESTRICT
	// violation, a Pin hit, a dispatch failure), both the edge removals and
	// every catalog row mutation performed along the way roll back together.
	// Without this, catalog-row deletes (an autocommitting store) would be
	// physically applied and visible even when the overall operation fails.
	return e.Catalog.WithTx(ctx, func(ctx context.Context, catTx catalogstore.Store) error {
		ctx = context.WithValue(ctx, catalogTxKey{}, catTx)
		return e.Store.WithRowExclusive(ctx, func(ctx context.Context, tx depgraph.Store) error {
			okToDelete := objaddr.NewSet(8)
			if err := e.findAutoDeletable(ctx, tx, root, okToDelete); err != nil {
				return err
			}

			ok, err := e.recursiveDeletion(ctx, tx, catTx, root, mode, nil, okToDelete, true)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrDependentObjectsStillExist, rootDesc)
			}
			return nil
		})
	})
}

// findAutoDeletable is Phase A: the closure of objects reachable from addr
// via AUTO/INTERNAL edges in the referent->depender direction.
func (e *Engine) findAutoDeletable(ctx context.Context, tx depgraph.Store, addr objaddr.Address, okToDelete *objaddr.Set) error {
	if okToDelete.ContainsOrParent(addr) {
		telemetry.CycleCuts.Add(ctx, 1)
		return nil
	}
	okToDelete.Add(addr)

	edges, err := tx.ScanByReferent(ctx, addr)
	if err != nil {
		return fmt.Errorf("scan referents during auto-deletable pre-scan: %w", err)
	}
	for _, edge := range edges {
		switch edge.Type {
		case depgraph.Normal:
			continue
		case depgraph.Auto, depgraph.Internal:
			if err := e.findAutoDeletable(ctx, tx, edge.Depender, okToDelete); err != nil {
				return err
			}
		case depgraph.Pin:
			return fmt.Errorf("%w: required by database system", ErrDependentObjectsStillExist)
		default:
			return fmt.Errorf("%w: unrecognized dependency type %q", ErrInternal, edge.Type)
		}
	}
	return nil
}

// deleteWhatDependsOn runs Phase A on addr but performs only Step 2 of
// recursiveDeletion: it cascades to every dependent of addr without
// deleting addr itself. Used to empty a schema before dropping the schema
// object proper.
func (e *Engine) DeleteWhatDependsOn(ctx context.Context, addr objaddr.Address, showNotices bool) error {
	return e.Catalog.WithTx(ctx, func(ctx context.Context, catTx catalogstore.Store) error {
		ctx = context.WithValue(ctx, catalogTxKey{}, catTx)
		return e.Store.WithRowExclusive(ctx, func(ctx context.Context, tx depgraph.Store) error {
			okToDelete := objaddr.NewSet(8)
			if err := e.findAutoDeletable(ctx, tx, addr, okToDelete); err != nil {
				return err
			}
			ok, err := e.cascadeToDependents(ctx, tx, catTx, addr, Cascade, okToDelete, showNotices)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrDependentObjectsStillExist, e.describe(ctx, addr))
			}
			return nil
		})
	})
}
