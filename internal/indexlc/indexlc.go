// Package indexlc implements index creation, dependency registration, drop,
// and reindex (§4.5) — the canonical worked example of how a
// dependency-producing command uses internal/depgraph and internal/exprwalk.
// Grounded on the teacher's internal/storage/sqlite/epics.go and queries.go
// (catalog-row insert sequencing under withTx) and the migration idiom of
// "insert metadata row, then advance visibility".
package indexlc

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/deletion"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/exprwalk"
	"github.com/catalogkit/depengine/internal/objaddr"
	"github.com/catalogkit/depengine/internal/retry"
	"github.com/catalogkit/depengine/internal/telemetry"
)

// Errors, matching §7's taxonomy for this component.
var (
	ErrInvalidParameter    = errors.New("indexlc: invalid parameter")
	ErrDuplicateTable      = errors.New("indexlc: relation with that name already exists")
	ErrFeatureNotSupported = errors.New("indexlc: feature not supported")
)

// ConstraintType distinguishes the three constraint kinds a unique/exclusion
// index may back, per §4.5 step 10.
type ConstraintType int

const (
	ConstraintNone ConstraintType = iota
	ConstraintPrimaryKey
	ConstraintUnique
	ConstraintExclusion
)

// ColumnKey is one key attribute of the index being created: either a plain
// column reference (AttNum > 0) or an expression (AttNum == 0, Expr set).
type ColumnKey struct {
	AttNum  int32 // 1-indexed heap column number; 0 means Expr is used instead
	OpClass int64 // operator class object id governing this key
	Expr    exprwalk.Node
}

// IndexInfo is the caller-supplied description of the index to build,
// corresponding to the indexInfo parameter in §4.5 step 3 and the
// index-metadata row fields in §6.
type IndexInfo struct {
	Keys           []ColumnKey
	Predicate      exprwalk.Node // nil if the index is not partial
	IsUnique       bool
	IsPrimary      bool
	IsConstraint   bool
	ConstraintType ConstraintType
	AccessMethodID int64
}

// NumAttrs reports the number of key attributes (§4.5 step 2: "verify
// numIndexAttrs >= 1").
func (info IndexInfo) NumAttrs() int { return len(info.Keys) }

// AccessMethod is the per-AM build contract consumed from the access-method
// layer (§6): build a fresh index from scratch, or leave it empty for an
// unlogged-style / bootstrap-deferred build.
type AccessMethod interface {
	Build(ctx context.Context, heapID, indexID int64, info IndexInfo) error
	BuildEmpty(ctx context.Context, indexID int64) error
}

// PermissionChecker gates index creation against a heap the caller may not
// own or that is a protected system catalog (§4.5 step 2). A nil checker
// allows everything, matching a single-user/bootstrap-only deployment.
type PermissionChecker func(ctx context.Context, heapID int64) error

// CreateIndexRequest bundles everything createIndex (§4.5) needs.
type CreateIndexRequest struct {
	HeapID         int64
	IndexName      string
	Schema         string
	Info           IndexInfo
	ClassObjectIDs []int64 // one opclass per key, parallel to Info.Keys; §4.5 step 10
	IndexOID       int64   // pre-specified oid (bootstrap); 0 means allocate one
	Bootstrap      bool
	SkipBuild      bool
	IsSharedIndex  bool // forbidden after bootstrap, per §4.5 step 2
}

// Lifecycle runs createIndex/dropIndex/reindex against a dependency
// registry, a catalog row store, and an access method.
type Lifecycle struct {
	Deps       depgraph.TxStore
	Catalog    catalogstore.Store
	Meta       MetaStore
	Classes    *catalog.Registry
	AM         AccessMethod
	CheckPerms PermissionChecker

	bootstrapDone bool // true once the process is past bootstrap; gates IsSharedIndex
}

// NewLifecycle builds a Lifecycle. bootstrapDone should be true for any
// normal (non-bootstrap) process.
func NewLifecycle(deps depgraph.TxStore, cat catalogstore.Store, meta MetaStore, classes *catalog.Registry, am AccessMethod, perms PermissionChecker, bootstrapDone bool) *Lifecycle {
	return &Lifecycle{Deps: deps, Catalog: cat, Meta: meta, Classes: classes, AM: am, CheckPerms: perms, bootstrapDone: bootstrapDone}
}

// CreateIndex performs §4.5's twelve-step sequence and returns the new
// index's object id.
func (lc *Lifecycle) CreateIndex(ctx context.Context, req CreateIndexRequest) (int64, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "indexlc.CreateIndex")
	defer span.End()

	// Step 2: verify numIndexAttrs >= 1; permissions; shared-index-after-
	// bootstrap; duplicate name.
	if req.Info.NumAttrs() < 1 {
		return 0, fmt.Errorf("%w: index must have at least one key attribute", ErrInvalidParameter)
	}
	if lc.CheckPerms != nil {
		if err := lc.CheckPerms(ctx, req.HeapID); err != nil {
			return 0, err
		}
	}
	if req.IsSharedIndex && lc.bootstrapDone {
		return 0, fmt.Errorf("%w: cannot create a shared index after bootstrap", ErrFeatureNotSupported)
	}
	exists, err := lc.Meta.RelationExists(ctx, req.Schema, req.IndexName)
	if err != nil {
		return 0, fmt.Errorf("check for existing relation named %s.%s: %w", req.Schema, req.IndexName, err)
	}
	if exists {
		return 0, fmt.Errorf("%w: relation %s.%s already exists", ErrDuplicateTable, req.Schema, req.IndexName)
	}

	// Step 4: allocate the index's object id (pass-through if caller
	// pre-specified one, e.g. during bootstrap).
	indexID := req.IndexOID
	if indexID == 0 {
		indexID, err = lc.Meta.AllocateOID(ctx)
		if err != nil {
			return 0, fmt.Errorf("allocate index oid: %w", err)
		}
	}

	// Steps 5-7: create the index relation's catalog row and physical file,
	// under lock-acquisition retry (grounded on the teacher's
	// newEmbeddedOpenBackoff).
	if err := retry.Do(ctx, func() error {
		return lc.Meta.CreateRelation(ctx, indexID, req.Schema, req.IndexName, deletion.RelIndex)
	}); err != nil {
		return 0, fmt.Errorf("create index relation row: %w", err)
	}
	// Mirror the new index into the generic catalog row store too: the
	// deletion engine's describe/exists/ColumnsOf path (internal/deletion,
	// internal/catalogstore) only ever consults catalogstore.Store, never
	// MetaStore directly.
	if err := lc.Catalog.CreateRow(ctx, catalogstore.Row{
		Class: catalog.ClassTable, ObjectID: indexID, Schema: req.Schema, Name: req.IndexName, Qualify: true,
	}); err != nil {
		return 0, fmt.Errorf("create index catalog row: %w", err)
	}

	// Step 8: attribute OIDs / one row per index attribute.
	for i, key := range req.Info.Keys {
		if err := lc.Meta.InsertIndexAttr(ctx, indexID, int32(i+1), key.AttNum); err != nil {
			return 0, fmt.Errorf("insert index attribute %d: %w", i+1, err)
		}
	}

	// Step 9: index-metadata row.
	if err := lc.Meta.InsertIndexMeta(ctx, indexID, req.HeapID, req.Info); err != nil {
		return 0, fmt.Errorf("insert index metadata row: %w", err)
	}

	// Step 10: register dependencies.
	if err := lc.registerDependencies(ctx, indexID, req); err != nil {
		return 0, fmt.Errorf("register index dependencies: %w", err)
	}

	// Step 11: advance visibility.
	if err := lc.Deps.CommandCounterIncrement(ctx); err != nil {
		return 0, fmt.Errorf("command counter increment after dependency registration: %w", err)
	}

	// Step 12: build.
	switch {
	case req.Bootstrap:
		if err := lc.Meta.DeferBuild(ctx, indexID); err != nil {
			return 0, fmt.Errorf("register deferred bootstrap build: %w", err)
		}
	case req.SkipBuild:
		if err := lc.AM.BuildEmpty(ctx, indexID); err != nil {
			return 0, fmt.Errorf("build empty index: %w", err)
		}
		if err := lc.Meta.SetHasIndex(ctx, req.HeapID, true); err != nil {
			return 0, fmt.Errorf("set relhasindex on heap %d: %w", req.HeapID, err)
		}
	default:
		if err := lc.AM.Build(ctx, req.HeapID, indexID, req.Info); err != nil {
			return 0, fmt.Errorf("build index: %w", err)
		}
		if err := lc.Meta.SetHasIndex(ctx, req.HeapID, true); err != nil {
			return 0, fmt.Errorf("set relhasindex on heap %d: %w", req.HeapID, err)
		}
	}

	return indexID, nil
}

// registerDependencies is §4.5 step 10's own sub-sequence: constraint vs.
// bare-index AUTO/INTERNAL split, opclass NORMAL edges, and expression/
// predicate walking.
func (lc *Lifecycle) registerDependencies(ctx context.Context, indexID int64, req CreateIndexRequest) error {
	tableClassID := lc.Classes.IDOf(catalog.ClassTable)
	indexAddr := objaddr.Address{ClassID: tableClassID, ObjectID: indexID}
	heapAddr := objaddr.Address{ClassID: tableClassID, ObjectID: req.HeapID}

	if req.Info.IsConstraint {
		constraintID, err := lc.Meta.CreateConstraintRow(ctx, req.HeapID, req.Info.ConstraintType, req.Schema, req.IndexName)
		if err != nil {
			return fmt.Errorf("create constraint row: %w", err)
		}
		constraintAddr := objaddr.Address{ClassID: lc.Classes.IDOf(catalog.ClassConstraint), ObjectID: constraintID}
		if err := lc.Deps.RecordSingle(ctx, indexAddr, constraintAddr, depgraph.Internal); err != nil {
			return fmt.Errorf("record index->constraint internal edge: %w", err)
		}
		// "The constraint itself has a NORMAL edge to the parent heap and to
		// each constrained column."
		if err := lc.Deps.RecordSingle(ctx, constraintAddr, heapAddr, depgraph.Normal); err != nil {
			return fmt.Errorf("record constraint->heap normal edge: %w", err)
		}
		for _, key := range req.Info.Keys {
			if key.AttNum == 0 {
				continue
			}
			colAddr := objaddr.Address{ClassID: tableClassID, ObjectID: req.HeapID, SubID: key.AttNum}
			if err := lc.Deps.RecordSingle(ctx, constraintAddr, colAddr, depgraph.Normal); err != nil {
				return fmt.Errorf("record constraint->column normal edge: %w", err)
			}
		}
	} else {
		anySimple := false
		for _, key := range req.Info.Keys {
			if key.AttNum == 0 {
				continue
			}
			anySimple = true
			colAddr := objaddr.Address{ClassID: tableClassID, ObjectID: req.HeapID, SubID: key.AttNum}
			if err := lc.Deps.RecordSingle(ctx, indexAddr, colAddr, depgraph.Auto); err != nil {
				return fmt.Errorf("record index->column auto edge: %w", err)
			}
		}
		if !anySimple {
			if err := lc.Deps.RecordSingle(ctx, indexAddr, heapAddr, depgraph.Auto); err != nil {
				return fmt.Errorf("record index->heap auto edge (all-expression index): %w", err)
			}
		}
	}

	for _, opclassID := range req.ClassObjectIDs {
		opclassAddr := objaddr.Address{ClassID: lc.Classes.IDOf(catalog.ClassOperatorClass), ObjectID: opclassID}
		if err := lc.Deps.RecordSingle(ctx, indexAddr, opclassAddr, depgraph.Normal); err != nil {
			return fmt.Errorf("record index->opclass normal edge: %w", err)
		}
	}

	numAttrs := int32(0) // unknown/unchecked: the heap descriptor isn't modeled here
	for _, key := range req.Info.Keys {
		if key.AttNum == 0 && key.Expr != nil {
			if err := exprwalk.RecordDependencyOnSingleRelExpr(ctx, lc.Deps, lc.Classes, indexAddr, key.Expr,
				req.HeapID, numAttrs, depgraph.Normal, depgraph.Auto); err != nil {
				return fmt.Errorf("record expression-column dependency: %w", err)
			}
		}
	}
	if req.Info.Predicate != nil {
		if err := exprwalk.RecordDependencyOnSingleRelExpr(ctx, lc.Deps, lc.Classes, indexAddr, req.Info.Predicate,
			req.HeapID, numAttrs, depgraph.Normal, depgraph.Auto); err != nil {
			return fmt.Errorf("record predicate dependency: %w", err)
		}
	}
	return nil
}
