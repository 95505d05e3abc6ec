package indexlc

import (
	"context"

	"github.com/catalogkit/depengine/internal/deletion"
)

// MetaStore is the index-metadata and relation-catalog contract consumed by
// Lifecycle. It models the "Class row" and "Index-metadata row" persisted
// shapes from §6, plus the few relation-catalog operations §4.5 and dropIndex
// need (existence-by-name, relhasindex bookkeeping, physical file lifecycle,
// shared-cache invalidation). Kept distinct from catalogstore.Store: that
// package is the generic object-description row the deletion engine's
// descriptive-name formatter and deleter dispatch consult, while MetaStore
// carries the index-specific fields (indNatts, indKey, indClass, indPred,
// indExprs, ...) that only indexlc itself needs.
type MetaStore interface {
	// RelationExists reports whether a relation named name already exists in
	// schema (§4.5 step 2: reject duplicate index names).
	RelationExists(ctx context.Context, schema, name string) (bool, error)
	// AllocateOID allocates a fresh object id for a new relation.
	AllocateOID(ctx context.Context) (int64, error)
	// CreateRelation inserts the class row and schedules the physical file
	// create for a new relation of the given kind (§4.5 steps 5-7).
	CreateRelation(ctx context.Context, id int64, schema, name string, kind deletion.RelKind) error
	// DropRelation deletes the class row and schedules the physical file's
	// deferred unlink (§4.5 dropIndex steps 3, 6).
	DropRelation(ctx context.Context, id int64) error
	// RelKindOf reports the relation kind for id, used by the deletion
	// engine's deleter dispatch to route table drops to the index-drop
	// pipeline vs. a plain heap drop.
	RelKindOf(ctx context.Context, id int64) (deletion.RelKind, error)
	// InsertIndexAttr records one index attribute row (§4.5 step 8).
	InsertIndexAttr(ctx context.Context, indexID int64, position int32, heapAttNum int32) error
	// DeleteIndexAttrs removes every attribute row for indexID (dropIndex
	// step 5).
	DeleteIndexAttrs(ctx context.Context, indexID int64) error
	// InsertIndexMeta records the index-metadata row (§4.5 step 9).
	InsertIndexMeta(ctx context.Context, indexID, heapID int64, info IndexInfo) error
	// DeleteIndexMeta removes the index-metadata row (dropIndex step 4).
	DeleteIndexMeta(ctx context.Context, indexID int64) error
	// GetIndexMeta fetches the index-metadata row, used by dropIndex (to
	// find the parent heap) and reindex.
	GetIndexMeta(ctx context.Context, indexID int64) (IndexMeta, error)
	// CreateConstraintRow inserts a constraint catalog row of the given type
	// backing a unique/primary-key/exclusion index, returning its object id
	// (§4.5 step 10).
	CreateConstraintRow(ctx context.Context, heapID int64, ct ConstraintType, schema, name string) (int64, error)
	// SetHasIndex updates the heap's relhasindex flag (§4.5 step 12,
	// dropIndex step 7's note that it is otherwise left to the next vacuum).
	SetHasIndex(ctx context.Context, heapID int64, has bool) error
	// DeferBuild registers indexID for a deferred bootstrap build (§4.5 step
	// 12's bootstrap branch).
	DeferBuild(ctx context.Context, indexID int64) error
	// InvalidateRelationCache sends a shared-cache invalidation for heapID so
	// other sessions refresh their index lists (dropIndex step 7).
	InvalidateRelationCache(ctx context.Context, heapID int64) error
}

// IndexMeta is the index-metadata row shape from §6.
type IndexMeta struct {
	IndexID   int64
	HeapID    int64
	Info      IndexInfo
}
