// Package catalogstore is the minimal catalog/heap row store: the table of
// existing objects (tables, columns, functions, operators, indexes, ...)
// that the deletion engine's deleter dispatch and the index lifecycle
// consult to check existence and fetch descriptive metadata before a drop.
// It mirrors the teacher's catalog-row tables (internal/storage/sqlite's
// issues/epics/comments tables, each migrated idempotently and addressed by
// a typed primary key) generalized to the closed class enumeration in
// internal/catalog.
package catalogstore

import (
	"context"
	"errors"

	"github.com/catalogkit/depengine/internal/catalog"
)

// ErrNotFound is returned when a lookup finds no matching catalog row.
var ErrNotFound = errors.New("catalogstore: object not found")

// Row is one catalog entry: enough metadata to format a descriptive name
// (catalog.Describe) and to drive class-specific drop behavior.
type Row struct {
	Class     catalog.Class
	ObjectID  int64
	SubID     int32 // 0 for whole objects; column position for table sub-objects
	Schema    string
	Name      string
	Column    string // set only for SubID > 0 rows
	Signature string // set for functions/operators
	OnTable   string // set for constraints/triggers/rules/defaults: owning table's descriptive name
	OpFamily  string // set for operator-class rows
	Qualify   bool
}

func (r Row) info() catalog.ObjectInfo {
	return catalog.ObjectInfo{
		Class:     r.Class,
		Schema:    r.Schema,
		Name:      r.Name,
		Column:    r.Column,
		Signature: r.Signature,
		OnTable:   r.OnTable,
		OpFamily:  r.OpFamily,
		Qualify:   r.Qualify,
	}
}

// Describe formats row's descriptive name per §7.
func Describe(row Row) string {
	return catalog.Describe(row.info())
}

// Store is the catalog/heap row store contract. Implementations must make
// CreateRow/DropRow idempotent: CreateRow on an existing row replaces it,
// and DropRow on a missing row is a no-op, matching the teacher's
// idempotent-migration idiom extended to per-row catalog mutation.
type Store interface {
	CreateRow(ctx context.Context, row Row) error
	DropRow(ctx context.Context, class catalog.Class, objectID int64, subID int32) error
	Get(ctx context.Context, class catalog.Class, objectID int64, subID int32) (Row, error)
	Exists(ctx context.Context, class catalog.Class, objectID int64, subID int32) (bool, error)
	ColumnsOf(ctx context.Context, tableObjectID int64) ([]Row, error)
	// WithTx runs fn with a catalog store scoped to a single transaction:
	// committed if fn returns nil, rolled back otherwise. This is what lets
	// a caller with its own unit of work (the Deletion Engine's dependency-
	// registry transaction) make catalog row mutations participate in that
	// same unit of work, so an aborted operation leaves no partial catalog
	// side-effects behind (§4.4 step 4 / §5).
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close() error
}
