// Package depgraph is the persistent dependency edge store (§4.2). It
// records typed, directed edges between a depender object and a referent
// object and exposes the scan operations the Deletion Engine and Index
// Lifecycle need.
package depgraph

import (
	"context"
	"fmt"

	"github.com/catalogkit/depengine/internal/objaddr"
)

// EdgeType is the closed set of dependency-edge semantics (§3).
type EdgeType string

const (
	// Normal: depender uses referent; dropping the referent requires
	// CASCADE or RESTRICT-with-AUTO/INTERNAL-reachability.
	Normal EdgeType = "n"
	// Auto: depender is an automatic side-object of the referent; dropping
	// the referent silently drops the depender regardless of mode.
	Auto EdgeType = "a"
	// Internal: depender is part of the referent's implementation; see the
	// Deletion Engine's tri-case logic.
	Internal EdgeType = "i"
	// Pin: the referent is required by the database itself; dropping it
	// always fails. PIN edges carry zero depender fields by convention.
	Pin EdgeType = "p"
)

// Edge is one dependency row: (depClass, depId, depSub, refClass, refId,
// refSub, depType). Handle is an opaque storage-assigned row identifier
// used by DeleteEdge.
type Edge struct {
	Handle   int64
	Depender objaddr.Address
	Referent objaddr.Address
	Type     EdgeType
}

// ErrUnknownEdgeType signals an edge row with a depType outside {n,a,i,p} —
// an internal-error condition per §7 (InternalError: unrecognized
// dependency type).
var ErrUnknownEdgeType = fmt.Errorf("depgraph: unrecognized dependency type")

// Validate reports ErrUnknownEdgeType if t is not one of the four known
// edge types.
func (t EdgeType) Validate() error {
	switch t {
	case Normal, Auto, Internal, Pin:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEdgeType, string(t))
	}
}

// Store is the persistent edge store contract. Implementations must honor
// the snapshot semantics of §4.2: scans see edges recorded earlier in the
// same logical operation (this is what lets the Deletion Engine cut cycles
// by flushing edge deletions before later scans).
type Store interface {
	// RecordSingle appends one edge.
	RecordSingle(ctx context.Context, depender, referent objaddr.Address, t EdgeType) error
	// RecordMultiple appends one edge per referent. Callers are expected to
	// have deduped referents first (objaddr.Set.Dedupe).
	RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, t EdgeType) error
	// ScanByReferent returns every edge whose referent endpoint is addr, or
	// whose referent (ClassID, ObjectID) matches addr and addr.SubID == 0
	// (whole-object addresses widen to all sub-objects).
	ScanByReferent(ctx context.Context, addr objaddr.Address) ([]Edge, error)
	// ScanByDepender is the symmetric query over the depender endpoint.
	ScanByDepender(ctx context.Context, addr objaddr.Address) ([]Edge, error)
	// DeleteEdge removes one edge row by its storage handle.
	DeleteEdge(ctx context.Context, handle int64) error
	// CommandCounterIncrement makes edges recorded/deleted earlier in this
	// operation visible to subsequent scans within the same transaction.
	// Real SQL backends fold this into the transaction's read consistency;
	// it is modeled explicitly because it is the engine's sole
	// cycle-breaking mechanism (§9).
	CommandCounterIncrement(ctx context.Context) error
}

// TxStore additionally exposes row-exclusive transaction scoping, used by
// the Deletion Engine to hold the registry open for the whole operation
// (§4.4 step 2: "Open the dependency registry for row-exclusive access").
type TxStore interface {
	Store
	// WithRowExclusive runs fn with the registry held for row-exclusive
	// access for the duration of fn.
	WithRowExclusive(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
