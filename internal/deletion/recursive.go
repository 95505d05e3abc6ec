package deletion

import (
	"context"
	"fmt"

	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// recursiveDeletion is Phase B (§4.4). callingObject is nil only at the
// outermost call (the user's own drop target); every recursive call passes
// the object that led here. catTx is the catalog store scoped to the same
// transaction as tx, so the deleter dispatch's catalog-row mutations roll
// back together with the dependency-edge removals on failure.
func (e *Engine) recursiveDeletion(ctx context.Context, tx depgraph.Store, catTx catalogstore.Store, obj objaddr.Address, mode Mode,
	callingObject *objaddr.Address, okToDelete *objaddr.Set, notices bool) (bool, error) {

	amOwned, owningObject, err := e.severOutgoingEdges(ctx, tx, obj, callingObject, notices)
	if err != nil {
		return false, err
	}
	if err := tx.CommandCounterIncrement(ctx); err != nil {
		return false, fmt.Errorf("command counter increment after edge severing: %w", err)
	}

	if amOwned {
		ok := true
		switch {
		case okToDelete.ContainsOrParent(owningObject):
			e.notice(notices, "drop auto-cascades to %s", e.describe(ctx, owningObject))
		case mode == Restrict:
			e.violation("%s depends on %s", e.describe(ctx, obj), e.describe(ctx, owningObject))
			ok = false
		default:
			e.notice(notices, "drop cascades to %s", e.describe(ctx, owningObject))
		}
		ownerOK, err := e.recursiveDeletion(ctx, tx, catTx, owningObject, mode, &obj, okToDelete, notices)
		if err != nil {
			return false, err
		}
		return ok && ownerOK, nil
	}

	ok, err := e.cascadeToDependents(ctx, tx, catTx, obj, mode, okToDelete, notices)
	if err != nil {
		return false, err
	}

	if err := e.dispatch(ctx, catTx, obj); err != nil {
		return false, err
	}
	if e.Hooks.DeleteComments != nil {
		if err := e.Hooks.DeleteComments(ctx, obj.ClassID, obj.ObjectID, obj.SubID); err != nil {
			return false, fmt.Errorf("delete comments for %s: %w", e.describe(ctx, obj), err)
		}
	}
	if err := tx.CommandCounterIncrement(ctx); err != nil {
		return false, fmt.Errorf("command counter increment after object deletion: %w", err)
	}

	return ok, nil
}

// severOutgoingEdges is Step 1: scan edges with depender = obj, applying
// the tri-case INTERNAL-edge logic, deleting each resolved edge as it goes
// so later scans in the same transaction never re-observe it.
func (e *Engine) severOutgoingEdges(ctx context.Context, tx depgraph.Store, obj objaddr.Address,
	callingObject *objaddr.Address, notices bool) (amOwned bool, owningObject objaddr.Address, err error) {

	edges, err := tx.ScanByDepender(ctx, obj)
	if err != nil {
		return false, objaddr.Address{}, fmt.Errorf("scan dependers for %s: %w", e.describe(ctx, obj), err)
	}

	foundOwner := false
	for _, edge := range edges {
		switch edge.Type {
		case depgraph.Normal, depgraph.Auto:
			if err := tx.DeleteEdge(ctx, edge.Handle); err != nil {
				return false, objaddr.Address{}, fmt.Errorf("delete edge %d: %w", edge.Handle, err)
			}
		case depgraph.Internal:
			switch {
			case callingObject == nil:
				return false, objaddr.Address{}, fmt.Errorf(
					"%w: %s is part of a larger object; drop %s instead",
					ErrDependentObjectsStillExist, e.describe(ctx, obj), e.describe(ctx, edge.Referent))
			case addressMatches(*callingObject, edge.Referent):
				if err := tx.DeleteEdge(ctx, edge.Handle); err != nil {
					return false, objaddr.Address{}, fmt.Errorf("delete edge %d: %w", edge.Handle, err)
				}
			default:
				if foundOwner {
					return false, objaddr.Address{}, fmt.Errorf(
						"%w: %s has more than one owning INTERNAL dependency", ErrInternal, e.describe(ctx, obj))
				}
				foundOwner = true
				owningObject = edge.Referent
				// Leave this edge in place: the owning object's own
				// deletion will come back through the addressMatches(...) branch
				// above and delete it then.
			}
		case depgraph.Pin:
			return false, objaddr.Address{}, fmt.Errorf("%w: pin edge with non-zero depender on %s",
				ErrInternal, e.describe(ctx, obj))
		default:
			return false, objaddr.Address{}, fmt.Errorf("%w: unrecognized dependency type %q", ErrInternal, edge.Type)
		}
	}
	return foundOwner, owningObject, nil
}

// cascadeToDependents is Step 2: scan edges with referent = obj and recurse
// on every depender, applying RESTRICT-vs-CASCADE notice semantics.
func (e *Engine) cascadeToDependents(ctx context.Context, tx depgraph.Store, catTx catalogstore.Store, obj objaddr.Address, mode Mode,
	okToDelete *objaddr.Set, notices bool) (bool, error) {

	edges, err := tx.ScanByReferent(ctx, obj)
	if err != nil {
		return false, fmt.Errorf("scan referents for %s: %w", e.describe(ctx, obj), err)
	}

	ok := true
	for _, edge := range edges {
		switch edge.Type {
		case depgraph.Normal:
			switch {
			case okToDelete.ContainsOrParent(edge.Depender):
				e.notice(notices, "drop auto-cascades to %s", e.describe(ctx, edge.Depender))
			case mode == Restrict:
				e.violation("%s depends on %s", e.describe(ctx, edge.Depender), e.describe(ctx, obj))
				ok = false
			default:
				e.notice(notices, "drop cascades to %s", e.describe(ctx, edge.Depender))
			}
			childOK, err := e.recursiveDeletion(ctx, tx, catTx, edge.Depender, mode, &obj, okToDelete, notices)
			if err != nil {
				return false, err
			}
			ok = ok && childOK
		case depgraph.Auto, depgraph.Internal:
			e.notice(notices, "drop auto-cascades to %s", e.describe(ctx, edge.Depender))
			childOK, err := e.recursiveDeletion(ctx, tx, catTx, edge.Depender, mode, &obj, okToDelete, notices)
			if err != nil {
				return false, err
			}
			ok = ok && childOK
		case depgraph.Pin:
			return false, fmt.Errorf("%w: pin edge reached during cascade from %s",
				ErrDependentObjectsStillExist, e.describe(ctx, obj))
		default:
			return false, fmt.Errorf("%w: unrecognized dependency type %q", ErrInternal, edge.Type)
		}
	}
	return ok, nil
}

// addressMatches reports whether callingObject and referent name the same
// object, allowing for whole-vs-column subsumption in either direction.
func addressMatches(callingObject, referent objaddr.Address) bool {
	return callingObject.Contains(referent) || referent.Contains(callingObject)
}

func (e *Engine) notice(show bool, format string, args ...any) {
	if !show {
		return
	}
	e.Log.Debug(fmt.Sprintf(format, args...))
}

// violation logs a RESTRICT-mode dependency violation. Unlike cascade
// notices, these are always surfaced: they describe why the request is
// about to fail, not an informational aside a quiet caller can suppress.
func (e *Engine) violation(format string, args ...any) {
	e.Log.Warn(fmt.Sprintf(format, args...))
}
