package exprwalk

import (
	"fmt"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// stack is the range-table stack: stack[len(stack)-1] is varlevelsup=0,
// stack[len(stack)-2] is varlevelsup=1, and so on outward.
type stack struct {
	frames [][]RTE
}

func (s *stack) push(rt []RTE) { s.frames = append(s.frames, rt) }

func (s *stack) pop() { s.frames = s.frames[:len(s.frames)-1] }

// frame resolves varlevelsup to a concrete range table, failing if it lifts
// past the bottom of the stack.
func (s *stack) frame(levelsUp int) ([]RTE, error) {
	if levelsUp < 0 || levelsUp >= len(s.frames) {
		return nil, fmt.Errorf("%w: levelsup=%d, stack depth=%d", ErrInvalidVarLevelsUp, levelsUp, len(s.frames))
	}
	return s.frames[len(s.frames)-1-levelsUp], nil
}

// Walker walks expression/query trees and collects the catalog objects they
// reference. Classes resolves the class tag to use for tables and
// functions/operators when emitting Addresses.
type Walker struct {
	Classes *catalog.Registry
}

// New builds a Walker against the given class registry.
func New(classes *catalog.Registry) *Walker {
	return &Walker{Classes: classes}
}

func (w *Walker) tableClassID() int64 {
	return w.Classes.IDOf(catalog.ClassTable)
}

func (w *Walker) funcClassID() int64 {
	return w.Classes.IDOf(catalog.ClassFunction)
}

func (w *Walker) operatorClassID() int64 {
	return w.Classes.IDOf(catalog.ClassOperator)
}

// WalkQuery walks a top-level query node (a rule action, a view definition,
// or similar) and accumulates every object it references into out.
func (w *Walker) WalkQuery(q *Query, out *objaddr.Set) error {
	st := &stack{}
	return w.walk(q, st, out)
}

// WalkExpr walks a bare expression (a column default, a CHECK constraint, an
// index predicate or expression) against an already-established range-table
// stack and accumulates every object it references into out. Callers with
// only a single relation in scope should use WalkSingleRelExpr instead.
func (w *Walker) WalkExpr(expr Node, rangeTable []RTE, out *objaddr.Set) error {
	st := &stack{}
	st.push(rangeTable)
	return w.walk(expr, st, out)
}

// WalkSingleRelExpr walks expr against a synthesized single-relation range
// table (varno 1 resolves to relOid) and partitions the result: references
// to relOid itself land in self, everything else lands in other. This is
// the shape column defaults, CHECK constraints, and index expressions and
// predicates all share — a single relation is in scope and self-references
// must be recorded with different edge semantics than everything else.
func (w *Walker) WalkSingleRelExpr(expr Node, relOid int64, numAttrs int32) (self, other *objaddr.Set, err error) {
	rangeTable := []RTE{{Kind: RTERelation, RelOid: relOid, NumAttrs: numAttrs}}
	out := objaddr.NewSet(4)
	if err := w.WalkExpr(expr, rangeTable, out); err != nil {
		return nil, nil, err
	}
	out.Dedupe()

	tableClass := w.tableClassID()
	self = objaddr.NewSet(4)
	other = objaddr.NewSet(out.Len())
	for _, addr := range out.Iterate() {
		if addr.ClassID == tableClass && addr.ObjectID == relOid {
			self.Add(addr)
		} else {
			other.Add(addr)
		}
	}
	self.Dedupe()
	other.Dedupe()
	return self, other, nil
}

func (w *Walker) walk(node Node, st *stack, out *objaddr.Set) error {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *Var:
		return w.walkVar(n, st, out)
	case *FuncCall:
		out.Add(objaddr.Address{ClassID: w.funcClassID(), ObjectID: n.FuncID})
		return w.walkChildren(n.Args, st, out)
	case *OpExpr:
		out.Add(objaddr.Address{ClassID: w.operatorClassID(), ObjectID: n.OpID})
		return w.walkChildren(n.Args, st, out)
	case *Aggref:
		out.Add(objaddr.Address{ClassID: w.funcClassID(), ObjectID: n.AggFuncID})
		return w.walkChildren(n.Args, st, out)
	case *SubLink:
		for _, opID := range n.OperIDs {
			out.Add(objaddr.Address{ClassID: w.operatorClassID(), ObjectID: opID})
		}
		return w.walk(n.SubQuery, st, out)
	case *Query:
		return w.walkQuery(n, st, out)
	case SubPlan, *SubPlan:
		return ErrUnsupportedConstruct
	default:
		return w.walkChildren(node.Children(), st, out)
	}
}

func (w *Walker) walkChildren(children []Node, st *stack, out *objaddr.Set) error {
	for _, child := range children {
		if err := w.walk(child, st, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) walkVar(v *Var, st *stack, out *objaddr.Set) error {
	frame, err := st.frame(v.VarLevelsUp)
	if err != nil {
		return err
	}
	if v.Varno < 1 || v.Varno > len(frame) {
		return fmt.Errorf("%w: varno=%d, range table has %d entries", ErrInvalidVarNo, v.Varno, len(frame))
	}
	rte := frame[v.Varno-1]

	switch rte.Kind {
	case RTERelation:
		if rte.NumAttrs > 0 && v.VarAttno > rte.NumAttrs {
			return fmt.Errorf("%w: varattno=%d, relation has %d attributes", ErrInvalidVarAttNo, v.VarAttno, rte.NumAttrs)
		}
		if v.VarAttno < 0 {
			return fmt.Errorf("%w: varattno=%d", ErrInvalidVarAttNo, v.VarAttno)
		}
		out.Add(objaddr.Address{ClassID: w.tableClassID(), ObjectID: rte.RelOid, SubID: v.VarAttno})
		return nil
	case RTEJoin:
		// The join's alias list lives at the join's own stack level, not a
		// nested one: recurse without pushing.
		return w.walkChildren(rte.JoinAliasVars, st, out)
	case RTESubquery, RTEFunction:
		// Already visited when the containing Query node walked its own
		// sub-structure; a variable referencing the join/subquery's output
		// column carries no separate dependency of its own.
		return nil
	default:
		return nil
	}
}

func (w *Walker) walkQuery(q *Query, st *stack, out *objaddr.Set) error {
	tableClass := w.tableClassID()
	for _, rte := range q.RangeTable {
		if rte.Kind == RTERelation {
			out.Add(objaddr.Address{ClassID: tableClass, ObjectID: rte.RelOid})
		}
	}

	st.push(q.RangeTable)
	defer st.pop()

	if err := w.walkChildren(q.TargetList, st, out); err != nil {
		return err
	}
	if err := w.walkChildren(q.Quals, st, out); err != nil {
		return err
	}
	for _, rte := range q.RangeTable {
		switch rte.Kind {
		case RTESubquery:
			if rte.Subquery != nil {
				if err := w.walk(rte.Subquery, st, out); err != nil {
					return err
				}
			}
		case RTEFunction:
			if rte.FuncExpr != nil {
				if err := w.walk(rte.FuncExpr, st, out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
