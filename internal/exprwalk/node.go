// Package exprwalk walks a pre-planner expression/query tree and produces
// the set of catalog objects it references (§4.3), for registration as
// dependency edges of a new index, rule, constraint, or column default.
package exprwalk

import "errors"

// Node is any node in an expression/query tree. Children returns the
// sub-nodes the generic fallback walker should recurse into; node kinds
// with bespoke walk rules (Var, FuncCall, OpExpr, Aggref, SubLink, Query,
// SubPlan) are still free to implement Children for uniformity even though
// the walker special-cases them before falling through to it.
type Node interface {
	Children() []Node
}

// Var is a variable reference: a column of some range-table entry, resolved
// relative to the current position in the range-table stack.
type Var struct {
	VarLevelsUp int   // levels to lift on the range-table stack; 0 = current
	Varno       int   // 1-indexed position within the resolved stack frame
	VarAttno    int32 // 1-indexed attribute number; 0 = whole-row reference
}

func (v *Var) Children() []Node { return nil }

// FuncCall is a plain function-call node.
type FuncCall struct {
	FuncID int64
	Args   []Node
}

func (f *FuncCall) Children() []Node { return f.Args }

// OpExpr is an operator-call node, covering the plain, distinct, null-if,
// and scalar-array operator forms alike — they all emit a single operator
// reference and recurse into their argument list.
type OpExpr struct {
	OpID int64
	Args []Node
}

func (o *OpExpr) Children() []Node { return o.Args }

// Aggref is an aggregate-call node.
type Aggref struct {
	AggFuncID int64
	Args      []Node
}

func (a *Aggref) Children() []Node { return a.Args }

// SubLink is a sub-select-as-expression node (IN, EXISTS, ANY/ALL, scalar
// sub-select). OperIDs is the list of comparison operators associated with
// the sub-link; SubQuery is the nested query.
type SubLink struct {
	OperIDs  []int64
	SubQuery *Query
}

func (s *SubLink) Children() []Node { return []Node{s.SubQuery} }

// RTEKind distinguishes the four range-table-entry shapes the walker must
// treat differently.
type RTEKind int

const (
	RTERelation RTEKind = iota
	RTEJoin
	RTESubquery
	RTEFunction
)

// RTE is one entry in a query's range table.
type RTE struct {
	Kind RTEKind

	// RTERelation fields.
	RelOid   int64
	NumAttrs int32 // 0 = unknown/unchecked, skips attno bounds validation

	// RTEJoin fields: the join's own alias-variable list, resolved at the
	// join's own stack level (i.e. the same frame the join entry lives in,
	// not a nested one).
	JoinAliasVars []Node

	// RTESubquery / RTEFunction fields: nested structure the generic
	// Query-node walk recurses into (pushing its own stack frame).
	Subquery *Query
	FuncExpr Node
}

// Query is a query node: a range table plus the expressions that reference
// it (target list, quals, ...). Walking a Query pushes its range table onto
// the stack, walks the sub-structure (skipping join-alias lists, which are
// only visited via the Var rule), then pops.
type Query struct {
	RangeTable []RTE
	TargetList []Node
	Quals      []Node
}

func (q *Query) Children() []Node {
	children := append([]Node{}, q.TargetList...)
	children = append(children, q.Quals...)
	for _, rte := range q.RangeTable {
		switch rte.Kind {
		case RTESubquery:
			if rte.Subquery != nil {
				children = append(children, rte.Subquery)
			}
		case RTEFunction:
			if rte.FuncExpr != nil {
				children = append(children, rte.FuncExpr)
			}
		}
	}
	return children
}

// SubPlan represents an already-planned sub-plan. This walker only
// consumes pre-planner trees, so encountering one is always an error.
type SubPlan struct{}

func (SubPlan) Children() []Node { return nil }

// Generic is the fallback node kind for any expression shape this package
// has no bespoke rule for (boolean expressions, CASE, COALESCE, array
// constructors, ...). The walker recurses into Items unconditionally —
// this is "delegate to the generic expression walker" from §4.3.
type Generic struct {
	Kind  string
	Items []Node
}

func (g *Generic) Children() []Node { return g.Items }

// Errors returned by Walk, matching §4.3's failure list.
var (
	ErrInvalidVarLevelsUp   = errors.New("exprwalk: invalid varlevelsup (range-table stack underrun)")
	ErrInvalidVarNo         = errors.New("exprwalk: invalid varno (position outside range table)")
	ErrInvalidVarAttNo      = errors.New("exprwalk: invalid varattno (attribute out of range)")
	ErrUnsupportedConstruct = errors.New("exprwalk: unsupported construct (planned sub-plan)")
)
