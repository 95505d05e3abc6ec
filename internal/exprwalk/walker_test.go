package exprwalk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/exprwalk"
	"github.com/catalogkit/depengine/internal/objaddr"
)

func newWalker() *exprwalk.Walker {
	return exprwalk.New(catalog.NewRegistry())
}

func TestWalkSingleRelExpr_SplitsSelfFromOther(t *testing.T) {
	w := newWalker()

	// a check constraint on relation 100: col1 > 0 AND other_func(col2) > 0
	expr := &exprwalk.Generic{Kind: "BoolExpr", Items: []exprwalk.Node{
		&exprwalk.OpExpr{OpID: 551, Args: []exprwalk.Node{
			&exprwalk.Var{Varno: 1, VarAttno: 1},
		}},
		&exprwalk.FuncCall{FuncID: 900, Args: []exprwalk.Node{
			&exprwalk.Var{Varno: 1, VarAttno: 2},
		}},
	}}

	self, other, err := w.WalkSingleRelExpr(expr, 100, 5)
	require.NoError(t, err)

	tableClassID := catalog.NewRegistry().IDOf(catalog.ClassTable)
	require.ElementsMatch(t, []objaddr.Address{
		{ClassID: tableClassID, ObjectID: 100, SubID: 1},
		{ClassID: tableClassID, ObjectID: 100, SubID: 2},
	}, self.Iterate())

	funcClassID := catalog.NewRegistry().IDOf(catalog.ClassFunction)
	opClassID := catalog.NewRegistry().IDOf(catalog.ClassOperator)
	require.ElementsMatch(t, []objaddr.Address{
		{ClassID: opClassID, ObjectID: 551},
		{ClassID: funcClassID, ObjectID: 900},
	}, other.Iterate())
}

func TestWalkSingleRelExpr_InvalidVarAttNo(t *testing.T) {
	w := newWalker()
	expr := &exprwalk.Var{Varno: 1, VarAttno: 9}
	_, _, err := w.WalkSingleRelExpr(expr, 100, 3)
	require.ErrorIs(t, err, exprwalk.ErrInvalidVarAttNo)
}

func TestWalkExpr_InvalidVarNo(t *testing.T) {
	w := newWalker()
	out := objaddr.NewSet(1)
	err := w.WalkExpr(&exprwalk.Var{Varno: 2, VarAttno: 1}, []exprwalk.RTE{{Kind: exprwalk.RTERelation, RelOid: 1}}, out)
	require.ErrorIs(t, err, exprwalk.ErrInvalidVarNo)
}

func TestWalkExpr_InvalidVarLevelsUp(t *testing.T) {
	w := newWalker()
	out := objaddr.NewSet(1)
	err := w.WalkExpr(&exprwalk.Var{VarLevelsUp: 1, Varno: 1, VarAttno: 1}, []exprwalk.RTE{{Kind: exprwalk.RTERelation, RelOid: 1}}, out)
	require.ErrorIs(t, err, exprwalk.ErrInvalidVarLevelsUp)
}

func TestWalk_JoinAliasListResolvedAtJoinLevel(t *testing.T) {
	w := newWalker()
	rangeTable := []exprwalk.RTE{
		{Kind: exprwalk.RTERelation, RelOid: 10},
		{Kind: exprwalk.RTEJoin, JoinAliasVars: []exprwalk.Node{
			&exprwalk.Var{Varno: 1, VarAttno: 3},
		}},
	}
	out := objaddr.NewSet(2)
	// referencing the join entry (varno 2) should resolve into its alias
	// list at the SAME level, not lift an extra level.
	err := w.WalkExpr(&exprwalk.Var{Varno: 2, VarAttno: 0}, rangeTable, out)
	require.NoError(t, err)

	tableClassID := catalog.NewRegistry().IDOf(catalog.ClassTable)
	require.Equal(t, []objaddr.Address{{ClassID: tableClassID, ObjectID: 10, SubID: 3}}, out.Iterate())
}

func TestWalkQuery_PushesRangeTableAndEmitsWholeRelation(t *testing.T) {
	w := newWalker()
	q := &exprwalk.Query{
		RangeTable: []exprwalk.RTE{{Kind: exprwalk.RTERelation, RelOid: 55}},
		TargetList: []exprwalk.Node{&exprwalk.Var{Varno: 1, VarAttno: 2}},
	}
	out := objaddr.NewSet(2)
	require.NoError(t, w.WalkQuery(q, out))
	out.Dedupe()

	// the whole-relation entry emitted for the range-table entry is
	// subsumed by the column reference from the target list.
	tableClassID := catalog.NewRegistry().IDOf(catalog.ClassTable)
	require.Equal(t, []objaddr.Address{
		{ClassID: tableClassID, ObjectID: 55, SubID: 2},
	}, out.Iterate())
}

func TestWalkQuery_SubqueryRangeTableEntryRecursesAtNestedLevel(t *testing.T) {
	w := newWalker()
	inner := &exprwalk.Query{
		RangeTable: []exprwalk.RTE{{Kind: exprwalk.RTERelation, RelOid: 77}},
		TargetList: []exprwalk.Node{
			// references the OUTER query's relation (varlevelsup=1)
			&exprwalk.Var{VarLevelsUp: 1, Varno: 1, VarAttno: 4},
		},
	}
	outer := &exprwalk.Query{
		RangeTable: []exprwalk.RTE{
			{Kind: exprwalk.RTERelation, RelOid: 1},
			{Kind: exprwalk.RTESubquery, Subquery: inner},
		},
	}
	out := objaddr.NewSet(4)
	require.NoError(t, w.WalkQuery(outer, out))
	out.Dedupe()

	tableClassID := catalog.NewRegistry().IDOf(catalog.ClassTable)
	require.Contains(t, out.Iterate(), objaddr.Address{ClassID: tableClassID, ObjectID: 1, SubID: 4})
	require.Contains(t, out.Iterate(), objaddr.Address{ClassID: tableClassID, ObjectID: 77})
}

func TestWalk_SubLinkEmitsOperatorsAndRecursesSubQuery(t *testing.T) {
	w := newWalker()
	sub := &exprwalk.Query{
		RangeTable: []exprwalk.RTE{{Kind: exprwalk.RTERelation, RelOid: 200}},
	}
	expr := &exprwalk.SubLink{OperIDs: []int64{96}, SubQuery: sub}
	out := objaddr.NewSet(2)
	require.NoError(t, w.WalkExpr(expr, nil, out))

	opClassID := catalog.NewRegistry().IDOf(catalog.ClassOperator)
	tableClassID := catalog.NewRegistry().IDOf(catalog.ClassTable)
	require.ElementsMatch(t, []objaddr.Address{
		{ClassID: opClassID, ObjectID: 96},
		{ClassID: tableClassID, ObjectID: 200},
	}, out.Iterate())
}

func TestWalk_SubPlanIsUnsupported(t *testing.T) {
	w := newWalker()
	out := objaddr.NewSet(1)
	err := w.WalkExpr(&exprwalk.SubPlan{}, nil, out)
	require.ErrorIs(t, err, exprwalk.ErrUnsupportedConstruct)
}
