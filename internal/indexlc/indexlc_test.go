package indexlc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/catalogstore/sqlitecat"
	"github.com/catalogkit/depengine/internal/deletion"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/depgraph/sqlitestore"
	"github.com/catalogkit/depengine/internal/indexlc"
	"github.com/catalogkit/depengine/internal/indexlc/metastore"
	"github.com/catalogkit/depengine/internal/objaddr"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	deps    *sqlitestore.Store
	cat     *sqlitecat.Store
	meta    *metastore.Store
	classes *catalog.Registry
	am      *indexlc.MemoryAccessMethod
	lc      *indexlc.Lifecycle
	engine  *deletion.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	deps, err := sqlitestore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	cat, err := sqlitecat.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	meta, err := metastore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	classes := catalog.NewRegistry()
	am := indexlc.NewMemoryAccessMethod()
	lc := indexlc.NewLifecycle(deps, cat, meta, classes, am, nil, true)

	f := &fixture{t: t, ctx: ctx, deps: deps, cat: cat, meta: meta, classes: classes, am: am, lc: lc}
	f.engine = deletion.New(deps, cat, classes, deletion.Hooks{
		RelKindOf: meta.RelKindOf,
		DropIndex: lc.DropIndex,
		DeleteComments: func(ctx context.Context, classID, objectID int64, subID int32) error { return nil },
	}, nil)
	return f
}

func (f *fixture) createHeap(id int64, name string) {
	f.t.Helper()
	require.NoError(f.t, f.cat.CreateRow(f.ctx, catalogstore.Row{Class: catalog.ClassTable, ObjectID: id, Name: name}))
	require.NoError(f.t, f.meta.CreateRelation(f.ctx, id, "public", name, deletion.RelOrdinary))
}

func TestCreateIndex_BareIndex_RegistersAutoEdgesAndBuilds(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	indexID, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID:    100,
		IndexName: "t_a_idx",
		Schema:    "public",
		Info: indexlc.IndexInfo{
			Keys: []indexlc.ColumnKey{{AttNum: 1, OpClass: 9999}},
		},
		ClassObjectIDs: []int64{9999},
	})
	require.NoError(t, err)
	require.NotZero(t, indexID)
	require.True(t, f.am.Built(indexID))

	tableClassID := f.classes.IDOf(catalog.ClassTable)
	indexAddr := objaddr.Address{ClassID: tableClassID, ObjectID: indexID}
	edges, err := f.deps.ScanByDepender(f.ctx, indexAddr)
	require.NoError(t, err)

	var sawAutoToColumn, sawNormalToOpclass bool
	opclassClassID := f.classes.IDOf(catalog.ClassOperatorClass)
	for _, e := range edges {
		switch {
		case e.Type == depgraph.Auto && e.Referent == (objaddr.Address{ClassID: tableClassID, ObjectID: 100, SubID: 1}):
			sawAutoToColumn = true
		case e.Type == depgraph.Normal && e.Referent.ClassID == opclassClassID && e.Referent.ObjectID == 9999:
			sawNormalToOpclass = true
		}
	}
	require.True(t, sawAutoToColumn, "expected AUTO edge from index to heap column")
	require.True(t, sawNormalToOpclass, "expected NORMAL edge from index to opclass")
}

func TestCreateIndex_ExpressionOnlyIndex_RecordsWholeHeapAutoEdge(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	indexID, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID:    100,
		IndexName: "t_expr_idx",
		Schema:    "public",
		Info: indexlc.IndexInfo{
			Keys: []indexlc.ColumnKey{{AttNum: 0}},
		},
	})
	require.NoError(t, err)

	tableClassID := f.classes.IDOf(catalog.ClassTable)
	edges, err := f.deps.ScanByDepender(f.ctx, objaddr.Address{ClassID: tableClassID, ObjectID: indexID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, depgraph.Auto, edges[0].Type)
	require.Equal(t, objaddr.Address{ClassID: tableClassID, ObjectID: 100}, edges[0].Referent)
}

func TestCreateIndex_Constraint_RecordsInternalEdgeToConstraint(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	indexID, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID:    100,
		IndexName: "t_pkey",
		Schema:    "public",
		Info: indexlc.IndexInfo{
			Keys:           []indexlc.ColumnKey{{AttNum: 1}},
			IsUnique:       true,
			IsPrimary:      true,
			IsConstraint:   true,
			ConstraintType: indexlc.ConstraintPrimaryKey,
		},
	})
	require.NoError(t, err)

	tableClassID := f.classes.IDOf(catalog.ClassTable)
	constraintClassID := f.classes.IDOf(catalog.ClassConstraint)
	edges, err := f.deps.ScanByDepender(f.ctx, objaddr.Address{ClassID: tableClassID, ObjectID: indexID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, depgraph.Internal, edges[0].Type)
	require.Equal(t, constraintClassID, edges[0].Referent.ClassID)
}

func TestCreateIndex_RejectsZeroColumnIndex(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	_, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID: 100, IndexName: "bad_idx", Schema: "public",
	})
	require.ErrorIs(t, err, indexlc.ErrInvalidParameter)
}

func TestCreateIndex_RejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")
	req := indexlc.CreateIndexRequest{
		HeapID: 100, IndexName: "dup_idx", Schema: "public",
		Info: indexlc.IndexInfo{Keys: []indexlc.ColumnKey{{AttNum: 1}}},
	}
	_, err := f.lc.CreateIndex(f.ctx, req)
	require.NoError(t, err)

	_, err = f.lc.CreateIndex(f.ctx, req)
	require.ErrorIs(t, err, indexlc.ErrDuplicateTable)
}

func TestDropIndex_ViaDeletionEngine_CleansUpMetadataAndAttrs(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	indexID, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID: 100, IndexName: "t_idx", Schema: "public",
		Info: indexlc.IndexInfo{Keys: []indexlc.ColumnKey{{AttNum: 1}}},
	})
	require.NoError(t, err)

	tableClassID := f.classes.IDOf(catalog.ClassTable)
	require.NoError(t, f.engine.PerformDeletion(f.ctx, objaddr.Address{ClassID: tableClassID, ObjectID: indexID}, deletion.Restrict))

	_, err = f.meta.GetIndexMeta(f.ctx, indexID)
	require.ErrorIs(t, err, metastore.ErrNotFound)
	exists, err := f.cat.Exists(f.ctx, catalog.ClassTable, indexID, 0)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestReindexIndex_RebuildsWithoutTouchingDependencies(t *testing.T) {
	f := newFixture(t)
	f.createHeap(100, "t")

	indexID, err := f.lc.CreateIndex(f.ctx, indexlc.CreateIndexRequest{
		HeapID: 100, IndexName: "t_idx", Schema: "public",
		Info: indexlc.IndexInfo{Keys: []indexlc.ColumnKey{{AttNum: 1}}},
	})
	require.NoError(t, err)

	tableClassID := f.classes.IDOf(catalog.ClassTable)
	indexAddr := objaddr.Address{ClassID: tableClassID, ObjectID: indexID}
	before, err := f.deps.ScanByDepender(f.ctx, indexAddr)
	require.NoError(t, err)

	require.NoError(t, f.lc.ReindexIndex(f.ctx, indexID))

	after, err := f.deps.ScanByDepender(f.ctx, indexAddr)
	require.NoError(t, err)
	require.ElementsMatch(t, before, after)
}
