package deletion_test

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
	"github.com/catalogkit/depengine/internal/objaddr"
)

// harness bundles a real (embedded-sqlite) registry and catalog store plus
// an Engine, with a relation-kind map the test controls directly — the
// scenarios below only ever create table/index-shaped objects.
type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *sqlitestore.Store
	cat     *sqlitecat.Store
	classes *catalog.Registry
	engine  *deletion.Engine
	kinds   map[int64]deletion.RelKind
	dropped map[int64]bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	store, err := sqlitestore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cat, err := sqlitecat.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	h := &harness{
		t: t, ctx: ctx, store: store, cat: cat,
		classes: catalog.NewRegistry(), kinds: map[int64]deletion.RelKind{},
		dropped: map[int64]bool{},
	}
	h.engine = deletion.New(store, cat, h.classes, deletion.Hooks{
		RelKindOf: func(ctx context.Context, tableObjectID int64) (deletion.RelKind, error) {
			return h.kinds[tableObjectID], nil
		},
		DropIndex: func(ctx context.Context, tx catalogstore.Store, indexOid int64) error {
			h.dropped[indexOid] = true
			return tx.DropRow(ctx, catalog.ClassTable, indexOid, 0)
		},
		DeleteComments: func(ctx context.Context, classID, objectID int64, subID int32) error { return nil },
	}, nil)
	return h
}

func (h *harness) tableAddr(id int64) objaddr.Address {
	return objaddr.Address{ClassID: h.classes.IDOf(catalog.ClassTable), ObjectID: id}
}

func (h *harness) createTable(id int64, name string) {
	h.t.Helper()
	require.NoError(h.t, h.cat.CreateRow(h.ctx, catalogstore.Row{
		Class: catalog.ClassTable, ObjectID: id, Name: name,
	}))
	h.kinds[id] = deletion.RelOrdinary
}

func (h *harness) createIndex(id int64, name string, heapID int64, colAttno int32) {
	h.t.Helper()
	require.NoError(h.t, h.cat.CreateRow(h.ctx, catalogstore.Row{
		Class: catalog.ClassTable, ObjectID: id, Name: name,
	}))
	h.kinds[id] = deletion.RelIndex
	require.NoError(h.t, h.store.RecordSingle(h.ctx,
		h.tableAddr(id), objaddr.Address{ClassID: h.classes.IDOf(catalog.ClassTable), ObjectID: heapID, SubID: colAttno},
		depgraph.Auto))
}

func (h *harness) exists(id int64) bool {
	ok, err := h.cat.Exists(h.ctx, catalog.ClassTable, id, 0)
	require.NoError(h.t, err)
	return ok
}

func TestPerformDeletion_BareTable_Restrict_NoDependents(t *testing.T) {
	h := newHarness(t)
	h.createTable(100, "t")

	require.NoError(t, h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Restrict))
	require.False(t, h.exists(100))
}

func TestPerformDeletion_TableWithBareIndex_Restrict(t *testing.T) {
	h := newHarness(t)
	h.createTable(100, "t")
	h.createIndex(200, "t_idx", 100, 1)

	require.NoError(t, h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Restrict))
	require.False(t, h.exists(100))
	require.False(t, h.exists(200))
	require.True(t, h.dropped[200])
}

func TestPerformDeletion_DependentView_RestrictFailsThenCascadeSucceeds(t *testing.T) {
	h := newHarness(t)
	h.createTable(100, "t")
	h.createTable(300, "v") // modeled as a table-shaped depender for simplicity
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(300), h.tableAddr(100), depgraph.Normal))

	err := h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Restrict)
	require.ErrorIs(t, err, deletion.ErrDependentObjectsStillExist)
	require.True(t, h.exists(100))
	require.True(t, h.exists(300))

	require.NoError(t, h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Cascade))
	require.False(t, h.exists(100))
	require.False(t, h.exists(300))
}

func TestPerformDeletion_InternalOwner_MustDropOwnerNotImplementation(t *testing.T) {
	h := newHarness(t)
	h.createTable(100, "t")
	h.createIndex(200, "t_pkey", 100, 1)
	h.createTable(400, "t_pkey_c") // the constraint, modeled as a table-shaped row
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(200), h.tableAddr(400), depgraph.Internal))
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(400), h.tableAddr(100), depgraph.Normal))

	err := h.engine.PerformDeletion(h.ctx, h.tableAddr(200), deletion.Restrict)
	require.ErrorIs(t, err, deletion.ErrDependentObjectsStillExist)
	require.True(t, h.exists(200))
	require.True(t, h.exists(400))

	require.NoError(t, h.engine.PerformDeletion(h.ctx, h.tableAddr(400), deletion.Restrict))
	require.False(t, h.exists(400))
	require.False(t, h.exists(200))
}

func TestPerformDeletion_CycleTolerance(t *testing.T) {
	// A mutual NORMAL-edge cycle (A depends on B, B depends on A). Step 1
	// (sever outgoing edges) runs before Step 2 (cascade to dependents) and
	// deletes each edge as it's severed, so neither direction is
	// re-traversed once visited — the engine terminates instead of looping.
	h := newHarness(t)
	h.createTable(100, "a")
	h.createTable(200, "b")
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(100), h.tableAddr(200), depgraph.Normal))
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(200), h.tableAddr(100), depgraph.Normal))

	require.NoError(t, h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Cascade))
	require.False(t, h.exists(100))
	require.False(t, h.exists(200))
}

func TestDeleteWhatDependsOn_EmptiesWithoutDroppingRoot(t *testing.T) {
	h := newHarness(t)
	h.createTable(500, "s") // stands in for a schema address in this test
	h.createTable(100, "t")
	require.NoError(t, h.store.RecordSingle(h.ctx, h.tableAddr(100), h.tableAddr(500), depgraph.Normal))

	require.NoError(t, h.engine.DeleteWhatDependsOn(h.ctx, h.tableAddr(500), false))
	require.False(t, h.exists(100))
	require.True(t, h.exists(500))
}

func TestPerformDeletion_PinAlwaysFails(t *testing.T) {
	h := newHarness(t)
	h.createTable(100, "t")
	require.NoError(t, h.store.RecordSingle(h.ctx, objaddr.Address{}, h.tableAddr(100), depgraph.Pin))

	err := h.engine.PerformDeletion(h.ctx, h.tableAddr(100), deletion.Cascade)
	require.ErrorIs(t, err, deletion.ErrDependentObjectsStillExist)
	require.True(t, h.exists(100))
}
