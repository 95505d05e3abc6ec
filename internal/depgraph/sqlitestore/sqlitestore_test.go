package sqlitestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/depgraph/sqlitestore"
	"github.com/catalogkit/depengine/internal/objaddr"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordSingle_RejectsUnknownEdgeType(t *testing.T) {
	store := openStore(t)
	err := store.RecordSingle(context.Background(), objaddr.Address{ObjectID: 1}, objaddr.Address{ObjectID: 2}, depgraph.EdgeType("x"))
	require.ErrorIs(t, err, depgraph.ErrUnknownEdgeType)
}

func TestRecordMultiple_ThenScanByDepender_FindsEveryEdge(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	depender := objaddr.Address{ClassID: 1, ObjectID: 100}
	referents := []objaddr.Address{{ClassID: 1, ObjectID: 200}, {ClassID: 1, ObjectID: 300}}

	require.NoError(t, store.RecordMultiple(ctx, depender, referents, depgraph.Normal))

	edges, err := store.ScanByDepender(ctx, depender)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		require.Equal(t, depgraph.Normal, e.Type)
		require.Equal(t, depender, e.Depender)
	}
}

func TestScanByReferent_WholeObjectWidensToSubObjectEdges(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	referentCol := objaddr.Address{ClassID: 1, ObjectID: 100, SubID: 3}
	require.NoError(t, store.RecordSingle(ctx, objaddr.Address{ClassID: 1, ObjectID: 999}, referentCol, depgraph.Normal))

	edges, err := store.ScanByReferent(ctx, objaddr.Address{ClassID: 1, ObjectID: 100})
	require.NoError(t, err)
	require.Len(t, edges, 1, "a whole-object referent scan should surface column sub-object edges too")
}

func TestDeleteEdge_RemovesOnlyThatRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	depender := objaddr.Address{ClassID: 1, ObjectID: 100}
	referent := objaddr.Address{ClassID: 1, ObjectID: 200}
	require.NoError(t, store.RecordSingle(ctx, depender, referent, depgraph.Normal))

	edges, err := store.ScanByDepender(ctx, depender)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	require.NoError(t, store.DeleteEdge(ctx, edges[0].Handle))

	edges, err = store.ScanByDepender(ctx, depender)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestWithRowExclusive_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	depender := objaddr.Address{ClassID: 1, ObjectID: 100}
	referent := objaddr.Address{ClassID: 1, ObjectID: 200}

	sentinel := errors.New("boom")
	err := store.WithRowExclusive(ctx, func(ctx context.Context, tx depgraph.Store) error {
		require.NoError(t, tx.RecordSingle(ctx, depender, referent, depgraph.Normal))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	edges, err := store.ScanByDepender(ctx, depender)
	require.NoError(t, err)
	require.Empty(t, edges, "a failed WithRowExclusive call must roll back everything it recorded")
}

func TestWithRowExclusive_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	depender := objaddr.Address{ClassID: 1, ObjectID: 100}
	referent := objaddr.Address{ClassID: 1, ObjectID: 200}

	err := store.WithRowExclusive(ctx, func(ctx context.Context, tx depgraph.Store) error {
		return tx.RecordSingle(ctx, depender, referent, depgraph.Normal)
	})
	require.NoError(t, err)

	edges, err := store.ScanByDepender(ctx, depender)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}
