//go:build integration

package doltstore_test

// This test exercises the Dolt-backed dependency registry against a real
// Dolt SQL server, spun up via testcontainers-go/modules/dolt. It is
// build-tag gated (requires Docker) and is skipped in normal unit-test runs.
// Grounded on the teacher's go.mod, which requires this module directly.

import (
	"context"
	"testing"

	doltcontainer "github.com/testcontainers/testcontainers-go/modules/dolt"
	"github.com/stretchr/testify/require"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/depgraph/doltstore"
	"github.com/catalogkit/depengine/internal/objaddr"
)

func TestDoltStore_RecordAndScan_RealServer(t *testing.T) {
	ctx := context.Background()

	container, err := doltcontainer.Run(ctx, "dolthub/dolt-sql-server:latest")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := doltstore.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	table := objaddr.Address{ClassID: 1259, ObjectID: 100}
	column := objaddr.Address{ClassID: 1259, ObjectID: 100, SubID: 1}
	index := objaddr.Address{ClassID: 1259, ObjectID: 200}

	require.NoError(t, store.RecordSingle(ctx, index, column, depgraph.Auto))

	edges, err := store.ScanByReferent(ctx, table)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, depgraph.Auto, edges[0].Type)
	require.Equal(t, index, edges[0].Depender)
}
