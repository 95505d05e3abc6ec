//go:build !cgo

package doltstore

import (
	"context"
	"errors"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// ErrFeatureNotSupported is returned by every Store method in non-CGO
// builds: the embedded Dolt engine (github.com/dolthub/driver) requires
// CGO, same as the teacher's internal/storage/dolt. This stub keeps the
// package importable (and cmd/depctl buildable) under CGO_ENABLED=0,
// matching the teacher's own store_nocgo.go, reporting the gap at runtime
// instead of at compile time.
var ErrFeatureNotSupported = errors.New("doltstore: this binary was built without CGO support; rebuild with CGO_ENABLED=1")

// Store is a stub implementation of depgraph.TxStore for non-CGO builds.
// Every method except Close (a no-op) fails with ErrFeatureNotSupported;
// none are reachable in practice since Open always errors first.
type Store struct{}

var _ depgraph.TxStore = (*Store)(nil)

// Open always fails in non-CGO builds.
func Open(_ context.Context, _ string) (*Store, error) {
	return nil, ErrFeatureNotSupported
}

func (s *Store) Close() error { return nil }

func (s *Store) RecordSingle(ctx context.Context, depender, referent objaddr.Address, t depgraph.EdgeType) error {
	return ErrFeatureNotSupported
}

func (s *Store) RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, t depgraph.EdgeType) error {
	return ErrFeatureNotSupported
}

func (s *Store) ScanByReferent(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return nil, ErrFeatureNotSupported
}

func (s *Store) ScanByDepender(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return nil, ErrFeatureNotSupported
}

func (s *Store) DeleteEdge(ctx context.Context, handle int64) error {
	return ErrFeatureNotSupported
}

func (s *Store) CommandCounterIncrement(ctx context.Context) error {
	return ErrFeatureNotSupported
}

func (s *Store) WithRowExclusive(ctx context.Context, fn func(ctx context.Context, tx depgraph.Store) error) error {
	return ErrFeatureNotSupported
}
