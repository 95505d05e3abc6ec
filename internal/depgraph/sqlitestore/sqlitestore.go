// Package sqlitestore is the embedded, CGO-free SQLite backend for the
// dependency registry, grounded on the teacher's internal/storage/ephemeral
// and internal/comment/graph.go driver choice (ncruces/go-sqlite3).
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
	"github.com/catalogkit/depengine/internal/retry"
)

// Sentinel errors, matching the teacher's internal/storage/sqlite/errors.go
// wrap-with-sentinel idiom.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("registry closed")
)

func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Store is a depgraph.TxStore backed by a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the dependency-edge database at path and
// ensures its schema is migrated.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_pragma=busy_timeout(30000)&_pragma=foreign_keys(ON)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open dependency registry: %w", err)
	}
	db.SetMaxOpenConns(1) // matches teacher's embedded-sqlite single-writer discipline
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dependencies (
			handle      INTEGER PRIMARY KEY AUTOINCREMENT,
			dep_class   INTEGER NOT NULL,
			dep_id      INTEGER NOT NULL,
			dep_sub     INTEGER NOT NULL DEFAULT 0,
			ref_class   INTEGER NOT NULL,
			ref_id      INTEGER NOT NULL,
			ref_sub     INTEGER NOT NULL DEFAULT 0,
			dep_type    TEXT NOT NULL
		)
	`)
	if err != nil {
		return wrapDBError("migrate dependencies table", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_dependencies_referent
			ON dependencies(ref_class, ref_id, ref_sub)
	`)
	if err != nil {
		return wrapDBError("migrate referent index", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_dependencies_depender
			ON dependencies(dep_class, dep_id, dep_sub)
	`)
	return wrapDBError("migrate depender index", err)
}

// execer is satisfied by both *sql.DB (ad-hoc statements outside a
// transaction) and *sql.Tx (statements inside WithRowExclusive).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) RecordSingle(ctx context.Context, depender, referent objaddr.Address, t depgraph.EdgeType) error {
	return recordSingle(ctx, s.db, depender, referent, t)
}

func recordSingle(ctx context.Context, exec execer, depender, referent objaddr.Address, t depgraph.EdgeType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO dependencies (dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, depender.ClassID, depender.ObjectID, depender.SubID, referent.ClassID, referent.ObjectID, referent.SubID, string(t))
	return wrapDBError("record dependency", err)
}

func (s *Store) RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, t depgraph.EdgeType) error {
	return recordMultiple(ctx, s.db, depender, referents, t)
}

func recordMultiple(ctx context.Context, exec execer, depender objaddr.Address, referents []objaddr.Address, t depgraph.EdgeType) error {
	for _, referent := range referents {
		if err := recordSingle(ctx, exec, depender, referent, t); err != nil {
			return err
		}
	}
	return nil
}

func scanEdges(rows *sql.Rows) ([]depgraph.Edge, error) {
	defer rows.Close()
	var edges []depgraph.Edge
	for rows.Next() {
		var e depgraph.Edge
		var depType string
		if err := rows.Scan(&e.Handle,
			&e.Depender.ClassID, &e.Depender.ObjectID, &e.Depender.SubID,
			&e.Referent.ClassID, &e.Referent.ObjectID, &e.Referent.SubID,
			&depType); err != nil {
			return nil, fmt.Errorf("scan dependency row: %w", err)
		}
		e.Type = depgraph.EdgeType(depType)
		edges = append(edges, e)
	}
	return edges, wrapDBError("iterate dependency rows", rows.Err())
}

func (s *Store) ScanByReferent(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return scanByReferent(ctx, s.db, addr)
}

func scanByReferent(ctx context.Context, exec execer, addr objaddr.Address) ([]depgraph.Edge, error) {
	var rows *sql.Rows
	var err error
	if addr.SubID == 0 {
		rows, err = exec.QueryContext(ctx, `
			SELECT handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type
			FROM dependencies WHERE ref_class = ? AND ref_id = ?
		`, addr.ClassID, addr.ObjectID)
	} else {
		rows, err = exec.QueryContext(ctx, `
			SELECT handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type
			FROM dependencies WHERE ref_class = ? AND ref_id = ? AND ref_sub = ?
		`, addr.ClassID, addr.ObjectID, addr.SubID)
	}
	if err != nil {
		return nil, wrapDBError("scan by referent", err)
	}
	return scanEdges(rows)
}

func (s *Store) ScanByDepender(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return scanByDepender(ctx, s.db, addr)
}

func scanByDepender(ctx context.Context, exec execer, addr objaddr.Address) ([]depgraph.Edge, error) {
	var rows *sql.Rows
	var err error
	if addr.SubID == 0 {
		rows, err = exec.QueryContext(ctx, `
			SELECT handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type
			FROM dependencies WHERE dep_class = ? AND dep_id = ?
		`, addr.ClassID, addr.ObjectID)
	} else {
		rows, err = exec.QueryContext(ctx, `
			SELECT handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type
			FROM dependencies WHERE dep_class = ? AND dep_id = ? AND dep_sub = ?
		`, addr.ClassID, addr.ObjectID, addr.SubID)
	}
	if err != nil {
		return nil, wrapDBError("scan by depender", err)
	}
	return scanEdges(rows)
}

func (s *Store) DeleteEdge(ctx context.Context, handle int64) error {
	return deleteEdge(ctx, s.db, handle)
}

func deleteEdge(ctx context.Context, exec execer, handle int64) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM dependencies WHERE handle = ?`, handle)
	return wrapDBError("delete dependency edge", err)
}

// CommandCounterIncrement is a no-op on this backend: every statement here
// runs through the same connection/transaction, so SQLite's own read
// consistency already makes prior writes visible to subsequent scans
// within the operation. It exists to satisfy depgraph.Store and to document
// the semantic the spec calls out explicitly.
func (s *Store) CommandCounterIncrement(ctx context.Context) error {
	return nil
}

// WithRowExclusive runs fn inside a single SQLite transaction (BEGIN
// IMMEDIATE, matching the teacher's GH#1272 fix in delete.go) holding a
// row-exclusive-equivalent lock on the registry for the whole operation, via
// exponential-backoff retry around the BEGIN per internal/retry.
func (s *Store) WithRowExclusive(ctx context.Context, fn func(ctx context.Context, tx depgraph.Store) error) error {
	var tx *sql.Tx
	err := retry.Do(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return fmt.Errorf("begin row-exclusive transaction: %w", err)
	}

	txStore := &txScopedStore{tx: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txScopedStore adapts a *sql.Tx to depgraph.Store for the duration of one
// WithRowExclusive call.
type txScopedStore struct {
	tx *sql.Tx
}

func (t *txScopedStore) RecordSingle(ctx context.Context, depender, referent objaddr.Address, et depgraph.EdgeType) error {
	return recordSingle(ctx, t.tx, depender, referent, et)
}

func (t *txScopedStore) RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, et depgraph.EdgeType) error {
	return recordMultiple(ctx, t.tx, depender, referents, et)
}

func (t *txScopedStore) ScanByReferent(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return scanByReferent(ctx, t.tx, addr)
}

func (t *txScopedStore) ScanByDepender(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	return scanByDepender(ctx, t.tx, addr)
}

func (t *txScopedStore) DeleteEdge(ctx context.Context, handle int64) error {
	return deleteEdge(ctx, t.tx, handle)
}

func (t *txScopedStore) CommandCounterIncrement(ctx context.Context) error {
	return nil
}

var _ depgraph.TxStore = (*Store)(nil)
