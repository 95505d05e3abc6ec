// Package sqlitecat is the embedded SQLite backend for the catalog row
// store, grounded on the teacher's internal/storage/sqlite issue/epic row
// tables (issues.go, epics.go: idempotent migrations, a single flat table
// per entity, wrapDBError around every statement).
package sqlitecat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
)

func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, catalogstore.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Store is a catalogstore.Store backed by a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the catalog database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_pragma=busy_timeout(30000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_objects (
			class     INTEGER NOT NULL,
			object_id INTEGER NOT NULL,
			sub_id    INTEGER NOT NULL DEFAULT 0,
			schema    TEXT NOT NULL DEFAULT '',
			name      TEXT NOT NULL DEFAULT '',
			column    TEXT NOT NULL DEFAULT '',
			signature TEXT NOT NULL DEFAULT '',
			on_table  TEXT NOT NULL DEFAULT '',
			op_family TEXT NOT NULL DEFAULT '',
			qualify   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (class, object_id, sub_id)
		)
	`)
	return wrapDBError("migrate catalog_objects table", err)
}

// execer is implemented by both *sql.DB and *sql.Tx, letting every query
// below run either directly against the store or inside WithTx's
// transaction, matching internal/depgraph/sqlitestore's shape.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateRow(ctx context.Context, row catalogstore.Row) error {
	return createRow(ctx, s.db, row)
}

func createRow(ctx context.Context, exec execer, row catalogstore.Row) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO catalog_objects (class, object_id, sub_id, schema, name, column, signature, on_table, op_family, qualify)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (class, object_id, sub_id) DO UPDATE SET
			schema = excluded.schema, name = excluded.name, column = excluded.column,
			signature = excluded.signature, on_table = excluded.on_table,
			op_family = excluded.op_family, qualify = excluded.qualify
	`, int64(row.Class), row.ObjectID, row.SubID, row.Schema, row.Name, row.Column,
		row.Signature, row.OnTable, row.OpFamily, boolToInt(row.Qualify))
	return wrapDBError("create catalog row", err)
}

func (s *Store) DropRow(ctx context.Context, class catalog.Class, objectID int64, subID int32) error {
	return dropRow(ctx, s.db, class, objectID, subID)
}

func dropRow(ctx context.Context, exec execer, class catalog.Class, objectID int64, subID int32) error {
	_, err := exec.ExecContext(ctx, `
		DELETE FROM catalog_objects WHERE class = ? AND object_id = ? AND sub_id = ?
	`, int64(class), objectID, subID)
	return wrapDBError("drop catalog row", err)
}

func (s *Store) Get(ctx context.Context, class catalog.Class, objectID int64, subID int32) (catalogstore.Row, error) {
	return getRow(ctx, s.db, class, objectID, subID)
}

func getRow(ctx context.Context, exec execer, class catalog.Class, objectID int64, subID int32) (catalogstore.Row, error) {
	var row catalogstore.Row
	var classInt int64
	var qualify int
	err := exec.QueryRowContext(ctx, `
		SELECT class, object_id, sub_id, schema, name, column, signature, on_table, op_family, qualify
		FROM catalog_objects WHERE class = ? AND object_id = ? AND sub_id = ?
	`, int64(class), objectID, subID).Scan(&classInt, &row.ObjectID, &row.SubID, &row.Schema,
		&row.Name, &row.Column, &row.Signature, &row.OnTable, &row.OpFamily, &qualify)
	if err != nil {
		return catalogstore.Row{}, wrapDBError("get catalog row", err)
	}
	row.Class = catalog.Class(classInt)
	row.Qualify = qualify != 0
	return row, nil
}

func (s *Store) Exists(ctx context.Context, class catalog.Class, objectID int64, subID int32) (bool, error) {
	return existsRow(ctx, s.db, class, objectID, subID)
}

func existsRow(ctx context.Context, exec execer, class catalog.Class, objectID int64, subID int32) (bool, error) {
	var one int
	err := exec.QueryRowContext(ctx, `
		SELECT 1 FROM catalog_objects WHERE class = ? AND object_id = ? AND sub_id = ?
	`, int64(class), objectID, subID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBError("check catalog row existence", err)
	}
	return true, nil
}

func (s *Store) ColumnsOf(ctx context.Context, tableObjectID int64) ([]catalogstore.Row, error) {
	return columnsOf(ctx, s.db, tableObjectID)
}

func columnsOf(ctx context.Context, exec execer, tableObjectID int64) ([]catalogstore.Row, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT class, object_id, sub_id, schema, name, column, signature, on_table, op_family, qualify
		FROM catalog_objects WHERE class = ? AND object_id = ? AND sub_id > 0
		ORDER BY sub_id
	`, int64(catalog.ClassTable), tableObjectID)
	if err != nil {
		return nil, wrapDBError("list columns", err)
	}
	defer rows.Close()

	var out []catalogstore.Row
	for rows.Next() {
		var row catalogstore.Row
		var classInt int64
		var qualify int
		if err := rows.Scan(&classInt, &row.ObjectID, &row.SubID, &row.Schema,
			&row.Name, &row.Column, &row.Signature, &row.OnTable, &row.OpFamily, &qualify); err != nil {
			return nil, wrapDBError("scan column row", err)
		}
		row.Class = catalog.Class(classInt)
		row.Qualify = qualify != 0
		out = append(out, row)
	}
	return out, wrapDBError("iterate column rows", rows.Err())
}

// WithTx runs fn inside a single SQLite transaction, committing on success
// and rolling back on error, per catalogstore.Store's contract.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx catalogstore.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}

	txStore := &txScopedStore{tx: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txScopedStore adapts a *sql.Tx to catalogstore.Store for the duration of
// one WithTx call.
type txScopedStore struct {
	tx *sql.Tx
}

func (t *txScopedStore) CreateRow(ctx context.Context, row catalogstore.Row) error {
	return createRow(ctx, t.tx, row)
}

func (t *txScopedStore) DropRow(ctx context.Context, class catalog.Class, objectID int64, subID int32) error {
	return dropRow(ctx, t.tx, class, objectID, subID)
}

func (t *txScopedStore) Get(ctx context.Context, class catalog.Class, objectID int64, subID int32) (catalogstore.Row, error) {
	return getRow(ctx, t.tx, class, objectID, subID)
}

func (t *txScopedStore) Exists(ctx context.Context, class catalog.Class, objectID int64, subID int32) (bool, error) {
	return existsRow(ctx, t.tx, class, objectID, subID)
}

func (t *txScopedStore) ColumnsOf(ctx context.Context, tableObjectID int64) ([]catalogstore.Row, error) {
	return columnsOf(ctx, t.tx, tableObjectID)
}

func (t *txScopedStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx catalogstore.Store) error) error {
	// Already inside a transaction; nesting runs fn against the same tx
	// rather than opening a second one SQLite can't support concurrently.
	return fn(ctx, t)
}

func (t *txScopedStore) Close() error { return nil }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ catalogstore.Store = (*Store)(nil)
