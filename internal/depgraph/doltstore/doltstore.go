//go:build cgo

// Package doltstore is the versioned, SQL-server-compatible backend for the
// dependency registry, grounded on the teacher's internal/storage/dolt
// (embedded Dolt engine via github.com/dolthub/driver, the same library the
// teacher gates behind a cgo build tag).
package doltstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	embedded "github.com/dolthub/driver"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

const embeddedOpenMaxElapsed = 30 * time.Second

// newEmbeddedOpenBackoff mirrors the teacher's dolt/store_embedded.go: a
// fresh exponential backoff per open attempt, since backoff.BackOff
// instances are stateful.
func newEmbeddedOpenBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = embeddedOpenMaxElapsed
	return bo
}

// Store is a depgraph.TxStore backed by an embedded Dolt database.
type Store struct {
	db        *sql.DB
	connector *embedded.Connector
}

// Open connects to (creating if absent) the embedded Dolt database at dsn
// and migrates its schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dolt dsn: %w", err)
	}
	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("new dolt connector: %w", err)
	}

	db := sql.OpenDB(connector)

	var pingErr error
	err = backoff.Retry(func() error {
		pingErr = db.PingContext(ctx)
		return pingErr
	}, backoff.WithContext(newEmbeddedOpenBackoff(), ctx))
	if err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("open dolt dependency registry: %w", errors.Join(err, pingErr))
	}

	s := &Store{db: db, connector: connector}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle and the connector's filesystem lock,
// matching the teacher's withEmbeddedDolt lifecycle (db.Close then
// connector.Close).
func (s *Store) Close() error {
	dbErr := s.db.Close()
	connErr := s.connector.Close()
	return errors.Join(dbErr, connErr)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dependencies (
			handle    BIGINT AUTO_INCREMENT PRIMARY KEY,
			dep_class BIGINT NOT NULL,
			dep_id    BIGINT NOT NULL,
			dep_sub   INT NOT NULL DEFAULT 0,
			ref_class BIGINT NOT NULL,
			ref_id    BIGINT NOT NULL,
			ref_sub   INT NOT NULL DEFAULT 0,
			dep_type  VARCHAR(1) NOT NULL,
			INDEX idx_dependencies_referent (ref_class, ref_id, ref_sub),
			INDEX idx_dependencies_depender (dep_class, dep_id, dep_sub)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate dolt dependencies table: %w", err)
	}
	return nil
}

func (s *Store) RecordSingle(ctx context.Context, depender, referent objaddr.Address, t depgraph.EdgeType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, depender.ClassID, depender.ObjectID, depender.SubID, referent.ClassID, referent.ObjectID, referent.SubID, string(t))
	if err != nil {
		return fmt.Errorf("record dolt dependency: %w", err)
	}
	return nil
}

func (s *Store) RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, t depgraph.EdgeType) error {
	for _, referent := range referents {
		if err := s.RecordSingle(ctx, depender, referent, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scan(ctx context.Context, query string, args ...any) ([]depgraph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan dolt dependencies: %w", err)
	}
	defer rows.Close()

	var edges []depgraph.Edge
	for rows.Next() {
		var e depgraph.Edge
		var depType string
		if err := rows.Scan(&e.Handle,
			&e.Depender.ClassID, &e.Depender.ObjectID, &e.Depender.SubID,
			&e.Referent.ClassID, &e.Referent.ObjectID, &e.Referent.SubID,
			&depType); err != nil {
			return nil, fmt.Errorf("scan dolt dependency row: %w", err)
		}
		e.Type = depgraph.EdgeType(depType)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *Store) ScanByReferent(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	const cols = "handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type"
	if addr.SubID == 0 {
		return s.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE ref_class = ? AND ref_id = ?", addr.ClassID, addr.ObjectID)
	}
	return s.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE ref_class = ? AND ref_id = ? AND ref_sub = ?", addr.ClassID, addr.ObjectID, addr.SubID)
}

func (s *Store) ScanByDepender(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	const cols = "handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type"
	if addr.SubID == 0 {
		return s.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE dep_class = ? AND dep_id = ?", addr.ClassID, addr.ObjectID)
	}
	return s.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE dep_class = ? AND dep_id = ? AND dep_sub = ?", addr.ClassID, addr.ObjectID, addr.SubID)
}

func (s *Store) DeleteEdge(ctx context.Context, handle int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("delete dolt dependency edge: %w", err)
	}
	return nil
}

// CommandCounterIncrement is a no-op: Dolt, like SQLite, gives this single
// connection's statements read-your-writes consistency already.
func (s *Store) CommandCounterIncrement(ctx context.Context) error {
	return nil
}

// WithRowExclusive runs fn inside a single Dolt transaction.
func (s *Store) WithRowExclusive(ctx context.Context, fn func(ctx context.Context, tx depgraph.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dolt transaction: %w", err)
	}
	scoped := &txScoped{tx: tx}
	if err := fn(ctx, scoped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type txScoped struct {
	tx *sql.Tx
}

func (t *txScoped) RecordSingle(ctx context.Context, depender, referent objaddr.Address, et depgraph.EdgeType) error {
	if err := et.Validate(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO dependencies (dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, depender.ClassID, depender.ObjectID, depender.SubID, referent.ClassID, referent.ObjectID, referent.SubID, string(et))
	if err != nil {
		return fmt.Errorf("record dolt dependency (tx): %w", err)
	}
	return nil
}

func (t *txScoped) RecordMultiple(ctx context.Context, depender objaddr.Address, referents []objaddr.Address, et depgraph.EdgeType) error {
	for _, referent := range referents {
		if err := t.RecordSingle(ctx, depender, referent, et); err != nil {
			return err
		}
	}
	return nil
}

func (t *txScoped) scan(ctx context.Context, query string, args ...any) ([]depgraph.Edge, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan dolt dependencies (tx): %w", err)
	}
	defer rows.Close()

	var edges []depgraph.Edge
	for rows.Next() {
		var e depgraph.Edge
		var depType string
		if err := rows.Scan(&e.Handle,
			&e.Depender.ClassID, &e.Depender.ObjectID, &e.Depender.SubID,
			&e.Referent.ClassID, &e.Referent.ObjectID, &e.Referent.SubID,
			&depType); err != nil {
			return nil, fmt.Errorf("scan dolt dependency row (tx): %w", err)
		}
		e.Type = depgraph.EdgeType(depType)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (t *txScoped) ScanByReferent(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	const cols = "handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type"
	if addr.SubID == 0 {
		return t.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE ref_class = ? AND ref_id = ?", addr.ClassID, addr.ObjectID)
	}
	return t.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE ref_class = ? AND ref_id = ? AND ref_sub = ?", addr.ClassID, addr.ObjectID, addr.SubID)
}

func (t *txScoped) ScanByDepender(ctx context.Context, addr objaddr.Address) ([]depgraph.Edge, error) {
	const cols = "handle, dep_class, dep_id, dep_sub, ref_class, ref_id, ref_sub, dep_type"
	if addr.SubID == 0 {
		return t.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE dep_class = ? AND dep_id = ?", addr.ClassID, addr.ObjectID)
	}
	return t.scan(ctx, "SELECT "+cols+" FROM dependencies WHERE dep_class = ? AND dep_id = ? AND dep_sub = ?", addr.ClassID, addr.ObjectID, addr.SubID)
}

func (t *txScoped) DeleteEdge(ctx context.Context, handle int64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM dependencies WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("delete dolt dependency edge (tx): %w", err)
	}
	return nil
}

func (t *txScoped) CommandCounterIncrement(ctx context.Context) error {
	return nil
}

var _ depgraph.TxStore = (*Store)(nil)
