// Package metastore is the embedded SQLite backend for indexlc.MetaStore,
// grounded on the teacher's internal/storage/sqlite/epics.go (idempotent
// migrations, one flat table per entity, wrapDBError around every
// statement) and queries.go's insert-then-advance-visibility sequencing.
package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/catalogkit/depengine/internal/deletion"
	"github.com/catalogkit/depengine/internal/indexlc"
)

// ErrNotFound mirrors the sentinel-wrap idiom used throughout the corpus.
var ErrNotFound = errors.New("metastore: not found")

func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Store is an indexlc.MetaStore backed by a single SQLite database file.
type Store struct {
	db      *sql.DB
	nextOID atomic.Int64
}

// Open opens (creating if absent) the metadata database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_pragma=busy_timeout(30000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open index metadata store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadNextOID(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pg_class (
			oid       INTEGER PRIMARY KEY,
			schema    TEXT NOT NULL,
			name      TEXT NOT NULL,
			rel_kind  INTEGER NOT NULL,
			has_index INTEGER NOT NULL DEFAULT 0,
			UNIQUE(schema, name)
		)`,
		`CREATE TABLE IF NOT EXISTS pg_index (
			index_id  INTEGER PRIMARY KEY,
			heap_id   INTEGER NOT NULL,
			info_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pg_attribute_index (
			index_id    INTEGER NOT NULL,
			position    INTEGER NOT NULL,
			heap_attnum INTEGER NOT NULL,
			PRIMARY KEY (index_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS pg_constraint (
			oid     INTEGER PRIMARY KEY AUTOINCREMENT,
			heap_id INTEGER NOT NULL,
			ctype   INTEGER NOT NULL,
			schema  TEXT NOT NULL,
			name    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pg_index_deferred_build (
			index_id INTEGER PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrapDBError("migrate metastore schema", err)
		}
	}
	return nil
}

func (s *Store) loadNextOID(ctx context.Context) error {
	var max int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(oid), 16383) FROM (
			SELECT oid FROM pg_class
			UNION ALL SELECT index_id FROM pg_index
		)
	`).Scan(&max)
	if err != nil {
		return wrapDBError("load next oid watermark", err)
	}
	s.nextOID.Store(max)
	return nil
}

func (s *Store) RelationExists(ctx context.Context, schema, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM pg_class WHERE schema = ? AND name = ?`, schema, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBError("check relation existence", err)
	}
	return true, nil
}

func (s *Store) AllocateOID(ctx context.Context) (int64, error) {
	return s.nextOID.Add(1), nil
}

func (s *Store) CreateRelation(ctx context.Context, id int64, schema, name string, kind deletion.RelKind) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pg_class (oid, schema, name, rel_kind, has_index) VALUES (?, ?, ?, ?, 0)
	`, id, schema, name, int(kind))
	return wrapDBError("create relation row", err)
}

func (s *Store) DropRelation(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pg_class WHERE oid = ?`, id)
	return wrapDBError("drop relation row", err)
}

func (s *Store) RelKindOf(ctx context.Context, id int64) (deletion.RelKind, error) {
	var kind int
	err := s.db.QueryRowContext(ctx, `SELECT rel_kind FROM pg_class WHERE oid = ?`, id).Scan(&kind)
	if err != nil {
		return 0, wrapDBError("look up relation kind", err)
	}
	return deletion.RelKind(kind), nil
}

func (s *Store) InsertIndexAttr(ctx context.Context, indexID int64, position int32, heapAttNum int32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pg_attribute_index (index_id, position, heap_attnum) VALUES (?, ?, ?)
	`, indexID, position, heapAttNum)
	return wrapDBError("insert index attribute row", err)
}

func (s *Store) DeleteIndexAttrs(ctx context.Context, indexID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pg_attribute_index WHERE index_id = ?`, indexID)
	return wrapDBError("delete index attribute rows", err)
}

// indexInfoJSON is the serialized form of indexlc.IndexInfo stored in
// pg_index.info_json. Expression/predicate Nodes aren't portably
// serializable in this minimal store, so only the structural fields needed
// to drive reindex/drop survive a round trip; a real implementation would
// persist the serialized expression trees too (§6: "Predicate and
// expressions are stored in the standard serialized form").
type indexInfoJSON struct {
	NumKeys        int                     `json:"num_keys"`
	AttNums        []int32                 `json:"att_nums"`
	OpClasses      []int64                 `json:"op_classes"`
	IsUnique       bool                    `json:"is_unique"`
	IsPrimary      bool                    `json:"is_primary"`
	IsConstraint   bool                    `json:"is_constraint"`
	ConstraintType indexlc.ConstraintType  `json:"constraint_type"`
	AccessMethodID int64                   `json:"access_method_id"`
}

func toJSON(info indexlc.IndexInfo) indexInfoJSON {
	out := indexInfoJSON{
		NumKeys:        len(info.Keys),
		IsUnique:       info.IsUnique,
		IsPrimary:      info.IsPrimary,
		IsConstraint:   info.IsConstraint,
		ConstraintType: info.ConstraintType,
		AccessMethodID: info.AccessMethodID,
	}
	for _, k := range info.Keys {
		out.AttNums = append(out.AttNums, k.AttNum)
		out.OpClasses = append(out.OpClasses, k.OpClass)
	}
	return out
}

func (j indexInfoJSON) toInfo() indexlc.IndexInfo {
	info := indexlc.IndexInfo{
		IsUnique:       j.IsUnique,
		IsPrimary:      j.IsPrimary,
		IsConstraint:   j.IsConstraint,
		ConstraintType: j.ConstraintType,
		AccessMethodID: j.AccessMethodID,
	}
	for i := 0; i < j.NumKeys; i++ {
		key := indexlc.ColumnKey{}
		if i < len(j.AttNums) {
			key.AttNum = j.AttNums[i]
		}
		if i < len(j.OpClasses) {
			key.OpClass = j.OpClasses[i]
		}
		info.Keys = append(info.Keys, key)
	}
	return info
}

func (s *Store) InsertIndexMeta(ctx context.Context, indexID, heapID int64, info indexlc.IndexInfo) error {
	buf, err := json.Marshal(toJSON(info))
	if err != nil {
		return fmt.Errorf("marshal index info: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pg_index (index_id, heap_id, info_json) VALUES (?, ?, ?)
	`, indexID, heapID, string(buf))
	return wrapDBError("insert index metadata row", err)
}

func (s *Store) DeleteIndexMeta(ctx context.Context, indexID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pg_index WHERE index_id = ?`, indexID)
	return wrapDBError("delete index metadata row", err)
}

func (s *Store) GetIndexMeta(ctx context.Context, indexID int64) (indexlc.IndexMeta, error) {
	var heapID int64
	var infoJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT heap_id, info_json FROM pg_index WHERE index_id = ?
	`, indexID).Scan(&heapID, &infoJSON)
	if err != nil {
		return indexlc.IndexMeta{}, wrapDBError("get index metadata row", err)
	}
	var j indexInfoJSON
	if err := json.Unmarshal([]byte(infoJSON), &j); err != nil {
		return indexlc.IndexMeta{}, fmt.Errorf("unmarshal index info: %w", err)
	}
	return indexlc.IndexMeta{IndexID: indexID, HeapID: heapID, Info: j.toInfo()}, nil
}

func (s *Store) CreateConstraintRow(ctx context.Context, heapID int64, ct indexlc.ConstraintType, schema, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pg_constraint (heap_id, ctype, schema, name) VALUES (?, ?, ?, ?)
	`, heapID, int(ct), schema, name)
	if err != nil {
		return 0, wrapDBError("insert constraint row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapDBError("read constraint row id", err)
	}
	return id, nil
}

func (s *Store) SetHasIndex(ctx context.Context, heapID int64, has bool) error {
	hasInt := 0
	if has {
		hasInt = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE pg_class SET has_index = ? WHERE oid = ?`, hasInt, heapID)
	return wrapDBError("set relhasindex", err)
}

func (s *Store) DeferBuild(ctx context.Context, indexID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pg_index_deferred_build (index_id) VALUES (?)
		ON CONFLICT (index_id) DO NOTHING
	`, indexID)
	return wrapDBError("register deferred build", err)
}

// InvalidateRelationCache is a no-op on this single-process embedded
// backend: there are no other sessions to notify. A multi-backend
// deployment would publish a cache-invalidation message here instead.
func (s *Store) InvalidateRelationCache(ctx context.Context, heapID int64) error {
	return nil
}

var _ indexlc.MetaStore = (*Store)(nil)
