package catalog

import (
	"context"
	"fmt"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

// Postgres-style fixed OIDs for the handful of built-in objects every fresh
// database ships with already pinned: the two trusted procedural languages,
// the default schema, and the core boolean type. A real catalog bootstrap
// pins many more; this set is enough to make the PIN fatal-failure path
// (§4.4: dropping a PIN'd referent always fails, cascade or not) reachable
// against the same registry every other object is resolved through.
const (
	schemaPublicOID     int64 = 2200
	languageInternalOID int64 = 12
	languageCOID        int64 = 13
	typeBoolOID         int64 = 16
)

// Pinned returns the fixed set of "required by the database system"
// addresses seeded at bootstrap.
func Pinned(classes *Registry) []objaddr.Address {
	return []objaddr.Address{
		{ClassID: classes.IDOf(ClassSchema), ObjectID: schemaPublicOID},
		{ClassID: classes.IDOf(ClassLanguage), ObjectID: languageInternalOID},
		{ClassID: classes.IDOf(ClassLanguage), ObjectID: languageCOID},
		{ClassID: classes.IDOf(ClassType), ObjectID: typeBoolOID},
	}
}

// SeedPinned records a PIN edge (zero depender, per depgraph's convention
// for PIN rows) for every address in Pinned. It is idempotent: each
// referent is scanned first, and a PIN edge already present is left alone,
// so calling this once per process start never accumulates duplicate rows —
// the same idempotent-migration shape the catalog/dep stores' own
// migrations use.
func SeedPinned(ctx context.Context, store depgraph.Store, classes *Registry) error {
	for _, addr := range Pinned(classes) {
		edges, err := store.ScanByReferent(ctx, addr)
		if err != nil {
			return fmt.Errorf("scan existing pin edges for %+v: %w", addr, err)
		}

		pinned := false
		for _, e := range edges {
			if e.Type == depgraph.Pin {
				pinned = true
				break
			}
		}
		if pinned {
			continue
		}

		if err := store.RecordSingle(ctx, objaddr.Address{}, addr, depgraph.Pin); err != nil {
			return fmt.Errorf("seed pin edge for %+v: %w", addr, err)
		}
	}
	return nil
}
