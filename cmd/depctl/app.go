package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/catalogkit/depengine/internal/catalog"
	"github.com/catalogkit/depengine/internal/catalogstore"
	"github.com/catalogkit/depengine/internal/catalogstore/sqlitecat"
	"github.com/catalogkit/depengine/internal/config"
	"github.com/catalogkit/depengine/internal/deletion"
	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/depgraph/doltstore"
	"github.com/catalogkit/depengine/internal/depgraph/sqlitestore"
	"github.com/catalogkit/depengine/internal/indexlc"
	"github.com/catalogkit/depengine/internal/indexlc/metastore"
	"github.com/catalogkit/depengine/internal/telemetry"
)

// application bundles every collaborator a subcommand might need: the
// dependency registry, the catalog row store, the index-metadata store, the
// deletion engine, and the index lifecycle — wired together exactly once in
// PersistentPreRunE, per cmd/bd/main.go's single-long-lived-store shape.
type application struct {
	cfg       config.Config
	classes   *catalog.Registry
	deps      depgraph.TxStore
	cat       catalogstore.Store
	meta      *metastore.Store
	am        *indexlc.MemoryAccessMethod
	lc        *indexlc.Lifecycle
	engine    *deletion.Engine
	providers *telemetry.Providers
	log       *slog.Logger
}

func newApplication(ctx context.Context, cfg config.Config) (*application, error) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var providers *telemetry.Providers
	if cfg.Telemetry.Enabled {
		p, err := telemetry.InitStdout(io.Discard)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		providers = p
	}

	deps, err := openDepStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	cat, err := sqlitecat.Open(ctx, cfg.Storage.Path+".catalog")
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	meta, err := metastore.Open(ctx, cfg.Storage.Path+".meta")
	if err != nil {
		return nil, fmt.Errorf("open index metadata store: %w", err)
	}

	classes := catalog.NewRegistry()
	if err := catalog.SeedPinned(ctx, deps, classes); err != nil {
		return nil, fmt.Errorf("seed pinned objects: %w", err)
	}

	am := indexlc.NewMemoryAccessMethod()
	lc := indexlc.NewLifecycle(deps, cat, meta, classes, am, nil, true)

	engine := deletion.New(deps, cat, classes, deletion.Hooks{
		RelKindOf:      meta.RelKindOf,
		DropIndex:      lc.DropIndex,
		DeleteComments: func(ctx context.Context, classID, objectID int64, subID int32) error { return nil },
	}, log)

	return &application{
		cfg: cfg, classes: classes, deps: deps, cat: cat, meta: meta, am: am, lc: lc,
		engine: engine, providers: providers, log: log,
	}, nil
}

func openDepStore(ctx context.Context, sc config.StorageConfig) (depgraph.TxStore, error) {
	switch sc.Backend {
	case "dolt":
		dsn := sc.ServerDSN
		if dsn == "" {
			dsn = sc.Path
		}
		store, err := doltstore.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open dolt dependency store: %w", err)
		}
		return store, nil
	case "sqlite", "":
		store, err := sqlitestore.Open(ctx, sc.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite dependency store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage.backend %q (want sqlite or dolt)", sc.Backend)
	}
}

func (a *application) Close(ctx context.Context) error {
	var errs []error
	if closer, ok := a.deps.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.cat.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.meta.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// tableClassID is the registry class id of the table class — the class
// every depctl subcommand's --id flag is resolved against.
func (a *application) tableClassID() int64 {
	return a.classes.IDOf(catalog.ClassTable)
}
