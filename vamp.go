// Package vamp is the public API for embedding the VAMP evidence
// scoring server.
//
// Consumers import this package to construct and extend the server
// without forking it:
//
//	app, err := vamp.New(
//	    vamp.WithVersion(version),
//	    vamp.WithLogger(logger),
//	    vamp.WithCollectionStore(myStore{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: vamp (root) imports
// internal/*, but internal/* never imports vamp (root). Public types
// (Collection, ScoredItem) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file
// that sees both sides of the boundary.
package vamp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/Byron2306/VAMP/internal/aggregate"
	"github.com/Byron2306/VAMP/internal/config"
	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/dedup"
	"github.com/Byron2306/VAMP/internal/model"
	"github.com/Byron2306/VAMP/internal/pipeline"
	"github.com/Byron2306/VAMP/internal/server"
	"github.com/Byron2306/VAMP/internal/storage"
	"github.com/Byron2306/VAMP/internal/telemetry"
	"github.com/Byron2306/VAMP/migrations"
)

// App is the VAMP server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the server. It loads the corpus manifest, connects to
// the database when configured, runs migrations, rehydrates persisted
// collections, and wires all subsystems. It does NOT start any
// goroutines or accept HTTP connections until Run() is called.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.corpusManifest != "" {
		cfg.CorpusManifestPath = o.corpusManifest
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("vamp starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(),
		cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	provider, err := corpus.NewProvider(cfg.CorpusManifestPath, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("corpus: %w", err)
	}

	var hash dedup.HashFunc
	if o.hashFunc != nil {
		hash = dedup.HashFunc(o.hashFunc)
	}
	pl := pipeline.New(provider, hash, logger)

	// Persistence: external store > Postgres > in-memory only.
	var db *storage.DB
	var store aggregate.Store
	switch {
	case o.store != nil:
		store = &storeAdapter{s: o.store}
		logger.Info("persistence: external collection store")
	case cfg.DatabaseURL != "":
		db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
		for i, extraFS := range o.extraMigrations {
			if err := db.RunMigrations(context.Background(), extraFS); err != nil {
				db.Close()
				_ = otelShutdown(context.Background())
				return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
			}
		}
		store = db
		logger.Info("persistence: postgres")
	default:
		logger.Warn("persistence: disabled (no DATABASE_URL), collections are in-memory only")
	}

	agg := aggregate.New(store, logger)

	// Rehydrate persisted collections so dedup and finalisation state
	// survive restarts.
	if db != nil {
		cols, err := db.LoadAll(context.Background())
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("rehydrate collections: %w", err)
		}
		for _, col := range cols {
			if err := agg.Seed(col); err != nil {
				db.Close()
				_ = otelShutdown(context.Background())
				return nil, fmt.Errorf("rehydrate %s: %w", col.Key, err)
			}
		}
		if len(cols) > 0 {
			logger.Info("rehydrated collections", "count", len(cols))
		}
	}

	var pinger server.Pinger
	if db != nil {
		pinger = db
	}

	srv := server.New(server.ServerConfig{
		Pipeline:            pl,
		Aggregator:          agg,
		DB:                  pinger,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		ScoreParallelism:    cfg.ScoreParallelism,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a
// fatal server error occurs. On return, Shutdown is called
// automatically, so callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the database
// pool and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("vamp shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	if a.db != nil {
		a.db.Close()
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("vamp stopped")
	return nil
}

// storeAdapter wraps a public CollectionStore to satisfy
// aggregate.Store. It converts internal model types to public vamp
// types at the boundary.
type storeAdapter struct {
	s CollectionStore
}

func (a *storeAdapter) SaveCollection(ctx context.Context, col *model.EvidenceCollection) error {
	return a.s.SaveCollection(ctx, toPublicCollection(col))
}

func toPublicCollection(col *model.EvidenceCollection) Collection {
	items := make([]ScoredItem, len(col.Items))
	for i, it := range col.Items {
		items[i] = ScoredItem{
			ID:             it.ID,
			SourcePlatform: it.SourcePlatform,
			SourceID:       it.SourceID,
			Title:          it.Title,
			RawText:        it.RawText,
			Timestamp:      it.Timestamp,
			KPAScores:      it.KPAScores,
			PrimaryKPA:     it.PrimaryKPA,
			Band:           it.Band,
			Tiers:          it.Tiers,
			ContentHash:    it.ContentHash,
			Confidence:     it.Confidence,
			Rationale:      it.Rationale,
			ScoredAt:       it.ScoredAt,
		}
	}
	return Collection{
		Key:               CollectionKey{User: col.Key.User, Year: col.Key.Year, Month: col.Key.Month},
		Items:             items,
		CrossKPABonus:     col.CrossKPABonus,
		DuplicatesDropped: col.DuplicatesDropped,
		Finalised:         col.Finalised,
		FinalisedAt:       col.FinalisedAt,
		UpdatedAt:         col.UpdatedAt,
	}
}
