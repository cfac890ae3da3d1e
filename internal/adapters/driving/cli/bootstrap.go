package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/convorag/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/convorag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/cache"
	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/objectstore"
	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/convorag/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/core/services"
	"github.com/custodia-labs/convorag/internal/logger"
	"github.com/custodia-labs/convorag/internal/normalisers"
	"github.com/custodia-labs/convorag/internal/postprocessors"
)

// HomeEnv overrides the data directory.
const HomeEnv = "CONVORAG_HOME"

// Options controls how Bootstrap finds its configuration and data.
type Options struct {
	// ConfigPath is the TOML config file. Empty uses <home>/config.toml.
	ConfigPath string

	// Home is the data directory. Empty uses $CONVORAG_HOME or ~/.convorag.
	Home string
}

// App holds the wired services used by the commands.
type App struct {
	Config    driven.ConfigStore
	Settings  driving.SettingsService
	Documents driving.DocumentService
	Indexes   driven.IndexStore
	Indexer   driving.IndexBuilder
	Retrieval driving.RetrievalService
	Ingest    driving.Ingester
	Refresher services.Refresher
	Scheduler driving.Scheduler

	// Normalisers extracts text from files added or watched.
	Normalisers driven.NormaliserRegistry

	// EmbeddingErr explains why Indexer, Retrieval and Ingest are nil.
	EmbeddingErr error

	closers []func() error
}

// Close releases stores and the embedding client in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// homeDir resolves the data directory.
func homeDir(opts Options) (string, error) {
	if opts.Home != "" {
		return opts.Home, nil
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".convorag"), nil
}

// Bootstrap loads the configuration and wires every service. A missing or
// unreachable embedding provider is not fatal: document and config
// commands keep working and EmbeddingErr records the cause.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	home, err := homeDir(opts)
	if err != nil {
		return nil, err
	}
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = filepath.Join(home, "config.toml")
	}

	cfg, err := configfile.NewConfigStore(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	settings := services.LoadSettings(cfg)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config:      cfg,
		Settings:    services.NewSettingsService(cfg),
		Normalisers: normalisers.NewDefaultRegistry(),
	}
	w := &wiring{app: a, home: home, sqlite: map[string]*sqlite.Store{}, postgres: map[string]*postgres.Store{}}

	docStore, schedStore, err := w.documentStore(ctx, settings.Documents)
	if err != nil {
		a.Close()
		return nil, err
	}
	indexStore, err := w.indexStore(ctx, settings.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	indexStore = cache.NewIndexStore(indexStore, settings.Cache.Indexes, settings.Cache.TTL)

	docs := services.NewDocumentService(docStore)
	a.Documents = docs
	a.Indexes = indexStore

	embedder, err := ai.CreateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		logger.Debug("Embedding service unavailable: %v", err)
		a.EmbeddingErr = err
		return a, nil
	}
	a.closers = append(a.closers, embedder.Close)

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		a.Close()
		return nil, err
	}

	indexer := services.NewIndexService(docStore, pipeline, embedder, flat.NewFactory(), indexStore)
	refresher := services.NewIndexRefresher(docStore, indexStore, indexer)

	a.Indexer = indexer
	a.Retrieval = services.NewRetrievalService(indexStore, embedder)
	a.Ingest = services.NewIngestService(docs, indexer, services.DefaultDebounce)
	a.Refresher = refresher
	a.Scheduler = services.NewScheduler(settings.Scheduler, schedStore, refresher)
	return a, nil
}

// wiring opens each database once even when documents and indexes share it.
type wiring struct {
	app      *App
	home     string
	sqlite   map[string]*sqlite.Store
	postgres map[string]*postgres.Store
}

func (w *wiring) defaultDB() string {
	return filepath.Join(w.home, "data", "convorag.db")
}

func (w *wiring) openSQLite(path string) (*sqlite.Store, error) {
	if path == "" {
		path = w.defaultDB()
	}
	if s, ok := w.sqlite[path]; ok {
		return s, nil
	}
	s, err := sqlite.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	w.sqlite[path] = s
	w.app.closers = append(w.app.closers, s.Close)
	return s, nil
}

func (w *wiring) openPostgres(ctx context.Context, dsn string) (*postgres.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres backend requires a dsn", domain.ErrConfiguration)
	}
	if s, ok := w.postgres[dsn]; ok {
		return s, nil
	}
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	w.postgres[dsn] = s
	w.app.closers = append(w.app.closers, s.Close)
	return s, nil
}

func (w *wiring) documentStore(
	ctx context.Context,
	cfg domain.DocumentSettings,
) (driven.DocumentStore, driven.SchedulerStore, error) {
	switch cfg.Driver {
	case domain.StorageSQLite:
		s, err := w.openSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s.DocumentStore(), s.SchedulerStore(), nil
	case domain.StoragePostgres:
		s, err := w.openPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s.DocumentStore(), memory.NewSchedulerStore(), nil
	case domain.StorageMemory:
		return memory.NewDocumentStore(), memory.NewSchedulerStore(), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown document driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}

func (w *wiring) indexStore(ctx context.Context, cfg domain.StorageSettings) (driven.IndexStore, error) {
	factory := flat.NewFactory()

	switch cfg.Backend {
	case domain.StorageFile:
		root := cfg.Path
		if root == "" {
			root = filepath.Join(w.home, "indexes")
		}
		bucket, err := objectstore.NewLocalBucket(root)
		if err != nil {
			return nil, err
		}
		return objectstore.NewIndexStore(bucket, factory), nil
	case domain.StorageSQLite:
		s, err := w.openSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s.IndexStore(factory), nil
	case domain.StorageS3:
		bucket, err := objectstore.NewS3Bucket(ctx, objectstore.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return objectstore.NewIndexStore(bucket, factory), nil
	case domain.StoragePostgres:
		s, err := w.openPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s.IndexStore(factory), nil
	case domain.StorageMemory:
		return memory.NewIndexStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfiguration, cfg.Backend)
	}
}
