package container

import (
	"context"
	"fmt"

	"cmportal/adapters/postgres"
	"cmportal/app"
	"cmportal/internal"
	"cmportal/internal/config"
	"cmportal/internal/dataset"
	"cmportal/internal/migration"
	"cmportal/internal/reference"
	"cmportal/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB        *sqlx.DB
	Mirror    *postgres.ReferenceRepository
	CSVSource *reference.CSVSource
	Reference *reference.Cache
	Results   *app.ResultCache
	Uploads   *dataset.LocalFileStorage

	// Services
	Search    *app.SearchService
	Benchmark *app.BenchmarkService
	Catalog   *app.CatalogService
}

// New creates a new dependency injection container. The reference cache reads
// the CSV files unless the config asks for the Postgres mirror.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		CSVSource: reference.NewCSVSource(cfg.Datasets, logger),
		Results:   app.NewResultCache(cfg.Cache.ResultCacheSize),
		Uploads:   dataset.NewLocalFileStorage(cfg.Uploads, logger),
	}
	c.initServices(c.CSVSource)
	return c, nil
}

// initServices wires the reference cache over source and the services over the cache
func (c *Container) initServices(source ports.ReferenceSource) {
	c.Reference = reference.NewCache(source, c.Logger)
	c.Reference.OnClear(c.Results.Clear)

	c.Search = app.NewSearchService(c.Reference, c.Results, c.Logger)
	c.Benchmark = app.NewBenchmarkService(c.Reference, c.Logger)
	c.Catalog = app.NewCatalogService(c.Reference, c.Logger)
}

// InitWithDatabase migrates the mirror schema and, when configured, switches
// the reference cache to load from the mirror.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate reference schema: %w", err)
	}

	c.Mirror = postgres.NewReferenceRepository(db, c.Logger)
	if c.Config.Database.ServeReference {
		c.initServices(c.Mirror)
	}

	c.Logger.Info("database initialized (schema %s, serving reference from %s)", runner.Version(), c.Reference.Stats().Source)
	return nil
}

// Store returns the mirror as a reference store, or nil without a database
func (c *Container) Store() ports.ReferenceStore {
	if c.Mirror == nil {
		return nil
	}
	return c.Mirror
}

// ImportReference loads the CSV tables, replaces the mirror's contents, and
// returns the number of imported protocols.
func (c *Container) ImportReference(ctx context.Context) (int, error) {
	store := c.Store()
	if store == nil {
		return 0, fmt.Errorf("import requires DATABASE_URL")
	}
	tables, err := c.CSVSource.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load CSV reference tables: %w", err)
	}
	if err := store.Replace(ctx, tables); err != nil {
		return 0, err
	}
	c.Reference.Clear()
	return tables.Matrix.Len(), nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
