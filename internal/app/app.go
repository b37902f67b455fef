// Package app wires configuration, logging, the record store and the event
// producer into the importer and runs one command-line mode.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/keywords"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/store/postgres"
	"github.com/Ramsey-B/fern/pkg/store/rest"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/workbook"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	DependencyTracing = "tracing"
	DependencyStore   = "store"
	DependencyEvents  = "events"
)

// Opener opens a workbook by path.
type Opener func(path, password string) (workbook.Workbook, error)

type App struct {
	cfg     config.Config
	logger  ectologger.Logger
	zap     *zap.Logger
	startup *startup.Startup
	started bool

	tracing *tracing.Provider

	store     store.Store
	db        *sqlx.DB
	publisher events.Publisher
	tables    keywords.Tables

	open Opener
	in   io.Reader
	out  io.Writer
}

type Option func(*App)

// WithStore skips store setup and uses st.
func WithStore(st store.Store) Option {
	return func(a *App) {
		a.store = st
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(a *App) {
		a.publisher = p
	}
}

func WithLogger(logger ectologger.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

func WithOpener(open Opener) Option {
	return func(a *App) {
		a.open = open
	}
}

// WithIO sets where prompts are read from and reports are written to.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:  cfg,
		open: workbook.Open,
		in:   os.Stdin,
		out:  os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		zl, err := NewZapLogger(cfg)
		if err != nil {
			return nil, err
		}
		a.zap = zl
		a.logger = zapadapter.NewZapEctoLogger(zl, nil)
	}

	tables := keywords.Defaults()
	if cfg.KeywordsFile != "" {
		custom, err := keywords.Load(cfg.KeywordsFile)
		if err != nil {
			return nil, err
		}
		tables = tables.Merge(custom)
	}
	if cfg.DomesticCurrency != "" {
		tables.DomesticCurrency = cfg.DomesticCurrency
	}
	a.tables = tables

	a.startup = startup.NewStartup(a.logger, cfg.StartupMaxAttempts)
	a.startup.AddDependency(startup.Func{
		Name:      DependencyTracing,
		StartFunc: a.startTracing,
		StopFunc:  a.stopTracing,
	})
	a.startup.AddDependency(startup.Func{
		Name:      DependencyStore,
		Needs:     []string{DependencyTracing},
		StartFunc: a.startStore,
		StopFunc:  a.stopStore,
	})
	a.startup.AddDependency(startup.Func{
		Name:      DependencyEvents,
		Needs:     []string{DependencyTracing},
		StartFunc: a.startEvents,
		StopFunc:  a.stopEvents,
	})
	return a, nil
}

// NewZapLogger builds a JSON logger, or a console logger when PrettyLogs is
// set.
func NewZapLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zc.Level = level
	zc.InitialFields = map[string]any{"app": cfg.AppName}

	return zc.Build()
}

func (a *App) Logger() ectologger.Logger {
	return a.logger
}

// Start brings up the store and the event producer, retrying with backoff.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Close stops the started dependencies and flushes the logger.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.started {
		err = a.startup.Stop(ctx)
		a.started = false
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	return err
}

func (a *App) startTracing(ctx context.Context) error {
	if a.cfg.OtelEndpoint == "" {
		return nil
	}
	exporter, err := tracing.NewExporter(ctx, tracing.ExporterConfig{
		Endpoint: a.cfg.OtelEndpoint,
		Protocol: a.cfg.OtelProtocol,
		Insecure: a.cfg.OtelInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	a.tracing = tracing.Setup(a.cfg.AppName, exporter)
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.tracing == nil {
		return nil
	}
	err := a.tracing.Shutdown(ctx)
	a.tracing = nil
	return err
}

func (a *App) startStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.StoreDriver {
	case "memory":
		a.logger.WithContext(ctx).Warn("Using the in-memory store, nothing will be persisted")
		a.store = store.NewMemory().Unique(models.TableLegalEntities, "fullName")
		return nil
	case "postgres":
		return a.startPostgres(ctx)
	default:
		return a.startRest(ctx)
	}
}

func (a *App) startPostgres(ctx context.Context) error {
	db, err := database.Connect(ctx, database.Config{
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.DatabaseMigrate {
		ms := database.NewMigrationService(a.logger, database.MigrationConfig{
			FolderPath: a.cfg.DatabaseMigrationFolderPath,
			Version:    a.cfg.DatabaseMigrationVersion,
			Force:      a.cfg.DatabaseMigrationForce,
		})
		if err := ms.Migrate(db.DB, a.cfg.DatabaseName); err != nil {
			db.Close()
			return err
		}
	}

	a.db = db
	a.store = postgres.New(db, a.logger)
	return nil
}

func (a *App) startRest(ctx context.Context) error {
	httpCfg := httpclient.DefaultConfig()
	if a.cfg.StoreTimeout > 0 {
		httpCfg.Timeout = a.cfg.StoreTimeout
	}
	st, err := rest.New(rest.Config{
		URL:        a.cfg.SupabaseURL,
		ServiceKey: a.cfg.SupabaseServiceKey,
		PageSize:   a.cfg.StorePageSize,
		HTTP:       httpCfg,
	}, a.logger)
	if err != nil {
		return err
	}

	// Probe once so an unreachable store fails startup instead of the run.
	if _, err := st.Count(ctx, models.TableLegalEntities, store.All); err != nil {
		return fmt.Errorf("store is unreachable: %w", err)
	}
	a.store = st
	return nil
}

func (a *App) stopStore(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *App) startEvents(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if len(a.cfg.KafkaBrokers) == 0 {
		a.publisher = events.Noop{}
		return nil
	}

	pc := events.DefaultProducerConfig()
	pc.Brokers = a.cfg.KafkaBrokers
	pc.Topic = a.cfg.KafkaEventsTopic
	pc.RequiredAcks = a.cfg.KafkaRequiredAcks
	if a.cfg.KafkaBatchTimeout > 0 {
		pc.BatchTimeout = a.cfg.KafkaBatchTimeout
	}
	producer, err := events.NewProducer(pc, a.logger)
	if err != nil {
		return err
	}
	a.publisher = producer
	return nil
}

func (a *App) stopEvents(ctx context.Context) error {
	if a.publisher == nil {
		return nil
	}
	return a.publisher.Close()
}
