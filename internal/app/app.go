package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/api"
	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/db"
	"github.com/stablegen/gateway/internal/db/drivers"
	"github.com/stablegen/gateway/internal/db/migrations"
	"github.com/stablegen/gateway/internal/db/repository"
	"github.com/stablegen/gateway/internal/metrics"
	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/services/generation"
	"github.com/stablegen/gateway/internal/services/remoteworker"
	"github.com/stablegen/gateway/internal/services/safetyfilter"
)

// App owns every long-lived component and hands them out explicitly.
type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	store   artifactstore.EvictingStore
	worker  remoteworker.Worker
	driver  drivers.Driver
	history repository.IGenerationRepository
	filter  *safetyfilter.Filter
	service *generation.Service
	sweeper *artifactstore.Sweeper

	Logger *zap.Logger
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithStorage() OptionFunc {
	return func(app *App) error {
		store, err := artifactstore.NewStore(app.config)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		app.store = store
		return nil
	}
}

func WithWorker() OptionFunc {
	return func(app *App) error {
		worker, err := remoteworker.NewWorker(app.config.Worker, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to create remote worker: %w", err)
		}
		app.worker = worker
		return nil
	}
}

// WithHistory opens the history database and applies migrations. It is a
// no-op when no dsn is configured.
func WithHistory() OptionFunc {
	return func(app *App) error {
		if !app.config.HistoryEnabled() {
			return nil
		}

		driver, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		if err := migrations.Migrate(app.ctx, driver.GetDB(), app.Logger); err != nil {
			driver.Close()
			return fmt.Errorf("failed to migrate history database: %w", err)
		}

		app.driver = driver
		app.history = repository.NewGenerationRepository(driver.GetDB())
		return nil
	}
}

func WithSafetyFilter() OptionFunc {
	return func(app *App) error {
		if !app.config.SafetyFilter {
			return nil
		}
		if app.config.OpenAI == nil || app.config.OpenAI.APIKey == "" {
			return fmt.Errorf("openAI API-key is not set. Cannot enable safety filter")
		}

		filter, err := safetyfilter.NewOpenAIFilter(app.config.OpenAI.APIKey, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to create safety filter: %w", err)
		}

		app.filter = filter
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     zap.NewNop(),
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, err
		}
	}

	if app.store == nil {
		app.Close()
		return nil, fmt.Errorf("artifact store is not configured")
	}
	if app.worker == nil {
		app.Close()
		return nil, config.ErrWorkerNotConfigured
	}

	opts := []generation.Option{
		generation.WithLogger(app.Logger),
		generation.WithWorkerTimeout(cfg.Worker.Timeout),
		generation.WithMaxInFlight(cfg.Worker.MaxInFlight),
		generation.WithMaxRetries(cfg.Worker.MaxRetries),
	}
	if app.history != nil {
		opts = append(opts, generation.WithRecorder(app.history))
	}
	if app.filter != nil {
		opts = append(opts, generation.WithPromptFilter(app.filter))
	}
	app.service = generation.NewService(app.worker, app.store, opts...)

	if cfg.Retention != nil && cfg.Retention.TTL > 0 {
		app.sweeper = artifactstore.NewSweeper(app.store, cfg.Retention.TTL, cfg.Retention.Interval,
			artifactstore.WithSweepLogger(app.Logger),
			artifactstore.WithRemoveHook(metrics.ArtifactsSwept.Inc),
		)
	}

	return app, nil
}

// Handler builds the HTTP handler over the app's components.
func (app *App) Handler() *api.Handler {
	var history api.HistoryReader
	if app.history != nil {
		history = app.history
	}
	return api.NewHandler(app.service, app.store, history, app.Logger)
}

func (app *App) Close() {
	app.cancelFunc()

	if app.driver != nil {
		if err := app.driver.Close(); err != nil {
			app.Logger.Warn("failed to close history database", zap.Error(err))
		}
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) Store() artifactstore.EvictingStore {
	return app.store
}

func (app *App) Worker() remoteworker.Worker {
	return app.worker
}

func (app *App) Service() *generation.Service {
	return app.service
}

// History is nil when generation history is disabled.
func (app *App) History() repository.IGenerationRepository {
	return app.history
}

// Sweeper is nil when retention is disabled.
func (app *App) Sweeper() *artifactstore.Sweeper {
	return app.sweeper
}
