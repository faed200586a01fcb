// Package cli wires the configured adapters into an engine for the
// leadflow commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pixl-ae/leadflow"
	"github.com/pixl-ae/leadflow/internal/adapters/csvsink"
	"github.com/pixl-ae/leadflow/internal/adapters/file"
	"github.com/pixl-ae/leadflow/internal/adapters/openai"
	"github.com/pixl-ae/leadflow/internal/adapters/sqlsink"
	"github.com/pixl-ae/leadflow/internal/config"
	"github.com/pixl-ae/leadflow/internal/docs"
	"github.com/pixl-ae/leadflow/internal/enrich"
	"github.com/pixl-ae/leadflow/internal/metrics"
	"github.com/pixl-ae/leadflow/internal/reference"
	httpAdapter "github.com/pixl-ae/leadflow/pkg/adapters/http"
	"github.com/pixl-ae/leadflow/pkg/adapters/memory"
	"github.com/pixl-ae/leadflow/pkg/adapters/redis"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/flow"
	"github.com/pixl-ae/leadflow/pkg/persistence/middleware"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/session"
)

// App is an engine with the adapters chosen by the configuration.
type App struct {
	Engine  *leadflow.Engine
	Streams *httpAdapter.StreamManager
	Metrics *metrics.Metrics
	Docs    *docs.Intake
	Config  *config.Config

	closers []io.Closer
	logger  *slog.Logger
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	listeners []session.ChangeListener
	hooks     []domain.LifecycleHooks
}

// WithListener receives every session diff next to the SSE stream manager.
func WithListener(l session.ChangeListener) BuildOption {
	return func(o *buildOptions) {
		o.listeners = append(o.listeners, l)
	}
}

// WithHooks adds lifecycle hooks next to the metrics hooks.
func WithHooks(h domain.LifecycleHooks) BuildOption {
	return func(o *buildOptions) {
		o.hooks = append(o.hooks, h)
	}
}

// Build creates the App from the configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	app := &App{
		Streams: httpAdapter.NewStreamManager(logger),
		Metrics: metrics.New(logger),
		Docs:    docs.NewIntake(docs.StubIndexer{}, cfg.Reference.DocsLogFile),
		Config:  cfg,
		logger:  logger,
	}

	store, locker, err := app.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := app.submissionSink()
	if err != nil {
		app.Close()
		return nil, err
	}

	ref, err := reference.Load(cfg.Reference.TeamFile, cfg.Reference.PortfolioFile)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	enricher := enrich.New(ref, enrich.DefaultRules(cfg.Reference.EnrichPortfolio)...)

	listeners := append([]session.ChangeListener{app.Streams.Publish}, bo.listeners...)
	hooks := append([]domain.LifecycleHooks{app.Metrics.Hooks()}, bo.hooks...)
	engineOpts := []leadflow.Option{
		leadflow.WithStore(store),
		leadflow.WithSink(sink),
		leadflow.WithEnricher(enricher),
		leadflow.WithPacing(cfg.Flow.Pacing),
		leadflow.WithLogger(logger),
		leadflow.WithLifecycleHooks(domain.ChainHooks(hooks...)),
		leadflow.WithChangeListener(fanOut(listeners)),
	}
	if locker != nil {
		engineOpts = append(engineOpts, leadflow.WithLocker(locker))
	}
	if cfg.Flow.File != "" {
		f, err := flow.NewLoader(cfg.Flow.File).LoadFlow(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, leadflow.WithFlow(f))
	}
	if cfg.Agent.Enabled() {
		engineOpts = append(engineOpts, leadflow.WithAgent(openai.New(openai.Config{
			BaseURL:     cfg.Agent.BaseURL,
			APIKey:      cfg.Agent.APIKey,
			Model:       cfg.Agent.Model,
			Temperature: cfg.Agent.Temperature,
		}, openai.WithLogger(logger))))
	} else {
		logger.Warn("No OPENAI_API_KEY set, unscripted questions get the apology message")
	}

	eng, err := leadflow.New(engineOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = eng
	return app, nil
}

func (a *App) sessionStore(ctx context.Context) (ports.SessionStore, ports.DistributedLocker, error) {
	store, locker, err := a.backend(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg := a.Config.Sessions
	if cfg.EncryptionKey == nil {
		return store, locker, nil
	}
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    cfg.EncryptionKey,
		FallbackKeys: cfg.FallbackKeys,
	})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("Session encryption enabled", "fallback_keys", len(cfg.FallbackKeys))
	return encrypt(store), locker, nil
}

func (a *App) backend(ctx context.Context) (ports.SessionStore, ports.DistributedLocker, error) {
	cfg := a.Config.Sessions
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil
	case config.BackendFile:
		return file.New(cfg.DataDir), nil, nil
	case config.BackendRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.TTL))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, store)
		return store, redis.NewLocker(store.Client(), "leadflow:"), nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

func (a *App) submissionSink() (ports.SubmissionSink, error) {
	cfg := a.Config.Sink
	var sinks ports.MultiSink

	if cfg.Kind == config.SinkCSV || cfg.Kind == config.SinkBoth {
		s, err := csvsink.New(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Kind == config.SinkSQLite || cfg.Kind == config.SinkBoth {
		s, err := sqlsink.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		sinks = append(sinks, s)
	}

	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("unknown submission sink %q", cfg.Kind)
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

// Handler builds the HTTP API over the engine.
func (a *App) Handler() http.Handler {
	return httpAdapter.NewHandler(a.Engine,
		httpAdapter.WithStreams(a.Streams),
		httpAdapter.WithDocs(a.Docs),
		httpAdapter.WithMetrics(a.Metrics),
		httpAdapter.WithAllowedOrigins(a.Config.Server.AllowedOrigins...),
		httpAdapter.WithRateLimit(a.Config.Server.RateLimit),
		httpAdapter.WithVersion(leadflow.Version),
		httpAdapter.WithLogger(a.logger),
	)
}

// Close waits for pending engine work, then releases the adapters.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func fanOut(listeners []session.ChangeListener) session.ChangeListener {
	return func(ctx context.Context, diff *domain.SessionDiff) {
		for _, l := range listeners {
			l(ctx, diff)
		}
	}
}
