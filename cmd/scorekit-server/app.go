package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"scorekit/adapters/jsonfile"
	mem "scorekit/adapters/memory"
	redisAdapter "scorekit/adapters/redis"
	sqlxAdapter "scorekit/adapters/sqlx"
	"scorekit/analytics"
	"scorekit/api/httpapi"
	"scorekit/config"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/integrations/webhook"
	"scorekit/realtime"
	"scorekit/scoreboard"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *engine.ScoreService
	Handler http.Handler
	Server  *http.Server
}

// Run serves until ctx is canceled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Logger.Info("server listening", "address", a.Server.Addr)

	g.Go(func() error {
		err := a.Server.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down server", "timeout", a.Config.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// provideConfig loads configuration from SCOREKIT_CONFIG_FILE, a named
// SCOREKIT_PROFILE, or the environment alone, then resolves hosting secrets.
func provideConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case os.Getenv("SCOREKIT_CONFIG_FILE") != "":
		cfg, err = config.LoadFromFile(os.Getenv("SCOREKIT_CONFIG_FILE"))
	case os.Getenv("SCOREKIT_PROFILE") != "":
		cfg, err = config.LoadProfile(os.Getenv("SCOREKIT_PROFILE"))
		if err == nil {
			err = config.ParseEnv(cfg)
		}
		if err == nil {
			err = cfg.Validate()
		}
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStats(cfg *config.Config) *analytics.BoardStats {
	if !cfg.Realtime.Stats {
		return nil
	}
	return analytics.NewBoardStats()
}

func provideWebhookSink(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhooks.Endpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Webhooks.Events))
	for _, e := range cfg.Webhooks.Events {
		types = append(types, core.EventType(e))
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhooks.Timeout}),
		webhook.WithEventTypes(types...),
		webhook.WithLogger(logger),
	)
}

func provideStorage(cfg *config.Config, logger *slog.Logger) (engine.Store, func(), error) {
	store, closer, err := setupStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("storage ready", "adapter", cfg.Storage.ResolvedAdapter())
	cleanup := func() {
		if closer == nil {
			return
		}
		if err := closer(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}
	return store, cleanup, nil
}

func provideService(cfg *config.Config, hub *realtime.Hub, store engine.Store, stats *analytics.BoardStats, sink *webhook.Sink) (*engine.ScoreService, func()) {
	mode := engine.DispatchAsync
	if cfg.Realtime.DispatchMode == "sync" {
		mode = engine.DispatchSync
	}
	opts := []scoreboard.Option{
		scoreboard.WithStore(store),
		scoreboard.WithDispatchMode(mode),
	}
	if cfg.Realtime.Enabled {
		opts = append(opts, scoreboard.WithRealtime(hub))
	}
	if stats != nil {
		opts = append(opts, scoreboard.WithSubscriber(engine.AllEvents, analytics.NewBridge(stats).Handler()))
	}
	if sink != nil {
		opts = append(opts, scoreboard.WithSubscriber(engine.AllEvents, sink.OnEvent))
	}
	svc := scoreboard.New(opts...)
	return svc, svc.Close
}

func provideHandler(cfg *config.Config, logger *slog.Logger, svc *engine.ScoreService, hub *realtime.Hub, stats *analytics.BoardStats) http.Handler {
	if !cfg.Realtime.Enabled {
		hub = nil
	}
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:      cfg.Server.PathPrefix,
		AllowCORSOrigin: cfg.Server.CORSOrigin,
		Logger:          logger,
		Stats:           stats,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the store selected by configuration. The returned
// closer is nil for stores without resources to release.
func setupStorage(cfg *config.Config) (engine.Store, func() error, error) {
	switch adapter := cfg.Storage.ResolvedAdapter(); adapter {
	case config.AdapterMemory:
		return mem.New(), nil, nil
	case config.AdapterRedis:
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis storage: %w", err)
		}
		return s, s.Close, nil
	case config.AdapterSQL:
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("sql storage: %w", err)
		}
		return s, s.Close, nil
	case config.AdapterFile:
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file storage: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", adapter)
	}
}
