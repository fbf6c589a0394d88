package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/nudger/internal/adapters/server/common"
	"github.com/hylla/nudger/internal/adapters/source/postgres"
	"github.com/hylla/nudger/internal/adapters/storage/rediskv"
	"github.com/hylla/nudger/internal/adapters/storage/sqlite"
	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/config"
	"github.com/hylla/nudger/internal/platform"
)

// backendOpenTimeout bounds connecting to redis or postgres at startup.
const backendOpenTimeout = 10 * time.Second

// nudgerRuntime holds every wired component for one command invocation.
type nudgerRuntime struct {
	cfg        config.Config
	paths      platform.Paths
	configPath string
	logger     *runtimeLogger
	stderr     io.Writer
	repo       *sqlite.Repository
	watcher    *config.Watcher
	controller *app.Controller
	service    *common.AppServiceAdapter
	readiness  []common.ReadinessChecker
	closers    []func()
}

// resolvePaths applies platform defaults, env overrides, then flag overrides.
func resolvePaths(opts *rootOptions) (platform.Paths, string, string, bool, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return platform.Paths{}, "", "", false, err
	}
	envPaths := platform.ApplyEnv(paths, opts.getenv)
	dbOverridden := envPaths.DBPath != paths.DBPath

	configPath := envPaths.ConfigPath
	if v := strings.TrimSpace(opts.configPath); v != "" {
		configPath = v
	}
	dbPath := envPaths.DBPath
	if v := strings.TrimSpace(opts.dbPath); v != "" {
		dbPath = v
		dbOverridden = true
	}
	return paths, configPath, dbPath, dbOverridden, nil
}

// openRuntime loads config, configures logging, and wires storage, sources, and the controller.
func openRuntime(ctx context.Context, opts *rootOptions, command string, stderr io.Writer, consoleLogs bool) (_ *nudgerRuntime, err error) {
	paths, configPath, dbPath, dbOverridden, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}

	defaultCfg := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(consoleLogs)

	rt := &nudgerRuntime{cfg: cfg, paths: paths, configPath: configPath, logger: logger, stderr: stderr}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.repo = repo
	rt.readiness = append(rt.readiness, repo)
	rt.closers = append(rt.closers, func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	})
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path)

	kv, err := rt.openSnoozeBackend(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := rt.openSources(ctx)
	if err != nil {
		return nil, err
	}

	rt.watcher = config.NewWatcher(configPath, defaultCfg, cfg, logger)
	snoozes := app.NewSnoozeStore(kv, logger)
	engine := app.NewEngine(sources, snoozes, rt.watcher, time.Now, app.EngineConfig{
		Location: loc,
		Logger:   logger,
	})
	controllerCfg := cfg.ControllerConfig()
	controllerCfg.IDGen = uuid.NewString
	controllerCfg.Logger = logger
	rt.controller = app.NewController(engine, controllerCfg)
	rt.watcher.OnChange(func(next config.Config) {
		logger.Info("nudge settings changed", "enabled", next.Nudges.Enabled)
		if _, changeErr := rt.controller.SettingsChanged(context.Background()); changeErr != nil && !errors.Is(changeErr, app.ErrControllerClosed) {
			logger.Warn("recompute after settings change failed", "err", changeErr)
		}
	})
	rt.service = common.NewAppServiceAdapter(rt.controller, cfg.Snooze.DefaultDuration.String())
	logger.Debug("nudge controller initialized",
		"snooze_backend", cfg.Snooze.Backend,
		"source_backend", cfg.Source.Backend,
		"timezone", loc.String(),
	)
	return rt, nil
}

// openSnoozeBackend selects where snooze state lives.
func (rt *nudgerRuntime) openSnoozeBackend(ctx context.Context) (app.KVStore, error) {
	if rt.cfg.Snooze.Backend != config.SnoozeBackendRedis {
		return rt.repo, nil
	}
	openCtx, cancel := context.WithTimeout(ctx, backendOpenTimeout)
	defer cancel()

	rt.logger.Info("opening redis snooze store")
	store, err := rediskv.Open(openCtx, rt.cfg.Snooze.RedisURL)
	if err != nil {
		rt.logger.Error("redis open failed", "err", err)
		return nil, fmt.Errorf("open redis snooze store: %w", err)
	}
	rt.readiness = append(rt.readiness, store)
	rt.closers = append(rt.closers, func() {
		if closeErr := store.Close(); closeErr != nil {
			rt.logger.Warn("redis close failed", "err", closeErr)
		}
	})
	return store, nil
}

// openSources selects where lead, deal, and capture records come from.
func (rt *nudgerRuntime) openSources(ctx context.Context) (app.Sources, error) {
	if rt.cfg.Source.Backend != config.SourceBackendPostgres {
		return app.Sources{Leads: rt.repo, Deals: rt.repo, Captures: rt.repo}, nil
	}
	openCtx, cancel := context.WithTimeout(ctx, backendOpenTimeout)
	defer cancel()

	rt.logger.Info("opening postgres source")
	src, err := postgres.Open(openCtx, postgres.Config{DSN: rt.cfg.Source.PostgresDSN})
	if err != nil {
		rt.logger.Error("postgres open failed", "err", err)
		return app.Sources{}, fmt.Errorf("open postgres source: %w", err)
	}
	rt.readiness = append(rt.readiness, src)
	rt.closers = append(rt.closers, src.Close)
	return app.Sources{Leads: src, Deals: src, Captures: src}, nil
}

// Close releases backends in reverse open order, then the log sinks.
func (rt *nudgerRuntime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		// console logging is muted while the dashboard owns the terminal
		_, _ = fmt.Fprintf(rt.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// runCommandFlow wraps one command body with start/complete/failed log events.
func runCommandFlow(rt *nudgerRuntime, command string, fn func() error) error {
	rt.logger.Info("command flow start", "command", command)
	if err := fn(); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}
