package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/predictstats/config"
	"github.com/alejandrodnm/predictstats/internal/adapters/agentapi"
	"github.com/alejandrodnm/predictstats/internal/adapters/httpapi"
	"github.com/alejandrodnm/predictstats/internal/adapters/notify"
	"github.com/alejandrodnm/predictstats/internal/adapters/storage"
	"github.com/alejandrodnm/predictstats/internal/application/pipeline"
	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
	"github.com/alejandrodnm/predictstats/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	dryRun := flag.Bool("dry-run", false, "keep outputs in memory instead of the configured store")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print stats + daily table after each run (default: compact 1-line)")
	days := flag.Int("days", 7, "days shown in the daily table")
	serve := flag.Bool("serve", false, "start the dashboard HTTP server (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		cfg.Store.Backend = "memory"
	}
	if *serve {
		cfg.HTTP.Enabled = true
	}
	setupLogger(cfg.Log)

	slog.Info("predictstats starting",
		"config", *configPath,
		"api", cfg.API.BaseURL,
		"store", cfg.Store.Backend,
		"schedule", cfg.Schedule.Cron,
		"once", *once,
		"http", cfg.HTTP.Enabled,
	)

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "err", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer closeStore()

	loc, _ := cfg.Location() // ya validado en Load

	client := agentapi.NewClient(agentapi.Config{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.APIKey,
		Wallet:     cfg.API.Wallet,
		Timeout:    cfg.APITimeout(),
		RatePerSec: cfg.API.RatePerSec,
		Burst:      cfg.API.Burst,
		PageSize:   cfg.API.PageSize,
		MaxPages:   cfg.API.MaxPages,
	})
	if cfg.API.APIKey != "" {
		client = client.WithCredentials(agentapi.NewCredentialCache(client.Login))
	}

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.Keys = cfg.Keys
	pipeCfg.HistoryLimit = cfg.History.Limit
	pipeCfg.Location = loc
	pipeCfg.DefaultWallet = cfg.API.Wallet

	p := pipeline.New(pipeCfg, client, store, notify.NewConsole(*table, *days))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := scheduler.New(ctx, p.Run, cfg.RunTimeout())

	// os.Exit no ejecuta los defer: cerrar el store a mano antes de salir.
	exit := func(code int) {
		cancel()
		closeStore()
		os.Exit(code)
	}

	if *once {
		exit(runOnce(ctx, runner.Trigger))
	}

	if _, err := runner.Schedule(cfg.Schedule.Cron); err != nil {
		slog.Error("invalid schedule", "err", err)
		exit(1)
	}
	runner.Start()

	var srv *httpapi.Server
	if cfg.HTTP.Enabled {
		srv = httpapi.New(httpapi.Options{
			Addr:      cfg.HTTP.Addr,
			StaticDir: cfg.HTTP.StaticDir,
			Keys:      p.Keys().All(),
			Debug:     cfg.Log.Level == "debug",
		}, store, runner)
		srv.Start()
	}

	if cfg.Schedule.RunOnStart {
		go func() {
			if _, err := runner.Trigger(ctx); err != nil {
				slog.Info("startup run skipped", "err", err)
			}
		}()
	}

	slog.Info("waiting for scheduled runs", "next", runner.Next())
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
	}
	runner.Stop()

	slog.Info("predictstats stopped cleanly")
}

// runOnce hace una sola ejecución y devuelve el exit code del proceso.
func runOnce(ctx context.Context, trigger func(context.Context) (domain.RunResult, error)) int {
	res, err := trigger(ctx)
	if err != nil || res.Status == domain.RunFailed {
		return 1
	}
	return 0
}

// openStore abre el backend configurado. El closer nunca es nil y se puede
// llamar más de una vez.
func openStore(cfg config.StoreConfig) (ports.BlobStore, func(), error) {
	store, closer, err := openBackend(cfg)
	return store, sync.OnceFunc(closer), err
}

func openBackend(cfg config.StoreConfig) (ports.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		s := storage.NewRedisStore(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, cfg.RedisPrefix)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case "fs":
		s, err := storage.NewFSStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "memory":
		return storage.NewMemoryStore(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
