package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"platecost/internal/cache"
	"platecost/internal/config"
	"platecost/internal/db"
	"platecost/internal/db/mock"
	applog "platecost/internal/log"
	"platecost/internal/metrics"
	"platecost/internal/server"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	setLogFormatFunc    = applog.SetFormat
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	connectCacheFunc    = func(ctx context.Context, url string) (cache.Store, func() error, error) {
		store, err := cache.Connect(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	newServerFunc = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		return ch, func() { signal.Stop(ch) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}
	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}
	if cfg.Logging.Format != "" {
		if err := setLogFormatFunc(cfg.Logging.Format); err != nil {
			applog.Error(ctx, "invalid log format", "format", cfg.Logging.Format, "error", err)
			return 1
		}
	}
	defer applog.Sync()

	var database *gorm.DB
	if cfg.Database.UseMock {
		applog.Info(ctx, "using in-memory mock database", "demoEmail", mock.DemoEmail)
		database, err = newMockDatabaseFunc(ctx)
	} else {
		database, err = configureDatabase(cfg.Database)
	}
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	var store cache.Store = cache.Noop{}
	if cfg.Cache.RedisURL != "" {
		redisStore, closeCache, err := connectCacheFunc(ctx, cfg.Cache.RedisURL)
		if err != nil {
			applog.Warn(ctx, "redis unavailable, export caching disabled", "error", err)
		} else {
			store = redisStore
			defer func() {
				if err := closeCache(); err != nil {
					applog.Error(ctx, "failed to close redis client", "error", err)
				}
			}()
		}
	}

	srv, err := newServerFunc(server.Config{
		Addr:        cfg.Server.Addr,
		Environment: cfg.Environment,
		Session: server.SessionConfig{
			Lifetime:     cfg.Auth.Session.Lifetime,
			CookieName:   cfg.Auth.Session.CookieName,
			CookieDomain: cfg.Auth.Session.CookieDomain,
			CookieSecure: cfg.Auth.Session.CookieSecure,
		},
		Database:  database,
		Cache:     store,
		ExportTTL: cfg.Cache.ExportTTL,
		Metrics:   metrics.New(),
		DevAPIKey: cfg.Auth.DevAPIKey,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	shutdown, unsubscribe := subscribeShutdownSig()
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
		return 0
	case sig := <-shutdown:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
	}

	if err := srv.Stop(); err != nil {
		applog.Error(ctx, "graceful shutdown failed", "error", err)
		return 1
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Error(ctx, "server exited with error", "error", err)
		return 1
	}
	applog.Info(ctx, "server stopped")
	return 0
}
