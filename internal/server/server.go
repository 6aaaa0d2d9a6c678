package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"platecost/internal/cache"
	"platecost/internal/handlers"
	applog "platecost/internal/log"
	"platecost/internal/metrics"
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr        string
	Environment string
	Session     SessionConfig
	Database    *gorm.DB
	// Cache stores rendered BOM exports; nil disables caching.
	Cache     cache.Store
	ExportTTL time.Duration
	// Metrics, when set, is fed by every request and served on /metrics.
	Metrics   *metrics.Recorder
	DevAPIKey string
}

// SessionConfig controls session behavior for the HTTP server.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// Server wraps an http.Server and exposes helpers for bootstrapping the API.
type Server struct {
	config     Config
	httpServer *http.Server
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	applog.Debug(context.Background(), "initializing server",
		"addr", cfg.Addr,
		"sessionLifetime", cfg.Session.Lifetime.String(),
		"sessionCookie", cfg.Session.CookieName,
	)

	sessionCfg := cfg.Session
	if sessionCfg.Lifetime <= 0 {
		applog.Debug(context.Background(), "session lifetime not provided, using default")
		sessionCfg.Lifetime = 12 * time.Hour
	}
	if strings.TrimSpace(sessionCfg.CookieName) == "" {
		applog.Debug(context.Background(), "session cookie name not provided, using default")
		sessionCfg.CookieName = "platecost_session"
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = sessionCfg.Lifetime
	sessionManager.Cookie.Name = sessionCfg.CookieName
	sessionManager.Cookie.Domain = sessionCfg.CookieDomain
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = sessionCfg.CookieSecure

	applog.Debug(context.Background(), "session manager configured",
		"cookieName", sessionCfg.CookieName,
		"cookieDomain", sessionCfg.CookieDomain,
		"cookieSecure", sessionCfg.CookieSecure,
	)

	handlers.Configure(sessionManager, cfg.Database)
	handlers.ConfigureServices(handlers.Services{
		Environment: cfg.Environment,
		Cache:       cfg.Cache,
		ExportTTL:   cfg.ExportTTL,
		Metrics:     cfg.Metrics,
		DevAPIKey:   cfg.DevAPIKey,
	})

	applog.Debug(context.Background(), "handler dependencies configured",
		"cache", cfg.Cache != nil,
		"metrics", cfg.Metrics != nil,
		"devAPIKey", cfg.DevAPIKey != "",
	)

	handler := sessionManager.LoadAndSave(newRouter(cfg.Metrics))

	applog.Debug(context.Background(), "http handler chain prepared")

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
