package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Auth        AuthConfig
	Cache       CacheConfig
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	UseMock         bool
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string
	Format string
}

// AuthConfig groups session and API key settings.
type AuthConfig struct {
	Session SessionConfig
	// DevAPIKey is accepted as a credential for the development tenant. It is
	// cleared outside the development environment.
	DevAPIKey string
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// CacheConfig configures the optional redis cache for BOM exports.
type CacheConfig struct {
	RedisURL  string
	ExportTTL time.Duration
}

// IsDevelopment reports whether the configuration targets local development.
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load inspects the environment and builds a Config value.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Environment = strings.ToLower(firstNonEmpty(os.Getenv("APP_ENV"), EnvDevelopment))
	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return Config{}, fmt.Errorf("unsupported environment %q", cfg.Environment)
	}

	cfg.Server = ServerConfig{
		Addr: firstNonEmpty(
			os.Getenv("SERVER_ADDR"),
			os.Getenv("ADDR"),
			":8080",
		),
		ShutdownTimeout: parseDurationWithDefault(os.Getenv("SERVER_SHUTDOWN_TIMEOUT"), 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), 5),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), 20),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), 30*time.Minute),
		ConnMaxIdleTime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), 5*time.Minute),
	}
	cfg.Database.UseMock = parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), strings.TrimSpace(cfg.Database.URL) == "")

	cfg.Logging = LoggingConfig{
		Level:  strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		Format: strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "text")),
	}

	cfg.Auth = AuthConfig{
		Session: SessionConfig{
			Lifetime:     parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), 12*time.Hour),
			CookieName:   firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), "platecost_session"),
			CookieDomain: strings.TrimSpace(os.Getenv("SESSION_COOKIE_DOMAIN")),
			CookieSecure: parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), cfg.Environment == EnvProduction),
		},
	}
	if cfg.IsDevelopment() {
		cfg.Auth.DevAPIKey = firstNonEmpty(os.Getenv("DEV_API_KEY"), "dev-api-key")
	}

	cfg.Cache = CacheConfig{
		RedisURL:  strings.TrimSpace(os.Getenv("REDIS_URL")),
		ExportTTL: parseDurationWithDefault(os.Getenv("EXPORT_CACHE_TTL"), 24*time.Hour),
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}
	if !cfg.Database.UseMock && strings.TrimSpace(cfg.Database.URL) == "" {
		return Config{}, fmt.Errorf("database URL must be set when the mock database is disabled")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}
