// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Session  SessionConfig
	Audit    AuditConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// PhotoDir holds product photos served under /photos/
	PhotoDir string `env:"PHOTO_DIR" default:"photos"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations when the server starts (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	// Dir is the directory scanned for source files (default: current directory)
	Dir string `env:"IMPORT_DIR" default:"."`

	UsersFile    string `env:"IMPORT_USERS_FILE" default:"user_import.xlsx"`
	PointsFile   string `env:"IMPORT_POINTS_FILE" default:"Пункты выдачи_import.xlsx"`
	ProductsFile string `env:"IMPORT_PRODUCTS_FILE" default:"Tovar.xlsx"`
	OrdersFile   string `env:"IMPORT_ORDERS_FILE" default:"Заказ_import.xlsx"`

	// MaxFileSize is the maximum source file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// ProductConflict is what re-importing an existing article does: ignore or replace
	ProductConflict string `env:"IMPORT_PRODUCT_CONFLICT" default:"ignore"`

	// OrderConflict is what re-importing an existing order number does: ignore or replace
	OrderConflict string `env:"IMPORT_ORDER_CONFLICT" default:"ignore"`

	// NumericPolicy is how unparsable numeric cells are handled: zero or skip
	NumericPolicy string `env:"IMPORT_NUMERIC_POLICY" default:"zero"`

	// SynonymsFile is an optional YAML file with extra header synonyms
	SynonymsFile string `env:"IMPORT_SYNONYMS_FILE"`

	// MaxWaitTime is how long a caller waits for the import slot (default: 5s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"5s"`

	// Timeout bounds one ImportAll run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// LoginLimit is login attempts per minute per IP (default: 10)
	LoginLimit int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards the JSON import/admin API with X-API-Key
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// HashPasswords stores imported and edited passwords as bcrypt hashes
	HashPasswords bool `env:"SECURITY_HASH_PASSWORDS" default:"false"`
	BcryptCost    int  `env:"SECURITY_BCRYPT_COST" default:"10"`
}

// SessionConfig holds cookie session settings.
type SessionConfig struct {
	// Secret signs the session cookie; the server refuses to start without one
	Secret string `env:"SESSION_SECRET"`

	Name   string        `env:"SESSION_NAME" default:"shoestore_session"`
	MaxAge time.Duration `env:"SESSION_MAX_AGE" default:"12h"`
	Secure bool          `env:"SESSION_SECURE" default:"false"`
}

// AuditConfig holds retention settings for the audit log and import history.
type AuditConfig struct {
	// Retention is how long audit and import history rows are kept (default: 90 days)
	Retention time.Duration `env:"AUDIT_RETENTION" default:"2160h"`

	PurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {Dir: %q, ProductConflict: %q, OrderConflict: %q, NumericPolicy: %q}, ",
		c.Import.Dir, c.Import.ProductConflict, c.Import.OrderConflict, c.Import.NumericPolicy)
	fmt.Fprintf(&b, "Session: {Secret: [MASKED], Name: %q}, ", c.Session.Name)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
