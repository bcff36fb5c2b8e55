// Package config loads the settings of the sample importer from environment
// variables, applying defaults and validating the result on startup.
package config

import (
	"strconv"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds the PostGIS connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, empty for dry runs
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ClassesTable holds the registered classes of every classification system
	ClassesTable string `env:"SAMPLEDB_CLASSES_TABLE" default:"classes"`

	// DefaultSystem is used when a request names no classification system, 0 for none
	DefaultSystem int64 `env:"SAMPLEDB_DEFAULT_SYSTEM" default:"0"`
}

// ImportConfig holds the ingestion settings.
type ImportConfig struct {
	// Table receives the samples when a request names none
	Table string `env:"SAMPLEDB_TABLE" default:"samples"`

	// TmpDir is where archives are extracted (default: system temp dir)
	TmpDir string `env:"SAMPLEDB_TMP_DIR"`

	// MaxUploadSize is the maximum accepted upload in bytes (default: 100MB)
	MaxUploadSize int64 `env:"SAMPLEDB_MAX_UPLOAD_SIZE" default:"104857600"`

	// Timeout bounds a single import
	Timeout time.Duration `env:"SAMPLEDB_IMPORT_TIMEOUT" default:"10m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is json or console (default: json)
	Format string `env:"LOG_FORMAT" default:"json"`
}

// HasDatabase reports whether a PostGIS store is configured.
func (c *DatabaseConfig) HasDatabase() bool {
	return c.URL != ""
}

// System returns the default classification system, if any.
func (c *DatabaseConfig) System() (int64, bool) {
	return c.DefaultSystem, c.DefaultSystem > 0
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
