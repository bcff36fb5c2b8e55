package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	TAG_ENV     = "env"
	TAG_ENV_ALT = "envAlt"
	TAG_DEFAULT = "default"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load fills a Config from the environment, falling back to tag defaults.
func Load() (cfg *Config, err error) {
	cfg = &Config{}
	if err = fill(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return
}

func fill(v reflect.Value) (err error) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err = fill(fv); err != nil {
				return
			}
			continue
		}
		name, value := envOf(sf.Tag)
		if value == "" {
			continue
		}
		if err = parseInto(fv, value); err != nil {
			return fmt.Errorf("%s=%q: %w", name, value, err)
		}
	}
	return
}

// envOf returns the variable name of a field and its value: the primary
// variable, then the alternate, then the default.
func envOf(tag reflect.StructTag) (name, value string) {
	if name = tag.Get(TAG_ENV); name == "" {
		return
	}
	if value = os.Getenv(name); value != "" {
		return
	}
	if alt := tag.Get(TAG_ENV_ALT); alt != "" {
		if value = os.Getenv(alt); value != "" {
			return
		}
	}
	value = tag.Get(TAG_DEFAULT)
	return
}

func parseInto(fv reflect.Value, value string) (err error) {
	switch {
	case fv.Type() == durationType:
		var d time.Duration
		if d, err = time.ParseDuration(value); err == nil {
			fv.SetInt(int64(d))
		}
	case fv.Kind() == reflect.String:
		fv.SetString(value)
	case fv.CanInt():
		var n int64
		if n, err = strconv.ParseInt(value, 10, 64); err == nil {
			fv.SetInt(n)
		}
	case fv.Kind() == reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(value); err == nil {
			fv.SetBool(b)
		}
	default:
		err = fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() (err error) {
	fail := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	if c.Database.MaxConns <= 0 {
		fail("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		fail("DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		fail("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Database.DefaultSystem < 0 {
		fail("SAMPLEDB_DEFAULT_SYSTEM must be non-negative")
	}
	if strings.TrimSpace(c.Database.ClassesTable) == "" {
		fail("SAMPLEDB_CLASSES_TABLE is empty")
	}

	if strings.TrimSpace(c.Import.Table) == "" {
		fail("SAMPLEDB_TABLE is empty")
	}
	if c.Import.MaxUploadSize <= 0 {
		fail("SAMPLEDB_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Import.Timeout <= 0 {
		fail("SAMPLEDB_IMPORT_TIMEOUT must be positive")
	}
	if c.Import.TmpDir != "" {
		if info, e := os.Stat(c.Import.TmpDir); e != nil || !info.IsDir() {
			fail("SAMPLEDB_TMP_DIR (%q) is not a directory", c.Import.TmpDir)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		fail("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "text":
	default:
		fail("LOG_FORMAT (%q) must be one of: json, console", c.Logging.Format)
	}

	if err != nil {
		err = &invalidError{err}
	}
	return
}

var ErrInvalid = errors.New("invalid configuration")

// invalidError matches ErrInvalid and unwraps to the combined failures.
type invalidError struct {
	errs error
}

func (e *invalidError) Error() string {
	return "validation failed:\n  - " + strings.ReplaceAll(e.errs.Error(), "; ", "\n  - ")
}

func (e *invalidError) Unwrap() error { return e.errs }

func (e *invalidError) Is(target error) bool { return target == ErrInvalid }

// String returns the config for logging, with the database URL masked.
func (c *Config) String() string {
	db := "[unset]"
	if c.Database.HasDatabase() {
		db = "[MASKED]"
	}
	return fmt.Sprintf("Config{Server: {Addr: %q}, Database: {URL: %s, MaxConns: %d, DefaultSystem: %d}, "+
		"Import: {Table: %q, MaxUploadSize: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), db, c.Database.MaxConns, c.Database.DefaultSystem,
		c.Import.Table, c.Import.MaxUploadSize, c.Logging.Level, c.Logging.Format)
}
