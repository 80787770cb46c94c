// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix starts every variable this package reads.
const EnvPrefix = "CHESSRELOCATE_"

var ErrInvalidConfig = errors.New("config: invalid")

// Config holds process-wide settings. UCI options are not part of it; the
// values here only seed their defaults.
type Config struct {
	LogLevel     string
	DataDir      string
	MetricsAddr  string
	Threads      int
	HashMB       int
	NoStore      bool
	TablebaseURL string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: "info",
		Threads:  1,
		HashMB:   16,
	}
}

// Load reads envFile into the environment (variables already set win) and
// then parses the CHESSRELOCATE_* variables. A missing envFile is not an
// error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv parses settings through lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := get("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := get("TABLEBASE_URL"); ok {
		cfg.TablebaseURL = v
	}
	if v, ok := get("THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %sTHREADS=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		cfg.Threads = n
	}
	if v, ok := get("HASH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %sHASH=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		cfg.HashMB = n
	}
	if v, ok := get("NO_STORE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %sNO_STORE=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		cfg.NoStore = b
	}
	return cfg, cfg.Validate()
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Threads < 1 || c.Threads > 1024 {
		return fmt.Errorf("%w: threads %d not in 1..1024", ErrInvalidConfig, c.Threads)
	}
	if c.HashMB < 1 || c.HashMB > 33554432 {
		return fmt.Errorf("%w: hash %d not in 1..33554432", ErrInvalidConfig, c.HashMB)
	}
	return nil
}
