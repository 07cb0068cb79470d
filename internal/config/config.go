// Package config loads swimlane settings from built-in defaults, an optional
// YAML file and SWIMLANE_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	NotifyMemory = "memory"
	NotifyRedis  = "redis"

	LocalFile  = "file"
	LocalRedis = "redis"

	EnvPrefix = "SWIMLANE_"

	// DefaultPath is read when no --config flag is given and the file exists.
	DefaultPath = ".swimlane/config.yaml"

	maxConfigFileSize = 1024 * 1024
)

const defaults = `
mode: remote
store:
  driver: sqlite
  dsn: .swimlane/swimlane.db
  mirror: ""
notify:
  backend: memory
  channel: "swimlane:changes"
redis:
  addr: localhost:6379
local:
  backend: file
  path: .swimlane/board.json
  key: "swimlane:board"
http:
  addr: ":8000"
write_timeout: 10s
log:
  level: info
  format: console
  file: ""
`

type Config struct {
	Mode         string        `koanf:"mode"`
	Store        StoreConfig   `koanf:"store"`
	Notify       NotifyConfig  `koanf:"notify"`
	Redis        RedisConfig   `koanf:"redis"`
	Local        LocalConfig   `koanf:"local"`
	HTTP         HTTPConfig    `koanf:"http"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	Log          LogConfig     `koanf:"log"`
}

// StoreConfig.Mirror, when set, is a snapshot file rewritten from the table
// after every write in remote mode.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Mirror string `koanf:"mirror"`
}

type NotifyConfig struct {
	Backend string `koanf:"backend"`
	Channel string `koanf:"channel"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

// LocalConfig selects where the single-user snapshot lives.
type LocalConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Key     string `koanf:"key"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig.File, when set, redirects logs away from stderr. The terminal
// board needs this to keep log lines out of the UI.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(nil)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in config: %v", err))
	}
	return cfg
}

// Load reads path (if non-empty) on top of the defaults, then applies
// environment overrides. An empty path falls back to DefaultPath when that
// file exists.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	content, err := readFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return load(nil)
		}
		return nil, err
	}
	return load(content)
}

func load(file []byte) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if file != nil {
		if err := k.Load(rawbytes.Provider(file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

var sections = map[string]bool{
	"store":  true,
	"notify": true,
	"redis":  true,
	"local":  true,
	"http":   true,
	"log":    true,
}

// envKey maps SWIMLANE_STORE_DSN to store.dsn and SWIMLANE_WRITE_TIMEOUT to
// write_timeout. Only the first underscore after a known section becomes a dot.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && sections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return lower
}

// Validate rejects unknown enum values and empty required settings.
func (c *Config) Validate() error {
	var errs []error

	if err := oneOf("mode", c.Mode, ModeRemote, ModeLocal); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("store.driver", c.Store.Driver, DriverSQLite, DriverPostgres); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("notify.backend", c.Notify.Backend, NotifyMemory, NotifyRedis); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("local.backend", c.Local.Backend, LocalFile, LocalRedis); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("log.format", c.Log.Format, "json", "console"); err != nil {
		errs = append(errs, err)
	}

	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Local.Backend == LocalFile && c.Local.Path == "" {
		errs = append(errs, errors.New("local.path is required for the file backend"))
	}
	if c.Local.Backend == LocalRedis && c.Local.Key == "" {
		errs = append(errs, errors.New("local.key is required for the redis backend"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout))
	}

	return errors.Join(errs...)
}

// UsesRedis reports whether any configured component needs a Redis client.
func (c *Config) UsesRedis() bool {
	if c.Mode == ModeLocal {
		return c.Local.Backend == LocalRedis
	}
	return c.Notify.Backend == NotifyRedis
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}
