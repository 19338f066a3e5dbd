// Package config loads the bidio server configuration.
//
// Configuration comes from a single YAML file given with --config, laid over
// Default(). Two environment variables override the file:
//   - PORT sets the listen port (server.addr becomes ":<PORT>")
//   - BIDIO_STORE selects the store backend (store.name)
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"bidio/internal/store"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load
const (
	EnvPort  = "PORT"
	EnvStore = "BIDIO_STORE"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Stream is the operation-stream name inside every channel.
	Stream string `yaml:"stream"`

	// Channels are opened at start, keyed by channel name. The value is a
	// display label only.
	Channels map[string]string `yaml:"channels"`

	// BroadcastErrors sends error packets to every subscriber instead of
	// only the requester.
	BroadcastErrors bool `yaml:"broadcast_errors"`

	Store  StoreConfig  `yaml:"store"`
	Period PeriodConfig `yaml:"period"`
	Admin  AdminConfig  `yaml:"admin"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address. Default: :8080
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Name is memory, pebble or sqlite (aliases: file, document).
	Name string `yaml:"name"`

	// Path is the pebble directory or sqlite file.
	Path string `yaml:"path"`

	// Collection prefixes every channel namespace. Default: bid
	Collection string `yaml:"collection"`

	// Fresh clears each namespace when it is opened.
	Fresh bool `yaml:"fresh"`

	// Timeout bounds every store call. Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// Immutable fields are protected from unforced updates in addition to
	// the lock and state fields.
	Immutable []string `yaml:"immutable"`
}

// PeriodConfig scopes fetch and find to the current period when Field is
// set.
type PeriodConfig struct {
	Field  string `yaml:"field"`
	Layout string `yaml:"layout"`
}

// AdminConfig toggles the administrative routes.
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used before the file is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Stream:   "stream",
		Channels: map[string]string{},
		Store: StoreConfig{
			Name:       store.BackendMemory,
			Collection: "bid",
			Timeout:    5 * time.Second,
		},
		Period: PeriodConfig{Layout: "01/02/2006"},
		Admin:  AdminConfig{Enabled: true},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path (when not empty) over the defaults, applies the
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if p := getenv(EnvPort); p != "" {
		c.Server.Addr = ":" + p
	}
	if s := getenv(EnvStore); s != "" {
		c.Store.Name = s
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Stream == "" {
		errs = append(errs, errors.New("stream is empty"))
	}
	if _, err := store.ResolveBackend(c.Store.Name); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Timeout < 0 {
		errs = append(errs, fmt.Errorf("store.timeout %s is negative", c.Store.Timeout))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// StoreFactory converts the store section into a store.Config.
func (c *Config) StoreFactory() store.Config {
	return store.Config{
		Name:       c.Store.Name,
		Path:       c.Store.Path,
		Collection: c.Store.Collection,
		Fresh:      c.Store.Fresh,
		Timeout:    c.Store.Timeout,
		Immutable:  append([]string(nil), c.Store.Immutable...),
	}
}

// ChannelNames lists the configured channels in sorted order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
