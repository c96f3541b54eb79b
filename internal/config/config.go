// Package config loads node configuration and detection parameters via
// viper. Detection parameters are hot-reloadable: a watched config file
// change produces a new validated snapshot that the engine swaps in
// between cycles. An invalid reload keeps the last-valid parameters.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the sentinel node.
type Config struct {
	Node      NodeConfig          `mapstructure:"node"`
	Server    ServerConfig        `mapstructure:"server"`
	NATS      NATSConfig          `mapstructure:"nats"`
	Redis     RedisConfig         `mapstructure:"redis"`
	Engine    EngineConfig        `mapstructure:"engine"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Detection DetectionParameters `mapstructure:"detection"`
}

// NodeConfig identifies this node in alerts and telemetry.
type NodeConfig struct {
	ID       string `mapstructure:"id"`
	Location string `mapstructure:"location"`
}

// ServerConfig holds the HTTP status/metrics server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// NATSConfig holds transport configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds state persistence configuration.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// EngineConfig holds detection cycle scheduling configuration.
type EngineConfig struct {
	CycleInterval       time.Duration `mapstructure:"cycle_interval"`
	CycleDeadline       time.Duration `mapstructure:"cycle_deadline"`
	AlertModeDivisor    int           `mapstructure:"alert_mode_divisor"`
	PowerSaveMultiplier int           `mapstructure:"power_save_multiplier"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Detection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection parameters: %w", err)
	}

	return &cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Environment variables override file config
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", "sentinel-0")
	v.SetDefault("node.location", "unassigned")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.name", "sentinel-node")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("engine.cycle_interval", "10s")
	v.SetDefault("engine.cycle_deadline", "5s")
	v.SetDefault("engine.alert_mode_divisor", 2)
	v.SetDefault("engine.power_save_multiplier", 6)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	setDetectionDefaults(v)
}

// Watcher delivers validated detection parameter snapshots on config file
// change. The engine polls Current between cycles; a snapshot is never
// replaced mid-cycle.
type Watcher struct {
	mu      sync.RWMutex
	current *DetectionParameters
	onError func(error)
}

// NewWatcher starts watching the given config file for changes.
// cfg supplies the initial (boot-validated) parameters.
func NewWatcher(configPath string, cfg *Config, onError func(error)) *Watcher {
	w := &Watcher{current: &cfg.Detection, onError: onError}
	if configPath == "" {
		return w
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		// Boot already validated the file; a racing delete is tolerable.
		return w
	}

	v.OnConfigChange(func(fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			w.reportError(fmt.Errorf("config reload: unmarshal: %w", err))
			return
		}
		if err := next.Detection.Validate(); err != nil {
			w.reportError(fmt.Errorf("config reload: %w", err))
			return
		}
		w.mu.Lock()
		w.current = &next.Detection
		w.mu.Unlock()
	})
	v.WatchConfig()

	return w
}

// Current returns the latest valid detection parameters.
func (w *Watcher) Current() *DetectionParameters {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
