package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "VALUATION"

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// boundKeys lists every leaf key so AutomaticEnv can see it without a file.
var boundKeys = []string{
	"server.host", "server.port", "server.read_timeout", "server.write_timeout",
	"server.idle_timeout", "server.shutdown_timeout", "server.max_body_bytes", "server.cors_origins",
	"server.api_keys", "server.rate_limit.enabled", "server.rate_limit.requests_per_second", "server.rate_limit.burst",
	"log.level", "log.format", "log.output_paths",
	"session.store", "session.ttl", "session.cookie_name", "session.cookie_secure", "session.cleanup_interval",
	"redis.mode", "redis.addr", "redis.password", "redis.db", "redis.pool_size", "redis.key_prefix",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
	"cache.enabled", "cache.ttl",
	"metrics.enabled", "metrics.path", "metrics.namespace",
	"metrics.enable_process_metrics", "metrics.enable_go_metrics",
	"tracing.enabled", "tracing.endpoint", "tracing.service_name", "tracing.sample_ratio", "tracing.insecure",
	"valuation.elasticity", "valuation.launch_value", "valuation.discount_rate", "valuation.order_of_entry",
}

// newViper builds a Viper instance with YAML file type, the VALUATION_ env
// prefix and a "." → "_" key replacer, so "session.store" resolves to
// VALUATION_SESSION_STORE.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range boundKeys {
		_ = v.BindEnv(k)
	}
	// booleans whose zero value is not the default
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.enable_go_metrics", true)
	v.SetDefault("metrics.enable_process_metrics", true)
	return v
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: failed to load %q: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at configPath, merges VALUATION_* environment
// overrides, applies defaults and validates the result. An empty configPath
// loads from the environment and defaults only.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from VALUATION_* environment variables alone.
//
//	VALUATION_<SECTION>_<FIELD>   e.g.  VALUATION_SERVER_PORT, VALUATION_SESSION_STORE
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad wraps Load and panics on error. Intended for main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// Watch reloads configPath whenever it changes on disk and passes the new
// Config to onChange. A change that fails to parse or validate is logged and
// skipped. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save keep triggering reloads.
func Watch(ctx context.Context, configPath string, log logging.Logger, onChange func(*Config)) error {
	if log == nil {
		log = logging.NewNopLogger()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("config: resolve %q: %w", configPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("config: watch %q: %w", configPath, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %q: %w", filepath.Dir(abs), err)
	}

	var (
		timer  *time.Timer
		reload = make(chan struct{}, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload rejected", logging.String("path", abs), logging.Err(err))
				continue
			}
			log.Info("config reloaded", logging.String("path", abs))
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logging.Err(err))
		}
	}
}
