// Package config provides configuration loading, defaults, and validation for
// the valuation service.
package config

import (
	"fmt"
	"strings"
	"time"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/tracing"
)

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Log       logging.LogConfig `mapstructure:"log" yaml:"log"`
	Session   SessionConfig     `mapstructure:"session" yaml:"session"`
	Redis     redis.RedisConfig `mapstructure:"redis" yaml:"redis"`
	Cache     CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Metrics   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Tracing   tracing.Config    `mapstructure:"tracing" yaml:"tracing"`
	Valuation ValuationConfig   `mapstructure:"valuation" yaml:"valuation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	// APIKeys, when set, are required on /api/v1 in the X-API-Key header.
	APIKeys   []string        `mapstructure:"api_keys" yaml:"api_keys"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig throttles each client address with a token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig selects where session forms live and for how long.
type SessionConfig struct {
	Store           string        `mapstructure:"store" yaml:"store"` // memory, redis
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CookieName      string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// CacheConfig controls the Redis result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled" yaml:"enabled"`
	Path                 string `mapstructure:"path" yaml:"path"`
	Namespace            string `mapstructure:"namespace" yaml:"namespace"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics" yaml:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics" yaml:"enable_go_metrics"`
}

// ValuationConfig overrides the engine constants. Zero values keep the
// built-in defaults; it is the only section Watch applies at runtime.
type ValuationConfig struct {
	EntrySchedule  []float64                `mapstructure:"entry_schedule" yaml:"entry_schedule"`
	Elasticity     float64                  `mapstructure:"elasticity" yaml:"elasticity"`
	LaunchValue    float64                  `mapstructure:"launch_value" yaml:"launch_value"`
	DiscountRate   float64                  `mapstructure:"discount_rate" yaml:"discount_rate"`
	OrderOfEntry   int                      `mapstructure:"order_of_entry" yaml:"order_of_entry"`
	IncludeRDCosts *bool                    `mapstructure:"include_rd_costs" yaml:"include_rd_costs"`
	Phases         map[string]PhaseOverride `mapstructure:"phases" yaml:"phases"`
}

// PhaseOverride replaces selected assumptions of one development phase.
type PhaseOverride struct {
	Probability *float64 `mapstructure:"probability" yaml:"probability"`
	Cost        *float64 `mapstructure:"cost" yaml:"cost"`
	Duration    *float64 `mapstructure:"duration" yaml:"duration"`
}

// Settings layers the overrides onto the built-in engine constants.
func (v ValuationConfig) Settings() (appvaluation.Settings, error) {
	s := appvaluation.DefaultSettings()
	if len(v.EntrySchedule) > 0 {
		s.EntrySchedule = domain.EntrySchedule(append([]float64(nil), v.EntrySchedule...))
	}
	if v.Elasticity != 0 {
		s.Elasticity = v.Elasticity
	}
	if v.LaunchValue != 0 {
		s.Defaults.LaunchValue = v.LaunchValue
	}
	if v.DiscountRate != 0 {
		s.Defaults.DiscountRate = v.DiscountRate
	}
	if v.OrderOfEntry != 0 {
		s.Defaults.OrderOfEntry = v.OrderOfEntry
	}
	if v.IncludeRDCosts != nil {
		s.Defaults.IncludeRDCosts = *v.IncludeRDCosts
	}
	for name, o := range v.Phases {
		p, err := domain.ParsePhase(name)
		if err != nil {
			return s, fmt.Errorf("config: valuation.phases: %w", err)
		}
		params := s.Defaults.Phases.Get(p)
		if o.Probability != nil {
			params.Probability = *o.Probability
		}
		if o.Cost != nil {
			params.Cost = *o.Cost
		}
		if o.Duration != nil {
			params.Duration = *o.Duration
		}
		in, err := s.Defaults.WithPhase(p, params)
		if err != nil {
			return s, fmt.Errorf("config: valuation.phases.%s: %w", name, err)
		}
		s.Defaults = in
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("config: valuation: %w", err)
	}
	return s, nil
}

// Validate checks that all required fields are present and consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst < 1) {
		return fmt.Errorf("config: server.rate_limit needs requests_per_second > 0 and burst ≥ 1")
	}
	for i, k := range c.Server.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("config: server.api_keys[%d] is empty", i)
		}
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("config: server.max_body_bytes must be ≥ 0, got %d", c.Server.MaxBodyBytes)
	}

	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("config: session.store %q is invalid; expected memory|redis", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: session.ttl must be positive, got %s", c.Session.TTL)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("config: session.cookie_name is required")
	}

	if c.Session.Store == SessionStoreRedis || c.Cache.Enabled {
		if c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("config: redis.addr is required when session.store=redis or cache.enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("config: tracing.endpoint is required when tracing is enabled")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("config: tracing.sample_ratio must be in [0, 1], got %g", c.Tracing.SampleRatio)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if _, err := c.Valuation.Settings(); err != nil {
		return err
	}
	return nil
}
