// Package config loads service settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"fleetroute/internal/opt"
	"fleetroute/internal/problem"
	"fleetroute/internal/synth"
)

type Solver struct {
	Level   int           `yaml:"level"`
	Threads int           `yaml:"threads"`
	Seed    int64         `yaml:"seed"`
	Timeout time.Duration `yaml:"timeout"`
}

// Events throttles best.improved progress events per run.
type Events struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type API struct {
	Addr string `yaml:"addr"`
	// MaxConcurrentRuns bounds the solves started over HTTP.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	// MaxTasks and MaxVehicles bound a generated instance. The matrix grows
	// with the square of the task count.
	MaxTasks    int `yaml:"max_tasks"`
	MaxVehicles int `yaml:"max_vehicles"`
}

const maxDims = 16

// CheckInstance rejects generator options larger than the configured caps.
func (a API) CheckInstance(o synth.Options) error {
	if o.Jobs > a.MaxTasks || o.Shipments > a.MaxTasks || o.Jobs+2*o.Shipments > a.MaxTasks {
		return fmt.Errorf("%d jobs and %d shipments exceed %d tasks", o.Jobs, o.Shipments, a.MaxTasks)
	}
	if o.Vehicles > a.MaxVehicles {
		return fmt.Errorf("%d vehicles exceed %d", o.Vehicles, a.MaxVehicles)
	}
	if o.Dims > maxDims {
		return fmt.Errorf("%d amount dimensions exceed %d", o.Dims, maxDims)
	}
	return nil
}

// Auth selects how API callers are verified. Secret comes from JWT_SECRET.
type Auth struct {
	Mode   string `yaml:"mode"`
	Secret string `yaml:"-"`
}

// Webhook receives run.done and run.failed when URL is set. Secret comes
// from WEBHOOK_SECRET.
type Webhook struct {
	URL         string `yaml:"url"`
	Secret      string `yaml:"-"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type Config struct {
	Solver      Solver        `yaml:"solver"`
	Scale       problem.Scale `yaml:"scale"`
	Events      Events        `yaml:"events"`
	Synth       synth.Options `yaml:"synth"`
	API         API           `yaml:"api"`
	Auth        Auth          `yaml:"auth"`
	Webhook     Webhook       `yaml:"webhook"`
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Solver:    Solver{Level: opt.DefaultExplorationLevel, Threads: 4},
		Scale:     problem.DefaultScale(),
		Events:    Events{Rate: 5, Burst: 3},
		Synth:     synth.DefaultOptions(),
		API:       API{Addr: ":8080", MaxConcurrentRuns: 2, MaxTasks: 2000, MaxVehicles: 200},
		Auth:      Auth{Mode: "off"},
		Webhook:   Webhook{MaxAttempts: 5},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads .env when present, then the YAML file at path (skipped when
// path is empty), then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(body, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	if v, ok := lookup("PORT"); ok && v != "" {
		c.API.Addr = ":" + v
	}
	str("FLEETROUTE_ADDR", &c.API.Addr)
	str("JWT_SECRET", &c.Auth.Secret)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)
	str("FLEETROUTE_WEBHOOK_URL", &c.Webhook.URL)
	num("WEBHOOK_MAX_ATTEMPTS", &c.Webhook.MaxAttempts)
	str("FLEETROUTE_AUTH_MODE", &c.Auth.Mode)
	str("FLEETROUTE_LOG_LEVEL", &c.LogLevel)
	str("FLEETROUTE_LOG_FORMAT", &c.LogFormat)
	num("FLEETROUTE_LEVEL", &c.Solver.Level)
	num("FLEETROUTE_THREADS", &c.Solver.Threads)
	num("FLEETROUTE_MAX_RUNS", &c.API.MaxConcurrentRuns)
	num("FLEETROUTE_MAX_TASKS", &c.API.MaxTasks)
	num("FLEETROUTE_MAX_VEHICLES", &c.API.MaxVehicles)
	if v, ok := lookup("FLEETROUTE_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FLEETROUTE_SEED: %w", err))
		} else {
			c.Solver.Seed = n
		}
	}
	if v, ok := lookup("FLEETROUTE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FLEETROUTE_TIMEOUT: %w", err))
		} else {
			c.Solver.Timeout = d
		}
	}
	if v, ok := lookup("FLEETROUTE_EVENT_RATE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FLEETROUTE_EVENT_RATE: %w", err))
		} else {
			c.Events.Rate = f
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Solver.Level < 0 || c.Solver.Level > opt.MaxExplorationLevel {
		errs = append(errs, fmt.Errorf("solver.level %d outside [0, %d]", c.Solver.Level, opt.MaxExplorationLevel))
	}
	if c.Solver.Threads < 1 {
		errs = append(errs, fmt.Errorf("solver.threads must be positive"))
	}
	if c.Solver.Timeout < 0 {
		errs = append(errs, fmt.Errorf("solver.timeout must not be negative"))
	}
	if c.Scale.SecondsPerHour <= 0 || c.Scale.MetersPerKm <= 0 {
		errs = append(errs, fmt.Errorf("scale factors must be positive"))
	}
	if c.API.MaxConcurrentRuns < 1 {
		errs = append(errs, fmt.Errorf("api.max_concurrent_runs must be positive"))
	}
	if c.API.MaxTasks < 1 || c.API.MaxVehicles < 1 {
		errs = append(errs, fmt.Errorf("api.max_tasks and api.max_vehicles must be positive"))
	} else if err := c.API.CheckInstance(c.Synth); err != nil {
		errs = append(errs, fmt.Errorf("synth: %w", err))
	}
	if c.Auth.Mode != "off" && c.Auth.Mode != "hmac" {
		errs = append(errs, fmt.Errorf("auth.mode %q is neither off nor hmac", c.Auth.Mode))
	}
	if c.Auth.Mode == "hmac" && c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.mode hmac needs JWT_SECRET"))
	}
	if c.Webhook.URL != "" && c.Webhook.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("webhook.max_attempts must be positive"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is neither text nor json", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logger builds the service logger.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
