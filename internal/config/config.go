package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SOLO_ADMIN_ADDR.
const EnvPrefix = "SOLO"

type ServerConfig struct {
	AdminAddr string `yaml:"admin_addr" json:"admin_addr"`
}

type UpstreamConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Targets []string `yaml:"targets" json:"targets"`
	Timeout int      `yaml:"timeout_ms" json:"timeout_ms"`
}

type ProberConfig struct {
	IntervalMS int `yaml:"interval_ms" json:"interval_ms"`
	TimeoutMS  int `yaml:"timeout_ms" json:"timeout_ms"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"rps" json:"rps"`
	Burst             int `yaml:"burst" json:"burst"`
}

type AdminConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	Development bool   `yaml:"development" json:"development"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Upstreams     []UpstreamConfig    `yaml:"upstreams" json:"upstreams"`
	Prober        ProberConfig        `yaml:"prober" json:"prober"`
	Admin         AdminConfig         `yaml:"admin" json:"admin"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// envOverrides lists the settings that may be replaced from the environment.
// Empty values leave the file's setting alone.
type envOverrides struct {
	AdminAddr   string `envconfig:"ADMIN_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	Development string `envconfig:"LOG_DEV"`
	ProbeMS     int    `envconfig:"PROBE_INTERVAL_MS"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadOrDefault is Load, except that a missing file yields Default with
// environment overrides applied. It reports whether the file was found.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err == nil, err
	}
	cfg = Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if env.AdminAddr != "" {
		c.Server.AdminAddr = env.AdminAddr
	}
	if env.LogLevel != "" {
		c.Observability.LogLevel = env.LogLevel
	}
	if env.Development != "" {
		dev, err := strconv.ParseBool(env.Development)
		if err != nil {
			return fmt.Errorf("env overrides: %s_LOG_DEV: %w", EnvPrefix, err)
		}
		c.Observability.Development = dev
	}
	if env.ProbeMS > 0 {
		c.Prober.IntervalMS = env.ProbeMS
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = ":9000"
	}
	if c.Prober.IntervalMS <= 0 {
		c.Prober.IntervalMS = 10000
	}
	if c.Prober.TimeoutMS <= 0 {
		c.Prober.TimeoutMS = 2000
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	for i := range c.Upstreams {
		if c.Upstreams[i].Timeout <= 0 {
			c.Upstreams[i].Timeout = 5000
		}
	}
}

// Validate checks that every upstream is named once and has targets.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Upstreams))
	for _, uc := range c.Upstreams {
		if uc.Name == "" || len(uc.Targets) == 0 {
			return fmt.Errorf("upstream %q: name and targets required", uc.Name)
		}
		if _, dup := seen[uc.Name]; dup {
			return fmt.Errorf("upstream %q: defined twice", uc.Name)
		}
		seen[uc.Name] = struct{}{}
	}
	return nil
}
