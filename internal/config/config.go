package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt            = 3600.0
	DefaultTickInterval  = 50 * time.Millisecond
	DefaultScale         = 250 / 1.496e11
	DefaultViewportW     = 1920.0
	DefaultViewportH     = 960.0
	DefaultStatePath     = "config/solar_system_state.json"
	DefaultDataDir       = "runs"
	DefaultPreset        = "solar"
	DefaultAddr          = ":8000"
	DefaultRateLimit     = 20.0
	DefaultBurst         = 40
	DefaultPublishBuffer = 8
)

type Config struct {
	Snapshot     string         `yaml:"snapshot"`
	StatePath    string         `yaml:"state_path"`
	DataDir      string         `yaml:"data_dir"`
	Preset       string         `yaml:"preset"`
	Integrator   string         `yaml:"integrator"`
	Dt           float64        `yaml:"dt"`
	MaxSubSteps  int            `yaml:"max_substeps"`
	TickInterval time.Duration  `yaml:"tick_interval"`
	TimeScale    float64        `yaml:"time_scale"`
	Scale        float64        `yaml:"scale"`
	Viewport     ViewportConfig `yaml:"viewport"`
	Track        string         `yaml:"track"`
	LogLevel     string         `yaml:"log_level"`
	Server       ServerConfig   `yaml:"server"`
}

type ViewportConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	Metrics       bool    `yaml:"metrics"`
	RateLimit     float64 `yaml:"rate_limit"` // mutations per second per client, 0 disables
	Burst         int     `yaml:"burst"`
	AutocertHost  string  `yaml:"autocert_host"`
	CertDir       string  `yaml:"cert_dir"`
	StaticDir     string  `yaml:"static_dir"`
	PublishBuffer int     `yaml:"publish_buffer"`
}

func DefaultConfig() *Config {
	return &Config{
		StatePath:    DefaultStatePath,
		DataDir:      DefaultDataDir,
		Preset:       DefaultPreset,
		Integrator:   integrators.Default,
		Dt:           DefaultDt,
		MaxSubSteps:  sim.SubStepCap,
		TickInterval: DefaultTickInterval,
		TimeScale:    1,
		Scale:        DefaultScale,
		Viewport:     ViewportConfig{Width: DefaultViewportW, Height: DefaultViewportH},
		Track:        "Sun",
		LogLevel:     "info",
		Server: ServerConfig{
			Addr:          DefaultAddr,
			Metrics:       true,
			RateLimit:     DefaultRateLimit,
			Burst:         DefaultBurst,
			CertDir:       "certs",
			StaticDir:     "static",
			PublishBuffer: DefaultPublishBuffer,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values the engine and server depend on.
func (c *Config) Validate() error {
	if _, err := integrators.ByName(c.Integrator); err != nil {
		return err
	}
	if c.TickInterval <= 0 {
		return dynamo.Validationf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return dynamo.Validationf("viewport must be positive, got %gx%g", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 || c.Server.PublishBuffer < 0 {
		return dynamo.Validationf("server limits must not be negative")
	}
	if c.Preset != "" && c.Snapshot == "" {
		if _, ok := GetPreset(c.Preset); !ok {
			return dynamo.Validationf("unknown preset %q", c.Preset)
		}
	}
	return c.Engine().Validate()
}

// Engine derives the engine configuration.
func (c *Config) Engine() sim.Config {
	return sim.Config{
		Dt:          c.Dt,
		MaxSubSteps: c.MaxSubSteps,
		Center:      r2.Vec{X: c.Viewport.Width / 2, Y: c.Viewport.Height / 2},
		Scale:       c.Scale,
		TimeScale:   c.TimeScale,
		Track:       c.Track,
		Integrator:  c.Integrator,
	}
}
