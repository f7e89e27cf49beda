// Package config provides configuration loading and management for bandstretch.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"bandstretch/internal/models"
	"bandstretch/pkg/series"
	"bandstretch/pkg/surface"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Base image parameters
	Image struct {
		// Path is the PNG or JPEG image to stretch
		Path string `yaml:"path"`

		// Width and Height rescale the image on load when both are set
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"image"`

	// Series data parameters
	Data struct {
		// Source is a file path or http(s) URL of the delimited readout
		Source string `yaml:"source"`

		// Chunk selects which row of the file is used
		Chunk int `yaml:"chunk"`

		// ResampleLength resamples the chunk to this many samples; 0 keeps it as is
		ResampleLength int `yaml:"resampleLength"`

		// Timeout bounds each fetch of the source
		Timeout time.Duration `yaml:"timeout"`

		// RefreshInterval re-fetches the source periodically; 0 loads once
		RefreshInterval time.Duration `yaml:"refreshInterval"`

		// SkipMalformedRows drops rows with bad numbers instead of failing
		SkipMalformedRows bool `yaml:"skipMalformedRows"`
	} `yaml:"data"`

	// Transform parameters
	Transform struct {
		// Order is "forward" or "flipped"
		Order string `yaml:"order"`

		// NumCores specifies how many goroutines fill bands
		NumCores int `yaml:"numCores"`

		// Degenerate is "error" or "midpoint" for constant series
		Degenerate string `yaml:"degenerate"`
	} `yaml:"transform"`

	// Presentation parameters
	Surface struct {
		// Kind is "png" or "sixel"
		Kind string `yaml:"kind"`

		// Output is the frame file for the png surface
		Output string `yaml:"output"`

		ViewportWidth  int `yaml:"viewportWidth"`
		ViewportHeight int `yaml:"viewportHeight"`

		// PinNative renders at the image's own resolution
		PinNative bool `yaml:"pinNative"`

		// Background is the clear colour as #rrggbb or #rrggbbaa
		Background string `yaml:"background"`
	} `yaml:"surface"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Image.Path = "assets/image.png"

	cfg.Data.Source = "assets/data.csv"
	cfg.Data.Chunk = 0
	cfg.Data.Timeout = series.DefaultTimeout

	cfg.Transform.Order = models.OrderForward.String()
	cfg.Transform.NumCores = runtime.NumCPU()
	cfg.Transform.Degenerate = series.DegenerateError.String()

	cfg.Surface.Kind = "png"
	cfg.Surface.Output = "frame.png"
	cfg.Surface.PinNative = true
	cfg.Surface.Background = "#000000"

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks values that cannot be caught by YAML decoding
func (c *Config) Validate() error {
	if c.Image.Path == "" {
		return errors.New("image.path is required")
	}
	if (c.Image.Width > 0) != (c.Image.Height > 0) {
		return errors.New("image.width and image.height must be set together")
	}
	if c.Data.Source == "" {
		return errors.New("data.source is required")
	}
	if c.Data.Chunk < 0 {
		return errors.Errorf("data.chunk must be non-negative, got %d", c.Data.Chunk)
	}
	if c.Data.ResampleLength == 1 || c.Data.ResampleLength < 0 {
		return errors.Errorf("data.resampleLength must be 0 or at least 2, got %d", c.Data.ResampleLength)
	}
	if c.Data.Timeout < 0 || c.Data.RefreshInterval < 0 {
		return errors.New("data.timeout and data.refreshInterval must not be negative")
	}
	if _, err := c.Order(); err != nil {
		return err
	}
	if _, err := c.DegeneratePolicy(); err != nil {
		return err
	}
	if _, err := c.SurfaceOptions(); err != nil {
		return err
	}
	return nil
}

// Order returns the parsed band order
func (c *Config) Order() (models.Order, error) {
	return models.ParseOrder(c.Transform.Order)
}

// DegeneratePolicy returns the parsed constant-series policy
func (c *Config) DegeneratePolicy() (series.DegeneratePolicy, error) {
	return series.ParseDegeneratePolicy(c.Transform.Degenerate)
}

// LoadOptions returns the series loader settings
func (c *Config) LoadOptions() series.LoadOptions {
	return series.LoadOptions{
		Source:         c.Data.Source,
		Chunk:          c.Data.Chunk,
		ResampleLength: c.Data.ResampleLength,
		Timeout:        c.Data.Timeout,
		Parse:          series.ParseOptions{SkipMalformed: c.Data.SkipMalformedRows},
	}
}

// SurfaceOptions returns the presentation settings
func (c *Config) SurfaceOptions() (surface.Options, error) {
	bg, err := surface.ParseColor(c.Surface.Background)
	if err != nil {
		return surface.Options{}, errors.Wrap(err, "surface.background")
	}
	return surface.Options{
		ViewportWidth:  c.Surface.ViewportWidth,
		ViewportHeight: c.Surface.ViewportHeight,
		PinNative:      c.Surface.PinNative,
		Background:     bg,
	}, nil
}
