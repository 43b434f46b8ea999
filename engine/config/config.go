// Package config loads the renderer settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// MaxFramesInFlightLimit bounds the ring buffer depth.
const MaxFramesInFlightLimit = 3

type Config struct {
	Renderer    RendererConfig    `toml:"renderer"`
	Logging     LoggingConfig     `toml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Modules     ModulesConfig     `toml:"modules"`
}

type RendererConfig struct {
	MaxFramesInFlight  int          `toml:"max_frames_in_flight"`
	MaxInstances       int          `toml:"max_instances"`
	MaxPaletteMatrices int          `toml:"max_palette_matrices"`
	RenderDistance     float32      `toml:"render_distance"`
	FrameRate          float64      `toml:"frame_rate"`
	ParallelUpdates    bool         `toml:"parallel_updates"`
	Workers            int          `toml:"workers"`
	Quality            QualityLevel `toml:"quality"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

type DiagnosticsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	// Number of error records kept for the HUD.
	HistorySize int `toml:"history_size"`
	// Broadcast a snapshot every N frames.
	BroadcastEvery int `toml:"broadcast_every"`
}

type ModulesConfig struct {
	Disabled []string `toml:"disabled"`
}

func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			MaxFramesInFlight:  3,
			MaxInstances:       256,
			MaxPaletteMatrices: 1024,
			RenderDistance:     500,
			FrameRate:          60,
			Workers:            2,
			Quality:            QualityHigh,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
		Diagnostics: DiagnosticsConfig{
			Address:        "127.0.0.1:8089",
			HistorySize:    64,
			BroadcastEvery: 30,
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals data into cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	r := c.Renderer
	if r.MaxFramesInFlight < 1 || r.MaxFramesInFlight > MaxFramesInFlightLimit {
		return fmt.Errorf("renderer.max_frames_in_flight must be within 1..%d, got %d", MaxFramesInFlightLimit, r.MaxFramesInFlight)
	}
	if r.MaxInstances < 1 {
		return fmt.Errorf("renderer.max_instances must be > 0, got %d", r.MaxInstances)
	}
	if r.MaxPaletteMatrices < 1 {
		return fmt.Errorf("renderer.max_palette_matrices must be > 0, got %d", r.MaxPaletteMatrices)
	}
	if r.FrameRate <= 0 {
		return fmt.Errorf("renderer.frame_rate must be > 0, got %f", r.FrameRate)
	}
	if r.Workers < 1 {
		return fmt.Errorf("renderer.workers must be > 0, got %d", r.Workers)
	}
	switch r.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("renderer.quality %q is not one of high, medium, low", r.Quality)
	}
	if c.Diagnostics.HistorySize < 1 {
		return fmt.Errorf("diagnostics.history_size must be > 0, got %d", c.Diagnostics.HistorySize)
	}
	if c.Diagnostics.BroadcastEvery < 1 {
		return fmt.Errorf("diagnostics.broadcast_every must be > 0, got %d", c.Diagnostics.BroadcastEvery)
	}
	return nil
}

// ModuleDisabled reports whether the module identifier is listed as disabled.
func (c *Config) ModuleDisabled(identifier string) bool {
	for _, id := range c.Modules.Disabled {
		if id == identifier {
			return true
		}
	}
	return false
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// RequiresRestart reports whether switching from c to next touches settings
// that size GPU buffers and cannot be hot-applied.
func (c *Config) RequiresRestart(next *Config) bool {
	return c.Renderer.MaxFramesInFlight != next.Renderer.MaxFramesInFlight ||
		c.Renderer.MaxInstances != next.Renderer.MaxInstances ||
		c.Renderer.MaxPaletteMatrices != next.Renderer.MaxPaletteMatrices
}
