package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/pelletier/go-toml/v2"
)

// Config is the demo configuration. Keys missing from the file keep the values of DefaultConfig.
type Config struct {
	Window    WindowConfig    `toml:"window"`
	Allocator AllocatorConfig `toml:"allocator"`
	Render    RenderConfig    `toml:"render"`
	Cluster   ClusterConfig   `toml:"cluster"`
	Polymer   PolymerConfig   `toml:"polymer"`
	Log       LogConfig       `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// AllocatorConfig sizes the shared object buffer of the scene. It grows on demand past Capacity.
type AllocatorConfig struct {
	Capacity  uint64 `toml:"capacity"`
	Alignment uint64 `toml:"alignment"`
}

type RenderConfig struct {
	Backend          string  `toml:"backend"`
	PresentMode      string  `toml:"present_mode"` // "vsync" or "uncapped"
	MSAA             int     `toml:"msaa"`         // 1 or 4
	FrameLimit       float64 `toml:"frame_limit"`  // frames per second, 0 = uncapped
	Profiling        bool    `toml:"profiling"`
	Culling          bool    `toml:"culling"`
	Validation       bool    `toml:"validation"`
	SoftwareRenderer bool    `toml:"software_renderer"`
}

type ClusterConfig struct {
	Levels        int         `toml:"levels"`
	Visualisation string      `toml:"visualisation"`
	Connectors    bool        `toml:"connectors"`
	Style         StyleConfig `toml:"style"`
}

type StyleConfig struct {
	ConnectorRadius float32 `toml:"connector_radius"`
	PathlineRadius  float32 `toml:"pathline_radius"`
	PointRadius     float32 `toml:"point_radius"`
	MinRadius       float32 `toml:"min_radius"`
	HedgehogLength  float32 `toml:"hedgehog_length"`
	SurfaceRadius   float32 `toml:"surface_radius"`
	Smoothness      float32 `toml:"smoothness"`
	GridResolution  int     `toml:"grid_resolution"`
}

// PolymerConfig shapes the synthetic polymer the demo shows.
type PolymerConfig struct {
	Points    int     `toml:"points"`
	Timesteps int     `toml:"timesteps"`
	Bond      float32 `toml:"bond"`
	Drift     float32 `toml:"drift"`
	Seed      uint64  `toml:"seed"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	style := cluster.DefaultStyle()
	return Config{
		Window: WindowConfig{Title: "chromaviz", Width: 1280, Height: 720},
		Allocator: AllocatorConfig{
			Capacity:  1 << 20,
			Alignment: 256,
		},
		Render: RenderConfig{
			Backend:     renderer.BackendTypeWGPU.String(),
			PresentMode: "vsync",
			MSAA:        int(renderer.MSAA4x),
			Culling:     true,
			Validation:  true,
		},
		Cluster: ClusterConfig{
			Levels:        8,
			Visualisation: cluster.VisSphere.String(),
			Connectors:    true,
			Style: StyleConfig{
				ConnectorRadius: style.ConnectorRadius,
				PathlineRadius:  style.PathlineRadius,
				PointRadius:     style.PointRadius,
				MinRadius:       style.MinRadius,
				HedgehogLength:  style.HedgehogLength,
				SurfaceRadius:   style.SurfaceRadius,
				Smoothness:      style.Smoothness,
				GridResolution:  style.GridResolution,
			},
		},
		Polymer: PolymerConfig{Points: 512, Timesteps: 16, Bond: 0.1, Drift: 0.02, Seed: 1},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadConfig reads a TOML file over the defaults. An empty path returns the defaults.
//
// Parameters:
//   - path: the file to read, or ""
//
// Returns:
//   - Config: the validated configuration
//   - error: an error if the file cannot be read, holds unknown keys or invalid values
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := decodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("line %d column %d: %s", row, col, decodeErr.Error())
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return fmt.Errorf("unknown keys:\n%s", strictErr.String())
		}
		return err
	}
	return cfg.Validate()
}

// Validate reports the first value no component can be built with.
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	case c.Allocator.Alignment == 0 || c.Allocator.Alignment&(c.Allocator.Alignment-1) != 0:
		return fmt.Errorf("allocator alignment %d must be a power of two", c.Allocator.Alignment)
	case c.Render.Backend != renderer.BackendTypeWGPU.String() && c.Render.Backend != renderer.BackendTypeHeadless.String():
		return fmt.Errorf("unknown render backend %q", c.Render.Backend)
	case c.Render.PresentMode != "vsync" && c.Render.PresentMode != "uncapped":
		return fmt.Errorf("unknown present mode %q", c.Render.PresentMode)
	case c.Render.MSAA != int(renderer.MSAAOff) && c.Render.MSAA != int(renderer.MSAA4x):
		return fmt.Errorf("msaa must be 1 or 4, got %d", c.Render.MSAA)
	case c.Cluster.Levels < 1:
		return fmt.Errorf("cluster levels must be at least 1, got %d", c.Cluster.Levels)
	case c.Cluster.Style.GridResolution < 2:
		return fmt.Errorf("grid resolution must be at least 2, got %d", c.Cluster.Style.GridResolution)
	case c.Polymer.Points < 1 || c.Polymer.Timesteps < 1:
		return fmt.Errorf("polymer needs at least one point and one timestep")
	}
	if _, err := cluster.ParseVisualisationType(c.Cluster.Visualisation); err != nil {
		return err
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// Style converts the style table into cluster sizes.
func (s StyleConfig) Style() cluster.Style {
	return cluster.Style{
		ConnectorRadius: s.ConnectorRadius,
		PathlineRadius:  s.PathlineRadius,
		PointRadius:     s.PointRadius,
		MinRadius:       s.MinRadius,
		HedgehogLength:  s.HedgehogLength,
		SurfaceRadius:   s.SurfaceRadius,
		Smoothness:      s.Smoothness,
		GridResolution:  s.GridResolution,
	}
}

func (r RenderConfig) presentMode() renderer.PresentMode {
	if r.PresentMode == "uncapped" {
		return renderer.PresentModeUncapped
	}
	return renderer.PresentModeVSync
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
