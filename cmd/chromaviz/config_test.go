package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, cluster.DefaultStyle(), cfg.Cluster.Style.Style())
	assert.Equal(t, renderer.PresentModeVSync, cfg.Render.presentMode())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromaviz.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
title = "polymer"

[render]
backend = "headless"
present_mode = "uncapped"
msaa = 1

[cluster]
levels = 4
visualisation = "Hedgehog"

[cluster.style]
min_radius = 0.5

[log]
level = "debug"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "polymer", cfg.Window.Title)
	assert.Equal(t, 1280, cfg.Window.Width, "missing keys keep their defaults")
	assert.Equal(t, "headless", cfg.Render.Backend)
	assert.Equal(t, renderer.PresentModeUncapped, cfg.Render.presentMode())
	assert.Equal(t, 1, cfg.Render.MSAA)
	assert.True(t, cfg.Render.Culling)
	assert.Equal(t, 4, cfg.Cluster.Levels)
	assert.Equal(t, "Hedgehog", cfg.Cluster.Visualisation)
	assert.Equal(t, float32(0.5), cfg.Cluster.Style.MinRadius)
	assert.Equal(t, cluster.DefaultStyle().PointRadius, cfg.Cluster.Style.PointRadius)

	level, err := cfg.Log.level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", "[window\ntitle = 1"},
		{"unknown key", "[window]\ncolour = \"red\""},
		{"wrong type", "[window]\nwidth = \"wide\""},
		{"zero size", "[window]\nwidth = 0"},
		{"backend", "[render]\nbackend = \"vulkan\""},
		{"present mode", "[render]\npresent_mode = \"mailbox\""},
		{"msaa", "[render]\nmsaa = 8"},
		{"alignment", "[allocator]\nalignment = 100"},
		{"levels", "[cluster]\nlevels = 0"},
		{"visualisation", "[cluster]\nvisualisation = \"Torus\""},
		{"grid", "[cluster.style]\ngrid_resolution = 1"},
		{"polymer", "[polymer]\npoints = 0"},
		{"log level", "[log]\nlevel = \"loud\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.toml), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSyntheticPolymer(t *testing.T) {
	cfg := PolymerConfig{Points: 64, Timesteps: 3, Bond: 0.1, Drift: 0.05, Seed: 7}
	frames := syntheticPolymer(cfg)
	require.Len(t, frames, 3)

	for i, frame := range frames {
		require.Len(t, frame, 64)
		for j := 1; j < len(frame); j++ {
			d := frame[j].Distance(frame[j-1])
			assert.False(t, math32.IsNaN(d))
			if i == 0 {
				assert.InDelta(t, 0.1, d, 1e-4, "the first frame is an exact walk")
			} else {
				assert.InDelta(t, 0.1, d, 0.05, "bonds stay close to their length")
			}
		}
	}
	assert.NotEqual(t, frames[0][10], frames[1][10], "the polymer drifts")
	assert.Equal(t, frames, syntheticPolymer(cfg), "a seed reproduces the polymer")

	clusters, err := cluster.DivisiveClustering(frames[0], 5)
	require.NoError(t, err)
	assert.NoError(t, clusters.Validate())
}
