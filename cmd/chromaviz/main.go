// Command chromaviz shows a synthetic chromatin polymer as an interactive cluster tree.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/pass"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/wgpu_backend"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
	"github.com/Carmen-Shannon/chromaviz/engine/viewer"
	"github.com/Carmen-Shannon/chromaviz/engine/window"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	frames := flag.Int("frames", 60, "frames to render with the headless backend")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, _ := cfg.Log.level()
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if renderer.ParseBackendType(cfg.Render.Backend) == renderer.BackendTypeHeadless {
		err = runHeadless(cfg, *frames)
	} else {
		err = runWindowed(cfg)
	}
	if err != nil {
		common.Logger().Error("chromaviz failed", "error", err)
		os.Exit(1)
	}
}

func runWindowed(cfg Config) error {
	w, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	device, err := wgpu_backend.NewDevice(w.SurfaceDescriptor(), w.Width(), w.Height(),
		wgpu_backend.WithPresentMode(cfg.Render.presentMode()),
		wgpu_backend.WithMSAA(renderer.MSAASampleCount(cfg.Render.MSAA)),
		wgpu_backend.WithForceSoftwareRenderer(cfg.Render.SoftwareRenderer),
	)
	if err != nil {
		return err
	}
	defer device.Release()

	v, loader, err := newViewer(cfg, device)
	if err != nil {
		return err
	}
	defer v.Release()
	defer loader.Stop()

	printControls()
	v.Run(w)
	return nil
}

// runHeadless renders a fixed number of frames in memory and logs what was drawn. It exercises the whole
// pipeline on machines without a GPU.
func runHeadless(cfg Config, frames int) error {
	device := renderer.NewHeadlessDevice()
	device.Resize(cfg.Window.Width, cfg.Window.Height)
	defer device.Release()

	v, loader, err := newViewer(cfg, device)
	if err != nil {
		return err
	}
	defer v.Release()
	defer loader.Stop()

	c := v.Composite()
	for i := 0; i < frames; i++ {
		// walk down the tree and through time so every code path runs
		if leaves := c.Leaves(); i%8 == 0 && len(leaves) > 0 {
			if _, err := c.Split(leaves[len(leaves)/2]); err != nil {
				return err
			}
		}
		if err := c.SetTimestep((c.Timestep() + 1) % c.Timesteps()); err != nil {
			return err
		}
		stats, err := v.Frame(1.0 / 60)
		if err != nil {
			return err
		}
		common.Logger().Debug("frame", "index", i, "drawn", stats.Drawn, "culled", stats.Culled, "not_ready", stats.NotReady)
	}
	common.Logger().Info("headless run finished",
		"frames", device.Frames(),
		"draws", device.DrawCount(),
		"leaves", len(c.Leaves()),
		"objects", v.Scene().Count(),
	)
	return nil
}

// newViewer builds the viewer and the cluster tree of the synthetic polymer on a device.
func newViewer(cfg Config, device renderer.Device) (viewer.Viewer, *gpu_object.TextureLoader, error) {
	v, err := viewer.NewViewer(device,
		viewer.WithValidation(cfg.Render.Validation),
		viewer.WithProfiling(cfg.Render.Profiling),
		viewer.WithRenderFrameLimit(cfg.Render.FrameLimit),
		viewer.WithClusterLevels(cfg.Cluster.Levels),
		viewer.WithSceneOptions(
			scene.WithCapacity(cfg.Allocator.Capacity),
			scene.WithAlignment(cfg.Allocator.Alignment),
		),
		viewer.WithPassOptions(pass.WithCulling(cfg.Render.Culling)),
	)
	if err != nil {
		return nil, nil, err
	}
	loader := gpu_object.NewTextureLoader(v.Scene())

	start := time.Now()
	points := syntheticPolymer(cfg.Polymer)
	clusters, err := cluster.DivisiveClustering(points[0], cfg.Cluster.Levels)
	if err != nil {
		loader.Stop()
		v.Release()
		return nil, nil, err
	}
	typ, _ := cluster.ParseVisualisationType(cfg.Cluster.Visualisation)
	c, err := cluster.NewComposite(v.Scene(), clusters, points,
		cluster.WithStyle(cfg.Cluster.Style.Style()),
		cluster.WithVisualisation(cluster.ConstructorOf(typ)),
		cluster.WithConnectors(cfg.Cluster.Connectors),
		cluster.WithTextureLoader(loader),
	)
	if err != nil {
		loader.Stop()
		v.Release()
		return nil, nil, err
	}
	v.SetComposite(c)
	common.Logger().Info("polymer ready",
		"points", cfg.Polymer.Points,
		"timesteps", cfg.Polymer.Timesteps,
		"levels", len(clusters),
		"elapsed", time.Since(start),
	)
	return v, loader, nil
}

func printControls() {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║  chromaviz                                           ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Println("║  Click=Select   S=Split   M=Merge   H=Hide           ║")
	fmt.Println("║  V=Next visualisation   R=Recluster   Space=Frame    ║")
	fmt.Println("║  Left/Right=Timestep   Drag=Orbit   Right drag=Pan   ║")
	fmt.Println("║  Scroll=Zoom   Esc=Quit                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
}
