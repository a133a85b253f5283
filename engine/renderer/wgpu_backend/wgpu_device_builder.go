package wgpu_backend

import (
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceBuilderOption is a functional option applied to a device during construction via NewDevice.
type DeviceBuilderOption func(*wgpuDevice)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode option to a device
func WithPresentMode(mode renderer.PresentMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		switch mode {
		case renderer.PresentModeUncapped:
			d.presentMode = wgpu.PresentModeImmediate
		default:
			d.presentMode = wgpu.PresentModeFifo
		}
	}
}

// WithMSAA sets the multisample anti-aliasing sample count. The default is MSAA4x.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - DeviceBuilderOption: a function that applies the MSAA option to a device
func WithMSAA(count renderer.MSAASampleCount) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU fallback adapter. This requires a software
// Vulkan ICD such as SwiftShader or lavapipe.
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the option to a device
func WithForceSoftwareRenderer(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithClearColor sets the background color the main pass clears to.
//
// Parameters:
//   - rgba: the clear color components in [0, 1]
//
// Returns:
//   - DeviceBuilderOption: a function that applies the option to a device
func WithClearColor(rgba [4]float64) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.clearColor = wgpu.Color{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	}
}
