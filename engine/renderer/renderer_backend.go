package renderer

// RendererBackendType identifies the GPU backend implementation behind a Device.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects the in-memory backend used for tests and offscreen tooling.
	BackendTypeHeadless
)

// String returns the configuration name of the backend.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeHeadless:
		return "headless"
	default:
		return "wgpu"
	}
}

// ParseBackendType maps a configuration name to a backend, defaulting to WebGPU.
func ParseBackendType(name string) RendererBackendType {
	if name == "headless" {
		return BackendTypeHeadless
	}
	return BackendTypeWGPU
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)
