package cluster

import "github.com/Carmen-Shannon/chromaviz/engine/gpu_object"

// CompositeBuilderOption is a functional option for configuring a Composite.
// Use the With* functions to create options.
type CompositeBuilderOption func(c *composite)

// WithStyle sets the sizes visualisations are built with.
//
// Parameters:
//   - style: the style, see DefaultStyle
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithStyle(style Style) CompositeBuilderOption {
	return func(c *composite) {
		c.style = style
	}
}

// WithPalette sets the palette clusters are colored with.
//
// Parameters:
//   - palette: the palette
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithPalette(palette Palette) CompositeBuilderOption {
	return func(c *composite) {
		if palette != nil {
			c.palette = palette
		}
	}
}

// WithVisualisation sets the visualisation type of the initial leaves. Defaults to VisSphere.
//
// Parameters:
//   - ctor: the constructor of the initial visualisation
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithVisualisation(ctor Constructor) CompositeBuilderOption {
	return func(c *composite) {
		if ctor != nil {
			c.ctor = ctor
		}
	}
}

// WithTimestep sets the initial timestep.
//
// Parameters:
//   - t: the timestep, clamped to the available range
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithTimestep(t int) CompositeBuilderOption {
	return func(c *composite) {
		c.timestep = max(min(t, len(c.points)-1), 0)
	}
}

// WithTextureLoader builds distance grids on a loader's worker pool instead of on the first Prepare.
//
// Parameters:
//   - loader: the loader, owned by the caller
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithTextureLoader(loader *gpu_object.TextureLoader) CompositeBuilderOption {
	return func(c *composite) {
		c.loader = loader
	}
}

// WithConnectors enables or disables the connectors between adjacent leaves. Enabled by default.
//
// Parameters:
//   - enabled: false to draw leaves only
//
// Returns:
//   - CompositeBuilderOption: option function to apply
func WithConnectors(enabled bool) CompositeBuilderOption {
	return func(c *composite) {
		c.connect = enabled
	}
}
