package pass

// ParametricPassBuilderOption is a functional option for configuring a ParametricPass.
type ParametricPassBuilderOption func(p *parametricPass)

// WithLabel sets the debug label of the pass.
//
// Parameters:
//   - label: the label used in logs and errors
//
// Returns:
//   - ParametricPassBuilderOption: option function to apply
func WithLabel(label string) ParametricPassBuilderOption {
	return func(p *parametricPass) {
		p.label = label
	}
}

// WithCulling enables or disables frustum culling. Culling is enabled by default.
//
// Parameters:
//   - enabled: true to skip objects outside the view frustum
//
// Returns:
//   - ParametricPassBuilderOption: option function to apply
func WithCulling(enabled bool) ParametricPassBuilderOption {
	return func(p *parametricPass) {
		p.culling = enabled
	}
}
