package bind_group_provider

import "github.com/Carmen-Shannon/chromaviz/engine/renderer"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer stages a buffer range for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//   - offset: byte offset of the bound range
//   - size: byte size of the bound range, zero for the rest of the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that stages the buffer for the specified binding
func WithBuffer(binding uint32, buf renderer.Buffer, offset, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Buffer: buf, Offset: offset, Size: size}
	}
}

// WithTexture stages a texture for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this texture
//   - tex: the texture
//
// Returns:
//   - BindGroupProviderOption: a function that stages the texture for the specified binding
func WithTexture(binding uint32, tex renderer.Texture) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Texture: tex}
	}
}

// WithSampler stages a sampler for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this sampler
//   - s: the sampler
//
// Returns:
//   - BindGroupProviderOption: a function that stages the sampler for the specified binding
func WithSampler(binding uint32, s renderer.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Sampler: s}
	}
}
