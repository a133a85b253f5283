package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// layout is the layout the bind group is created against. It is owned by the pipeline.
	layout renderer.BindGroupLayout

	// entries are the staged resources keyed by binding index. A bind group is only created once
	// every binding in the layout has an entry.
	entries map[uint32]renderer.BindGroupEntry

	// bindGroup is the GPU bind group, or nil if it has not been built or was invalidated.
	bindGroup renderer.BindGroup

	// version is incremented every time the bind group is rebuilt.
	version uint64
}

// BindGroupProvider stages the resources one object binds to a single bind group and owns the resulting
// GPU bind group.
//
// Bind groups capture the buffer, offset and size they were created with. Whenever an object's allocation
// moves or a texture is recreated the provider must be told (SetBuffer/SetTexture), which invalidates the
// bind group; the next Rebuild creates a fresh one.
//
// Usage pattern:
//  1. Object creates a provider with a label
//  2. Object stages its allocation range with SetBuffer and any textures/samplers
//  3. Object calls Rebuild(device, layout) with the layout of its pipeline
//  4. Record binds BindGroup() when Ready() reports true
type BindGroupProvider interface {
	// Release releases the bind group held by this provider. Staged resources are not owned and are
	// left untouched.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the built bind group, or nil if it is missing or stale.
	//
	// Returns:
	//   - renderer.BindGroup: the bind group or nil
	BindGroup() renderer.BindGroup

	// SetBuffer stages a buffer range for a binding and invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - offset: byte offset of the range
	//   - size: byte size of the range, zero for the rest of the buffer
	SetBuffer(binding uint32, buf renderer.Buffer, offset, size uint64)

	// SetTexture stages a texture for a binding and invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tex: the texture
	SetTexture(binding uint32, tex renderer.Texture)

	// SetSampler stages a sampler for a binding and invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding uint32, s renderer.Sampler)

	// Entry returns the staged entry for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - renderer.BindGroupEntry: the staged entry
	//   - bool: false if nothing is staged for the binding
	Entry(binding uint32) (renderer.BindGroupEntry, bool)

	// Invalidate drops the bind group so the next Rebuild recreates it.
	Invalidate()

	// Ready reports whether a bind group matching the staged resources exists.
	//
	// Returns:
	//   - bool: true if BindGroup() may be bound
	Ready() bool

	// Complete reports whether every binding of the layout has a staged resource.
	//
	// Parameters:
	//   - layout: the layout to check against
	//
	// Returns:
	//   - bool: true if a bind group can be built
	Complete(layout renderer.BindGroupLayout) bool

	// Rebuild creates the bind group against layout if it is missing or stale. An incomplete provider is not
	// an error: it stays not ready until the missing resources arrive.
	//
	// Parameters:
	//   - device: the device to create the bind group on
	//   - layout: the layout from the object's pipeline
	//
	// Returns:
	//   - bool: true if a new bind group was created
	//   - error: an error if the device rejected the bind group
	Rebuild(device renderer.Device, layout renderer.BindGroupLayout) (bool, error)

	// Version returns how many times the bind group was rebuilt.
	//
	// Returns:
	//   - uint64: the rebuild count
	Version() uint64
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		entries: make(map[uint32]renderer.BindGroupEntry),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() renderer.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf renderer.Buffer, offset, size uint64) {
	p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Buffer: buf, Offset: offset, Size: size}
	p.Invalidate()
}

func (p *bindGroupProvider) SetTexture(binding uint32, tex renderer.Texture) {
	p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Texture: tex}
	p.Invalidate()
}

func (p *bindGroupProvider) SetSampler(binding uint32, s renderer.Sampler) {
	p.entries[binding] = renderer.BindGroupEntry{Binding: binding, Sampler: s}
	p.Invalidate()
}

func (p *bindGroupProvider) Entry(binding uint32) (renderer.BindGroupEntry, bool) {
	e, ok := p.entries[binding]
	return e, ok
}

func (p *bindGroupProvider) Invalidate() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Ready() bool {
	if p.bindGroup == nil {
		return false
	}
	for _, e := range p.entries {
		if e.Buffer != nil && e.Buffer.Released() {
			return false
		}
	}
	return true
}

func (p *bindGroupProvider) Complete(layout renderer.BindGroupLayout) bool {
	if layout == nil {
		return false
	}
	for _, le := range layout.Descriptor().Entries {
		e, ok := p.entries[le.Binding]
		if !ok {
			return false
		}
		if e.Buffer != nil && e.Buffer.Released() {
			return false
		}
	}
	return true
}

func (p *bindGroupProvider) Rebuild(device renderer.Device, layout renderer.BindGroupLayout) (bool, error) {
	if layout != p.layout {
		p.layout = layout
		p.Invalidate()
	}
	if p.Ready() {
		return false, nil
	}
	p.Invalidate()
	if !p.Complete(layout) {
		return false, nil
	}

	desc := layout.Descriptor()
	entries := make([]renderer.BindGroupEntry, 0, len(desc.Entries))
	for _, le := range desc.Entries {
		entries = append(entries, p.entries[le.Binding])
	}
	bg, err := device.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return false, fmt.Errorf("bind group %q: %w", p.label, err)
	}
	p.bindGroup = bg
	p.version++
	common.Logger().Debug("bind group rebuilt", "label", p.label, "version", p.version)
	return true, nil
}

func (p *bindGroupProvider) Version() uint64 {
	return p.version
}

func (p *bindGroupProvider) Release() {
	p.Invalidate()
	p.layout = nil
	for k := range p.entries {
		delete(p.entries, k)
	}
}
