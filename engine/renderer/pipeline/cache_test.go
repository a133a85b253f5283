package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solidWGSL = `
@group(0) @binding(0) var<storage, read> tints: array<vec4<f32>, 8>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    let x = f32(idx & 1u) * 2.0 - 1.0;
    let y = f32((idx >> 1u) & 1u) * 2.0 - 1.0;
    return vec4<f32>(x, y, 0.5, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return tints[0];
}
`

func TestCacheRegisterAndLookup(t *testing.T) {
	d := renderer.NewHeadlessDevice()
	c := NewCache(d)

	p := NewPipeline("Sphere",
		WithSource(solidWGSL),
		WithBindGroupLayouts(renderer.BindGroupLayoutDescriptor{
			Label:   "object",
			Entries: []renderer.BindGroupLayoutEntry{{Binding: 0, Type: renderer.BindingTypeReadOnlyStorage, MinBindingSize: 128}},
		}),
		WithBlendEnabled(true),
		WithDepthWriteEnabled(false),
	)
	require.NoError(t, c.Register(p))
	assert.True(t, p.Compiled())
	assert.Greater(t, p.SPIRVSize(), 0)
	assert.NotNil(t, p.BindGroupLayout(0))
	assert.Equal(t, renderer.BlendModeAlpha, p.Descriptor().Blend)
	assert.False(t, p.Descriptor().DepthWrite)

	got, err := c.Pipeline("Sphere")
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = c.Pipeline("Unknown")
	assert.ErrorIs(t, err, ErrUnknownType)

	// registering the same key twice keeps the first pipeline
	dup := NewPipeline("Sphere", WithSource(solidWGSL))
	require.NoError(t, c.Register(dup))
	assert.False(t, dup.Compiled())
	assert.Equal(t, []string{"Sphere"}, c.Keys())

	c.Release()
	assert.False(t, p.Compiled())
	assert.False(t, c.Has("Sphere"))
}

func TestCacheRejectsInvalidWGSL(t *testing.T) {
	c := NewCache(renderer.NewHeadlessDevice())
	err := c.Register(NewPipeline("Broken", WithSource("fn vs_main( {")))
	assert.Error(t, err)
	assert.False(t, c.Has("Broken"))

	// without validation the device is the only gate
	lenient := NewCache(renderer.NewHeadlessDevice(), WithValidation(false))
	assert.NoError(t, lenient.Register(NewPipeline("Broken", WithSource("fn vs_main( {"))))
}

func TestCacheRejectsLayoutMismatch(t *testing.T) {
	c := NewCache(renderer.NewHeadlessDevice())
	p := NewPipeline("Sphere",
		WithSource(solidWGSL),
		WithBindGroupLayouts(renderer.BindGroupLayoutDescriptor{
			Entries: []renderer.BindGroupLayoutEntry{{Binding: 0, Type: renderer.BindingTypeReadOnlyStorage, MinBindingSize: 64}},
		}),
	)
	err := c.Register(p)
	assert.ErrorIs(t, err, shader.ErrLayoutMismatch)
	assert.False(t, c.Has("Sphere"))
}

func TestNewCachePanicsWithoutDevice(t *testing.T) {
	assert.Panics(t, func() { NewCache(nil) })
}
