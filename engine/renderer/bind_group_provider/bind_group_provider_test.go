package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayout(t *testing.T, d renderer.Device) renderer.BindGroupLayout {
	t.Helper()
	l, err := d.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "object",
		Entries: []renderer.BindGroupLayoutEntry{
			{Binding: 0, Visibility: renderer.ShaderStageVertex | renderer.ShaderStageFragment, Type: renderer.BindingTypeReadOnlyStorage},
			{Binding: 1, Visibility: renderer.ShaderStageFragment, Type: renderer.BindingTypeTexture2D},
		},
	})
	require.NoError(t, err)
	return l
}

func TestRebuildWaitsForAllBindings(t *testing.T) {
	d := renderer.NewHeadlessDevice()
	layout := newLayout(t, d)
	buf, err := d.CreateBuffer("alloc", 1024, renderer.BufferUsageStorage)
	require.NoError(t, err)

	p := NewBindGroupProvider("sphere", WithBuffer(0, buf, 256, 128))
	built, err := p.Rebuild(d, layout)
	require.NoError(t, err)
	assert.False(t, built, "texture binding still missing")
	assert.False(t, p.Ready())
	assert.False(t, p.Complete(layout))

	tex, err := d.CreateTexture(renderer.TextureDescriptor{Label: "colormap", Width: 4, Height: 1})
	require.NoError(t, err)
	p.SetTexture(1, tex)

	built, err = p.Rebuild(d, layout)
	require.NoError(t, err)
	assert.True(t, built)
	assert.True(t, p.Ready())
	assert.Equal(t, uint64(1), p.Version())

	built, err = p.Rebuild(d, layout)
	require.NoError(t, err)
	assert.False(t, built, "an up to date bind group is kept")
}

func TestMovedBufferInvalidatesBindGroup(t *testing.T) {
	d := renderer.NewHeadlessDevice()
	layout, err := d.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Entries: []renderer.BindGroupLayoutEntry{{Binding: 0, Type: renderer.BindingTypeReadOnlyStorage}},
	})
	require.NoError(t, err)

	old, err := d.CreateBuffer("old", 512, renderer.BufferUsageStorage)
	require.NoError(t, err)
	p := NewBindGroupProvider("cone", WithBuffer(0, old, 0, 128))
	_, err = p.Rebuild(d, layout)
	require.NoError(t, err)
	require.True(t, p.Ready())

	// releasing the buffer behind the bind group makes it stale even before SetBuffer is called
	old.Release()
	assert.False(t, p.Ready())

	moved, err := d.CreateBuffer("new", 1024, renderer.BufferUsageStorage)
	require.NoError(t, err)
	p.SetBuffer(0, moved, 512, 128)
	assert.Nil(t, p.BindGroup())

	built, err := p.Rebuild(d, layout)
	require.NoError(t, err)
	assert.True(t, built)
	entries := p.BindGroup().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(512), entries[0].Offset)
	assert.Equal(t, "new", entries[0].Buffer.Label())
}
