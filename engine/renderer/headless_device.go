package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// CommandOp identifies a recorded render pass command.
type CommandOp int

const (
	OpSetPipeline CommandOp = iota
	OpSetBindGroup
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDraw
	OpDrawIndexed
)

// Command is one render pass command captured by the headless device.
type Command struct {
	Op             CommandOp
	Label          string
	Group          uint32
	DynamicOffsets []uint32
	Count          uint32
	Instances      uint32
}

// HeadlessDevice is an in-memory Device. Buffers and textures keep byte-accurate contents and render
// passes are recorded as Commands, which lets the engine run and be inspected without a GPU.
type HeadlessDevice struct {
	mu *sync.Mutex

	width, height int

	buffers  []*headlessBuffer
	textures []*headlessTexture

	frame    *headlessPass
	frames   int
	commands []Command
	released bool
}

var _ Device = &HeadlessDevice{}

type headlessBuffer struct {
	label    string
	usage    BufferUsage
	data     []byte
	released bool
}

type headlessTexture struct {
	desc     TextureDescriptor
	data     []byte
	released bool
}

type headlessSampler struct{}

type headlessBindGroupLayout struct {
	desc BindGroupLayoutDescriptor
}

type headlessBindGroup struct {
	label    string
	entries  []BindGroupEntry
	released bool
}

type headlessPipeline struct {
	desc    RenderPipelineDescriptor
	layouts []BindGroupLayout
}

type headlessPass struct {
	commands []Command
	pipeline *headlessPipeline
	err      error
}

// NewHeadlessDevice creates an in-memory device with a nominal 1280x720 surface.
//
// Returns:
//   - *HeadlessDevice: the device
func NewHeadlessDevice() *HeadlessDevice {
	return &HeadlessDevice{
		mu:     &sync.Mutex{},
		width:  1280,
		height: 720,
	}
}

func (d *HeadlessDevice) Backend() RendererBackendType {
	return BackendTypeHeadless
}

func (d *HeadlessDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, ErrReleased
	}
	if size == 0 {
		return nil, fmt.Errorf("renderer: buffer %q has zero size", label)
	}
	b := &headlessBuffer{
		label: label,
		usage: usage,
		data:  make([]byte, alignUp4(size)),
	}
	d.buffers = append(d.buffers, b)
	common.Logger().Debug("buffer created", "label", label, "size", len(b.data))
	return b, nil
}

func (d *HeadlessDevice) WriteBuffers(writes []BufferWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range writes {
		b, ok := w.Buffer.(*headlessBuffer)
		if !ok || b == nil {
			return fmt.Errorf("renderer: foreign buffer %T", w.Buffer)
		}
		if b.released {
			return fmt.Errorf("renderer: write to %q: %w", b.label, ErrReleased)
		}
		if w.Offset%4 != 0 || len(w.Data)%4 != 0 {
			return fmt.Errorf("renderer: write to %q at %d of %d bytes is not 4-byte aligned", b.label, w.Offset, len(w.Data))
		}
		if w.Offset+uint64(len(w.Data)) > uint64(len(b.data)) {
			return fmt.Errorf("renderer: write to %q [%d, %d) exceeds size %d", b.label, w.Offset, w.Offset+uint64(len(w.Data)), len(b.data))
		}
		copy(b.data[w.Offset:], w.Data)
	}
	return nil
}

func (d *HeadlessDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("renderer: texture %q has zero extent", desc.Label)
	}
	if desc.Dimension == TextureDimension2D && desc.Depth > 1 {
		return nil, fmt.Errorf("renderer: 2D texture %q has depth %d", desc.Label, desc.Depth)
	}
	t := &headlessTexture{desc: desc, data: make([]byte, desc.ByteSize())}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *HeadlessDevice) WriteTexture(tex Texture, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := tex.(*headlessTexture)
	if !ok || t == nil {
		return fmt.Errorf("renderer: foreign texture %T", tex)
	}
	if t.released {
		return ErrReleased
	}
	if uint64(len(data)) != t.desc.ByteSize() {
		return fmt.Errorf("renderer: texture %q expects %d bytes, got %d", t.desc.Label, t.desc.ByteSize(), len(data))
	}
	copy(t.data, data)
	return nil
}

func (d *HeadlessDevice) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	return &headlessSampler{}, nil
}

func (d *HeadlessDevice) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("renderer: layout %q declares binding %d twice", desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	return &headlessBindGroupLayout{desc: desc}, nil
}

func (d *HeadlessDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("renderer: bind group %q has no layout", desc.Label)
	}
	layout := desc.Layout.Descriptor()
	if len(layout.Entries) != len(desc.Entries) {
		return nil, fmt.Errorf("renderer: bind group %q has %d entries, layout expects %d", desc.Label, len(desc.Entries), len(layout.Entries))
	}
	for _, e := range desc.Entries {
		le, ok := findLayoutEntry(layout, e.Binding)
		if !ok {
			return nil, fmt.Errorf("renderer: bind group %q binds %d which is not in the layout", desc.Label, e.Binding)
		}
		if err := validateEntry(le, e); err != nil {
			return nil, fmt.Errorf("renderer: bind group %q: %w", desc.Label, err)
		}
	}
	return &headlessBindGroup{label: desc.Label, entries: append([]BindGroupEntry(nil), desc.Entries...)}, nil
}

func (d *HeadlessDevice) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	if desc.Source == "" {
		return nil, fmt.Errorf("renderer: pipeline %q has no shader source", desc.Label)
	}
	p := &headlessPipeline{desc: desc}
	for _, ld := range desc.BindGroupLayouts {
		l, err := d.CreateBindGroupLayout(ld)
		if err != nil {
			return nil, err
		}
		p.layouts = append(p.layouts, l)
	}
	return p, nil
}

func (d *HeadlessDevice) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
}

func (d *HeadlessDevice) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *HeadlessDevice) BeginFrame() (RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frame != nil {
		return nil, fmt.Errorf("previous frame not yet ended")
	}
	d.frame = &headlessPass{}
	return d.frame, nil
}

func (d *HeadlessDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frame == nil {
		return ErrNoFrame
	}
	pass := d.frame
	d.frame = nil
	d.frames++
	d.commands = pass.commands
	return pass.err
}

func (d *HeadlessDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range d.buffers {
		b.released = true
	}
	for _, t := range d.textures {
		t.released = true
	}
	d.buffers = nil
	d.textures = nil
	d.released = true
}

// BufferData returns a copy of the current contents of a buffer created by this device.
//
// Parameters:
//   - b: the buffer
//
// Returns:
//   - []byte: the contents, or nil for foreign buffers
func (d *HeadlessDevice) BufferData(b Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	hb, ok := b.(*headlessBuffer)
	if !ok || hb == nil {
		return nil
	}
	return append([]byte(nil), hb.data...)
}

// TextureData returns a copy of the current contents of a texture created by this device.
func (d *HeadlessDevice) TextureData(t Texture) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ht, ok := t.(*headlessTexture)
	if !ok || ht == nil {
		return nil
	}
	return append([]byte(nil), ht.data...)
}

// LiveBuffers returns the number of created buffers that have not been released.
func (d *HeadlessDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, b := range d.buffers {
		if !b.released {
			n++
		}
	}
	return n
}

// Frames returns the number of completed frames.
func (d *HeadlessDevice) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Commands returns the commands recorded during the last completed frame.
func (d *HeadlessDevice) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// DrawCount returns the number of draw calls in the last completed frame.
func (d *HeadlessDevice) DrawCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, c := range d.commands {
		if c.Op == OpDraw || c.Op == OpDrawIndexed {
			n++
		}
	}
	return n
}

func (b *headlessBuffer) Label() string      { return b.label }
func (b *headlessBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *headlessBuffer) Usage() BufferUsage { return b.usage }
func (b *headlessBuffer) Released() bool     { return b.released }
func (b *headlessBuffer) Release()           { b.released = true }

func (t *headlessTexture) Label() string                 { return t.desc.Label }
func (t *headlessTexture) Descriptor() TextureDescriptor { return t.desc }
func (t *headlessTexture) Release()                      { t.released = true }

func (s *headlessSampler) Release() {}

func (l *headlessBindGroupLayout) Descriptor() BindGroupLayoutDescriptor { return l.desc }
func (l *headlessBindGroupLayout) Release()                              {}

func (g *headlessBindGroup) Label() string             { return g.label }
func (g *headlessBindGroup) Entries() []BindGroupEntry { return g.entries }
func (g *headlessBindGroup) Release()                  { g.released = true }

func (p *headlessPipeline) Label() string { return p.desc.Label }
func (p *headlessPipeline) Release()      {}

func (p *headlessPipeline) BindGroupLayout(group int) BindGroupLayout {
	if group < 0 || group >= len(p.layouts) {
		return nil
	}
	return p.layouts[group]
}

func (p *headlessPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *headlessPass) SetPipeline(rp RenderPipeline) {
	hp, ok := rp.(*headlessPipeline)
	if !ok || hp == nil {
		p.fail(fmt.Errorf("renderer: foreign pipeline %T", rp))
		return
	}
	p.pipeline = hp
	p.commands = append(p.commands, Command{Op: OpSetPipeline, Label: hp.desc.Label})
}

func (p *headlessPass) SetBindGroup(group uint32, bg BindGroup, dynamicOffsets []uint32) {
	hg, ok := bg.(*headlessBindGroup)
	if !ok || hg == nil {
		p.fail(fmt.Errorf("renderer: nil bind group at group %d", group))
		return
	}
	if hg.released {
		p.fail(fmt.Errorf("renderer: bind group %q: %w", hg.label, ErrReleased))
	}
	for _, e := range hg.entries {
		if e.Buffer != nil && e.Buffer.Released() {
			p.fail(fmt.Errorf("renderer: bind group %q references released buffer %q", hg.label, e.Buffer.Label()))
		}
	}
	p.commands = append(p.commands, Command{
		Op:             OpSetBindGroup,
		Label:          hg.label,
		Group:          group,
		DynamicOffsets: append([]uint32(nil), dynamicOffsets...),
	})
}

func (p *headlessPass) SetVertexBuffer(slot uint32, b Buffer, offset, size uint64) {
	if b == nil || b.Released() {
		p.fail(fmt.Errorf("renderer: vertex buffer slot %d: %w", slot, ErrReleased))
		return
	}
	p.commands = append(p.commands, Command{Op: OpSetVertexBuffer, Label: b.Label(), Group: slot})
}

func (p *headlessPass) SetIndexBuffer(b Buffer, format IndexFormat, offset, size uint64) {
	if b == nil || b.Released() {
		p.fail(fmt.Errorf("renderer: index buffer: %w", ErrReleased))
		return
	}
	p.commands = append(p.commands, Command{Op: OpSetIndexBuffer, Label: b.Label()})
}

func (p *headlessPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.pipeline == nil {
		p.fail(errors.New("renderer: draw without pipeline"))
		return
	}
	p.commands = append(p.commands, Command{Op: OpDraw, Label: p.pipeline.desc.Label, Count: vertexCount, Instances: instanceCount})
}

func (p *headlessPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if p.pipeline == nil {
		p.fail(errors.New("renderer: draw without pipeline"))
		return
	}
	p.commands = append(p.commands, Command{Op: OpDrawIndexed, Label: p.pipeline.desc.Label, Count: indexCount, Instances: instanceCount})
}

func findLayoutEntry(layout BindGroupLayoutDescriptor, binding uint32) (BindGroupLayoutEntry, bool) {
	for _, e := range layout.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return BindGroupLayoutEntry{}, false
}

func validateEntry(le BindGroupLayoutEntry, e BindGroupEntry) error {
	switch {
	case le.Type.IsBuffer():
		if e.Buffer == nil {
			return fmt.Errorf("binding %d expects a buffer", e.Binding)
		}
		if e.Buffer.Released() {
			return fmt.Errorf("binding %d: buffer %q: %w", e.Binding, e.Buffer.Label(), ErrReleased)
		}
		size := e.Size
		if size == 0 {
			size = e.Buffer.Size() - min(e.Offset, e.Buffer.Size())
		}
		if e.Offset+size > e.Buffer.Size() {
			return fmt.Errorf("binding %d range [%d, %d) exceeds buffer %q of %d bytes", e.Binding, e.Offset, e.Offset+size, e.Buffer.Label(), e.Buffer.Size())
		}
		if size < le.MinBindingSize {
			return fmt.Errorf("binding %d range of %d bytes is below the minimum %d", e.Binding, size, le.MinBindingSize)
		}
	case le.Type == BindingTypeSampler:
		if e.Sampler == nil {
			return fmt.Errorf("binding %d expects a sampler", e.Binding)
		}
	default:
		if e.Texture == nil {
			return fmt.Errorf("binding %d expects a texture", e.Binding)
		}
		dim := e.Texture.Descriptor().Dimension
		if (le.Type == BindingTypeTexture3D) != (dim == TextureDimension3D) {
			return fmt.Errorf("binding %d texture dimension mismatch", e.Binding)
		}
	}
	return nil
}

func alignUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}
