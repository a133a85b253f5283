package wgpu_backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuDevice struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	// configured from builder options before the device is created
	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	sampleCount          renderer.MSAASampleCount
	clearColor           wgpu.Color

	width, height int

	// frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ renderer.Device = &wgpuDevice{}

type wgpuBuffer struct {
	label    string
	size     uint64
	usage    renderer.BufferUsage
	buf      *wgpu.Buffer
	released bool
}

type wgpuTexture struct {
	desc renderer.TextureDescriptor
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

type wgpuSampler struct {
	s *wgpu.Sampler
}

type wgpuBindGroupLayout struct {
	desc   renderer.BindGroupLayoutDescriptor
	layout *wgpu.BindGroupLayout
}

type wgpuBindGroup struct {
	label   string
	entries []renderer.BindGroupEntry
	bg      *wgpu.BindGroup
}

type wgpuPipeline struct {
	label    string
	layouts  []renderer.BindGroupLayout
	pipeline *wgpu.RenderPipeline
}

type wgpuPass struct {
	pass *wgpu.RenderPassEncoder
}

// NewDevice creates a WebGPU device presenting to the surface described by surfaceDescriptor.
// The calling goroutine is locked to its OS thread, as the native surface requires.
//
// Parameters:
//   - surfaceDescriptor: the platform surface, typically from the window package
//   - width, height: the initial surface size in pixels
//   - options: builder options
//
// Returns:
//   - renderer.Device: the device
//   - error: an error if no adapter or device could be obtained
func NewDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...DeviceBuilderOption) (renderer.Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:          &sync.Mutex{},
		presentMode: wgpu.PresentModeFifo,
		sampleCount: renderer.MSAA4x,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.configureSurface(width, height); err != nil {
		return nil, err
	}
	common.Logger().Info("wgpu device created", "width", width, "height", height, "msaa", uint32(d.sampleCount))
	return d, nil
}

func (d *wgpuDevice) Backend() renderer.RendererBackendType {
	return renderer.BackendTypeWGPU
}

func (d *wgpuDevice) configureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.width, d.height = width, height

	capabilities := d.surface.GetCapabilities(d.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("wgpu: surface reports no formats")
	}
	d.surfaceFormat = capabilities.Formats[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(d.sampleCount)
	msaaEnabled := count > 1

	if d.msaaTextureView != nil {
		d.msaaTextureView.Release()
		d.msaaTextureView = nil
	}
	if msaaEnabled {
		msaaTexture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        d.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
		if d.msaaTextureView, err = msaaTexture.CreateView(nil); err != nil {
			return err
		}
	}

	depthTexture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	if d.depthTextureView != nil {
		d.depthTextureView.Release()
	}
	if d.depthTextureView, err = depthTexture.CreateView(nil); err != nil {
		return err
	}

	// With MSAA the multisampled texture is the attachment and the swapchain view the resolve target,
	// both set per frame in BeginFrame.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	d.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       d.msaaTextureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: d.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64, usage renderer.BufferUsage) (renderer.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	size = (size + 3) &^ 3
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: size, usage: usage, buf: buf}, nil
}

func (d *wgpuDevice) WriteBuffers(writes []renderer.BufferWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range writes {
		b, ok := w.Buffer.(*wgpuBuffer)
		if !ok || b == nil {
			return fmt.Errorf("wgpu: foreign buffer %T", w.Buffer)
		}
		if b.released {
			return fmt.Errorf("wgpu: write to %q: %w", b.label, renderer.ErrReleased)
		}
		if w.Offset+uint64(len(w.Data)) > b.size {
			return fmt.Errorf("wgpu: write to %q exceeds size %d", b.label, b.size)
		}
		d.queue.WriteBuffer(b.buf, w.Offset, w.Data)
	}
	return nil
}

func (d *wgpuDevice) CreateTexture(desc renderer.TextureDescriptor) (renderer.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dimension := wgpu.TextureDimension2D
	if desc.Dimension == renderer.TextureDimension3D {
		dimension = wgpu.TextureDimension3D
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: dimension,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.Depth, 1),
		},
		Format:        textureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{desc: desc, tex: tex, view: view}, nil
}

func (d *wgpuDevice) WriteTexture(t renderer.Texture, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := t.(*wgpuTexture)
	if !ok || tex == nil {
		return fmt.Errorf("wgpu: foreign texture %T", t)
	}
	if tex.tex == nil {
		return renderer.ErrReleased
	}
	desc := tex.desc
	if uint64(len(data)) != desc.ByteSize() {
		return fmt.Errorf("wgpu: texture %q expects %d bytes, got %d", desc.Label, desc.ByteSize(), len(data))
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * desc.Format.BytesPerTexel(),
			RowsPerImage: desc.Height,
		},
		&wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.Depth, 1),
		},
	)
	return nil
}

func (d *wgpuDevice) CreateSampler(desc renderer.SamplerDescriptor) (renderer.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	address := wgpu.AddressModeClampToEdge
	if desc.AddressMode == renderer.AddressModeRepeat {
		address = wgpu.AddressModeRepeat
	}
	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if desc.Filter == renderer.FilterModeNearest {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         common.Coalesce(desc.Label, "Sampler"),
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{s: s}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc renderer.BindGroupLayoutDescriptor) (renderer.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createBindGroupLayout(desc)
}

func (d *wgpuDevice) createBindGroupLayout(desc renderer.BindGroupLayoutDescriptor) (*wgpuBindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: shaderStage(e.Visibility),
		}
		switch e.Type {
		case renderer.BindingTypeUniform:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case renderer.BindingTypeStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		case renderer.BindingTypeReadOnlyStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case renderer.BindingTypeTexture2D:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case renderer.BindingTypeTexture3D:
			// 3D grids hold R32Float distances, which are not filterable
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension3D
		case renderer.BindingTypeSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		}
		if e.Type.IsBuffer() {
			entry.Buffer.HasDynamicOffset = e.HasDynamicOffset
			entry.Buffer.MinBindingSize = e.MinBindingSize
		}
		entries[i] = entry
	}
	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{desc: desc, layout: layout}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc renderer.BindGroupDescriptor) (renderer.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok || layout == nil {
		return nil, fmt.Errorf("wgpu: bind group %q has no layout", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		switch {
		case e.Buffer != nil:
			b, ok := e.Buffer.(*wgpuBuffer)
			if !ok || b.released {
				return nil, fmt.Errorf("wgpu: bind group %q binding %d: %w", desc.Label, e.Binding, renderer.ErrReleased)
			}
			size := e.Size
			if size == 0 {
				size = wgpu.WholeSize
			}
			entries[i] = wgpu.BindGroupEntry{Binding: e.Binding, Buffer: b.buf, Offset: e.Offset, Size: size}
		case e.Texture != nil:
			t, ok := e.Texture.(*wgpuTexture)
			if !ok || t.view == nil {
				return nil, fmt.Errorf("wgpu: bind group %q binding %d has no texture view", desc.Label, e.Binding)
			}
			entries[i] = wgpu.BindGroupEntry{Binding: e.Binding, TextureView: t.view}
		case e.Sampler != nil:
			s, ok := e.Sampler.(*wgpuSampler)
			if !ok || s.s == nil {
				return nil, fmt.Errorf("wgpu: bind group %q binding %d has no sampler", desc.Label, e.Binding)
			}
			entries[i] = wgpu.BindGroupEntry{Binding: e.Binding, Sampler: s.s}
		default:
			return nil, fmt.Errorf("wgpu: bind group %q binding %d is empty", desc.Label, e.Binding)
		}
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, entries: desc.Entries, bg: bg}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc renderer.RenderPipelineDescriptor) (renderer.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	p := &wgpuPipeline{label: desc.Label}
	native := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for g, ld := range desc.BindGroupLayouts {
		l, layoutErr := d.createBindGroupLayout(ld)
		if layoutErr != nil {
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		p.layouts = append(p.layouts, l)
		native[g] = l.layout
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: native,
	})
	if err != nil {
		return nil, err
	}

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(desc.VertexBuffers))
	for _, vb := range desc.VertexBuffers {
		attrs := make([]wgpu.VertexAttribute, len(vb.Attributes))
		for i, a := range vb.Attributes {
			attrs[i] = wgpu.VertexAttribute{Format: vertexFormat(a.Format), Offset: a.Offset, ShaderLocation: a.ShaderLocation}
		}
		step := wgpu.VertexStepModeVertex
		if vb.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		vertexLayouts = append(vertexLayouts, wgpu.VertexBufferLayout{ArrayStride: vb.ArrayStride, StepMode: step, Attributes: attrs})
	}

	target := wgpu.ColorTargetState{
		Format:    d.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if desc.Blend == renderer.BlendModeAlpha {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
			Alpha: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
		}
	}

	depthCompare := wgpu.CompareFunctionLess
	if !desc.DepthTest {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(d.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	p.pipeline = created
	return p, nil
}

func (d *wgpuDevice) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.configureSurface(width, height); err != nil {
		common.Logger().Warn("surface reconfigure failed", "width", width, "height", height, "error", err)
	}
}

func (d *wgpuDevice) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *wgpuDevice) BeginFrame() (renderer.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// a held surface texture means the last frame was never presented; acquiring another one
	// fails validation in wgpu-native
	if d.frameSurface != nil {
		return nil, fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	if d.sampleCount > 1 {
		d.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		d.renderPassDescriptor.ColorAttachments[0].View = view
	}
	d.frameEncoder = encoder
	d.framePass = encoder.BeginRenderPass(d.renderPassDescriptor)
	d.frameSurface = surfaceTexture
	d.frameView = view

	return &wgpuPass{pass: d.framePass}, nil
}

func (d *wgpuDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.framePass == nil {
		return renderer.ErrNoFrame
	}
	d.framePass.End()

	commandBuffer, err := d.frameEncoder.Finish(nil)
	if err == nil {
		d.queue.Submit(commandBuffer)
		commandBuffer.Release()
		d.surface.Present()
	}

	d.frameEncoder.Release()
	d.frameView.Release()
	d.frameSurface.Release()
	d.frameEncoder = nil
	d.framePass = nil
	d.frameView = nil
	d.frameSurface = nil
	return err
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.msaaTextureView != nil {
		d.msaaTextureView.Release()
	}
	if d.depthTextureView != nil {
		d.depthTextureView.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

func (b *wgpuBuffer) Label() string               { return b.label }
func (b *wgpuBuffer) Size() uint64                { return b.size }
func (b *wgpuBuffer) Usage() renderer.BufferUsage { return b.usage }
func (b *wgpuBuffer) Released() bool              { return b.released }

func (b *wgpuBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.buf.Release()
}

func (t *wgpuTexture) Label() string                          { return t.desc.Label }
func (t *wgpuTexture) Descriptor() renderer.TextureDescriptor { return t.desc }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

func (s *wgpuSampler) Release() {
	if s.s != nil {
		s.s.Release()
		s.s = nil
	}
}

func (l *wgpuBindGroupLayout) Descriptor() renderer.BindGroupLayoutDescriptor { return l.desc }

func (l *wgpuBindGroupLayout) Release() {
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

func (g *wgpuBindGroup) Label() string                      { return g.label }
func (g *wgpuBindGroup) Entries() []renderer.BindGroupEntry { return g.entries }

func (g *wgpuBindGroup) Release() {
	if g.bg != nil {
		g.bg.Release()
		g.bg = nil
	}
}

func (p *wgpuPipeline) Label() string { return p.label }

func (p *wgpuPipeline) BindGroupLayout(group int) renderer.BindGroupLayout {
	if group < 0 || group >= len(p.layouts) {
		return nil
	}
	return p.layouts[group]
}

func (p *wgpuPipeline) Release() {
	for _, l := range p.layouts {
		l.Release()
	}
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

func (p *wgpuPass) SetPipeline(rp renderer.RenderPipeline) {
	if wp, ok := rp.(*wgpuPipeline); ok && wp.pipeline != nil {
		p.pass.SetPipeline(wp.pipeline)
	}
}

func (p *wgpuPass) SetBindGroup(group uint32, bg renderer.BindGroup, dynamicOffsets []uint32) {
	if wg, ok := bg.(*wgpuBindGroup); ok && wg.bg != nil {
		p.pass.SetBindGroup(group, wg.bg, dynamicOffsets)
	}
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, b renderer.Buffer, offset, size uint64) {
	if wb, ok := b.(*wgpuBuffer); ok && !wb.released {
		p.pass.SetVertexBuffer(slot, wb.buf, offset, wholeSize(size))
	}
}

func (p *wgpuPass) SetIndexBuffer(b renderer.Buffer, format renderer.IndexFormat, offset, size uint64) {
	if wb, ok := b.(*wgpuBuffer); ok && !wb.released {
		f := wgpu.IndexFormatUint32
		if format == renderer.IndexFormatUint16 {
			f = wgpu.IndexFormatUint16
		}
		p.pass.SetIndexBuffer(wb.buf, f, offset, wholeSize(size))
	}
}

func (p *wgpuPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func wholeSize(size uint64) uint64 {
	if size == 0 {
		return wgpu.WholeSize
	}
	return size
}
