package wgpu_backend

import (
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

func bufferUsage(u renderer.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(renderer.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(renderer.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(renderer.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(renderer.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(renderer.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(renderer.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func shaderStage(s renderer.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&renderer.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&renderer.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&renderer.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func textureFormat(f renderer.TextureFormat) wgpu.TextureFormat {
	switch f {
	case renderer.TextureFormatR32Float:
		return wgpu.TextureFormatR32Float
	case renderer.TextureFormatR8Unorm:
		return wgpu.TextureFormatR8Unorm
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func vertexFormat(f renderer.VertexFormat) wgpu.VertexFormat {
	switch f {
	case renderer.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case renderer.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case renderer.VertexFormatUint32:
		return wgpu.VertexFormatUint32
	default:
		return wgpu.VertexFormatFloat32x3
	}
}

func topology(t renderer.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case renderer.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case renderer.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func cullMode(c renderer.CullMode) wgpu.CullMode {
	switch c {
	case renderer.CullModeBack:
		return wgpu.CullModeBack
	case renderer.CullModeFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeNone
	}
}
