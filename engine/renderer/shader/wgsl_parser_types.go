package shader

import "github.com/Carmen-Shannon/chromaviz/engine/renderer"

// vertexFormatInfo pairs a vertex format with its size in a tightly packed vertex.
type vertexFormatInfo struct {
	format renderer.VertexFormat
	size   uint64
}

// wgslTypeLayout is the host-shareable size and alignment of a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one member of a struct, or one parameter of an entry point.
type parsedField struct {
	name      string
	typeName  string
	location  int // -1 without @location
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}
