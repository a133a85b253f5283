package camera

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// UniformSize is the size of the camera uniform buffer bound at group 0 of every object pipeline.
const UniformSize = 160

// GPUCamera is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL Camera struct declared by the object programs' common source.
// Size: 160 bytes.
type GPUCamera struct {
	ViewProj    common.Mat4 // offset   0: combined view-projection matrix
	InvViewProj common.Mat4 // offset  64: clip space back to world space, used to build per-pixel rays
	Position    [4]float32  // offset 128: world-space camera position, w = 1
	Viewport    [4]float32  // offset 144: width, height, 1/width, 1/height in pixels
}

// Size returns the size of the GPUCamera struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (g *GPUCamera) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCamera struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCamera) Marshal() []byte {
	buf := make([]byte, UniformSize)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InvViewProj[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[144+i*4:], math.Float32bits(g.Viewport[i]))
	}
	return buf
}
