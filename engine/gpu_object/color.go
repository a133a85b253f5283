package gpu_object

import (
	"github.com/chewxy/math32"
	"github.com/lucasb-eyer/go-colorful"
)

// Color is a linear RGBA color as stored in GPU structs.
type Color [4]float32

var (
	White = Color{1, 1, 1, 1}
	Black = Color{0, 0, 0, 1}
)

// ColorFrom converts a colorful color and an alpha into a Color.
//
// Parameters:
//   - c: the source color, clamped to the RGB gamut
//   - alpha: the alpha in [0, 1]
//
// Returns:
//   - Color: the GPU color
func ColorFrom(c colorful.Color, alpha float32) Color {
	c = c.Clamped()
	return Color{float32(c.R), float32(c.G), float32(c.B), alpha}
}

// Colorful returns the RGB part as a colorful color.
func (c Color) Colorful() colorful.Color {
	return colorful.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2])}
}

// WithAlpha returns a copy with the alpha replaced.
func (c Color) WithAlpha(a float32) Color {
	c[3] = a
	return c
}

// Packed returns the color as RGBA8 in a little-endian u32, the layout unpack4x8unorm expects.
func (c Color) Packed() uint32 {
	var out uint32
	for i := 3; i >= 0; i-- {
		v := math32.Round(math32.Max(0, math32.Min(1, c[i])) * 255)
		out = out<<8 | uint32(v)
	}
	return out
}

// UnpackColor is the inverse of Color.Packed.
func UnpackColor(u uint32) Color {
	var c Color
	for i := 0; i < 4; i++ {
		c[i] = float32(u>>(8*i)&0xff) / 255
	}
	return c
}
