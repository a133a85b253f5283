package cluster

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spreads consecutive hues as far apart as possible without knowing their count.
const goldenAngle = 137.50776405003785

// Palette assigns colors to clusters.
type Palette interface {
	// Color returns the color of cluster (k, i).
	//
	// Parameters:
	//   - k: the clustering level
	//   - i: the index within the level
	//
	// Returns:
	//   - gpu_object.Color: an opaque color
	Color(k, i int) gpu_object.Color

	// Highlight returns the color drawn for a highlighted cluster of color c.
	//
	// Parameters:
	//   - c: the cluster color
	//
	// Returns:
	//   - gpu_object.Color: the highlighted color, keeping the alpha of c
	Highlight(c gpu_object.Color) gpu_object.Color
}

type hclPalette struct {
	chroma    float64
	luminance float64
	highlight float64
}

var _ Palette = &hclPalette{}

// NewHCLPalette creates a palette stepping the hue by the golden angle at constant chroma and luminance,
// so neighbouring indices get clearly distinct colors on any level.
//
// Parameters:
//   - chroma: the HCL chroma, 0.5 gives saturated but printable colors
//   - luminance: the HCL luminance in [0, 1]
//
// Returns:
//   - Palette: the palette
func NewHCLPalette(chroma, luminance float64) Palette {
	return &hclPalette{chroma: chroma, luminance: luminance, highlight: 0.5}
}

// DefaultPalette returns the palette used when a composite is created without one.
func DefaultPalette() Palette {
	return NewHCLPalette(0.55, 0.65)
}

func (p *hclPalette) Color(k, i int) gpu_object.Color {
	hue := math.Mod(float64(i)*goldenAngle, 360)
	return gpu_object.ColorFrom(colorful.Hcl(hue, p.chroma, p.luminance), 1)
}

func (p *hclPalette) Highlight(c gpu_object.Color) gpu_object.Color {
	lighter := c.Colorful().BlendLab(colorful.Color{R: 1, G: 1, B: 1}, p.highlight)
	return gpu_object.ColorFrom(lighter, c[3])
}
