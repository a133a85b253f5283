// package common contains plain data types and math helpers shared by every engine package.
// They are not interface-wrapped structs, just plain structs that express commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// TextureStagingData holds texel data pending GPU upload. Depth greater than one describes a 3D texture
// laid out slice by slice.
type TextureStagingData struct {
	// Pixels holds the raw texel bytes, row-major, BytesPerTexel bytes per texel.
	Pixels []byte
	Width  uint32
	Height uint32
	// Depth is the number of slices; zero is treated as one.
	Depth uint32
	// BytesPerTexel is 4 for RGBA8 and float32 data.
	BytesPerTexel uint32
}

// Layers returns the slice count, treating zero as a single 2D slice.
func (t TextureStagingData) Layers() uint32 {
	return max(t.Depth, 1)
}

// ImageSource describes an image to decode, either held in memory or read from disk.
// Colormaps for volume objects are loaded through it.
type ImageSource struct {
	// Path is the file path for external images (empty for in-memory data).
	Path string
	// Data contains encoded image bytes (PNG/JPEG).
	Data []byte
}

// Decode decodes the image to RGBA8 staging data.
// Reference: https://pkg.go.dev/image
//
// Returns:
//   - TextureStagingData: RGBA pixels, 4 bytes per texel
//   - error: error if reading or decoding fails
func (s ImageSource) Decode() (TextureStagingData, error) {
	var img image.Image
	var err error

	switch {
	case len(s.Data) > 0:
		img, _, err = image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	case s.Path != "":
		file, openErr := os.Open(s.Path)
		if openErr != nil {
			return TextureStagingData{}, fmt.Errorf("failed to open image %s: %w", s.Path, openErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode image %s: %w", s.Path, err)
		}
	default:
		return TextureStagingData{}, fmt.Errorf("image source has neither data nor path")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels:        rgba.Pix,
		Width:         uint32(bounds.Dx()),
		Height:        uint32(bounds.Dy()),
		Depth:         1,
		BytesPerTexel: 4,
	}, nil
}
