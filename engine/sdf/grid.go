package sdf

import (
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/chewxy/math32"
)

// Grid is a cubic grid of distances sampled at voxel centers over the [-1, 1]³ box, stored x fastest.
// It is uploaded as an R32Float 3D texture.
type Grid struct {
	Resolution int
	Values     []float32
}

// VoxelCenter returns the local position of voxel (x, y, z).
func (g Grid) VoxelCenter(x, y, z int) common.Vec3f {
	n := float32(g.Resolution)
	return common.Vec3f{
		-1 + (2*float32(x)+1)/n,
		-1 + (2*float32(y)+1)/n,
		-1 + (2*float32(z)+1)/n,
	}
}

// BuildGrid samples a field at every voxel center.
//
// Parameters:
//   - f: the field in local coordinates
//   - resolution: voxels per axis
//
// Returns:
//   - Grid: the sampled grid, empty for a non-positive resolution
func BuildGrid(f Field[float32], resolution int) Grid {
	if resolution <= 0 {
		return Grid{}
	}
	g := Grid{Resolution: resolution, Values: make([]float32, resolution*resolution*resolution)}
	i := 0
	for z := 0; z < resolution; z++ {
		for y := 0; y < resolution; y++ {
			for x := 0; x < resolution; x++ {
				g.Values[i] = f(g.VoxelCenter(x, y, z))
				i++
			}
		}
	}
	return g
}

// At returns the value of a voxel, clamping the indices to the grid.
func (g Grid) At(x, y, z int) float32 {
	n := g.Resolution
	x = max(0, min(x, n-1))
	y = max(0, min(y, n-1))
	z = max(0, min(z, n-1))
	return g.Values[(z*n+y)*n+x]
}

// Sample interpolates the grid trilinearly at a local position, the way a linear texture sampler with
// clamp-to-edge addressing does.
//
// Parameters:
//   - p: the local position
//
// Returns:
//   - float32: the interpolated distance, +Inf for an empty grid
func (g Grid) Sample(p common.Vec3f) float32 {
	if g.Resolution == 0 {
		return math32.Inf(1)
	}
	n := float32(g.Resolution)
	// texel space with voxel centers on integers
	fx := (p[0]+1)*n/2 - 0.5
	fy := (p[1]+1)*n/2 - 0.5
	fz := (p[2]+1)*n/2 - 0.5
	x0, y0, z0 := math32.Floor(fx), math32.Floor(fy), math32.Floor(fz)
	tx, ty, tz := fx-x0, fy-y0, fz-z0
	ix, iy, iz := int(x0), int(y0), int(z0)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	c00 := lerp(g.At(ix, iy, iz), g.At(ix+1, iy, iz), tx)
	c10 := lerp(g.At(ix, iy+1, iz), g.At(ix+1, iy+1, iz), tx)
	c01 := lerp(g.At(ix, iy, iz+1), g.At(ix+1, iy, iz+1), tx)
	c11 := lerp(g.At(ix, iy+1, iz+1), g.At(ix+1, iy+1, iz+1), tx)
	return lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
}

// Field exposes the grid as an interpolated field.
func (g Grid) Field() Field[float32] {
	return g.Sample
}

// Bytes returns the grid as texture upload data.
func (g Grid) Bytes() []byte {
	return common.SliceToBytes(g.Values)
}

// Range returns the smallest and largest distance stored in the grid.
func (g Grid) Range() (lo, hi float32) {
	if len(g.Values) == 0 {
		return 0, 0
	}
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, v := range g.Values {
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	return lo, hi
}
