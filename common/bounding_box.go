package common

import "github.com/chewxy/math32"

// BoundingBox is an axis-aligned box in world space. Center is derived from Min and Max and
// must be refreshed with CalculateCenter whenever either bound is mutated directly.
type BoundingBox struct {
	Min    Vec3f
	Max    Vec3f
	Center Vec3f
	// Primitive is the index of the sub-element this box encloses (instance, segment), or -1.
	Primitive int
}

// EmptyBoundingBox returns an inverted box that any Extend call will snap to.
func EmptyBoundingBox() BoundingBox {
	inf := math32.Inf(1)
	return BoundingBox{
		Min:       Vec3f{inf, inf, inf},
		Max:       Vec3f{-inf, -inf, -inf},
		Primitive: -1,
	}
}

// NewBoundingBox creates a box from two corners and computes its center.
//
// Parameters:
//   - lo: minimum corner
//   - hi: maximum corner
//
// Returns:
//   - BoundingBox: the box with its derived center
func NewBoundingBox(lo, hi Vec3f) BoundingBox {
	b := BoundingBox{Min: lo.Min(hi), Max: lo.Max(hi), Primitive: -1}
	b.CalculateCenter()
	return b
}

// SphereBoundingBox returns the box enclosing a sphere.
func SphereBoundingBox(center Vec3f, radius float32) BoundingBox {
	r := math32.Abs(radius)
	return NewBoundingBox(center.Sub(Vec3f{r, r, r}), center.Add(Vec3f{r, r, r}))
}

// CalculateCenter recomputes Center from Min and Max.
func (b *BoundingBox) CalculateCenter() {
	b.Center = b.Min.Add(b.Max).Scale(0.5)
}

// IsEmpty reports whether the box encloses nothing.
func (b BoundingBox) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// ExtendPoint grows the box to include p and refreshes the center.
func (b *BoundingBox) ExtendPoint(p Vec3f) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
	b.CalculateCenter()
}

// Extend grows the box to include o and refreshes the center.
func (b *BoundingBox) Extend(o BoundingBox) {
	if o.IsEmpty() {
		return
	}
	b.Min = b.Min.Min(o.Min)
	b.Max = b.Max.Max(o.Max)
	b.CalculateCenter()
}

// Size returns the extent of the box along each axis.
func (b BoundingBox) Size() Vec3f {
	if b.IsEmpty() {
		return Vec3f{}
	}
	return b.Max.Sub(b.Min)
}

// LongestSide returns the largest extent of the box.
func (b BoundingBox) LongestSide() float32 {
	s := b.Size()
	return math32.Max(s[0], math32.Max(s[1], s[2]))
}

// Contains reports whether p lies inside or on the box.
func (b BoundingBox) Contains(p Vec3f) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// PointsBoundingBox returns the box enclosing the given points padded by radius.
func PointsBoundingBox(points []Vec3f, radius float32) BoundingBox {
	b := EmptyBoundingBox()
	for _, p := range points {
		b.ExtendPoint(p)
	}
	if b.IsEmpty() {
		return b
	}
	pad := Vec3f{radius, radius, radius}
	b.Min = b.Min.Sub(pad)
	b.Max = b.Max.Add(pad)
	b.CalculateCenter()
	return b
}
