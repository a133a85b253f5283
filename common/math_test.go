package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMat4Inverse(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", Identity4()},
		{"translation", Translation(Vec3f{1, -2, 3})},
		{"translation scale", TranslationScale(Vec3f{4, 5, 6}, Vec3f{2, 0.5, 3})},
		{"model", ModelMatrix(Vec3f{1, 2, 3}, Vec3f{0.3, -0.7, 1.1}, Vec3f{1, 2, 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.Inverse()
			require.True(t, ok)
			product := tt.m.Mul(inv)
			want := Identity4()
			for i := range product {
				assert.InDelta(t, want[i], product[i], 1e-5, "element %d", i)
			}
		})
	}
}

func TestMat4InverseSingular(t *testing.T) {
	var zero Mat4
	_, ok := zero.Inverse()
	assert.False(t, ok)
}

func TestBoxMatrixMapsUnitCube(t *testing.T) {
	box := NewBoundingBox(Vec3f{-1, 2, 3}, Vec3f{3, 4, 9})
	m := BoxMatrix(box)

	assert.Equal(t, box.Min, m.TransformPoint(Vec3f{-1, -1, -1}))
	assert.Equal(t, box.Max, m.TransformPoint(Vec3f{1, 1, 1}))
	assert.Equal(t, box.Center, m.TransformPoint(Vec3f{}))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3f{0, 0, 5}
	view := LookAt(eye, Vec3f{}, Vec3f{0, 1, 0})

	p := view.TransformPoint(eye)
	for i := range p {
		assert.InDelta(t, 0, p[i], 1e-6)
	}
	// the target lies on the negative view z axis
	target := view.TransformPoint(Vec3f{})
	assert.InDelta(t, -5, target[2], 1e-6)
}

func TestFrustumCulling(t *testing.T) {
	proj := Perspective(1.0, 1.0, 0.1, 100)
	view := LookAt(Vec3f{0, 0, 10}, Vec3f{}, Vec3f{0, 1, 0})
	f := FrustumFromViewProjection(proj.Mul(view))

	assert.True(t, f.IntersectsBox(NewBoundingBox(Vec3f{-1, -1, -1}, Vec3f{1, 1, 1})))
	assert.False(t, f.IntersectsBox(NewBoundingBox(Vec3f{-1, -1, 20}, Vec3f{1, 1, 22})), "behind the camera")
	assert.False(t, f.IntersectsBox(NewBoundingBox(Vec3f{200, -1, -1}, Vec3f{202, 1, 1})), "far off to the side")
	assert.True(t, f.IntersectsBox(EmptyBoundingBox()))
	assert.True(t, f.IntersectsSphere(Vec3f{}, 1))
	assert.False(t, f.IntersectsSphere(Vec3f{0, 0, 500}, 1))
}

func TestBoundingBox(t *testing.T) {
	b := EmptyBoundingBox()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, -1, b.Primitive)

	b.ExtendPoint(Vec3f{1, 1, 1})
	b.ExtendPoint(Vec3f{-1, 3, 0})
	assert.False(t, b.IsEmpty())
	assert.Equal(t, Vec3f{-1, 1, 0}, b.Min)
	assert.Equal(t, Vec3f{1, 3, 1}, b.Max)
	assert.Equal(t, Vec3f{0, 2, 0.5}, b.Center)
	assert.Equal(t, float32(2), b.LongestSide())
	assert.True(t, b.Contains(Vec3f{0, 2, 0.5}))
	assert.False(t, b.Contains(Vec3f{0, 0, 0}))

	s := SphereBoundingBox(Vec3f{1, 2, 3}, 2)
	assert.Equal(t, Vec3f{-1, 0, 1}, s.Min)
	assert.Equal(t, Vec3f{1, 2, 3}, s.Center)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
}
