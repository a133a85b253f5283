package gpu_object

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// Mesh is an indexed triangle mesh with a model transform. Its vertex and index buffers are owned by the
// object; the properties allocation only holds the transform and color. The bin of a hit is the triangle
// index.
type Mesh struct {
	base
	model    common.Mat4
	inverse  common.Mat4
	color    Color
	vertices []MeshVertex
	indices  []uint32

	vertexBuffer  renderer.Buffer
	indexBuffer   renderer.Buffer
	geometryDirty bool
}

var _ GPUObject = &Mesh{}

// NewMesh creates a mesh from vertices and triangle indices.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - vertices: the vertices, copied
//   - indices: three indices per triangle, copied
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *Mesh: the mesh
//   - error: an error if the indices are malformed or no allocation could be made
func NewMesh(host Host, vertices []MeshVertex, indices []uint32, label string) (*Mesh, error) {
	m := &Mesh{model: common.Identity4(), inverse: common.Identity4(), color: White}
	m.init(host, m, KindMesh, label)
	if err := m.SetGeometry(vertices, indices); err != nil {
		return nil, err
	}
	if err := m.allocate(MeshSize); err != nil {
		return nil, err
	}
	return m, nil
}

// SetGeometry replaces the vertices and indices. The GPU buffers are recreated on the next Prepare.
func (m *Mesh) SetGeometry(vertices []MeshVertex, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%s: %d indices do not form triangles", m.label, len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return fmt.Errorf("%s: index %d out of range for %d vertices", m.label, i, len(vertices))
		}
	}
	m.vertices = append([]MeshVertex(nil), vertices...)
	m.indices = append([]uint32(nil), indices...)
	m.geometryDirty = true
	return nil
}

// SetTransform sets the model matrix. Singular matrices are rejected since picking needs the inverse.
func (m *Mesh) SetTransform(model common.Mat4) error {
	inv, ok := model.Inverse()
	if !ok {
		return fmt.Errorf("%s: singular model matrix", m.label)
	}
	m.model = model
	m.inverse = inv
	m.markDirty()
	return nil
}

func (m *Mesh) Transform() common.Mat4 {
	return m.model
}

func (m *Mesh) SetColor(c Color) {
	m.color = c
	m.markDirty()
}

func (m *Mesh) TriangleCount() int {
	return len(m.indices) / 3
}

func (m *Mesh) ByteSize() uint64 {
	return MeshSize
}

func (m *Mesh) BoundingBox() common.BoundingBox {
	b := common.EmptyBoundingBox()
	for _, v := range m.vertices {
		b.ExtendPoint(m.model.TransformPoint(v.Position))
	}
	return b
}

func (m *Mesh) ToBuffer(buf []byte) {
	g := GPUMesh{Model: m.model, Color: m.color}
	g.MarshalInto(buf)
}

func (m *Mesh) RayIntersection(r raycast.Ray) *raycast.Intersection {
	if !r.Valid() {
		return nil
	}
	local := r.Transform(m.inverse)
	var best *raycast.Intersection
	for tri := 0; tri < len(m.indices)/3; tri++ {
		v0 := common.ToF64(common.Vec3f(m.vertices[m.indices[3*tri]].Position))
		v1 := common.ToF64(common.Vec3f(m.vertices[m.indices[3*tri+1]].Position))
		v2 := common.ToF64(common.Vec3f(m.vertices[m.indices[3*tri+2]].Position))
		t, _, _ := raycast.Triangle(local, v0, v1, v2)
		best = raycast.Nearest(best, m.hit(r, t, tri))
	}
	return best
}

func (m *Mesh) Prepare(device renderer.Device) error {
	if m.released {
		return nil
	}
	if m.geometryDirty {
		if err := m.uploadGeometry(device); err != nil {
			return err
		}
	}
	return m.prepareBindings(device)
}

func (m *Mesh) uploadGeometry(device renderer.Device) error {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
	if len(m.indices) == 0 {
		m.geometryDirty = false
		return nil
	}
	vb, err := device.CreateBuffer(m.label+" Vertices", uint64(len(m.vertices))*MeshVertexSize, renderer.BufferUsageVertex|renderer.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("%s: %w", m.label, err)
	}
	ib, err := device.CreateBuffer(m.label+" Indices", uint64(len(m.indices))*4, renderer.BufferUsageIndex|renderer.BufferUsageCopyDst)
	if err != nil {
		vb.Release()
		return fmt.Errorf("%s: %w", m.label, err)
	}
	err = device.WriteBuffers([]renderer.BufferWrite{
		{Buffer: vb, Data: common.SliceToBytes(m.vertices)},
		{Buffer: ib, Data: common.SliceToBytes(m.indices)},
	})
	if err != nil {
		vb.Release()
		ib.Release()
		return fmt.Errorf("%s: %w", m.label, err)
	}
	m.vertexBuffer, m.indexBuffer = vb, ib
	m.geometryDirty = false
	return nil
}

func (m *Mesh) Ready() bool {
	return m.ready() && m.vertexBuffer != nil && m.indexBuffer != nil
}

func (m *Mesh) Record(pass renderer.RenderPass) bool {
	if !m.Ready() || !m.bind(pass) {
		return false
	}
	pass.SetVertexBuffer(0, m.vertexBuffer, 0, m.vertexBuffer.Size())
	pass.SetIndexBuffer(m.indexBuffer, renderer.IndexFormatUint32, 0, m.indexBuffer.Size())
	pass.DrawIndexed(uint32(len(m.indices)), 1, 0, 0, 0)
	return true
}

func (m *Mesh) Release() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
	m.release()
}
