package camera

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/bind_group_provider"
	"github.com/chewxy/math32"
)

// cameraCount is an atomic counter used to generate unique bind group provider names for each camera instance.
var cameraCount atomic.Uint64

type cameraImpl struct {
	mu sync.Mutex

	up common.Vec3f

	fov    float32
	near   float32
	far    float32
	width  int
	height int

	position                    common.Vec3f
	viewMatrix                  common.Mat4
	projectionMatrix            common.Mat4
	viewProjectionMatrix        common.Mat4
	inverseViewProjectionMatrix common.Mat4

	controller CameraController

	uniform           renderer.Buffer
	uniformDirty      bool
	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings and computes view/projection matrices
// from an attached CameraController each frame via Update(). It owns the uniform buffer
// bound at group 0 of every object pipeline.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height) of the viewport.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Viewport returns the viewport size in pixels.
	//
	// Returns:
	//   - width, height: the viewport size
	Viewport() (width, height int)

	// Position returns the world-space eye position.
	//
	// Returns:
	//   - common.Vec3f: the eye position
	Position() common.Vec3f

	// ViewMatrix returns the current world to view matrix (column-major).
	ViewMatrix() common.Mat4

	// ProjectionMatrix returns the current projection matrix (column-major, WebGPU depth range).
	ProjectionMatrix() common.Mat4

	// ViewProjectionMatrix returns the current combined view-projection matrix (column-major).
	ViewProjectionMatrix() common.Mat4

	// InverseViewProjectionMatrix returns the matrix mapping clip space back to world space.
	InverseViewProjectionMatrix() common.Mat4

	// Frustum returns the world-space view frustum used for culling.
	//
	// Returns:
	//   - common.Frustum: the six frustum planes
	Frustum() common.Frustum

	// ScreenRay returns the world-space ray through a window position, used for picking.
	// The ray starts on the near plane. An empty viewport yields an invalid ray.
	//
	// Parameters:
	//   - x, y: the position in pixels, origin at the top left corner
	//   - width, height: the window size in pixels
	//
	// Returns:
	//   - raycast.Ray: the picking ray
	ScreenRay(x, y, width, height float32) raycast.Ray

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - up: the world-space up direction
	SetUp(up common.Vec3f)

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetClip sets the near and far clipping plane distances and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance (must be > 0)
	//   - far: far plane distance (must be > near)
	SetClip(near, far float32)

	// SetViewport sets the viewport size, which also defines the aspect ratio.
	// Zero sizes (a minimized window) are ignored.
	//
	// Parameters:
	//   - width, height: the viewport size in pixels
	SetViewport(width, height int)

	// Update advances the controller and recomputes matrices.
	// Should be called once per frame.
	//
	// Parameters:
	//   - dt: elapsed time in seconds since the last frame
	//
	// Returns:
	//   - bool: true if the view changed
	Update(dt float32) bool

	// Uniform returns the packed uniform for the current matrices.
	//
	// Returns:
	//   - GPUCamera: the uniform contents
	Uniform() GPUCamera

	// Prepare creates the uniform buffer on first use, uploads the uniform if it changed
	// and rebuilds the bind group against the layout of group 0.
	//
	// Parameters:
	//   - device: the device owning the buffer
	//   - layout: the camera bind group layout of the pipeline that draws next
	//
	// Returns:
	//   - error: an error if the buffer or bind group could not be created
	Prepare(device renderer.Device, layout renderer.BindGroupLayout) error

	// BindGroup returns the bind group holding the uniform, nil before Prepare.
	//
	// Returns:
	//   - renderer.BindGroup: the camera bind group
	BindGroup() renderer.BindGroup

	// BindGroupProvider returns the camera's bind group provider for GPU resources.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// Release frees the uniform buffer and bind group.
	Release()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
// Without a controller the camera sits at the origin looking down -Z.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:     common.Vec3f{0, 1, 0},
		fov:    45.0 * (math32.Pi / 180.0),
		near:   0.01,
		far:    1000.0,
		width:  1,
		height: 1,
		bindGroupProvider: bind_group_provider.NewBindGroupProvider(
			"camera_" + strconv.FormatUint(cameraCount.Add(1), 10),
		),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect()
}

func (c *cameraImpl) aspect() float32 {
	return float32(c.width) / float32(c.height)
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Viewport() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) Position() common.Vec3f {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.FrustumFromViewProjection(c.viewProjectionMatrix)
}

func (c *cameraImpl) ScreenRay(x, y, width, height float32) raycast.Ray {
	if width <= 0 || height <= 0 {
		return raycast.Ray{}
	}
	c.mu.Lock()
	inv := c.inverseViewProjectionMatrix
	c.mu.Unlock()

	ndcX := 2*x/width - 1
	ndcY := 1 - 2*y/height
	nearPoint := inv.TransformPoint(common.Vec3f{ndcX, ndcY, 0})
	farPoint := inv.TransformPoint(common.Vec3f{ndcX, ndcY, 1})
	return raycast.NewRayF32(nearPoint, farPoint.Sub(nearPoint))
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(up common.Vec3f) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
	c.updateMatrices()
}

func (c *cameraImpl) Update(dt float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil || !c.controller.Update(dt) {
		return false
	}
	c.updateMatrices()
	return true
}

func (c *cameraImpl) Uniform() GPUCamera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniformData()
}

// uniformData packs the current matrices. Caller must hold the mutex.
func (c *cameraImpl) uniformData() GPUCamera {
	w, h := float32(c.width), float32(c.height)
	return GPUCamera{
		ViewProj:    c.viewProjectionMatrix,
		InvViewProj: c.inverseViewProjectionMatrix,
		Position:    [4]float32{c.position[0], c.position[1], c.position[2], 1},
		Viewport:    [4]float32{w, h, 1 / w, 1 / h},
	}
}

func (c *cameraImpl) Prepare(device renderer.Device, layout renderer.BindGroupLayout) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uniform == nil || c.uniform.Released() {
		buf, err := device.CreateBuffer(
			c.bindGroupProvider.Label()+" Uniform",
			UniformSize,
			renderer.BufferUsageUniform|renderer.BufferUsageCopyDst,
		)
		if err != nil {
			return fmt.Errorf("camera: failed to create uniform buffer: %w", err)
		}
		c.uniform = buf
		c.uniformDirty = true
		c.bindGroupProvider.SetBuffer(0, buf, 0, UniformSize)
	}
	if c.uniformDirty {
		data := c.uniformData()
		if err := device.WriteBuffers([]renderer.BufferWrite{{Buffer: c.uniform, Data: data.Marshal()}}); err != nil {
			return fmt.Errorf("camera: failed to upload uniform: %w", err)
		}
		c.uniformDirty = false
	}
	if layout == nil {
		return nil
	}
	if _, err := c.bindGroupProvider.Rebuild(device, layout); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return nil
}

func (c *cameraImpl) BindGroup() renderer.BindGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bindGroupProvider.Ready() {
		return nil
	}
	return c.bindGroupProvider.BindGroup()
}

func (c *cameraImpl) BindGroupProvider() bind_group_provider.BindGroupProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindGroupProvider
}

func (c *cameraImpl) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindGroupProvider.Release()
	if c.uniform != nil {
		c.uniform.Release()
		c.uniform = nil
	}
}

// updateMatrices recalculates the view, projection, view-projection and inverse view-projection matrices.
// It reads position and target from the attached controller when one is present.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	eye, target := common.Vec3f{}, common.Vec3f{0, 0, -1}
	if c.controller != nil {
		eye, target = c.controller.Position(), c.controller.Target()
	}
	c.position = eye
	c.viewMatrix = common.LookAt(eye, target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect(), c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul(c.viewMatrix)
	if inv, ok := c.viewProjectionMatrix.Inverse(); ok {
		c.inverseViewProjectionMatrix = inv
	}
	c.uniformDirty = true
}
