package camera

import (
	"sync"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/chewxy/math32"
)

// settleEpsilon is the relative distance below which a smooth controller snaps to its goal.
const settleEpsilon = 1e-4

// orbitState is a view in spherical coordinates around a target.
type orbitState struct {
	target    common.Vec3f
	radius    float32
	azimuth   float32 // around the Y axis, 0 looks down -Z
	elevation float32 // from the horizontal plane
}

func (s orbitState) position() common.Vec3f {
	return s.target.Add(s.back().Scale(s.radius))
}

// back is the unit vector from the target toward the camera.
func (s orbitState) back() common.Vec3f {
	cosElev, sinElev := math32.Cos(s.elevation), math32.Sin(s.elevation)
	return common.Vec3f{cosElev * math32.Sin(s.azimuth), sinElev, cosElev * math32.Cos(s.azimuth)}
}

func (s orbitState) lerp(goal orbitState, t float32) orbitState {
	return orbitState{
		target:    s.target.Lerp(goal.target, t),
		radius:    s.radius + (goal.radius-s.radius)*t,
		azimuth:   s.azimuth + (goal.azimuth-s.azimuth)*t,
		elevation: s.elevation + (goal.elevation-s.elevation)*t,
	}
}

func (s orbitState) near(goal orbitState) bool {
	scale := math32.Max(goal.radius, 1)
	return s.target.Distance(goal.target) < settleEpsilon*scale &&
		math32.Abs(s.radius-goal.radius) < settleEpsilon*scale &&
		math32.Abs(s.azimuth-goal.azimuth) < settleEpsilon &&
		math32.Abs(s.elevation-goal.elevation) < settleEpsilon
}

// cameraControllerImpl is the single implementation of CameraController.
// Input writes the goal state. The current state is what the camera renders.
type cameraControllerImpl struct {
	mu sync.Mutex

	mode    Mode
	current orbitState
	goal    orbitState
	// moved is set when current jumped to goal outside Update, so the next Update still reports a change.
	moved bool

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
	damping          float32 // 1/s, rate of the exponential approach in ModeSmooth
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller looking at the origin from +Z.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mode: ModeOrbit,
		goal: orbitState{
			radius:    10,
			elevation: math32.Pi / 8,
		},
		minRadius:        0.01,
		maxRadius:        10000,
		minElevation:     -math32.Pi/2 + 0.01,
		maxElevation:     math32.Pi/2 - 0.01,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.1,
		panSpeed:         0.001,
		damping:          12,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clampGoal()
	cc.current = cc.goal
	return cc
}

// NewOrbitController creates a controller in ModeOrbit.
func NewOrbitController(options ...CameraControllerOption) CameraController {
	return NewCameraController(append([]CameraControllerOption{WithMode(ModeOrbit)}, options...)...)
}

// NewSmoothController creates a controller in ModeSmooth.
func NewSmoothController(options ...CameraControllerOption) CameraController {
	return NewCameraController(append([]CameraControllerOption{WithMode(ModeSmooth)}, options...)...)
}

// clampGoal keeps the goal inside the radius and elevation bounds. Caller must hold the mutex.
func (cc *cameraControllerImpl) clampGoal() {
	cc.goal.radius = math32.Min(math32.Max(cc.goal.radius, cc.minRadius), cc.maxRadius)
	cc.goal.elevation = math32.Min(math32.Max(cc.goal.elevation, cc.minElevation), cc.maxElevation)
}

// commit applies a changed goal. Caller must hold the mutex.
func (cc *cameraControllerImpl) commit() {
	cc.clampGoal()
	if cc.mode == ModeOrbit && cc.current != cc.goal {
		cc.current = cc.goal
		cc.moved = true
	}
}

// axes returns the right and up vectors of the current view.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) axes() (right, up common.Vec3f) {
	back := cc.current.back()
	right = common.Vec3f{math32.Cos(cc.current.azimuth), 0, -math32.Sin(cc.current.azimuth)}
	up = back.Cross(right)
	return right, up
}

func (cc *cameraControllerImpl) Mode() Mode {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.mode
}

func (cc *cameraControllerImpl) SetMode(mode Mode) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.mode = mode
	cc.commit()
}

func (cc *cameraControllerImpl) Position() common.Vec3f {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current.position()
}

func (cc *cameraControllerImpl) Target() common.Vec3f {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current.target
}

func (cc *cameraControllerImpl) SetTarget(target common.Vec3f) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.target = target
	cc.commit()
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.radius = radius
	cc.commit()
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.azimuth = azimuth
	cc.commit()
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.elevation = elevation
	cc.commit()
}

func (cc *cameraControllerImpl) Rotate(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.azimuth -= dx * cc.mouseSensitivity
	cc.goal.elevation += dy * cc.mouseSensitivity
	cc.commit()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.goal.radius *= math32.Exp(-delta * cc.zoomSpeed)
	cc.commit()
}

func (cc *cameraControllerImpl) Pan(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	right, up := cc.axes()
	scale := cc.panSpeed * cc.goal.radius
	cc.goal.target = cc.goal.target.Add(right.Scale(-dx * scale)).Add(up.Scale(dy * scale))
	cc.commit()
}

func (cc *cameraControllerImpl) Frame(box common.BoundingBox, fovY float32) {
	if box.IsEmpty() {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	extent := box.Size().Length() / 2
	cc.goal.target = box.Center
	cc.goal.radius = math32.Max(extent, cc.minRadius) / math32.Sin(fovY/2)
	cc.commit()
}

func (cc *cameraControllerImpl) Update(dt float32) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.current == cc.goal {
		moved := cc.moved
		cc.moved = false
		return moved
	}
	cc.moved = false
	if cc.mode == ModeOrbit || cc.damping <= 0 {
		cc.current = cc.goal
		return true
	}
	if dt <= 0 {
		return false
	}
	cc.current = cc.current.lerp(cc.goal, 1-math32.Exp(-cc.damping*dt))
	if cc.current.near(cc.goal) {
		cc.current = cc.goal
	}
	return true
}

func (cc *cameraControllerImpl) Settled() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current == cc.goal
}
