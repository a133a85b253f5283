package camera

import "github.com/Carmen-Shannon/chromaviz/common"

// Mode selects how a controller applies input. The variants share one controller so the viewer can
// switch between them at runtime without losing the view.
type Mode int

const (
	// ModeOrbit applies every input immediately.
	ModeOrbit Mode = iota
	// ModeSmooth eases the view toward the input goal with exponential damping on Update.
	ModeSmooth
)

func (m Mode) String() string {
	switch m {
	case ModeOrbit:
		return "Orbit"
	case ModeSmooth:
		return "Smooth"
	default:
		return "Unknown"
	}
}

// CameraController defines the interface for camera control systems.
// Controllers own positional state as spherical coordinates (radius, azimuth, elevation) around a target.
// Input methods change the goal state. In ModeOrbit the view jumps to the goal, in ModeSmooth Update moves
// the view toward it.
type CameraController interface {
	// Mode returns the active control variant.
	//
	// Returns:
	//   - Mode: ModeOrbit or ModeSmooth
	Mode() Mode

	// SetMode switches the control variant. Switching to ModeOrbit snaps the view to the goal.
	//
	// Parameters:
	//   - mode: the variant to use
	SetMode(mode Mode)

	// Position returns the camera's current world-space position.
	//
	// Returns:
	//   - common.Vec3f: world-space camera position
	Position() common.Vec3f

	// Target returns the current look-at point.
	//
	// Returns:
	//   - common.Vec3f: world-space target position
	Target() common.Vec3f

	// SetTarget sets the look-at/pivot point goal.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target common.Vec3f)

	// Radius returns the current orbit radius (distance from target).
	//
	// Returns:
	//   - float32: current distance from target
	Radius() float32

	// SetRadius sets the orbit radius goal, clamped to the min/max bounds.
	//
	// Parameters:
	//   - radius: new distance from target
	SetRadius(radius float32)

	// Azimuth returns the current horizontal angle around the Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// SetAzimuth sets the horizontal angle goal.
	//
	// Parameters:
	//   - azimuth: new horizontal angle in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the current vertical angle from the horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32

	// SetElevation sets the vertical angle goal, clamped to the min/max bounds.
	//
	// Parameters:
	//   - elevation: new vertical angle in radians
	SetElevation(elevation float32)

	// Rotate orbits around the target by a mouse drag.
	//
	// Parameters:
	//   - dx, dy: drag distance in pixels, scaled by the mouse sensitivity
	Rotate(dx, dy float32)

	// Zoom adjusts the orbit radius. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount, scaled by the zoom speed and the current radius
	Zoom(delta float32)

	// Pan translates the target along the camera's right and up axes.
	//
	// Parameters:
	//   - dx, dy: pan amount, scaled by the pan speed and the current radius
	Pan(dx, dy float32)

	// Frame points the camera at a bounding box, keeping the viewing direction.
	//
	// Parameters:
	//   - box: the box to fit, ignored when empty
	//   - fovY: the vertical field of view used to fit the box
	Frame(box common.BoundingBox, fovY float32)

	// Update advances the view toward the goal.
	//
	// Parameters:
	//   - dt: elapsed time in seconds since the last update
	//
	// Returns:
	//   - bool: true if the view changed
	Update(dt float32) bool

	// Settled reports whether the view has reached the goal.
	//
	// Returns:
	//   - bool: true when no further Update would move the camera
	Settled() bool
}
