package common

// Key is a keyboard key code. Values match GLFW key codes so window callbacks can pass them through.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int

const (
	KeySpace     Key = 32
	KeyH         Key = 72  // toggle hidden on the picked object
	KeyM         Key = 77  // merge the picked cluster
	KeyR         Key = 82  // re-run clustering
	KeyS         Key = 83  // split the picked cluster
	KeyV         Key = 86  // cycle cluster visualisation
	KeyEsc       Key = 256
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyLeftShift Key = 340
)

// MouseButton identifies a mouse button, matching GLFW button codes.
type MouseButton int

const (
	MouseButtonLeft   MouseButton = 0
	MouseButtonRight  MouseButton = 1
	MouseButtonMiddle MouseButton = 2
)

// KeyAction distinguishes key and button transitions.
type KeyAction int

const (
	ActionRelease KeyAction = 0
	ActionPress   KeyAction = 1
	ActionRepeat  KeyAction = 2
)
