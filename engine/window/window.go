package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides a native window, its WebGPU surface and input events for the viewer.
// Callbacks run on the thread that called NewWindow, inside ProcessMessages.
type Window interface {
	// SetUpdateCallback sets the function called once per message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical delta, positive when scrolling up
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key transitions. Escape closes the window and is not forwarded.
	//
	// Parameters:
	//   - callback: function receiving the key and whether it was pressed, repeated or released
	SetKeyCallback(callback func(key common.Key, action common.KeyAction))

	// SetMouseButtonCallback sets the callback for mouse button transitions.
	//
	// Parameters:
	//   - callback: function receiving the button, the transition and the cursor position in pixels
	SetMouseButtonCallback(callback func(button common.MouseButton, action common.KeyAction, x, y float32))

	// SetMouseMoveCallback sets the callback for cursor movement.
	//
	// Parameters:
	//   - callback: function receiving the cursor position in pixels
	SetMouseMoveCallback(callback func(x, y float32))

	// SurfaceDescriptor returns a platform specific descriptor for creating the WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil if the window is not open
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was never opened
	Close() error

	// ProcessMessages runs the message loop until the window closes, calling the update callback after
	// every poll.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

type engineWindow struct {
	title     string
	minWidth  int
	minHeight int
	width     int
	height    int

	internalWindow any

	onUpdate      func()
	onResize      func(width, height int)
	onScroll      func(delta float32)
	onKey         func(key common.Key, action common.KeyAction)
	onMouseButton func(button common.MouseButton, action common.KeyAction, x, y float32)
	onMouseMove   func(x, y float32)
}

var _ Window = &engineWindow{}

// NewWindow opens a window. It locks the calling goroutine to its OS thread, which must then run
// ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "chromaviz",
		minWidth:  320,
		minHeight: 240,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	common.Logger().Info("window opened", "title", w.title, "width", w.width, "height", w.height)
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key common.Key, action common.KeyAction)) {
	w.onKey = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button common.MouseButton, action common.KeyAction, x, y float32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y float32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
