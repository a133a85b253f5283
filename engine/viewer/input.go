package viewer

import (
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/chewxy/math32"
)

// clickSlop is how far in pixels the cursor may travel between press and release for a click.
const clickSlop = 4

type inputState struct {
	shift     bool
	left      bool
	right     bool
	lastX     float32
	lastY     float32
	travelled float32
}

func (v *viewer) HandleKey(key common.Key, action common.KeyAction) {
	if key == common.KeyLeftShift {
		v.input.shift = action != common.ActionRelease
		return
	}
	if action == common.ActionRelease {
		return
	}
	// Timestep keys repeat while held; everything else acts once per press.
	switch key {
	case common.KeyLeft:
		v.stepTimestep(-1)
		return
	case common.KeyRight:
		v.stepTimestep(1)
		return
	}
	if action != common.ActionPress {
		return
	}
	switch key {
	case common.KeyS:
		v.splitSelected()
	case common.KeyM:
		v.mergeSelected()
	case common.KeyV:
		v.cycleVisualisation()
	case common.KeyH:
		v.toggleSelectedHidden()
	case common.KeyR:
		v.recluster()
	case common.KeySpace:
		v.frameAll()
	}
}

func (v *viewer) HandleMouseButton(button common.MouseButton, action common.KeyAction, x, y float32) {
	switch action {
	case common.ActionPress:
		v.input.lastX, v.input.lastY = x, y
		v.input.travelled = 0
		switch button {
		case common.MouseButtonLeft:
			v.input.left = true
		case common.MouseButtonRight:
			v.input.right = true
		}
	case common.ActionRelease:
		switch button {
		case common.MouseButtonLeft:
			v.input.left = false
			if v.input.travelled <= clickSlop {
				v.pick(x, y)
			}
		case common.MouseButtonRight:
			v.input.right = false
		}
	}
}

func (v *viewer) HandleMouseMove(x, y float32) {
	dx, dy := x-v.input.lastX, y-v.input.lastY
	v.input.lastX, v.input.lastY = x, y
	if !v.input.left && !v.input.right {
		return
	}
	v.input.travelled += math32.Abs(dx) + math32.Abs(dy)
	if v.input.travelled <= clickSlop {
		return
	}
	c := v.camera.Controller()
	if c == nil {
		return
	}
	if v.input.right || v.input.shift {
		c.Pan(dx, dy)
	} else {
		c.Rotate(dx, dy)
	}
}

func (v *viewer) HandleScroll(delta float32) {
	if c := v.camera.Controller(); c != nil {
		c.Zoom(delta)
	}
}

// pick selects the leaf under a pixel, or clears the selection on a miss.
func (v *viewer) pick(x, y float32) {
	if v.composite == nil {
		return
	}
	width, height := v.camera.Viewport()
	id, hit := v.composite.Pick(v.camera.ScreenRay(x, y, float32(width), float32(height)))
	if hit != nil {
		common.Logger().Debug("picked cluster", "node", id, "t", hit.T)
	}
	v.Select(id)
}

func (v *viewer) splitSelected() {
	if v.composite == nil || v.selected == cluster.NoNode {
		return
	}
	children, err := v.composite.Split(v.selected)
	if err != nil {
		common.Logger().Warn("split failed", "node", v.selected, "error", err)
	}
	if children != nil {
		v.Select(cluster.NoNode)
	}
}

func (v *viewer) mergeSelected() {
	if v.composite == nil || v.selected == cluster.NoNode {
		return
	}
	parent, err := v.composite.Merge(v.selected)
	if err != nil {
		common.Logger().Warn("merge failed", "node", v.selected, "error", err)
	}
	if parent != cluster.NoNode {
		v.Select(parent)
	}
}

// cycleVisualisation switches every leaf to the type after the selected leaf's, or after the first
// leaf's when nothing is selected.
func (v *viewer) cycleVisualisation() {
	if v.composite == nil {
		return
	}
	ref := v.composite.Visualisation(v.selected)
	if ref == nil {
		if leaves := v.composite.Leaves(); len(leaves) > 0 {
			ref = v.composite.Visualisation(leaves[0])
		}
	}
	next := cluster.VisSphere
	if ref != nil {
		next = ref.Type().Next()
	}
	if err := v.composite.SetVisualisation(cluster.ConstructorOf(next)); err != nil {
		common.Logger().Warn("visualisation switch failed", "type", next.String(), "error", err)
	}
	common.Logger().Info("visualisation switched", "type", next.String())
}

func (v *viewer) toggleSelectedHidden() {
	if v.composite == nil {
		return
	}
	vis := v.composite.Visualisation(v.selected)
	if vis == nil {
		return
	}
	objects := vis.Objects()
	vis.SetHidden(len(objects) > 0 && !objects[0].Hidden())
}

func (v *viewer) stepTimestep(step int) {
	if v.composite == nil {
		return
	}
	if err := v.composite.SetTimestep(v.composite.Timestep() + step); err != nil {
		common.Logger().Warn("timestep switch failed", "error", err)
	}
}

// recluster recomputes the clustering of the current timestep in the background and swaps it in once
// the result is posted back.
func (v *viewer) recluster() {
	if v.composite == nil {
		return
	}
	comp := v.composite
	v.worker.Submit(comp.Points(), v.levels, func(r cluster.Result) {
		if r.Err != nil || v.composite != comp {
			return
		}
		v.Select(cluster.NoNode)
		if err := comp.SetClusters(r.Clusters); err != nil {
			common.Logger().Warn("reclustering failed", "job", r.Job, "error", err)
		}
	})
}
