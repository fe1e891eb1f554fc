package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"voxelstream/internal/player"
)

// controls maps glfw input onto the player and the view toggles.
type controls struct {
	window *glfw.Window
	player *player.Player

	lastX, lastY float64
	firstMouse   bool
	captured     bool
	showDebug    bool
	monitor      *glfw.Monitor
	width        int
	height       int
}

func newControls(window *glfw.Window, p *player.Player) *controls {
	w, h := window.GetSize()
	c := &controls{window: window, player: p, firstMouse: true, captured: true, showDebug: true, width: w, height: h}
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	window.SetCursorPosCallback(c.mouseMove)
	window.SetKeyCallback(c.key)
	window.SetMouseButtonCallback(c.mouseButton)
	return c
}

func (c *controls) mouseMove(_ *glfw.Window, x, y float64) {
	if c.firstMouse {
		c.lastX, c.lastY = x, y
		c.firstMouse = false
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	if c.captured {
		c.player.Look(dx, dy)
	}
}

func (c *controls) mouseButton(w *glfw.Window, _ glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Press && !c.captured {
		c.capture(w, true)
	}
}

func (c *controls) key(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyF3:
		c.showDebug = !c.showDebug
	case glfw.KeyF:
		c.player.Flying = !c.player.Flying
		c.player.Velocity = c.player.Velocity.Mul(0)
	case glfw.KeyEscape:
		c.capture(w, !c.captured)
	case glfw.KeyF11:
		c.toggleFullscreen(w)
	}
}

func (c *controls) capture(w *glfw.Window, on bool) {
	c.captured = on
	c.firstMouse = true
	if on {
		w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

func (c *controls) toggleFullscreen(w *glfw.Window) {
	if c.monitor == nil {
		c.monitor = glfw.GetPrimaryMonitor()
		mode := c.monitor.GetVideoMode()
		w.SetMonitor(c.monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		return
	}
	mode := c.monitor.GetVideoMode()
	c.monitor = nil
	w.SetMonitor(nil, (mode.Width-c.width)/2, (mode.Height-c.height)/2, c.width, c.height, 0)
}

// held samples the movement keys for this frame.
func (c *controls) held() player.Controls {
	down := func(k glfw.Key) bool { return c.window.GetKey(k) == glfw.Press }
	return player.Controls{
		Forward: down(glfw.KeyW),
		Back:    down(glfw.KeyS),
		Left:    down(glfw.KeyA),
		Right:   down(glfw.KeyD),
		Up:      down(glfw.KeySpace),
		Down:    down(glfw.KeyLeftControl),
		Sprint:  down(glfw.KeyLeftShift),
		Jump:    down(glfw.KeySpace),
	}
}
