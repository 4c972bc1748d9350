package dashboard

import (
	"context"
	"math"
	"strings"

	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

// Command is what a keyboard shortcut asks for.
type Command int

const (
	CommandNone Command = iota
	CommandHidePanel
	CommandRefresh
	CommandExport
	CommandFullscreen
	CommandToggleNDVI
)

var commandNames = map[Command]string{
	CommandNone:       "none",
	CommandHidePanel:  "hide-panel",
	CommandRefresh:    "refresh",
	CommandExport:     "export",
	CommandFullscreen: "fullscreen",
	CommandToggleNDVI: "toggle-ndvi",
}

func (c Command) String() string {
	return commandNames[c]
}

// KeyEvent is a keydown forwarded by the browser.
type KeyEvent struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl"`
}

// ParseKey maps a keydown to its command. Letters are case-insensitive and
// only count with Ctrl held.
func ParseKey(ev KeyEvent) Command {
	if ev.Key == "Escape" {
		return CommandHidePanel
	}
	if !ev.Ctrl {
		return CommandNone
	}
	switch strings.ToLower(ev.Key) {
	case "r":
		return CommandRefresh
	case "e":
		return CommandExport
	case "f":
		return CommandFullscreen
	case "n":
		return CommandToggleNDVI
	}
	return CommandNone
}

// SwipeDistance is the horizontal travel, and the vertical tolerance, of a
// swipe that closes the info panel.
const SwipeDistance = 50

// TouchTracker keeps the latest touch-start point. A new touch overwrites it.
type TouchTracker struct {
	x, y float64
}

// Start records where a touch began.
func (t *TouchTracker) Start(x, y float64) {
	t.x, t.y = x, y
}

// End reports whether the touch ending at (x, y) is a left swipe.
func (t *TouchTracker) End(x, y float64) bool {
	dx := x - t.x
	dy := y - t.y
	return dx < -SwipeDistance && math.Abs(dy) < SwipeDistance
}

// HandleKey runs a keyboard shortcut. Export is left to the caller, which
// owns the download; the returned command says what happened.
func (c *Controller) HandleKey(ctx context.Context, ev KeyEvent) (Command, error) {
	cmd := ParseKey(ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()

	switch cmd {
	case CommandHidePanel:
		c.infoPanel = false
	case CommandRefresh:
		if err := c.refresh(ctx); err != nil {
			return cmd, err
		}
	case CommandFullscreen:
		c.fullscreen = !c.fullscreen
	case CommandToggleNDVI:
		c.toggleNDVI()
	}
	return cmd, nil
}

// TouchStart records the start of a touch on the map.
func (c *Controller) TouchStart(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.touch.Start(x, y)
}

// TouchEnd completes a touch. A left swipe hides the info panel and true is
// returned.
func (c *Controller) TouchEnd(x, y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	if !c.touch.End(x, y) {
		return false
	}
	c.infoPanel = false
	return true
}

// HidePanel hides the region info panel.
func (c *Controller) HidePanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.infoPanel = false
}

// Recenter fits the map to Morocco at the current map size.
func (c *Controller) Recenter() mapview.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.viewport = mapview.FitBounds(mapview.MoroccoBounds, c.width, c.height)
	return c.viewport
}

// ToggleFullscreen flips fullscreen mode and returns the new mode.
func (c *Controller) ToggleFullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.fullscreen = !c.fullscreen
	return c.fullscreen
}

// SetOpacity sets the fill opacity of every rendered shape. v is clamped to [0,1].
func (c *Controller) SetOpacity(v float64) float64 {
	if math.IsNaN(v) {
		v = DefaultOpacity
	}
	v = math.Max(0, math.Min(1, v))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.opacity = v
	for _, l := range c.layers() {
		l.SetFillOpacity(v)
	}
	return v
}

// ToggleNDVI shows or hides the NDVI overlay.
func (c *Controller) ToggleNDVI() ndvi.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	return c.toggleNDVI()
}

func (c *Controller) toggleNDVI() ndvi.State {
	state := c.ndvi.Toggle(c.store.All())
	if ov := c.ndvi.Overlay(); ov != nil {
		c.recordBuild(ov)
		c.applyHighlight(ov.Layer)
	}
	c.interaction("ndvi_toggle", state.String())
	return state
}

// ChangeNDVIDate selects the overlay date and rebuilds a visible overlay.
func (c *Controller) ChangeNDVIDate(date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()

	if err := c.ndvi.ChangeDate(date, c.store.All()); err != nil {
		return err
	}
	if ov := c.ndvi.Overlay(); ov != nil {
		c.recordBuild(ov)
		c.applyHighlight(ov.Layer)
	}
	c.interaction("ndvi_date_change", date)
	return nil
}

// NDVI returns the overlay state and selected date.
func (c *Controller) NDVI() (ndvi.State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ndvi.State(), c.ndvi.Date()
}
