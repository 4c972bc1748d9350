// Package dashboard holds the per-session interaction state of the yield map:
// the rendered layers, the selected region, the chart, the NDVI overlay and
// the map controls. Every mutation goes through a Controller, which
// serializes them.
package dashboard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-yieldgap/internal/analytics"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/metrics"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

// User-facing errors. Their text is shown to the user as is.
var (
	ErrNoSelection = errors.New("Please select a region first")
	ErrNoNDVIData  = errors.New("No NDVI data available for the selected date")
)

// Default map size used until the browser reports its own.
const (
	DefaultWidth   = 1024
	DefaultHeight  = 768
	DefaultOpacity = 0.7
)

// Tracker receives interaction events. Implementations must not block.
type Tracker interface {
	Track(ev analytics.Interaction)
}

// Client describes the browser a session runs in.
type Client struct {
	UserAgent    string `json:"userAgent"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
}

// Options configures a Controller.
type Options struct {
	Samples ndvi.SampleSet
	Tracker Tracker
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller owns the interaction state of one dashboard session.
type Controller struct {
	mu sync.Mutex

	id      string
	store   *dataset.Store
	ndvi    *ndvi.LayerManager
	tracker Tracker
	now     func() time.Time
	touched time.Time

	filter     dataset.Filter
	base       *mapview.Layer
	selected   *dataset.Record
	stats      *RegionStatistics
	chart      *ChartData
	viewport   mapview.Viewport
	width      int
	height     int
	opacity    float64
	infoPanel  bool
	fullscreen bool
	touch      TouchTracker
	client     Client
}

// New creates a controller and builds its base layer from store.
func New(id string, store *dataset.Store, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Controller{
		id:       id,
		store:    store,
		ndvi:     ndvi.NewLayerManager(opts.Samples),
		tracker:  opts.Tracker,
		now:      now,
		viewport: mapview.DefaultViewport,
		width:    DefaultWidth,
		height:   DefaultHeight,
		opacity:  DefaultOpacity,
	}
	c.touched = now()
	c.rebuildBase()
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// LastSeen returns when the session last handled an event.
func (c *Controller) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// SetClient records the browser details sent with analytics events.
func (c *Controller) SetClient(cl Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.client = cl
}

// SetScreen updates the screen size sent with analytics events. Non-positive
// sizes are ignored.
func (c *Controller) SetScreen(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.client.ScreenWidth = width
	c.client.ScreenHeight = height
}

// SetViewport records the map view and container size reported by the browser.
// Non-positive sizes keep the previous value.
func (c *Controller) SetViewport(v mapview.Viewport, width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.viewport = v
	if width > 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
}

// SetFilter changes the crop/year shown by the base layer and rebuilds it.
func (c *Controller) SetFilter(f dataset.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	c.filter = f
	c.rebuildBase()
	c.interaction("filter_change", f.Crop)
}

// Rebuild redraws the base layer and any visible overlay from the store.
// It is called after another session reloaded the shared dataset.
func (c *Controller) Rebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildAll()
}

// Refresh reloads the dataset and redraws every layer. On a load error the
// previous records stay on the map.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) error {
	if err := c.store.Reload(ctx); err != nil {
		log.Printf("[dashboard] %s: refresh failed: %v", c.id, err)
		return err
	}
	c.rebuildAll()
	c.interaction("refresh", "")
	return nil
}

func (c *Controller) rebuildAll() {
	c.rebuildBase()
	records := c.store.All()
	c.ndvi.Refresh(records)
	if ov := c.ndvi.Overlay(); ov != nil {
		c.recordBuild(ov)
		c.applyHighlight(ov.Layer)
	}
	if c.selected != nil {
		c.syncChart(c.selected.BoundaryName)
	}
}

func (c *Controller) rebuildBase() {
	c.base = BuildYieldLayer(c.store.Query(c.filter), c.opacity)
	c.applyHighlight(c.base)
}

// layers returns every shape layer currently on the map.
func (c *Controller) layers() []*mapview.Layer {
	out := []*mapview.Layer{c.base}
	if ov := c.ndvi.Overlay(); ov != nil {
		out = append(out, ov.Layer)
	}
	return out
}

func (c *Controller) seen() {
	c.touched = c.now()
}

// interaction reports an event to the tracker. Track does not block, so it
// is safe to call with the lock held.
func (c *Controller) interaction(action, details string) {
	metrics.Interactions.WithLabelValues(action).Inc()
	if c.tracker == nil {
		return
	}
	c.tracker.Track(analytics.Interaction{
		Action:           action,
		Details:          details,
		Timestamp:        c.now(),
		UserAgent:        c.client.UserAgent,
		ScreenResolution: analytics.Resolution(c.client.ScreenWidth, c.client.ScreenHeight),
		MapZoom:          c.viewport.Zoom,
		MapCenter:        c.viewport.Center,
	})
}

func (c *Controller) recordBuild(ov *ndvi.Overlay) {
	metrics.NDVIBuilds.Inc()
	if ov.Skipped > 0 {
		metrics.NDVISkipped.Add(float64(ov.Skipped))
	}
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	SessionID  string
	Base       *geojson.FeatureCollection
	NDVI       *geojson.FeatureCollection
	NDVIState  ndvi.State
	NDVIDate   string
	Viewport   mapview.Viewport
	Opacity    float64
	InfoPanel  bool
	Fullscreen bool
	Filter     dataset.Filter
	Selected   *dataset.Record
	Stats      *RegionStatistics
	Chart      *ChartData
}

// View returns the current state. Nested values are copies.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:  c.id,
		Base:       c.base.FeatureCollection(),
		NDVIState:  c.ndvi.State(),
		NDVIDate:   c.ndvi.Date(),
		Viewport:   c.viewport,
		Opacity:    c.opacity,
		InfoPanel:  c.infoPanel,
		Fullscreen: c.fullscreen,
		Filter:     c.filter,
	}
	if ov := c.ndvi.Overlay(); ov != nil {
		v.NDVI = ov.Layer.FeatureCollection()
	}
	if c.selected != nil {
		sel := *c.selected
		v.Selected = &sel
	}
	if c.stats != nil {
		st := *c.stats
		v.Stats = &st
	}
	if c.chart != nil {
		v.Chart = c.chart.clone()
	}
	return v
}
