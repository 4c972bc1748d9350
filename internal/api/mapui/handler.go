// Package mapui contains the Datastar SSE handlers behind the dashboard page.
// The browser forwards UI events with its signals; handlers run them through
// the session's dashboard.Controller and stream back fragments, signals and
// yieldgap:* DOM events for the map and chart script.
package mapui

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/humastar"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/metrics"
	"github.com/joeblew999/plat-yieldgap/internal/templates"
)

// Keeper archives generated exports.
type Keeper interface {
	Keep(ctx context.Context, session string, d dashboard.Download)
}

// Handler serves the dashboard page and its SSE endpoints.
type Handler struct {
	humastar.Handler
	sessions *dashboard.Registry
	store    *dataset.Store
	bus      *dashboard.EventBus
	keeper   Keeper
}

// NewHandler creates the dashboard handler. keeper may be nil.
func NewHandler(sessions *dashboard.Registry, store *dataset.Store, bus *dashboard.EventBus, keeper Keeper, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		store:    store,
		bus:      bus,
		keeper:   keeper,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("dashboard")
	huma.Get(api, "/api/v1/dashboard/init", h.Init, tags)
	huma.Get(api, "/api/v1/dashboard/events", h.Events, tags)
	huma.Post(api, "/api/v1/dashboard/select", h.Select, tags)
	huma.Post(api, "/api/v1/dashboard/panel/hide", h.HidePanel, tags)
	huma.Post(api, "/api/v1/dashboard/ndvi/toggle", h.ToggleNDVI, tags)
	huma.Post(api, "/api/v1/dashboard/ndvi/date", h.ChangeNDVIDate, tags)
	huma.Post(api, "/api/v1/dashboard/keys", h.Keys, tags)
	huma.Post(api, "/api/v1/dashboard/touch/start", h.TouchStart, tags)
	huma.Post(api, "/api/v1/dashboard/touch/end", h.TouchEnd, tags)
	huma.Post(api, "/api/v1/dashboard/controls/recenter", h.Recenter, tags)
	huma.Post(api, "/api/v1/dashboard/controls/fullscreen", h.Fullscreen, tags)
	huma.Post(api, "/api/v1/dashboard/controls/opacity", h.Opacity, tags)
	huma.Post(api, "/api/v1/dashboard/viewport", h.Viewport, tags)
	huma.Post(api, "/api/v1/dashboard/filter", h.Filter, tags)
	huma.Post(api, "/api/v1/dashboard/refresh", h.Refresh, tags)
	huma.Post(api, "/api/v1/dashboard/export", h.Export, tags)
}

// Page renders the dashboard for a new session.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	c := h.sessions.Create()
	metrics.Sessions.Set(float64(h.sessions.Len()))
	v := c.View()

	crops, years, err := h.filterOptions(v.Filter)
	if err != nil {
		log.Printf("[mapui] render page: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	ctl, err := h.ndviControls(v)
	if err != nil {
		log.Printf("[mapui] render page: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	html, err := h.Renderer.Render("page", PageData{
		Title:       Title,
		Signals:     initialSignals(v),
		CropOptions: crops,
		YearOptions: years,
		NDVI:        ctl,
		Legend:      dashboard.YieldLegend(),
		Info:        infoPanel(v),
	})
	if err != nil {
		log.Printf("[mapui] render page: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// session returns the controller named by the sid signal. Unknown or
// malformed ids get a session, and the browser is told the new id.
func (h *Handler) session(sse humastar.SSE, signals humastar.Signals) *dashboard.Controller {
	sid := signals.String("sid")
	c := h.sessions.Ensure(sid)
	if c.ID() != sid {
		sse.Signals(map[string]any{"sid": c.ID()})
	}
	metrics.Sessions.Set(float64(h.sessions.Len()))
	return c
}

// InitInput carries GET signals and the browser's user agent.
type InitInput struct {
	humastar.QueryInput
	UserAgent string `header:"User-Agent"`
}

// Init paints session state into a freshly loaded page: the map layers, the
// chart, the viewport and the NDVI controls.
func (h *Handler) Init(ctx context.Context, input *InitInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		c.SetClient(dashboard.Client{
			UserAgent:    input.UserAgent,
			ScreenWidth:  signals.Int("screenw"),
			ScreenHeight: signals.Int("screenh"),
		})
		if w, hgt := signals.Int("width"), signals.Int("height"); w > 0 && hgt > 0 {
			c.SetViewport(c.View().Viewport, w, hgt)
		}
		c.InitChart()

		v := c.View()
		h.renderControls(sse, v)
		h.renderPanel(sse, v)
		sse.Event("layers", layers(v))
		sse.Event("viewport", v.Viewport)
		sse.Event("chart", v.Chart)
	}), nil
}

// Events streams re-renders triggered by other sessions, such as a dataset
// refresh, until the browser disconnects.
func (h *Handler) Events(ctx context.Context, input *humastar.QueryInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		for ev := range h.bus.Subscribe(ctx) {
			if ev.Source == c.ID() {
				continue
			}
			switch ev.Kind {
			case dashboard.EventDatasetReloaded:
				v := c.View()
				sse.Event("layers", layers(v))
				if v.Chart != nil {
					sse.Event("chart", v.Chart)
				}
				sse.Event("dataset", map[string]any{"records": h.store.Len()})
			}
		}
	}), nil
}

// Select handles a click on a map region. The region signal holds the
// clicked record's id.
func (h *Handler) Select(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		rec, ok := h.store.Get(signals.Int("region"))
		if !ok {
			sse.Error("Unknown region")
			return
		}
		c.SelectRegion(rec)

		v := c.View()
		h.renderPanel(sse, v)
		sse.Event("layers", layers(v))
		if v.Chart != nil {
			sse.Event("chart", v.Chart)
		}
	}), nil
}

func (h *Handler) HidePanel(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		c.HidePanel()
		h.renderPanel(sse, c.View())
	}), nil
}

func (h *Handler) ToggleNDVI(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		c.ToggleNDVI()
		h.renderNDVI(sse, c.View())
	}), nil
}

func (h *Handler) ChangeNDVIDate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		if err := c.ChangeNDVIDate(signals.String("ndvidate")); err != nil {
			sse.Alert("Unknown NDVI date")
			_, date := c.NDVI()
			sse.Signals(map[string]any{"ndvidate": date})
			return
		}
		h.renderNDVI(sse, c.View())
	}), nil
}

func (h *Handler) renderNDVI(sse humastar.SSE, v dashboard.View) {
	h.renderControls(sse, v)
	sse.Event("layers", layers(v))
}

// Keys runs a keyboard shortcut from the key and ctrl signals.
func (h *Handler) Keys(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	ev := dashboard.KeyEvent{Key: signals.String("key"), Ctrl: signals.Bool("ctrl")}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		cmd, err := c.HandleKey(ctx, ev)

		switch cmd {
		case dashboard.CommandHidePanel:
			h.renderPanel(sse, c.View())
		case dashboard.CommandRefresh:
			h.afterRefresh(sse, c, err)
		case dashboard.CommandExport:
			d, err := c.ExportCSV()
			h.sendDownload(ctx, sse, c, d, err)
		case dashboard.CommandFullscreen:
			sse.Event("fullscreen", fullscreenEvent{On: c.View().Fullscreen})
		case dashboard.CommandToggleNDVI:
			h.renderNDVI(sse, c.View())
		}
	}), nil
}

func (h *Handler) TouchStart(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	x, _ := signals.Float("tx")
	y, _ := signals.Float("ty")
	return h.Stream(func(sse humastar.SSE) {
		h.session(sse, signals).TouchStart(x, y)
	}), nil
}

// TouchEnd closes the info panel on a left swipe.
func (h *Handler) TouchEnd(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	x, _ := signals.Float("tx")
	y, _ := signals.Float("ty")
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		if c.TouchEnd(x, y) {
			h.renderPanel(sse, c.View())
		}
	}), nil
}

func (h *Handler) Recenter(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Event("viewport", h.session(sse, signals).Recenter())
	}), nil
}

func (h *Handler) Fullscreen(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Event("fullscreen", fullscreenEvent{On: h.session(sse, signals).ToggleFullscreen()})
	}), nil
}

func (h *Handler) Opacity(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	v, ok := signals.Float("opacity")
	if !ok {
		return nil, huma.Error400BadRequest("opacity must be a number")
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		applied := c.SetOpacity(v)
		sse.Signals(map[string]any{"opacity": applied})
		sse.Event("layers", layers(c.View()))
	}), nil
}

// Viewport records the map view after the user pans, zooms or resizes.
func (h *Handler) Viewport(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	zoom, _ := signals.Float("zoom")
	lat, _ := signals.Float("lat")
	lng, _ := signals.Float("lng")
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		c.SetScreen(signals.Int("screenw"), signals.Int("screenh"))
		c.SetViewport(
			mapview.Viewport{Zoom: zoom, Center: mapview.LatLng{Lat: lat, Lng: lng}},
			signals.Int("width"), signals.Int("height"),
		)
	}), nil
}

func (h *Handler) Filter(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	f := dataset.Filter{Crop: signals.String("crop"), Year: signals.Int("year")}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		c.SetFilter(f)
		sse.Event("layers", layers(c.View()))
	}), nil
}

// Refresh reloads the shared dataset and re-renders every session.
func (h *Handler) Refresh(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)
		h.afterRefresh(sse, c, c.Refresh(ctx))
	}), nil
}

func (h *Handler) afterRefresh(sse humastar.SSE, c *dashboard.Controller, err error) {
	if err != nil {
		sse.Error("Failed to refresh data")
		return
	}
	metrics.Records.Set(float64(h.store.Len()))
	h.sessions.Each(func(other *dashboard.Controller) {
		if other != c {
			other.Rebuild()
		}
	})
	h.bus.Publish(dashboard.Event{Kind: dashboard.EventDatasetReloaded, Source: c.ID()})

	v := c.View()
	sse.Event("layers", layers(v))
	if v.Chart != nil {
		sse.Event("chart", v.Chart)
	}
	sse.Success("Data refreshed")
}

// Export generates the file named by the exportkind signal and hands it to
// the browser.
func (h *Handler) Export(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	kind := signals.String("exportkind")
	return h.Stream(func(sse humastar.SSE) {
		c := h.session(sse, signals)

		var d dashboard.Download
		var err error
		switch kind {
		case dashboard.ExportMap:
			d, err = c.ExportMapImage()
		case dashboard.ExportRegion:
			d, err = c.ExportRegionData()
		case dashboard.ExportNDVI:
			d, err = c.ExportNDVIData()
		case dashboard.ExportCSV:
			d, err = c.ExportCSV()
		default:
			sse.Error("Unknown export " + kind)
			return
		}
		h.sendDownload(ctx, sse, c, d, err)
	}), nil
}

func (h *Handler) sendDownload(ctx context.Context, sse humastar.SSE, c *dashboard.Controller, d dashboard.Download, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNoSelection), errors.Is(err, dashboard.ErrNoNDVIData):
		sse.Alert(err.Error())
		return
	case err != nil:
		log.Printf("[mapui] %s: export failed: %v", c.ID(), err)
		sse.Error("Export failed")
		return
	}
	if h.keeper != nil {
		h.keeper.Keep(ctx, c.ID(), d)
	}
	sse.Event("download", download(d))
}
