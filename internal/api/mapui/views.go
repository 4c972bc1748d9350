package mapui

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/humastar"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

// Title of the dashboard page.
const Title = "Morocco Yield Gap Dashboard"

// NDVIControls feeds the ndvi-controls fragment.
type NDVIControls struct {
	Visible bool
	Date    string
	Options template.HTML
	Legend  []ndvi.LegendEntry
}

// InfoPanel feeds the info-panel fragment.
type InfoPanel struct {
	SessionID string
	Open      bool
	Stats     *dashboard.RegionStatistics
	Record    *dataset.Record
}

// PageData feeds the page template.
type PageData struct {
	Title       string
	Signals     string
	CropOptions template.HTML
	YearOptions template.HTML
	NDVI        NDVIControls
	Legend      []ndvi.LegendEntry
	Info        InfoPanel
}

// layersEvent replaces the map layers in the browser. A nil NDVI removes the overlay.
type layersEvent struct {
	Base    *geojson.FeatureCollection `json:"base"`
	NDVI    *geojson.FeatureCollection `json:"ndvi"`
	Opacity float64                    `json:"opacity"`
}

type fullscreenEvent struct {
	On bool `json:"on"`
}

// downloadEvent hands a generated file to the browser, base64 encoded.
type downloadEvent struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

func (h *Handler) ndviControls(v dashboard.View) (NDVIControls, error) {
	opts := make([]humastar.SelectOptionData, len(ndvi.Periods))
	for i, p := range ndvi.Periods {
		opts[i] = humastar.SelectOptionData{Value: p.Date, Label: p.Label, Selected: p.Date == v.NDVIDate}
	}
	options, err := h.RenderSelect("", opts)
	if err != nil {
		return NDVIControls{}, fmt.Errorf("ndvi date options: %w", err)
	}
	return NDVIControls{
		Visible: v.NDVIState == ndvi.Visible,
		Date:    v.NDVIDate,
		Options: options,
		Legend:  ndvi.Legend(),
	}, nil
}

// filterOptions renders the crop and year choices of the filter bar.
func (h *Handler) filterOptions(f dataset.Filter) (crops, years template.HTML, err error) {
	var opts []humastar.SelectOptionData
	for _, c := range h.store.Crops() {
		opts = append(opts, humastar.SelectOptionData{Value: c, Label: c, Selected: c == f.Crop})
	}
	if crops, err = h.RenderSelect("All crops", opts); err != nil {
		return "", "", fmt.Errorf("crop options: %w", err)
	}

	opts = []humastar.SelectOptionData{{Value: "0", Label: "All years", Selected: f.Year == 0}}
	for _, y := range h.store.Years() {
		label := strconv.Itoa(y)
		if y == dataset.AverageYear {
			label = "Average"
		}
		opts = append(opts, humastar.SelectOptionData{Value: strconv.Itoa(y), Label: label, Selected: y == f.Year})
	}
	if years, err = h.RenderSelect("", opts); err != nil {
		return "", "", fmt.Errorf("year options: %w", err)
	}
	return crops, years, nil
}

func infoPanel(v dashboard.View) InfoPanel {
	return InfoPanel{SessionID: v.SessionID, Open: v.InfoPanel, Stats: v.Stats, Record: v.Selected}
}

func layers(v dashboard.View) layersEvent {
	return layersEvent{Base: v.Base, NDVI: v.NDVI, Opacity: v.Opacity}
}

func download(d dashboard.Download) downloadEvent {
	return downloadEvent{
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Data:        base64.StdEncoding.EncodeToString(d.Data),
	}
}

// initialSignals are the page's data-signals. Names are lowercase because
// data-bind attribute keys are.
func initialSignals(v dashboard.View) string {
	b, _ := json.Marshal(map[string]any{
		"sid":        v.SessionID,
		"region":     "",
		"ndvidate":   v.NDVIDate,
		"opacity":    v.Opacity,
		"crop":       v.Filter.Crop,
		"year":       v.Filter.Year,
		"key":        "",
		"ctrl":       false,
		"tx":         0,
		"ty":         0,
		"zoom":       v.Viewport.Zoom,
		"lat":        v.Viewport.Center.Lat,
		"lng":        v.Viewport.Center.Lng,
		"width":      0,
		"height":     0,
		"screenw":    0,
		"screenh":    0,
		"exportkind": "",
		"error":      "",
		"success":    "",
	})
	return string(b)
}

func (h *Handler) renderControls(sse humastar.SSE, v dashboard.View) {
	ctl, err := h.ndviControls(v)
	if err != nil {
		log.Printf("[mapui] render ndvi controls: %v", err)
		sse.Error("Failed to render NDVI controls")
		return
	}
	sse.Replace(h.Renderer.MustRender("ndvi-controls", ctl), "#ndvi-controls")
}

func (h *Handler) renderPanel(sse humastar.SSE, v dashboard.View) {
	sse.Replace(h.Renderer.MustRender("info-panel", infoPanel(v)), "#info-panel")
}
