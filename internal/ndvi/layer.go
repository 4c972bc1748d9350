package ndvi

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
)

// LayerID identifies the overlay among map layers.
const LayerID = "ndvi"

// FillOpacity is the fixed fill opacity of overlay shapes.
const FillOpacity = 0.7

var popupTmpl = template.Must(template.New("ndvi-popup").Parse(
	`<div class="ndvi-popup" style="min-width: 200px;">` +
		`<h4>{{.Region}}</h4>` +
		`<div class="ndvi-popup-grid">` +
		`<div><strong>NDVI Value:</strong> {{printf "%.3f" .Value}}</div>` +
		`<div><strong>Status:</strong> {{.Status}}</div>` +
		`<div><strong>Date:</strong> {{.Date}}</div>` +
		`<div><strong>Crop:</strong> {{.Crop}}</div>` +
		`</div></div>`))

type popupData struct {
	Region string
	Value  float64
	Status Status
	Date   string
	Crop   string
}

// Overlay is a built NDVI layer for one date.
type Overlay struct {
	Date  string
	Layer *mapview.Layer
	// Skipped counts records dropped because their geometry failed to parse.
	Skipped int
}

// Build creates the overlay for date. Records without geometry or without a
// sample are left out; records whose geometry fails to parse are logged and
// left out without stopping the build.
func Build(records []dataset.Record, samples map[string]Sample, date string) *Overlay {
	ov := &Overlay{Date: date, Layer: &mapview.Layer{ID: LayerID}}

	for _, rec := range records {
		if !rec.HasGeometry() {
			continue
		}
		sample, ok := samples[rec.BoundaryName]
		if !ok {
			continue
		}

		geom, err := mapview.ParseGeometry(rec.Geometry)
		if err != nil {
			log.Printf("[ndvi] error parsing geometry for %s: %v", rec.BoundaryName, err)
			ov.Skipped++
			continue
		}

		popup, err := renderPopup(popupData{
			Region: rec.BoundaryName,
			Value:  sample.Value,
			Status: sample.Status,
			Date:   date,
			Crop:   rec.CropName,
		})
		if err != nil {
			log.Printf("[ndvi] error rendering popup for %s: %v", rec.BoundaryName, err)
		}

		ov.Layer.Shapes = append(ov.Layer.Shapes, mapview.Shape{
			Name:     rec.BoundaryName,
			Geometry: geom,
			Style: mapview.Style{
				FillColor:   sample.Color,
				FillOpacity: FillOpacity,
				Color:       "white",
				Weight:      2,
				Opacity:     1,
			},
			Popup: popup,
			Properties: map[string]any{
				"ndvi":   sample.Value,
				"status": string(sample.Status),
				"date":   date,
				"crop":   rec.CropName,
			},
		})
	}
	return ov
}

func renderPopup(d popupData) (string, error) {
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("popup: %w", err)
	}
	return buf.String(), nil
}

// State is the overlay visibility.
type State int

const (
	Hidden State = iota
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// LayerManager owns the overlay currently on the map. It starts Hidden and
// toggles indefinitely. It is not safe for concurrent use; callers serialize.
type LayerManager struct {
	samples SampleSet
	date    string
	current *Overlay
}

// NewLayerManager creates a hidden manager on DefaultDate.
func NewLayerManager(samples SampleSet) *LayerManager {
	return &LayerManager{samples: samples, date: DefaultDate}
}

// State reports whether the overlay is shown.
func (m *LayerManager) State() State {
	if m.current != nil {
		return Visible
	}
	return Hidden
}

// Date returns the selected date.
func (m *LayerManager) Date() string {
	return m.date
}

// Samples returns the sample set the manager draws from.
func (m *LayerManager) Samples() SampleSet {
	return m.samples
}

// Overlay returns the visible overlay, or nil when hidden.
func (m *LayerManager) Overlay() *Overlay {
	return m.current
}

// Toggle shows the overlay for the selected date, or discards it.
// It returns the resulting state.
func (m *LayerManager) Toggle(records []dataset.Record) State {
	if m.current != nil {
		m.Hide()
	} else {
		m.Show(records)
	}
	return m.State()
}

// Show builds the overlay for the selected date. It is a no-op when the
// sample set has nothing for that date.
func (m *LayerManager) Show(records []dataset.Record) *Overlay {
	samples := m.samples.ForDate(m.date)
	if samples == nil {
		return nil
	}
	m.current = Build(records, samples, m.date)
	return m.current
}

// Hide discards the overlay.
func (m *LayerManager) Hide() {
	m.current = nil
}

// ChangeDate selects a new date. While visible the overlay is rebuilt for the
// new date and swapped in only once complete.
func (m *LayerManager) ChangeDate(date string, records []dataset.Record) error {
	if !ValidDate(date) {
		return fmt.Errorf("%w: %s", ErrUnknownDate, date)
	}
	m.date = date
	if m.current == nil {
		return nil
	}

	samples := m.samples.ForDate(date)
	if samples == nil {
		m.current = nil
		return nil
	}
	m.current = Build(records, samples, date)
	return nil
}

// Refresh rebuilds a visible overlay, e.g. after the records were reloaded.
func (m *LayerManager) Refresh(records []dataset.Record) {
	if m.current != nil {
		m.Show(records)
	}
}
