package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

// YieldLayerID identifies the yield-gap base layer.
const YieldLayerID = "yield"

// NoDataColor fills regions without a yield gap.
const NoDataColor = "#cccccc"

// gapScale maps lower bounds of yield gap percent to fill colors, highest first.
var gapScale = []struct {
	min   float64
	color string
}{
	{60, "#800026"},
	{50, "#BD0026"},
	{40, "#E31A1C"},
	{30, "#FC4E2A"},
	{20, "#FD8D3C"},
	{10, "#FEB24C"},
	{0, "#FED976"},
}

// YieldColor returns the choropleth color for a record.
func YieldColor(r dataset.Record) string {
	pct, ok := r.GapPercent()
	if !ok {
		return NoDataColor
	}
	for _, step := range gapScale {
		if pct > step.min {
			return step.color
		}
	}
	return "#FFEDA0"
}

// YieldLegend lists the choropleth classes, highest first, then no data.
func YieldLegend() []ndvi.LegendEntry {
	out := make([]ndvi.LegendEntry, 0, len(gapScale)+2)
	upper := ""
	for _, step := range gapScale {
		label := fmt.Sprintf("> %g", step.min)
		if upper != "" {
			label = fmt.Sprintf("%g - %s", step.min, upper)
		}
		out = append(out, ndvi.LegendEntry{Color: step.color, Label: label})
		upper = fmt.Sprint(step.min)
	}
	return append(out,
		ndvi.LegendEntry{Color: "#FFEDA0", Label: "0 or less"},
		ndvi.LegendEntry{Color: NoDataColor, Label: "No data"},
	)
}

var yieldPopup = template.Must(template.New("yield-popup").Funcs(template.FuncMap{
	"num": func(p *float64, format string) string {
		if p == nil {
			return ""
		}
		return fmt.Sprintf(format, *p)
	},
}).Parse(
	`<div class="yield-popup"><h4>{{.BoundaryName}}</h4>` +
		`<div><strong>Crop:</strong> {{.CropName}}</div>` +
		`<div><strong>Year:</strong> {{if eq .Year 9999}}Average{{else}}{{.Year}}{{end}}</div>` +
		`{{if .ActualYield}}<div><strong>Actual Yield:</strong> {{num .ActualYield "%.2f"}} t/ha</div>{{end}}` +
		`{{if .PotentialYield}}<div><strong>Potential Yield:</strong> {{num .PotentialYield "%.2f"}} t/ha</div>{{end}}` +
		`{{if .YieldGapPct}}<div><strong>Yield Gap:</strong> {{num .YieldGapPct "%.1f"}}%</div>{{end}}` +
		`</div>`))

// BuildYieldLayer draws records as a choropleth of yield gap percent.
// Records without geometry are skipped; bad geometry is logged and skipped.
func BuildYieldLayer(records []dataset.Record, fillOpacity float64) *mapview.Layer {
	layer := &mapview.Layer{ID: YieldLayerID}
	for _, r := range records {
		if !r.HasGeometry() {
			continue
		}
		geom, err := mapview.ParseGeometry(r.Geometry)
		if err != nil {
			log.Printf("[dashboard] error parsing geometry for %s: %v", r.BoundaryName, err)
			continue
		}

		var buf bytes.Buffer
		if err := yieldPopup.Execute(&buf, r); err != nil {
			log.Printf("[dashboard] error rendering popup for %s: %v", r.BoundaryName, err)
		}

		props := map[string]any{
			"id":   r.ID,
			"crop": r.CropName,
			"year": r.Year,
		}
		layer.Shapes = append(layer.Shapes, mapview.Shape{
			Name:     r.BoundaryName,
			Geometry: geom,
			Style: mapview.Style{
				FillColor:   YieldColor(r),
				FillOpacity: fillOpacity,
			}.Outline(mapview.DefaultOutline),
			Popup:      buf.String(),
			Properties: props,
		})
	}
	return layer
}
