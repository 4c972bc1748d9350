// Package ndvi holds the vegetation-index overlay: value classification,
// the synthetic sample set and the overlay layer state machine.
package ndvi

import "math"

// Status is the vegetation band a value falls into.
type Status string

const (
	StatusBareSoil  Status = "Bare soil/Water"
	StatusSparse    Status = "Sparse vegetation"
	StatusModerate  Status = "Moderate vegetation"
	StatusDense     Status = "Dense vegetation"
	StatusVeryDense Status = "Very dense vegetation"
)

// Statuses lists the bands from lowest to highest.
var Statuses = []Status{StatusBareSoil, StatusSparse, StatusModerate, StatusDense, StatusVeryDense}

// Palette is the red-to-green NDVI color scale.
var Palette = [8]string{
	"#8B0000", // dark red, low vegetation
	"#FF0000",
	"#FFA500",
	"#FFFF00",
	"#ADFF2F",
	"#00FF00",
	"#008000",
	"#006400", // forest green, high vegetation
}

// StatusFor returns the band for v. Thresholds are inclusive on the low side.
func StatusFor(v float64) Status {
	switch {
	case v < 0.2:
		return StatusBareSoil
	case v < 0.4:
		return StatusSparse
	case v < 0.6:
		return StatusModerate
	case v < 0.8:
		return StatusDense
	default:
		return StatusVeryDense
	}
}

// ColorIndex buckets v linearly into the palette: floor(v*7) clamped to [0,7].
func ColorIndex(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	idx := math.Floor(v * float64(len(Palette)-1))
	if idx < 0 {
		return 0
	}
	if idx > float64(len(Palette)-1) {
		return len(Palette) - 1
	}
	return int(idx)
}

// ColorFor returns the palette color for v.
func ColorFor(v float64) string {
	return Palette[ColorIndex(v)]
}

// Sample is one classified NDVI reading for a region.
type Sample struct {
	Value  float64 `json:"value" yaml:"value" doc:"NDVI value" example:"0.654"`
	Status Status  `json:"status" yaml:"status" doc:"Vegetation band" example:"Dense vegetation"`
	Color  string  `json:"color" yaml:"color" doc:"Palette color (CSS)" example:"#00FF00"`
}

// Classify builds a Sample from a raw value.
func Classify(v float64) Sample {
	return Sample{Value: v, Status: StatusFor(v), Color: ColorFor(v)}
}

// LegendEntry is one row of a map legend.
type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend lists each band with the color of its midpoint.
func Legend() []LegendEntry {
	out := make([]LegendEntry, len(Statuses))
	for i, s := range Statuses {
		mid := 0.2*float64(i) + 0.1
		out[i] = LegendEntry{Color: ColorFor(mid), Label: string(s)}
	}
	return out
}
