package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Style is a Leaflet path style.
type Style struct {
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	DashArray   string  `json:"dashArray,omitempty"`
}

// Outline sets the stroke part of a style and keeps the fill.
func (s Style) Outline(o Style) Style {
	s.Color = o.Color
	s.Weight = o.Weight
	s.Opacity = o.Opacity
	s.DashArray = o.DashArray
	return s
}

// Stroke styles applied by region selection.
var (
	DefaultOutline     = Style{Weight: 2, Opacity: 1, Color: "white", DashArray: "3"}
	HighlightedOutline = Style{Weight: 4, Opacity: 1, Color: "#ff6b6b", DashArray: "5, 5"}
)

// Shape is one rendered region: geometry, its bound feature name, style and popup.
type Shape struct {
	Name     string
	Geometry orb.Geometry
	Style    Style
	Popup    string
	// Properties are extra feature properties sent to the browser.
	Properties map[string]any
}

// Feature converts the shape to a GeoJSON feature carrying name, style and popup.
func (s Shape) Feature() *geojson.Feature {
	f := geojson.NewFeature(s.Geometry)
	for k, v := range s.Properties {
		f.Properties[k] = v
	}
	f.Properties["name"] = s.Name
	f.Properties["style"] = s.Style
	if s.Popup != "" {
		f.Properties["popup"] = s.Popup
	}
	return f
}

// Layer is an ordered group of shapes added to and removed from the map as a unit.
type Layer struct {
	ID     string
	Shapes []Shape
}

// Len returns the number of shapes.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Shapes)
}

// Restyle applies fn to every shape.
func (l *Layer) Restyle(fn func(*Shape)) {
	if l == nil {
		return
	}
	for i := range l.Shapes {
		fn(&l.Shapes[i])
	}
}

// SetFillOpacity updates the fill opacity of every shape.
func (l *Layer) SetFillOpacity(v float64) {
	l.Restyle(func(s *Shape) { s.Style.FillOpacity = v })
}

// FeatureCollection renders the layer for the browser.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if l == nil {
		return fc
	}
	for _, s := range l.Shapes {
		fc.Append(s.Feature())
	}
	return fc
}

// Clone returns a deep enough copy for read-only rendering outside a lock.
func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	out := &Layer{ID: l.ID, Shapes: make([]Shape, len(l.Shapes))}
	copy(out.Shapes, l.Shapes)
	return out
}
