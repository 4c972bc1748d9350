package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	tileSize    = 256
	earthCircum = 2 * math.Pi * 6378137
	maxZoom     = 18
)

// LatLng is a Leaflet-style coordinate.
type LatLng struct {
	Lat float64 `json:"lat" doc:"Latitude"`
	Lng float64 `json:"lng" doc:"Longitude"`
}

// Point converts to an orb point (lon, lat).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Viewport is the map's zoom and center.
type Viewport struct {
	Zoom   float64 `json:"zoom" doc:"Map zoom level"`
	Center LatLng  `json:"center" doc:"Map center"`
}

// MoroccoBounds is the recenter target: SW (27, -17), NE (36, -1).
var MoroccoBounds = orb.Bound{Min: orb.Point{-17, 27}, Max: orb.Point{-1, 36}}

// DefaultViewport is the initial map view.
var DefaultViewport = Viewport{Zoom: 6, Center: LatLng{Lat: 31.7917, Lng: -7.0926}}

// FitBounds returns the largest integer zoom at which b fits a width x height
// pixel map, centered on b.
func FitBounds(b orb.Bound, width, height int) Viewport {
	sw := project.WGS84.ToMercator(b.Min)
	ne := project.WGS84.ToMercator(b.Max)
	dx := math.Abs(ne[0] - sw[0])
	dy := math.Abs(ne[1] - sw[1])

	zoom := float64(maxZoom)
	if dx > 0 && dy > 0 && width > 0 && height > 0 {
		zx := math.Log2(float64(width) * earthCircum / (tileSize * dx))
		zy := math.Log2(float64(height) * earthCircum / (tileSize * dy))
		zoom = math.Floor(math.Min(zx, zy))
	}
	zoom = math.Max(0, math.Min(maxZoom, zoom))

	mid := orb.Point{(sw[0] + ne[0]) / 2, (sw[1] + ne[1]) / 2}
	c := project.Mercator.ToWGS84(mid)
	return Viewport{Zoom: zoom, Center: LatLng{Lat: c[1], Lng: c[0]}}
}

// Projector maps lon/lat to pixel coordinates of a width x height image
// showing the viewport.
type Projector struct {
	cx, cy float64
	res    float64
	width  int
	height int
}

// Projector returns a projector for an image of the given size.
func (v Viewport) Projector(width, height int) Projector {
	c := project.WGS84.ToMercator(v.Center.Point())
	return Projector{
		cx:     c[0],
		cy:     c[1],
		res:    earthCircum / (tileSize * math.Pow(2, v.Zoom)),
		width:  width,
		height: height,
	}
}

// Pixel returns the image x, y of a lon/lat point.
func (p Projector) Pixel(pt orb.Point) (float64, float64) {
	m := project.WGS84.ToMercator(pt)
	x := (m[0]-p.cx)/p.res + float64(p.width)/2
	y := float64(p.height)/2 - (m[1]-p.cy)/p.res
	return x, y
}
