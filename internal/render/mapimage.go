package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/joeblew999/plat-yieldgap/internal/mapview"
)

// ErrBadSize is returned for non-positive image sizes.
var ErrBadSize = errors.New("render: image size must be positive")

// MaxSize caps either image dimension.
const MaxSize = 4096

var (
	seaColor    = color.NRGBA{170, 211, 223, 255}
	bannerColor = color.NRGBA{255, 255, 255, 220}
	textColor   = color.NRGBA{33, 37, 41, 255}
)

// MapOptions describes a map rendition.
type MapOptions struct {
	Title    string
	Width    int
	Height   int
	Viewport mapview.Viewport
	// Layers are drawn in order, each shape filled then outlined with its style.
	Layers []*mapview.Layer
}

// MapPNG rasterizes the layers as seen through the viewport and writes a PNG.
func MapPNG(w io.Writer, opts MapOptions) error {
	img, err := Map(opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// Map rasterizes the layers as seen through the viewport.
func Map(opts MapOptions) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, ErrBadSize
	}
	width := min(opts.Width, MaxSize)
	height := min(opts.Height, MaxSize)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(seaColor), image.Point{}, draw.Src)

	p := opts.Viewport.Projector(width, height)
	for _, l := range opts.Layers {
		if l == nil {
			continue
		}
		for _, s := range l.Shapes {
			drawShape(img, p, s)
		}
	}

	if opts.Title != "" {
		drawBanner(img, opts.Title)
	}
	return img, nil
}

func drawShape(img *image.RGBA, p mapview.Projector, s mapview.Shape) {
	rings := projectRings(p, s.Geometry)
	if len(rings) == 0 {
		return
	}
	b := img.Bounds()

	if areal(s.Geometry) && s.Style.FillColor != "" && s.Style.FillOpacity > 0 {
		fill, err := ParseColor(s.Style.FillColor)
		if err != nil {
			log.Printf("[render] %s: %v", s.Name, err)
		} else {
			z := vector.NewRasterizer(b.Dx(), b.Dy())
			z.DrawOp = draw.Over
			for _, ring := range rings {
				pathRing(z, ring)
			}
			z.Draw(img, b, image.NewUniform(withOpacity(fill, s.Style.FillOpacity)), image.Point{})
		}
	}

	if s.Style.Weight > 0 && s.Style.Color != "" && s.Style.Opacity > 0 {
		stroke, err := ParseColor(s.Style.Color)
		if err != nil {
			log.Printf("[render] %s: %v", s.Name, err)
			return
		}
		z := vector.NewRasterizer(b.Dx(), b.Dy())
		z.DrawOp = draw.Over
		dashes := parseDashes(s.Style.DashArray)
		for _, ring := range rings {
			strokeLine(z, ring, float32(s.Style.Weight), dashes)
		}
		z.Draw(img, b, image.NewUniform(withOpacity(stroke, s.Style.Opacity)), image.Point{})
	}
}

// areal reports whether g has an interior to fill.
func areal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.LineString, orb.MultiLineString:
		return false
	}
	return true
}

type pt struct{ x, y float32 }

// projectRings flattens a geometry into pixel-space rings.
func projectRings(p mapview.Projector, g orb.Geometry) [][]pt {
	var rings [][]pt
	line := func(ls []orb.Point) {
		ring := make([]pt, 0, len(ls))
		for _, q := range ls {
			x, y := p.Pixel(q)
			ring = append(ring, pt{float32(x), float32(y)})
		}
		if len(ring) > 1 {
			rings = append(rings, ring)
		}
	}

	var walk func(g orb.Geometry)
	walk = func(g orb.Geometry) {
		switch g := g.(type) {
		case orb.Polygon:
			for _, r := range g {
				line(r)
			}
		case orb.MultiPolygon:
			for _, poly := range g {
				walk(poly)
			}
		case orb.Ring:
			line(g)
		case orb.LineString:
			line(g)
		case orb.MultiLineString:
			for _, ls := range g {
				line(ls)
			}
		case orb.Point:
			x, y := p.Pixel(g)
			const r = 3
			rings = append(rings, []pt{
				{float32(x - r), float32(y - r)}, {float32(x + r), float32(y - r)},
				{float32(x + r), float32(y + r)}, {float32(x - r), float32(y + r)},
			})
		case orb.MultiPoint:
			for _, q := range g {
				walk(q)
			}
		case orb.Collection:
			for _, sub := range g {
				walk(sub)
			}
		case orb.Bound:
			walk(g.ToPolygon())
		}
	}
	walk(g)
	return rings
}

func pathRing(z *vector.Rasterizer, ring []pt) {
	z.MoveTo(ring[0].x, ring[0].y)
	for _, q := range ring[1:] {
		z.LineTo(q.x, q.y)
	}
	z.ClosePath()
}

// parseDashes reads a dash array like "5, 5". Nil means solid.
func parseDashes(s string) []float32 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []float32
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil || v < 0 {
			return nil
		}
		out = append(out, float32(v))
	}
	if len(out)%2 == 1 {
		// An odd list repeats, as in SVG.
		out = append(out, out...)
	}
	var total float32
	for _, v := range out {
		total += v
	}
	if total == 0 {
		return nil
	}
	return out
}

// strokeLine adds quads covering the polyline at the given width, skipping
// the gaps of the dash pattern.
func strokeLine(z *vector.Rasterizer, line []pt, width float32, dashes []float32) {
	half := width / 2
	dash, left, on := 0, float32(0), true
	if len(dashes) > 0 {
		left = dashes[0]
	}

	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		dx, dy := b.x-a.x, b.y-a.y
		length := float32(math.Hypot(float64(dx), float64(dy)))
		if length == 0 {
			continue
		}
		if len(dashes) == 0 {
			quad(z, a, b, half)
			continue
		}

		var pos float32
		for pos < length {
			step := min(left, length-pos)
			if on {
				t0, t1 := pos/length, (pos+step)/length
				quad(z, pt{a.x + dx*t0, a.y + dy*t0}, pt{a.x + dx*t1, a.y + dy*t1}, half)
			}
			pos += step
			left -= step
			if left <= 0 {
				dash = (dash + 1) % len(dashes)
				left = dashes[dash]
				on = !on
			}
		}
	}
}

func quad(z *vector.Rasterizer, a, b pt, half float32) {
	dx, dy := b.x-a.x, b.y-a.y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*half, dx/length*half
	z.MoveTo(a.x+nx, a.y+ny)
	z.LineTo(b.x+nx, b.y+ny)
	z.LineTo(b.x-nx, b.y-ny)
	z.LineTo(a.x-nx, a.y-ny)
	z.ClosePath()
}

func drawBanner(img *image.RGBA, title string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, title).Ceil()
	height := face.Metrics().Height.Ceil() + 8

	banner := image.Rect(0, 0, min(textWidth+16, img.Bounds().Dx()), height)
	draw.Draw(img, banner, image.NewUniform(bannerColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(8, 4+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(title)
}
