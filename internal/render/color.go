// Package render draws PNG renditions of the dashboard: the map view with its
// styled shapes, and the per-region yield chart.
package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var named = map[string]color.NRGBA{
	"white": {255, 255, 255, 255},
	"black": {0, 0, 0, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
}

// ParseColor reads the CSS color forms the dashboard uses: names, #rgb,
// #rrggbb, rgb(r, g, b) and rgba(r, g, b, a).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c, nil
	}

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.NRGBA{}, fmt.Errorf("bad color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("bad color %q: %w", s, err)
		}
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}

	var args string
	if rest, ok := strings.CutPrefix(s, "rgba("); ok {
		args = rest
	} else if rest, ok := strings.CutPrefix(s, "rgb("); ok {
		args = rest
	} else {
		return color.NRGBA{}, fmt.Errorf("bad color %q", s)
	}
	parts := strings.Split(strings.TrimSuffix(args, ")"), ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("bad color %q", s)
	}

	var ch [4]uint8
	ch[3] = 255
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("bad color %q: %w", s, err)
		}
		if i == 3 {
			f *= 255
		}
		ch[i] = clampByte(f)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// withOpacity scales the alpha of c by o in [0,1].
func withOpacity(c color.NRGBA, o float64) color.NRGBA {
	c.A = clampByte(float64(c.A) * o)
	return c
}

func clampByte(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}
