package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when no series has a value to plot.
var ErrNoData = errors.New("render: no data to plot")

// averageYear is the label used for the multi-year average pseudo-year.
const averageYear = 9999

// Series is one line of the yield chart. Nil values are gaps.
type Series struct {
	Label  string
	Values []*float64
	Color  string
}

// ChartOptions describes a yield chart.
type ChartOptions struct {
	Title  string
	Labels []int
	Series []Series
	Width  int
	Height int
}

// ChartPNG plots the series over the year labels and writes a PNG.
// Labels are placed in the order given.
func ChartPNG(w io.Writer, opts ChartOptions) error {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 400
	}

	ticks := make([]chart.Tick, len(opts.Labels))
	for i, year := range opts.Labels {
		label := strconv.Itoa(year)
		if year == averageYear {
			label = "Average"
		}
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}

	var series []chart.Series
	maxY := 0.0
	for _, s := range opts.Series {
		var xs, ys []float64
		for i, v := range s.Values {
			if v == nil || i >= len(opts.Labels) {
				continue
			}
			xs = append(xs, float64(i))
			ys = append(ys, *v)
			maxY = math.Max(maxY, *v)
		}
		if len(xs) == 0 {
			continue
		}
		c := drawing.ColorBlack
		if parsed, err := ParseColor(s.Color); err == nil {
			c = drawing.Color{R: parsed.R, G: parsed.G, B: parsed.B, A: parsed.A}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: c,
				StrokeWidth: 2,
				DotColor:    c,
				DotWidth:    4,
			},
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}
	if maxY == 0 {
		maxY = 1
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  width,
		Height: height,
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: drawing.ColorBlack,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: drawing.Color{R: 248, G: 249, B: 250, A: 255},
		},
		XAxis: chart.XAxis{
			Name:  "Year",
			Ticks: ticks,
			Range: &chart.ContinuousRange{
				Min: -0.5,
				Max: float64(len(opts.Labels)) - 0.5,
			},
		},
		YAxis: chart.YAxis{
			Name: "Yield (t/ha)",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: math.Ceil(maxY*1.1*10) / 10,
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
