package dashboard

import (
	"slices"

	"github.com/joeblew999/plat-yieldgap/internal/dataset"
)

// Chart series colors.
const (
	ActualColor    = "rgba(102, 126, 234, 1)"
	ActualFill     = "rgba(102, 126, 234, 0.8)"
	PotentialColor = "rgba(118, 75, 162, 1)"
	PotentialFill  = "rgba(118, 75, 162, 0.8)"
)

// ChartDataset is one series in Chart.js shape.
type ChartDataset struct {
	Label           string     `json:"label"`
	Data            []*float64 `json:"data"`
	BackgroundColor string     `json:"backgroundColor"`
	BorderColor     string     `json:"borderColor"`
	BorderWidth     int        `json:"borderWidth"`
}

// ChartData is the yield chart's content. Revision grows on every redraw.
type ChartData struct {
	Region   string         `json:"region"`
	Labels   []int          `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
	Revision int            `json:"revision"`
}

func (d *ChartData) clone() *ChartData {
	out := *d
	out.Labels = slices.Clone(d.Labels)
	out.Datasets = make([]ChartDataset, len(d.Datasets))
	for i, ds := range d.Datasets {
		ds.Data = slices.Clone(ds.Data)
		out.Datasets[i] = ds
	}
	return &out
}

// RegionSeries extracts years with actual and potential yields from one
// region's records, in dataset order.
func RegionSeries(records []dataset.Record) (years []int, actual, potential []*float64) {
	for _, r := range records {
		years = append(years, r.Year)
		actual = append(actual, r.ActualYield)
		potential = append(potential, r.PotentialYield)
	}
	return years, actual, potential
}

// InitChart marks the browser chart as ready. Until then selections do not
// touch the chart. If a region is already selected its series are loaded.
func (c *Controller) InitChart() *ChartData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chart == nil {
		c.chart = &ChartData{}
		if c.selected != nil {
			c.syncChart(c.selected.BoundaryName)
		}
	}
	return c.chart.clone()
}

// Chart returns the chart data, or nil before InitChart.
func (c *Controller) Chart() *ChartData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chart == nil {
		return nil
	}
	return c.chart.clone()
}

// syncChart replaces the chart series with the region's records.
func (c *Controller) syncChart(region string) {
	if c.chart == nil {
		return
	}
	years, actual, potential := RegionSeries(c.store.ByRegion(region))
	c.chart.Region = region
	c.chart.Labels = years
	c.chart.Datasets = []ChartDataset{
		{Label: "Actual Yield", Data: actual, BackgroundColor: ActualFill, BorderColor: ActualColor, BorderWidth: 1},
		{Label: "Potential Yield", Data: potential, BackgroundColor: PotentialFill, BorderColor: PotentialColor, BorderWidth: 1},
	}
	c.chart.Revision++
}
