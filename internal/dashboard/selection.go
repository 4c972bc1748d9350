package dashboard

import (
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
)

// timestampLayout is ISO-8601 in UTC with milliseconds, as browsers print it.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// RegionStatistics is the snapshot taken when a region is selected.
type RegionStatistics struct {
	Name            string   `json:"name" doc:"Region name" example:"Souss-Massa"`
	Crop            string   `json:"crop" doc:"Crop" example:"Wheat"`
	Year            int      `json:"year" doc:"Year" example:"2023"`
	ActualYield     *float64 `json:"actualYield" doc:"Actual yield (t/ha)" example:"2.1"`
	PotentialYield  *float64 `json:"potentialYield" doc:"Potential yield (t/ha)" example:"4"`
	YieldGap        *float64 `json:"yieldGap" doc:"Yield gap (t/ha)" example:"1.9"`
	YieldGapPercent *float64 `json:"yieldGapPercent" doc:"Yield gap (%)" example:"47.5"`
	Timestamp       string   `json:"timestamp" doc:"When the region was selected (ISO-8601, UTC)" example:"2024-03-01T10:00:00.000Z"`
}

func (c *Controller) snapshot(r dataset.Record) *RegionStatistics {
	st := &RegionStatistics{
		Name:           r.BoundaryName,
		Crop:           r.CropName,
		Year:           r.Year,
		ActualYield:    r.ActualYield,
		PotentialYield: r.PotentialYield,
		Timestamp:      c.now().UTC().Format(timestampLayout),
	}
	if gap, ok := r.Gap(); ok {
		st.YieldGap = dataset.Float(gap)
	}
	if pct, ok := r.GapPercent(); ok {
		st.YieldGapPercent = dataset.Float(pct)
	}
	return st
}

// SelectRegion handles a click on a region: it replaces the selection,
// restyles every shape and highlights those bound to the same name, takes the
// statistics snapshot, syncs the chart, shows the info panel and logs the click.
func (c *Controller) SelectRegion(r dataset.Record) *RegionStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()

	rec := r
	c.selected = &rec
	for _, l := range c.layers() {
		c.applyHighlight(l)
	}
	c.stats = c.snapshot(rec)
	c.syncChart(rec.BoundaryName)
	c.infoPanel = true
	c.interaction("region_click", rec.BoundaryName)

	st := *c.stats
	return &st
}

// Selected returns the selected record.
func (c *Controller) Selected() (dataset.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return dataset.Record{}, false
	}
	return *c.selected, true
}

// Statistics returns the latest snapshot, or nil before the first selection.
func (c *Controller) Statistics() *RegionStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		return nil
	}
	st := *c.stats
	return &st
}

// applyHighlight resets every shape of l to the default outline and
// highlights the shapes named like the selection. Without a selection the
// layer is left alone.
func (c *Controller) applyHighlight(l *mapview.Layer) {
	if c.selected == nil {
		return
	}
	name := c.selected.BoundaryName
	l.Restyle(func(s *mapview.Shape) {
		if s.Name == name {
			s.Style = s.Style.Outline(mapview.HighlightedOutline)
		} else {
			s.Style = s.Style.Outline(mapview.DefaultOutline)
		}
	})
}
