package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/metrics"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
	"github.com/joeblew999/plat-yieldgap/internal/render"
)

// MapImageName is the file name of the map export.
const MapImageName = "morocco-yield-map.png"

// Export kinds, also used as metric labels.
const (
	ExportMap    = "map"
	ExportRegion = "region"
	ExportNDVI   = "ndvi"
	ExportCSV    = "csv"
	ExportChart  = "chart"
)

// Download is a generated file.
type Download struct {
	Kind        string
	Filename    string
	ContentType string
	Data        []byte
}

// NDVIMetadata describes where NDVI samples come from.
type NDVIMetadata struct {
	Source         string `json:"source" doc:"Imagery source" example:"Sentinel-2"`
	Resolution     string `json:"resolution" doc:"Ground resolution" example:"10m"`
	ProcessingDate string `json:"processing_date" doc:"When the export was produced (ISO-8601)"`
}

// NDVIExport is the NDVI JSON export for one date.
type NDVIExport struct {
	Date     string                 `json:"date" doc:"Acquisition date" example:"2024-01-01"`
	Regions  map[string]ndvi.Sample `json:"regions" doc:"Samples by region name"`
	Metadata NDVIMetadata           `json:"metadata"`
}

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func countExport(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Exports.WithLabelValues(kind, result).Inc()
}

// ExportRegionData serializes the statistics of the selected region.
// It fails with ErrNoSelection before any region was clicked.
func (c *Controller) ExportRegionData() (d Download, err error) {
	defer func() { countExport(ExportRegion, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()

	if c.selected == nil || c.stats == nil {
		return Download{}, ErrNoSelection
	}
	data, err := marshalIndent(c.stats)
	if err != nil {
		return Download{}, fmt.Errorf("encode region statistics: %w", err)
	}
	c.interaction("export_region", c.selected.BoundaryName)
	return Download{
		Kind:        ExportRegion,
		Filename:    c.selected.BoundaryName + "-data.json",
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// ExportNDVIData serializes the NDVI samples of the selected date.
// It fails with ErrNoNDVIData when the sample set has nothing for that date.
func (c *Controller) ExportNDVIData() (d Download, err error) {
	defer func() { countExport(ExportNDVI, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen()

	date := c.ndvi.Date()
	samples := c.ndvi.Samples().ForDate(date)
	if samples == nil {
		return Download{}, ErrNoNDVIData
	}
	data, err := marshalIndent(NDVIExport{
		Date:    date,
		Regions: samples,
		Metadata: NDVIMetadata{
			Source:         "Sentinel-2",
			Resolution:     "10m",
			ProcessingDate: c.now().UTC().Format(timestampLayout),
		},
	})
	if err != nil {
		return Download{}, fmt.Errorf("encode ndvi samples: %w", err)
	}
	c.interaction("export_ndvi", date)
	return Download{
		Kind:        ExportNDVI,
		Filename:    "ndvi-data-" + date + ".json",
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// ExportMapImage rasterizes the current view with every rendered layer.
func (c *Controller) ExportMapImage() (d Download, err error) {
	defer func() { countExport(ExportMap, err) }()

	c.mu.Lock()
	c.seen()
	opts := render.MapOptions{
		Title:    "Morocco Yield Gap",
		Width:    c.width,
		Height:   c.height,
		Viewport: c.viewport,
	}
	for _, l := range c.layers() {
		opts.Layers = append(opts.Layers, l.Clone())
	}
	if c.ndvi.Overlay() != nil {
		opts.Title += " | NDVI " + c.ndvi.Date()
	}
	c.interaction("export_map", "")
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := render.MapPNG(&buf, opts); err != nil {
		return Download{}, fmt.Errorf("render map: %w", err)
	}
	return Download{
		Kind:        ExportMap,
		Filename:    MapImageName,
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

// ExportCSV writes the records matching the session filter as CSV.
func (c *Controller) ExportCSV() (d Download, err error) {
	defer func() { countExport(ExportCSV, err) }()

	c.mu.Lock()
	c.seen()
	f := c.filter
	c.interaction("export_csv", f.Crop)
	c.mu.Unlock()

	return CSVDownload(c.store, f)
}

// CSVDownload writes the records of store matching f as CSV.
func CSVDownload(store *dataset.Store, f dataset.Filter) (Download, error) {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, store.Query(f)); err != nil {
		return Download{}, fmt.Errorf("write csv: %w", err)
	}
	return Download{
		Kind:        ExportCSV,
		Filename:    CSVFilename(f),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

// CSVFilename names a CSV export after its filter.
func CSVFilename(f dataset.Filter) string {
	name := "yield-data"
	if f.Crop != "" {
		name += "-" + f.Crop
	}
	if f.Year != 0 {
		name += fmt.Sprintf("-%d", f.Year)
	}
	return name + ".csv"
}

// ChartImage renders the selected region's yields as a PNG bar chart.
func (c *Controller) ChartImage() (d Download, err error) {
	defer func() { countExport(ExportChart, err) }()

	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return Download{}, ErrNoSelection
	}
	region := c.selected.BoundaryName
	c.mu.Unlock()

	years, actual, potential := RegionSeries(c.store.ByRegion(region))
	var buf bytes.Buffer
	err = render.ChartPNG(&buf, render.ChartOptions{
		Title:  region,
		Labels: years,
		Series: []render.Series{
			{Label: "Actual Yield", Values: actual, Color: ActualColor},
			{Label: "Potential Yield", Values: potential, Color: PotentialColor},
		},
	})
	if err != nil {
		return Download{}, fmt.Errorf("render chart: %w", err)
	}
	return Download{
		Kind:        ExportChart,
		Filename:    region + "-chart.png",
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

// Layers returns copies of the rendered layers, base layer first.
func (c *Controller) Layers() []*mapview.Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*mapview.Layer
	for _, l := range c.layers() {
		out = append(out, l.Clone())
	}
	return out
}
