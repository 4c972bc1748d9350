package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-yieldgap/internal/analytics"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

const (
	westSquare = `{"type":"Polygon","coordinates":[[[-10,29],[-8,29],[-8,31],[-10,31],[-10,29]]]}`
	eastSquare = `{"type":"Polygon","coordinates":[[[-3,33],[-1,33],[-1,35],[-3,35],[-3,33]]]}`
)

type recorder struct {
	mu     sync.Mutex
	events []analytics.Interaction
}

func (r *recorder) Track(ev analytics.Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func testRecords() []dataset.Record {
	return []dataset.Record{
		{BoundaryName: "Souss-Massa", CropName: "Wheat", Year: 2023, ActualYield: dataset.Float(2.1), PotentialYield: dataset.Float(4.0), Geometry: westSquare},
		{BoundaryName: "Oriental", CropName: "Wheat", Year: 2023, ActualYield: dataset.Float(1.0), PotentialYield: dataset.Float(3.0), Geometry: eastSquare},
		{BoundaryName: "Oriental", CropName: "Barley", Year: 2022, ActualYield: dataset.Float(0.8), PotentialYield: dataset.Float(2.0), Geometry: eastSquare},
		{BoundaryName: "oriental", CropName: "Wheat", Year: 2023, Geometry: eastSquare},
		{BoundaryName: "Oriental-Est", CropName: "Wheat", Year: 2023, Geometry: eastSquare},
		{BoundaryName: "Souss-Massa", CropName: "Wheat", Year: 2021, ActualYield: dataset.Float(1.9), PotentialYield: nil},
	}
}

func newController(t *testing.T) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := New("s1", dataset.NewStaticStore(testRecords()), Options{
		Samples: ndvi.Generate(rand.New(rand.NewSource(11))),
		Tracker: rec,
		Now:     func() time.Time { return fixedNow },
	})
	return c, rec
}

func findRecord(t *testing.T, name string) dataset.Record {
	t.Helper()
	for _, r := range testRecords() {
		if r.BoundaryName == name {
			return r
		}
	}
	t.Fatalf("no record %q", name)
	return dataset.Record{}
}

func TestBaseLayer(t *testing.T) {
	c, _ := newController(t)
	layers := c.Layers()
	require.Len(t, layers, 1)
	// The last Souss-Massa record has no geometry.
	assert.Equal(t, 5, layers[0].Len())
	for _, s := range layers[0].Shapes {
		assert.Equal(t, DefaultOpacity, s.Style.FillOpacity)
		assert.Equal(t, "3", s.Style.DashArray)
	}
}

func TestSelectRegionHighlightsExactName(t *testing.T) {
	c, _ := newController(t)
	c.ToggleNDVI()

	c.SelectRegion(findRecord(t, "Oriental"))

	highlighted := 0
	for _, l := range c.Layers() {
		for _, s := range l.Shapes {
			if s.Name == "Oriental" {
				highlighted++
				assert.Equal(t, mapview.HighlightedOutline.Color, s.Style.Color)
				assert.Equal(t, 4.0, s.Style.Weight)
				assert.Equal(t, "5, 5", s.Style.DashArray)
				continue
			}
			assert.Equal(t, "white", s.Style.Color, s.Name)
			assert.Equal(t, 2.0, s.Style.Weight, s.Name)
			assert.Equal(t, "3", s.Style.DashArray, s.Name)
		}
	}
	// Two base shapes and two NDVI shapes.
	assert.Equal(t, 4, highlighted)

	c.SelectRegion(findRecord(t, "Souss-Massa"))
	for _, s := range c.Layers()[0].Shapes {
		if s.Name == "Oriental" {
			assert.Equal(t, "white", s.Style.Color)
		}
	}
}

func TestSelectRegionWithoutMatch(t *testing.T) {
	c, _ := newController(t)
	st := c.SelectRegion(dataset.Record{BoundaryName: "Atlantis"})
	assert.Equal(t, "Atlantis", st.Name)
	for _, s := range c.Layers()[0].Shapes {
		assert.Equal(t, "white", s.Style.Color)
	}
}

func TestSoussMassaScenario(t *testing.T) {
	store := dataset.NewStaticStore([]dataset.Record{{
		BoundaryName: "Souss-Massa", CropName: "Wheat", Year: 2023,
		ActualYield: dataset.Float(2.1), PotentialYield: dataset.Float(4.0),
	}})
	rec := &recorder{}
	c := New("s", store, Options{Tracker: rec})

	rec0, ok := store.Get(1)
	require.True(t, ok)
	st := c.SelectRegion(rec0)

	require.NotNil(t, st.YieldGap)
	assert.InDelta(t, 1.9, *st.YieldGap, 1e-9)
	require.NotEmpty(t, st.Timestamp)
	_, err := time.Parse(time.RFC3339Nano, st.Timestamp)
	assert.NoError(t, err)

	assert.Equal(t, []string{"region_click"}, rec.actions())
	assert.Equal(t, "Souss-Massa", rec.events[0].Details)
	assert.True(t, c.View().InfoPanel)
}

func TestChartSync(t *testing.T) {
	c, _ := newController(t)

	c.SelectRegion(findRecord(t, "Souss-Massa"))
	assert.Nil(t, c.Chart(), "chart is untouched before it exists")

	chart := c.InitChart()
	assert.Equal(t, []int{2023, 2021}, chart.Labels)

	c.SelectRegion(findRecord(t, "Oriental"))
	chart = c.Chart()
	require.NotNil(t, chart)
	assert.Equal(t, "Oriental", chart.Region)
	assert.Equal(t, []int{2023, 2022}, chart.Labels)
	require.Len(t, chart.Datasets, 2)
	assert.Equal(t, "Actual Yield", chart.Datasets[0].Label)
	assert.Equal(t, ActualColor, chart.Datasets[0].BorderColor)
	assert.Equal(t, PotentialFill, chart.Datasets[1].BackgroundColor)
	assert.Equal(t, 1.0, *chart.Datasets[0].Data[0])
	assert.Equal(t, 2.0, *chart.Datasets[1].Data[1])
	assert.Equal(t, 2, chart.Revision)
}

func TestExportRegionDataWithoutSelection(t *testing.T) {
	c, _ := newController(t)
	d, err := c.ExportRegionData()
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, "Please select a region first", err.Error())
	assert.Empty(t, d.Data)
	assert.Empty(t, d.Filename)
}

func TestExportRegionData(t *testing.T) {
	c, _ := newController(t)
	c.SelectRegion(findRecord(t, "Souss-Massa"))

	d, err := c.ExportRegionData()
	require.NoError(t, err)
	assert.Equal(t, "Souss-Massa-data.json", d.Filename)
	assert.Contains(t, string(d.Data), "\n  \"name\": \"Souss-Massa\"")

	var st RegionStatistics
	require.NoError(t, json.Unmarshal(d.Data, &st))
	assert.Equal(t, "2024-03-01T10:30:00.000Z", st.Timestamp)
	assert.InDelta(t, 47.5, *st.YieldGapPercent, 1e-9)
}

func TestExportNDVIData(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.ChangeNDVIDate("2024-05-01"))

	d, err := c.ExportNDVIData()
	require.NoError(t, err)
	assert.Equal(t, "ndvi-data-2024-05-01.json", d.Filename)

	var out NDVIExport
	require.NoError(t, json.Unmarshal(d.Data, &out))
	assert.Equal(t, "2024-05-01", out.Date)
	assert.Len(t, out.Regions, len(ndvi.Regions))
	assert.Equal(t, "Sentinel-2", out.Metadata.Source)
	assert.Equal(t, "10m", out.Metadata.Resolution)
	assert.NotEmpty(t, out.Metadata.ProcessingDate)

	empty := New("s2", dataset.NewStaticStore(nil), Options{Samples: ndvi.SampleSet{}})
	_, err = empty.ExportNDVIData()
	assert.ErrorIs(t, err, ErrNoNDVIData)
}

func TestExportMapImage(t *testing.T) {
	c, _ := newController(t)
	c.SetViewport(mapview.DefaultViewport, 320, 240)

	d, err := c.ExportMapImage()
	require.NoError(t, err)
	assert.Equal(t, MapImageName, d.Filename)
	assert.Equal(t, "image/png", d.ContentType)

	img, err := png.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestExportCSV(t *testing.T) {
	c, _ := newController(t)
	c.SetFilter(dataset.Filter{Crop: "Barley"})

	d, err := c.ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, "yield-data-Barley.csv", d.Filename)
	assert.Contains(t, string(d.Data), "Oriental,Barley,2022")
	assert.NotContains(t, string(d.Data), "Souss-Massa")
}

func TestChartImage(t *testing.T) {
	c, _ := newController(t)
	_, err := c.ChartImage()
	assert.ErrorIs(t, err, ErrNoSelection)

	c.SelectRegion(findRecord(t, "Oriental"))
	d, err := c.ChartImage()
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(d.Data))
	assert.NoError(t, err)
}

func TestNDVIToggleAndDate(t *testing.T) {
	c, rec := newController(t)

	assert.Equal(t, ndvi.Visible, c.ToggleNDVI())
	v := c.View()
	require.NotNil(t, v.NDVI)
	// Souss-Massa and Oriental have samples; the others are not known regions.
	assert.Len(t, v.NDVI.Features, 3)

	require.NoError(t, c.ChangeNDVIDate("2024-06-01"))
	v = c.View()
	for _, f := range v.NDVI.Features {
		assert.Equal(t, "2024-06-01", f.Properties["date"])
	}

	assert.ErrorIs(t, c.ChangeNDVIDate("2030-01-01"), ndvi.ErrUnknownDate)

	assert.Equal(t, ndvi.Hidden, c.ToggleNDVI())
	assert.Nil(t, c.View().NDVI)
	assert.Equal(t, []string{"ndvi_toggle", "ndvi_date_change", "ndvi_toggle"}, rec.actions())
}

func TestSetOpacity(t *testing.T) {
	c, _ := newController(t)
	c.ToggleNDVI()

	assert.Equal(t, 0.3, c.SetOpacity(0.3))
	for _, l := range c.Layers() {
		for _, s := range l.Shapes {
			assert.Equal(t, 0.3, s.Style.FillOpacity)
		}
	}
	assert.Equal(t, 1.0, c.SetOpacity(7))
	assert.Equal(t, 0.0, c.SetOpacity(-1))
}

func TestRecenter(t *testing.T) {
	c, _ := newController(t)
	c.SetViewport(mapview.Viewport{Zoom: 12, Center: mapview.LatLng{Lat: 0, Lng: 0}}, 1024, 768)

	v := c.Recenter()
	assert.Equal(t, mapview.FitBounds(mapview.MoroccoBounds, 1024, 768), v)
	assert.Equal(t, v, c.View().Viewport)
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		ev   KeyEvent
		want Command
	}{
		{KeyEvent{Key: "Escape"}, CommandHidePanel},
		{KeyEvent{Key: "r", Ctrl: true}, CommandRefresh},
		{KeyEvent{Key: "R", Ctrl: true}, CommandRefresh},
		{KeyEvent{Key: "e", Ctrl: true}, CommandExport},
		{KeyEvent{Key: "F", Ctrl: true}, CommandFullscreen},
		{KeyEvent{Key: "n", Ctrl: true}, CommandToggleNDVI},
		{KeyEvent{Key: "n"}, CommandNone},
		{KeyEvent{Key: "x", Ctrl: true}, CommandNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseKey(tc.ev), "%+v", tc.ev)
	}
}

func TestHandleKey(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	c.SelectRegion(findRecord(t, "Oriental"))
	cmd, err := c.HandleKey(ctx, KeyEvent{Key: "Escape"})
	require.NoError(t, err)
	assert.Equal(t, CommandHidePanel, cmd)
	assert.False(t, c.View().InfoPanel)

	_, err = c.HandleKey(ctx, KeyEvent{Key: "N", Ctrl: true})
	require.NoError(t, err)
	assert.Equal(t, ndvi.Visible, c.View().NDVIState)

	_, err = c.HandleKey(ctx, KeyEvent{Key: "f", Ctrl: true})
	require.NoError(t, err)
	assert.True(t, c.View().Fullscreen)

	cmd, err = c.HandleKey(ctx, KeyEvent{Key: "r", Ctrl: true})
	require.NoError(t, err)
	assert.Equal(t, CommandRefresh, cmd)
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Load(context.Context) ([]dataset.Record, error) {
	return nil, assert.AnError
}

func TestRefreshFailureKeepsLayers(t *testing.T) {
	store := dataset.NewStore(brokenSource{})
	store.Replace(testRecords())
	c := New("s", store, Options{})

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 5, c.Layers()[0].Len())
}

func TestTouchSwipe(t *testing.T) {
	var tr TouchTracker
	tr.Start(200, 100)
	assert.True(t, tr.End(140, 120))
	assert.False(t, tr.End(160, 100), "exactly 40px left")
	assert.False(t, tr.End(100, 160), "too vertical")
	assert.False(t, tr.End(300, 100), "rightward")

	tr.Start(500, 500)
	assert.False(t, tr.End(140, 120), "latest start wins")

	c, _ := newController(t)
	c.SelectRegion(findRecord(t, "Oriental"))
	c.TouchStart(300, 50)
	assert.True(t, c.TouchEnd(200, 60))
	assert.False(t, c.View().InfoPanel)
}

func TestPanelAndTouchKeepSessionAlive(t *testing.T) {
	now := fixedNow
	c := New("s1", dataset.NewStaticStore(testRecords()), Options{
		Now: func() time.Time { return now },
	})

	now = now.Add(time.Minute)
	c.TouchStart(10, 10)
	assert.Equal(t, now, c.LastSeen())

	now = now.Add(time.Minute)
	c.HidePanel()
	assert.Equal(t, now, c.LastSeen())
}

func TestRegistry(t *testing.T) {
	store := dataset.NewStaticStore(testRecords())
	r := NewRegistry(func(id string) *Controller { return New(id, store, Options{}) })

	a := r.Create()
	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Same(t, a, r.Ensure(a.ID()))

	const known = "0b6f8a2e-5a6c-4b71-9d5e-3c0f6f4d1a2b"
	b := r.Ensure(known)
	assert.Equal(t, known, b.ID())

	c := r.Ensure("not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", c.ID())
	assert.Equal(t, 3, r.Len())

	n := 0
	r.Each(func(*Controller) { n++ })
	assert.Equal(t, 3, n)

	assert.Equal(t, 3, r.Prune(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, r.Len())
}

func TestEventBus(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	assert.Equal(t, 1, b.Subscribers())

	b.Publish(Event{Kind: EventDatasetReloaded, Source: "s1"})
	select {
	case ev := <-ch:
		assert.Equal(t, EventDatasetReloaded, ev.Kind)
		assert.Equal(t, "s1", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	cancel()
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
	b.Publish(Event{Kind: EventDatasetReloaded})
}
