package ndvi

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-yieldgap/internal/dataset"
)

const square = `{"type":"Polygon","coordinates":[[[-8,30],[-7,30],[-7,31],[-8,31],[-8,30]]]}`

func testRecords() []dataset.Record {
	return []dataset.Record{
		{BoundaryName: "Souss-Massa", CropName: "Wheat", Geometry: square},
		{BoundaryName: "Oriental", CropName: "Barley", Geometry: square},
		{BoundaryName: "Fès-Meknès", CropName: "Wheat"},
		{BoundaryName: "Atlantis", CropName: "Wheat", Geometry: square},
	}
}

func testSamples() SampleSet {
	return Generate(rand.New(rand.NewSource(3)))
}

func TestBuildMatchesSamples(t *testing.T) {
	samples := testSamples()
	ov := Build(testRecords(), samples.ForDate(DefaultDate), DefaultDate)

	// Fès-Meknès has no geometry and Atlantis has no sample.
	require.Equal(t, 2, ov.Layer.Len())
	assert.Equal(t, 0, ov.Skipped)

	shape := ov.Layer.Shapes[0]
	want := samples[DefaultDate]["Souss-Massa"]
	assert.Equal(t, "Souss-Massa", shape.Name)
	assert.Equal(t, want.Color, shape.Style.FillColor)
	assert.Equal(t, "white", shape.Style.Color)
	assert.Equal(t, 2.0, shape.Style.Weight)
	assert.Equal(t, 0.7, shape.Style.FillOpacity)
	assert.Contains(t, shape.Popup, "Souss-Massa")
	assert.Contains(t, shape.Popup, string(want.Status))
	assert.Contains(t, shape.Popup, DefaultDate)
	assert.Contains(t, shape.Popup, "Wheat")
}

func TestBuildIgnoresRecordOrder(t *testing.T) {
	samples := testSamples().ForDate(DefaultDate)
	names := func(ov *Overlay) []string {
		var out []string
		for _, s := range ov.Layer.Shapes {
			out = append(out, s.Name)
		}
		return out
	}
	want := names(Build(testRecords(), samples, DefaultDate))

	records := testRecords()
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	reversed := Build(records, samples, DefaultDate)
	assert.Equal(t, 2, reversed.Layer.Len())
	assert.ElementsMatch(t, want, names(reversed))

	rng := rand.New(rand.NewSource(5))
	for range 5 {
		records := testRecords()
		rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
		ov := Build(records, samples, DefaultDate)
		assert.Equal(t, 2, ov.Layer.Len())
		assert.ElementsMatch(t, want, names(ov))
	}
}

func TestBuildPopupValueHasThreeDecimals(t *testing.T) {
	samples := map[string]Sample{"Oriental": Classify(0.65432)}
	ov := Build(testRecords(), samples, "2024-02-01")
	require.Equal(t, 1, ov.Layer.Len())
	assert.Contains(t, ov.Layer.Shapes[0].Popup, "0.654")
	assert.NotContains(t, ov.Layer.Shapes[0].Popup, "0.6543")
}

func TestBuildToleratesBadGeometry(t *testing.T) {
	records := testRecords()
	records[0].Geometry = "{not json"

	ov := Build(records, testSamples().ForDate(DefaultDate), DefaultDate)
	require.Equal(t, 1, ov.Layer.Len())
	assert.Equal(t, "Oriental", ov.Layer.Shapes[0].Name)
	assert.Equal(t, 1, ov.Skipped)
}

func TestToggle(t *testing.T) {
	m := NewLayerManager(testSamples())
	assert.Equal(t, Hidden, m.State())
	assert.Nil(t, m.Overlay())

	assert.Equal(t, Visible, m.Toggle(testRecords()))
	require.NotNil(t, m.Overlay())
	assert.Equal(t, DefaultDate, m.Overlay().Date)

	assert.Equal(t, Hidden, m.Toggle(testRecords()))
	assert.Nil(t, m.Overlay())
}

func TestChangeDateWhileVisible(t *testing.T) {
	samples := testSamples()
	m := NewLayerManager(samples)
	m.Toggle(testRecords())

	require.NoError(t, m.ChangeDate("2024-05-01", testRecords()))
	assert.Equal(t, Visible, m.State())
	ov := m.Overlay()
	require.NotNil(t, ov)
	assert.Equal(t, "2024-05-01", ov.Date)
	for _, s := range ov.Layer.Shapes {
		assert.Equal(t, samples["2024-05-01"][s.Name].Color, s.Style.FillColor)
		assert.Equal(t, "2024-05-01", s.Properties["date"])
	}
}

func TestChangeDateWhileHidden(t *testing.T) {
	m := NewLayerManager(testSamples())
	require.NoError(t, m.ChangeDate("2024-04-01", testRecords()))
	assert.Equal(t, Hidden, m.State())
	assert.Equal(t, "2024-04-01", m.Date())

	m.Toggle(testRecords())
	assert.Equal(t, "2024-04-01", m.Overlay().Date)
}

func TestChangeDateUnknown(t *testing.T) {
	m := NewLayerManager(testSamples())
	err := m.ChangeDate("2025-01-01", testRecords())
	assert.ErrorIs(t, err, ErrUnknownDate)
	assert.Equal(t, DefaultDate, m.Date())
}

func TestShowWithoutSamples(t *testing.T) {
	m := NewLayerManager(SampleSet{})
	assert.Equal(t, Hidden, m.Toggle(testRecords()))
}
