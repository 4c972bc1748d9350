package mapui

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-yieldgap/internal/analytics"
	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
	"github.com/joeblew999/plat-yieldgap/internal/templates"
)

const square = `{"type":"Polygon","coordinates":[[[-10,29],[-8,29],[-8,31],[-10,31],[-10,29]]]}`

type keeper struct {
	mu   sync.Mutex
	kept []dashboard.Download
}

func (k *keeper) Keep(ctx context.Context, session string, d dashboard.Download) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kept = append(k.kept, d)
}

type tracker struct {
	mu     sync.Mutex
	events []analytics.Interaction
}

func (r *tracker) Track(ev analytics.Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *tracker) last(t *testing.T) analytics.Interaction {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

type fixture struct {
	mux      *http.ServeMux
	sessions *dashboard.Registry
	bus      *dashboard.EventBus
	keeper   *keeper
	tracker  *tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dataset.NewStaticStore([]dataset.Record{
		{BoundaryName: "Souss-Massa", CropName: "Wheat", Year: 2023, ActualYield: dataset.Float(2.1), PotentialYield: dataset.Float(4.0), Geometry: square},
		{BoundaryName: "Souss-Massa", CropName: "Wheat", Year: 2022, ActualYield: dataset.Float(1.8), PotentialYield: dataset.Float(3.9), Geometry: square},
	})
	samples := ndvi.Generate(rand.New(rand.NewSource(3)))
	tr := &tracker{}
	sessions := dashboard.NewRegistry(func(id string) *dashboard.Controller {
		return dashboard.New(id, store, dashboard.Options{Samples: samples, Tracker: tr})
	})
	renderer, err := templates.New("")
	require.NoError(t, err)

	f := &fixture{mux: http.NewServeMux(), sessions: sessions, bus: dashboard.NewEventBus(), keeper: &keeper{}, tracker: tr}
	api := humago.New(f.mux, huma.DefaultConfig("test", "0.0.0"))
	h := NewHandler(sessions, store, f.bus, f.keeper, renderer)
	h.RegisterRoutes(api)
	f.mux.HandleFunc("/", h.Page)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *fixture) session(t *testing.T) *dashboard.Controller {
	t.Helper()
	return f.sessions.Create()
}

func signals(sid string, extra string) string {
	if extra == "" {
		return `{"sid":"` + sid + `"}`
	}
	return `{"sid":"` + sid + `",` + extra + `}`
}

func TestPage(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, Title)
	assert.Contains(t, body, `id="ndvi-controls"`)
	assert.Contains(t, body, `id="info-panel"`)
	assert.Contains(t, body, "Click a region to see its yield gap.")
	assert.Contains(t, body, "January 2024")
	assert.Contains(t, body, `<option value="">All crops</option><option value="Wheat">Wheat</option>`)
	assert.Contains(t, body, `<option value="0" selected>All years</option>`)
	assert.Contains(t, body, `<option value="9999">Average</option>`)
	assert.Equal(t, 1, f.sessions.Len())

	// The map sizes and the screen are reported before init is requested.
	assert.Contains(t, body, `id="screenw-input" data-bind:screenw`)
	assert.Contains(t, body, `id="screenh-input" data-bind:screenh`)
	assert.Contains(t, body, `id="init-trigger"`)
	assert.Equal(t, 1, strings.Count(body, "@get('/api/v1/dashboard/init')"))

	w = httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInit(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	q := `{"sid":"` + c.ID() + `","width":800,"height":600,"screenw":1920,"screenh":1080}`
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/init?datastar="+url.QueryEscape(q), nil)
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Contains(t, body, "yieldgap:layers")
	assert.Contains(t, body, "yieldgap:viewport")
	assert.Contains(t, body, "yieldgap:chart")
	assert.Contains(t, body, "#ndvi-controls")
}

func TestScreenResolutionReachesAnalytics(t *testing.T) {
	f := newFixture(t)

	c := f.session(t)
	q := `{"sid":"` + c.ID() + `","screenw":1920,"screenh":1080}`
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/init?datastar="+url.QueryEscape(q), nil)
	req.Header.Set("User-Agent", "test-agent")
	f.mux.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, http.StatusOK, f.post(t, "/api/v1/dashboard/ndvi/toggle", signals(c.ID(), "")).Code)
	ev := f.tracker.last(t)
	assert.Equal(t, "ndvi_toggle", ev.Action)
	assert.Equal(t, "1920x1080", ev.ScreenResolution)
	assert.Equal(t, "test-agent", ev.UserAgent)

	// A viewport report carries the screen too, for sessions whose init had none.
	other := f.session(t)
	f.post(t, "/api/v1/dashboard/viewport", signals(other.ID(), `"zoom":6,"lat":31,"lng":-7,"width":800,"height":600,"screenw":1280,"screenh":800`))
	f.post(t, "/api/v1/dashboard/ndvi/toggle", signals(other.ID(), ""))
	assert.Equal(t, "1280x800", f.tracker.last(t).ScreenResolution)

	// Zero sizes leave the known screen alone.
	f.post(t, "/api/v1/dashboard/viewport", signals(other.ID(), `"zoom":6,"lat":31,"lng":-7,"screenw":0,"screenh":0`))
	f.post(t, "/api/v1/dashboard/ndvi/toggle", signals(other.ID(), ""))
	assert.Equal(t, "1280x800", f.tracker.last(t).ScreenResolution)
}

func TestUnknownSessionGetsNewID(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/api/v1/dashboard/panel/hide", signals("bogus", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "datastar-patch-signals")
	assert.Contains(t, w.Body.String(), `"sid"`)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestSelect(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	w := f.post(t, "/api/v1/dashboard/select", signals(c.ID(), `"region":"1"`))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Souss-Massa")
	assert.Contains(t, body, "1.90 t/ha")
	assert.Contains(t, body, "yieldgap:layers")
	assert.Contains(t, body, "yieldgap:chart")

	v := c.View()
	assert.True(t, v.InfoPanel)
	require.NotNil(t, v.Selected)
	assert.Equal(t, 2023, v.Selected.Year)

	w = f.post(t, "/api/v1/dashboard/select", signals(c.ID(), `"region":"42"`))
	assert.Contains(t, w.Body.String(), "Unknown region")
}

func TestKeysEscapeHidesPanel(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)
	f.post(t, "/api/v1/dashboard/select", signals(c.ID(), `"region":"1"`))

	w := f.post(t, "/api/v1/dashboard/keys", signals(c.ID(), `"key":"Escape","ctrl":false`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, c.View().InfoPanel)
	assert.Contains(t, w.Body.String(), "#info-panel")
}

func TestNDVI(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	w := f.post(t, "/api/v1/dashboard/ndvi/toggle", signals(c.ID(), ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hide NDVI")
	assert.Equal(t, ndvi.Visible, c.View().NDVIState)

	w = f.post(t, "/api/v1/dashboard/ndvi/date", signals(c.ID(), `"ndvidate":"2024-03-01"`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-01", c.View().NDVIDate)

	w = f.post(t, "/api/v1/dashboard/ndvi/date", signals(c.ID(), `"ndvidate":"1999-01-01"`))
	assert.Contains(t, w.Body.String(), "Unknown NDVI date")
	assert.Equal(t, "2024-03-01", c.View().NDVIDate)
}

func TestOpacity(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	w := f.post(t, "/api/v1/dashboard/controls/opacity", signals(c.ID(), `"opacity":"0.4"`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.4, c.View().Opacity)

	w = f.post(t, "/api/v1/dashboard/controls/opacity", signals(c.ID(), `"opacity":"dim"`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	w := f.post(t, "/api/v1/dashboard/export", signals(c.ID(), `"exportkind":"region"`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dashboard.ErrNoSelection.Error())
	assert.Empty(t, f.keeper.kept)

	w = f.post(t, "/api/v1/dashboard/export", signals(c.ID(), `"exportkind":"csv"`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yieldgap:download")
	require.Len(t, f.keeper.kept, 1)
	assert.Equal(t, dashboard.ExportCSV, f.keeper.kept[0].Kind)
	assert.Equal(t, "yield-data.csv", f.keeper.kept[0].Filename)

	w = f.post(t, "/api/v1/dashboard/export", signals(c.ID(), `"exportkind":"pdf"`))
	assert.Contains(t, w.Body.String(), "Unknown export pdf")
}

func TestRefreshPublishes(t *testing.T) {
	f := newFixture(t)
	c := f.session(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := f.bus.Subscribe(ctx)

	w := f.post(t, "/api/v1/dashboard/refresh", signals(c.ID(), ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Data refreshed")

	select {
	case ev := <-events:
		assert.Equal(t, dashboard.EventDatasetReloaded, ev.Kind)
		assert.Equal(t, c.ID(), ev.Source)
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}
}
