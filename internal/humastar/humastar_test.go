package humastar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-yieldgap/internal/templates"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"sid":"abc","region":"7","opacity":0.5,"ctrl":true,"year":"2023"}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", s.String("sid"))
	assert.Equal(t, 7, s.Int("region"))
	f, ok := s.Float("opacity")
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)
	assert.True(t, s.Bool("ctrl"))
	assert.Equal(t, 2023, s.Int("year"))
	assert.Equal(t, "0.5", s.String("opacity"))

	_, ok = s.Float("missing")
	assert.False(t, ok)
	assert.False(t, s.Has("missing"))

	empty, err := ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseSignals([]byte("{"))
	assert.Error(t, err)
}

func TestSignalsInput(t *testing.T) {
	in := &SignalsInput{RawBody: []byte("not json")}
	_, err := in.MustParse()
	assert.ErrorContains(t, err, "Invalid request data")

	q := &QueryInput{Datastar: `{"sid":"x"}`}
	s, err := q.MustParse()
	require.NoError(t, err)
	assert.Equal(t, "x", s.String("sid"))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Page(items, 2, 2)
	assert.Equal(t, []int{3, 4}, p.Data)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, []string{
		`</x?offset=0&limit=2>; rel="first"`,
		`</x?offset=0&limit=2>; rel="prev"`,
		`</x?offset=4&limit=2>; rel="next"`,
		`</x?offset=4&limit=2>; rel="last"`,
	}, p.PaginationLinks("/x"))

	assert.Equal(t, []int{}, Page(items, 9, 2).Data)
	assert.Len(t, Page(items, 0, 0).Data, 5)
	assert.Equal(t, []string{`</x?offset=0&limit=3>; rel="first"`, `</x?offset=0&limit=3>; rel="last"`},
		Page([]int{}, 0, 3).PaginationLinks("/x"))
}

func TestActionLinkHeader(t *testing.T) {
	d := ActionDef{Rel: "export-region", Pattern: "/api/v1/sessions/%s/export/region", Method: "GET", Title: "Region data"}
	assert.Equal(t,
		`</api/v1/sessions/s1/export/region>; rel="export-region"; method="GET"; title="Region data"`,
		d.For("s1").LinkHeader())
	assert.Equal(t, `</a>; rel="b"`, Action{Rel: "b", Href: "/a"}.LinkHeader())
}

func TestRenderSelect(t *testing.T) {
	r, err := templates.New("")
	require.NoError(t, err)
	h := Handler{Renderer: r}

	html, err := h.RenderSelect("All crops", []SelectOptionData{
		{Value: "Wheat", Label: "Wheat", Selected: true},
		{Value: "Barley & Oats", Label: "Barley & Oats"},
	})
	require.NoError(t, err)
	assert.Equal(t, `<option value="">All crops</option>`+
		`<option value="Wheat" selected>Wheat</option>`+
		`<option value="Barley &amp; Oats">Barley &amp; Oats</option>`, string(html))

	html, err = h.RenderSelect("", nil)
	require.NoError(t, err)
	assert.Empty(t, html)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.html"), []byte(`{{define "other"}}x{{end}}`), 0o644))
	bare, err := templates.New(dir)
	require.NoError(t, err)
	h = Handler{Renderer: bare}
	_, err = h.RenderSelect("", []SelectOptionData{{Value: "a", Label: "a"}})
	assert.Error(t, err)
}
