// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// It provides:
//   - SSE: Huma streaming to the Datastar SSE protocol via [SSE] and [NewSSE]
//   - Signals: loose Datastar signal parsing via [Signals], [SignalsInput] and [QueryInput]
//   - Handler: an embeddable base for dashboard SSE handlers via [Handler]
//   - Hypermedia: Link headers from [Pager] and [Actor] response bodies
//
// Usage:
//
//	type MyHandler struct {
//	    humastar.Handler
//	}
//
//	func (h *MyHandler) Panel(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.Renderer.MustRender("info-panel", data), "#info-panel")
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-yieldgap/internal/templates"
)

// EventPrefix namespaces the custom DOM events the dashboard script listens to.
const EventPrefix = "yieldgap:"

// Handler is an embeddable base for Huma handlers that answer with Datastar
// SSE streams.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a Huma StreamResponse that calls fn with a ready SSE helper.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// RenderSelect renders <option> elements from a placeholder and option list.
// An empty placeholder is left out.
func (h *Handler) RenderSelect(placeholder string, options []SelectOptionData) (template.HTML, error) {
	var buf bytes.Buffer
	if placeholder != "" {
		if err := h.Renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Label: placeholder}); err != nil {
			return "", err
		}
	}
	for _, opt := range options {
		if err := h.Renderer.RenderToBuffer(&buf, "select-option", opt); err != nil {
			return "", err
		}
	}
	return template.HTML(buf.String()), nil
}

// SelectOptionData feeds the select-option template.
type SelectOptionData struct {
	Value    string
	Label    string
	Selected bool
}

// SSE wraps a Datastar generator with the patterns the dashboard uses.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML at a CSS selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Replace replaces the outer HTML at a CSS selector.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Error sets the error signal and clears success.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg, "success": ""})
}

// Alert shows msg in a blocking browser alert and sets the error signal.
func (s SSE) Alert(msg string) {
	s.Error(msg)
	s.ExecuteScript(fmt.Sprintf("alert(%s)", strconv.Quote(msg)))
}

// Success sets the success signal and clears error.
func (s SSE) Success(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"success": msg, "error": ""})
}

// Signals patches arbitrary signals.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Event dispatches a namespaced custom DOM event carrying detail.
func (s SSE) Event(name string, detail any) {
	s.DispatchCustomEvent(EventPrefix+name, detail)
}

// Signals gives loose, typed access to Datastar signals. Values bound to
// text inputs arrive as strings, so numeric getters also parse strings.
type Signals map[string]any

// ParseSignals parses Datastar signals from a JSON object.
func ParseSignals(body []byte) (Signals, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Signals{}, nil
	}
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal, or "" when missing.
func (s Signals) String(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Float returns a numeric signal. ok is false when the key is missing or
// not a number.
func (s Signals) Float(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns an integer signal, or 0.
func (s Signals) Int(key string) int {
	f, _ := s.Float(key)
	return int(f)
}

// Bool returns a boolean signal, or false.
func (s Signals) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Has reports whether the signal is present, even if zero-valued.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is the input of handlers without parameters.
type EmptyInput struct{}

// SignalsInput carries the signals Datastar posts as the request body.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses the signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}

// QueryInput carries the signals Datastar sends with GET requests.
type QueryInput struct {
	Datastar string `query:"datastar" doc:"Datastar signals (JSON)"`
}

// MustParse parses the signals or returns a Huma 400 error.
func (i *QueryInput) MustParse() (Signals, error) {
	signals, err := ParseSignals([]byte(i.Datastar))
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
