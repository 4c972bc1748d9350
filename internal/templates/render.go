// Package templates renders the HTML fragments patched into the dashboard
// over Datastar SSE, and the dashboard page itself.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
)

//go:embed fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	// num formats an optional number, "N/A" when missing.
	"num": func(p *float64, decimals int) string {
		if p == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.*f", decimals, *p)
	},
	// year prints the average pseudo-year as "Average".
	"year": func(y int) string {
		if y == 9999 {
			return "Average"
		}
		return fmt.Sprint(y)
	},
}

// Renderer holds the parsed fragment templates.
type Renderer struct {
	templates *template.Template
}

// New parses the fragments from dir, or the embedded copies when dir is empty.
func New(dir string) (*Renderer, error) {
	tmpl, err := parse(dir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(dir string) (*template.Template, error) {
	var fsys fs.FS
	pattern := "*.html"
	if dir == "" {
		fsys = embedded
		pattern = "fragments/*.html"
	} else {
		fsys = os.DirFS(dir)
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	return r.templates.ExecuteTemplate(buf, name, data)
}

// MustRender renders a template and panics on error.
// Use only for templates known to exist.
func (r *Renderer) MustRender(name string, data any) string {
	s, err := r.Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}
