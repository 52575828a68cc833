// Package render turns widget views into HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"schedview/internal/widget"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Page is the data of a full standalone page.
type Page struct {
	ID   string
	View widget.View
	// Live adds the script that drives actions and the render stream.
	// Static captures leave it off.
	Live bool
}

// Renderer executes the embedded templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("schedview").Funcs(template.FuncMap{
		"weekdays":  func() []string { return widget.Weekdays },
		"cellClass": cellClass,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Fragment writes the widget markup for v.
func (r *Renderer) Fragment(w io.Writer, v widget.View) error {
	return r.tmpl.ExecuteTemplate(w, "widget", v)
}

// FragmentString is Fragment into a string.
func (r *Renderer) FragmentString(v widget.View) (string, error) {
	var buf bytes.Buffer
	if err := r.Fragment(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page writes a complete HTML document around the widget.
func (r *Renderer) Page(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "page", p)
}

func cellClass(c widget.Cell) string {
	classes := []string{"cell"}
	if c.HasEvent {
		classes = append(classes, "has-event")
	}
	if c.HasHighlight {
		classes = append(classes, "has-highlight-event")
	}
	if c.Selected {
		classes = append(classes, "selected")
	}
	if c.Today {
		classes = append(classes, "today")
	}
	return strings.Join(classes, " ")
}
