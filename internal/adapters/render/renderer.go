// Package render implements the template renderer over embedded
// text/template files. The first line of a rendered template is the
// subject; everything after the first blank line is the body.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/example/cardwatch/internal/ports/secondary"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer renders notification templates by ID.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded template set.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render resolves templateID with vars into a subject and body.
func (r *Renderer) Render(templateID string, vars map[string]string) (string, string, error) {
	tmpl := r.templates.Lookup(templateID + ".tmpl")
	if tmpl == nil {
		return "", "", fmt.Errorf("unknown template: %q", templateID)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", "", fmt.Errorf("failed to render template %q: %w", templateID, err)
	}

	subject, body, found := strings.Cut(out.String(), "\n")
	if !found {
		return strings.TrimSpace(subject), "", nil
	}
	return strings.TrimSpace(subject), strings.TrimSpace(body), nil
}

// Ensure Renderer implements the interface
var _ secondary.Renderer = (*Renderer)(nil)
