package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns assistant text into terminal output.
type Renderer func(string) string

// Plain returns the text unchanged.
func Plain(s string) string {
	return s
}

// NewRenderer renders markdown with glamour, falling back to Plain when
// no renderer could be created or a message fails to render.
func NewRenderer(width int) Renderer {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.Trim(out, "\n")
	}
}
