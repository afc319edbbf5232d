package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for the terminal, wrapped at width. When stdout
// is not a terminal the markdown is returned unchanged.
func RenderMarkdown(md string, width int) (string, error) {
	if !IsTTY() {
		return md, nil
	}
	return renderMarkdown(md, width, glamour.WithAutoStyle())
}

func renderMarkdown(md string, width int, style glamour.TermRendererOption) (string, error) {
	if width <= 0 || width > 120 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
