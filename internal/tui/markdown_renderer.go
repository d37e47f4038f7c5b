package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const minPreviewWidth = 24

// markdownRenderer renders section descriptions for the editor preview. The
// glamour renderer is rebuilt only when the wrap width changes, and the last
// output is reused while the source is unchanged.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer

	lastSource string
	lastOutput string
}

// render returns styled terminal text for source, or source itself when
// glamour cannot render it.
func (r *markdownRenderer) render(source string, width int) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	width = max(width, minPreviewWidth)
	if r.renderer != nil && r.width == width && r.lastSource == source {
		return r.lastOutput
	}
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return source
		}
		r.renderer = renderer
		r.width = width
	}
	out, err := r.renderer.Render(source)
	if err != nil {
		return source
	}
	r.lastSource = source
	r.lastOutput = strings.Trim(out, "\n")
	return r.lastOutput
}
