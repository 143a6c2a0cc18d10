package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/ailearninghub/hub/internal/lecture"
)

// resolveStyle turns "auto" into the dark or light glamour style.
func resolveStyle(style string) string {
	if style != "" && style != styles.AutoStyle {
		return style
	}
	if termenv.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

// renderMarkdown renders a lecture summary for the board.
func renderMarkdown(cfg Config, md string, width int) (string, error) {
	if !cfg.GlamourEnabled {
		return wordwrap.String(md, max(width, 1)), nil
	}
	if cfg.GlamourMaxWidth > 0 {
		width = min(width, int(cfg.GlamourMaxWidth)) //nolint:gosec
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(resolveStyle(cfg.GlamourStyle)),
		glamour.WithWordWrap(max(width, 1)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}

// highlightWord wraps the spoken text at width and marks word index
// current. Words are counted the same way as speech.WordIndexAt.
func highlightWord(text string, current, width int) string {
	var b strings.Builder
	n := 0
	for li, line := range strings.Split(text, "\n") {
		if li > 0 {
			b.WriteByte('\n')
		}
		for wi, w := range strings.Fields(line) {
			if wi > 0 {
				b.WriteByte(' ')
			}
			if n == current {
				b.WriteString(wordHighlightStyle.Render(w))
			} else {
				b.WriteString(chalkStyle.Render(w))
			}
			n++
		}
	}
	return wordwrap.String(b.String(), max(width, 1))
}

// boardContent is what the board shows for a session state.
func boardContent(cfg Config, snap lecture.Snapshot, width int) string {
	switch snap.Status {
	case lecture.StateLoading:
		return subtleStyle.Render(fmt.Sprintf("Preparing the lecture for %s...", snap.Label))
	case lecture.StateError:
		msg := "Could not prepare this section."
		if snap.Err != nil {
			msg += "\n\n" + snap.Err.Error()
		}
		return errorTitleStyle.Render("ERROR") + "\n\n" + msg + "\n\n" + subtleStyle.Render("press r to retry")
	}
	if !snap.Loaded {
		return subtleStyle.Render("Waiting for lesson data...")
	}

	out, err := renderMarkdown(cfg, snap.Content.Resp, width)
	if err != nil {
		log.Error("error rendering lecture", "error", err)
		out = wordwrap.String(snap.Content.Resp, max(width, 1))
	}
	if len(snap.Content.Images) > 0 {
		var pins []string
		for _, img := range snap.Content.Images {
			pins = append(pins, "📌 "+linkStyle.Render(img))
		}
		out += "\n\n" + strings.Join(pins, "\n")
	}
	return out
}
