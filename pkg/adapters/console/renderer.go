package console

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown for a terminal of the
// given width. The style follows the terminal background.
func NewRenderer(width int) func(string) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}
