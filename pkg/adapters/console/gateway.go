// Package console delivers assistant messages to a terminal, for local chats
// against the real conversation engine.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Gateway implements ports.Gateway by printing every delivery.
type Gateway struct {
	mu      sync.Mutex
	out     io.Writer
	render  func(string) (string, error)
	profile termenv.Profile
}

// NewGateway prints to out. Markdown rendering and colors are enabled only
// when out is a terminal.
func NewGateway(out io.Writer) *Gateway {
	g := &Gateway{out: out, profile: termenv.Ascii}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			width = 80
		}
		g.render = NewRenderer(width)
		g.profile = termenv.ColorProfile()
	}
	return g
}

// Deliver prints text addressed to to.
func (g *Gateway) Deliver(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.render != nil {
		if rendered, err := g.render(text); err == nil {
			text = rendered
		}
	}

	header := "→ " + to
	if g.profile != termenv.Ascii {
		header = termenv.String(header).Foreground(g.profile.Color("#a78bfa")).Bold().String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := fmt.Fprintf(g.out, "%s\n%s\n\n", header, strings.TrimSpace(text))
	return err
}
