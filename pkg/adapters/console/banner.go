package console

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the console greeting.
func PrintBanner(w io.Writer, business string) {
	p := termenv.ColorProfile()
	lines := []termenv.Style{
		termenv.String("   ___ ___  _ __   ___(_) ___ _ __ __ _  ___ ").Foreground(p.Color("#818cf8")),
		termenv.String("  / __/ _ \\| '_ \\ / __| |/ _ \\ '__/ _` |/ _ \\").Foreground(p.Color("#a78bfa")),
		termenv.String(" | (_| (_) | | | | (__| |  __/ | | (_| |  __/").Foreground(p.Color("#c084fc")),
		termenv.String("  \\___\\___/|_| |_|\\___|_|\\___|_|  \\__, |\\___|").Foreground(p.Color("#e879f9")),
		termenv.String("                                  |___/      ").Foreground(p.Color("#f472b6")),
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w, termenv.String("  "+business).Faint())
	fmt.Fprintln(w)
}
