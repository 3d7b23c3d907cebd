package concierge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// Runner feeds lines from Input to an Assistant as messages of one sender.
// Replies reach the user through the Assistant's gateway, so a console
// gateway writing to the same terminal gives a local chat.
//
// A line "/as <id>" switches the sender, which lets one terminal play both a
// client and an operator.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	From     string
	Headless bool
}

// Run reads until EOF, "exit" or "quit", or until ctx is done.
func (r *Runner) Run(ctx context.Context, a *Assistant) error {
	if r.Input == nil || r.Output == nil {
		return errors.New("input and output must be set")
	}
	from := r.From
	if from == "" {
		return errors.New("sender id must be set")
	}

	lines := bufio.NewScanner(r.Input)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !r.Headless {
			fmt.Fprintf(r.Output, "%s> ", from)
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		}
		input := strings.TrimSpace(lines.Text())

		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		case strings.HasPrefix(input, "/as "):
			from = strings.TrimSpace(strings.TrimPrefix(input, "/as "))
			continue
		}

		if err := a.Handle(ctx, domain.InboundMessage{From: from, Body: input}); err != nil {
			fmt.Fprintf(r.Output, "error: %v\n", err)
		}
		// Operator notifications are asynchronous; show them before the next prompt.
		a.notifier.Wait()
	}
}
