package admin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// Kind identifies a command.
type Kind string

const (
	KindStats      Kind = "stats"
	KindDashboard  Kind = "dashboard"
	KindApprove    Kind = "approve"
	KindReject     Kind = "reject"
	KindConnect    Kind = "connect"
	KindClose      Kind = "close"
	KindUpdateName Kind = "update-name"
	KindMyInfo     Kind = "my-info"
)

type argKind int

const (
	argNone argKind = iota
	argID
	argPhone
	argText
)

// rule is one row of the command grammar.
type rule struct {
	kind         Kind
	names        []string
	arg          argKind
	operatorOnly bool
	usage        string
}

var rules = []rule{
	{KindStats, []string{"stats", "admin"}, argNone, true, "/stats"},
	{KindDashboard, []string{"dashboard"}, argNone, true, "/dashboard"},
	{KindApprove, []string{"approve", "ok"}, argID, true, "/approve <id>"},
	{KindReject, []string{"reject", "no"}, argID, true, "/reject <id>"},
	{KindConnect, []string{"connect"}, argPhone, true, "/connect <phone>"},
	{KindClose, []string{"close"}, argNone, true, "/close"},
	{KindUpdateName, []string{"update-name", "update_name"}, argText, false, "/update-name <name>"},
	{KindMyInfo, []string{"my-info", "myinfo"}, argNone, false, "/my-info"},
}

// Command is a parsed command line.
type Command struct {
	Kind Kind
	ID   int64  // approve, reject
	Arg  string // connect phone digits, update-name text
}

// OperatorOnly reports whether only operators may run the command.
func (c Command) OperatorOnly() bool {
	r, _ := lookupKind(c.Kind)
	return r.operatorOnly
}

func lookupKind(k Kind) (rule, bool) {
	for _, r := range rules {
		if r.kind == k {
			return r, true
		}
	}
	return rule{}, false
}

func lookupName(name string) (rule, bool) {
	for _, r := range rules {
		for _, n := range r.names {
			if n == name {
				return r, true
			}
		}
	}
	return rule{}, false
}

// Parse reads a command line. It reports false when text is not a command.
//
// With requireSlash the line must start with "/". Without it a bare line such
// as "connect 77011234567" is also accepted, but only when its argument is
// well formed, so ordinary sentences that start with a command word are not
// mistaken for commands. A slash command with a bad argument returns a
// usage error.
func Parse(text string, requireSlash bool) (Command, bool, error) {
	text = strings.TrimSpace(text)
	slashed := strings.HasPrefix(text, "/")
	if !slashed && requireSlash {
		return Command{}, false, nil
	}

	head, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	r, ok := lookupName(strings.ToLower(head))
	if !ok {
		return Command{}, false, nil
	}
	rest = strings.TrimSpace(rest)

	cmd, err := r.parseArg(rest)
	if err != nil {
		if !slashed {
			return Command{}, false, nil
		}
		return Command{}, true, err
	}
	if !slashed && r.arg == argNone && rest != "" {
		return Command{}, false, nil
	}
	return cmd, true, nil
}

func (r rule) parseArg(rest string) (Command, error) {
	cmd := Command{Kind: r.kind}
	switch r.arg {
	case argID:
		id, err := strconv.ParseInt(strings.TrimPrefix(rest, "#"), 10, 64)
		if err != nil || id <= 0 {
			return cmd, r.usageError()
		}
		cmd.ID = id
	case argPhone:
		digits := domain.PhoneDigits(rest)
		if len(digits) < 4 {
			return cmd, r.usageError()
		}
		cmd.Arg = digits
	case argText:
		if rest == "" {
			return cmd, r.usageError()
		}
		cmd.Arg = rest
	}
	return cmd, nil
}

func (r rule) usageError() error {
	return fmt.Errorf("%w: usage %s", domain.ErrInvalidInput, r.usage)
}

// Usage lists the commands available to operators or clients.
func Usage(operator bool) string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, r := range rules {
		if r.operatorOnly && !operator {
			continue
		}
		b.WriteString("\n")
		b.WriteString(r.usage)
	}
	return b.String()
}
