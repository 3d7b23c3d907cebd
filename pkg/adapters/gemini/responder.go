package gemini

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

const (
	checkDirective = "CHECK_AVAILABILITY:"
	historyTurns   = 10
)

var checkPattern = regexp.MustCompile(
	`(?i)CHECK_AVAILABILITY:\s*master=(.+?),\s*date=(\d{4}-\d{2}-\d{2}),\s*time=(\d{1,2}:\d{2})`)

// Responder implements ports.Responder as a Gemini chat.
type Responder struct {
	gen Generator
}

func NewResponder(gen Generator) *Responder {
	return &Responder{gen: gen}
}

// Reply answers the latest client turn of the session.
func (r *Responder) Reply(ctx context.Context, req ports.ReplyRequest) (ports.Reply, error) {
	window := req.Session.Window(historyTurns)
	prompt := ""
	if n := len(window); n > 0 && window[n-1].Role == domain.RoleUser {
		prompt = window[n-1].Content
		window = window[:n-1]
	}

	history := []*genai.Content{
		content("user", systemPrompt(req.Catalog, req.Today)),
		content("model", "Understood. I am ready to help clients."),
	}
	for _, t := range window {
		switch t.Role {
		case domain.RoleAssistant:
			history = append(history, content("model", t.Content))
		default:
			history = append(history, content("user", t.Content))
		}
	}

	out, err := r.gen.Generate(ctx, history, prompt)
	if err != nil {
		return ports.Reply{}, err
	}
	return ParseReply(out), nil
}

// ParseReply removes an availability directive from model output and returns
// it as a slot query.
func ParseReply(out string) ports.Reply {
	m := checkPattern.FindStringSubmatchIndex(out)
	if m == nil {
		return ports.Reply{Text: strings.TrimSpace(out)}
	}

	clock := out[m[6]:m[7]]
	if len(clock) == 4 {
		clock = "0" + clock
	}
	q := &domain.SlotQuery{
		Master: strings.TrimSpace(out[m[2]:m[3]]),
		Date:   out[m[4]:m[5]],
		Time:   clock,
	}

	// Drop the directive through the end of its line.
	end := m[1]
	if nl := strings.IndexByte(out[end:], '\n'); nl >= 0 {
		end += nl
	} else {
		end = len(out)
	}
	text := strings.TrimSpace(out[:m[0]] + out[end:])
	return ports.Reply{Text: text, Check: q}
}
