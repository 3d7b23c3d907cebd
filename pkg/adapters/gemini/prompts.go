package gemini

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

func validatePrompt(text string, kind domain.ValidationKind) string {
	var rule string
	switch kind {
	case domain.KindName:
		rule = `Decide whether the message contains a person's first name.
Reject commands, greetings, digits only, or words that are clearly not names.
"value" is the name alone, capitalized.`
	case domain.KindPhone:
		rule = `Decide whether the message contains a phone number with 10 to 15 digits.
"value" is the number as digits only; a leading 8 of an 11-digit number becomes 7.`
	}
	return fmt.Sprintf(`%s

Message: %q

Answer with JSON only:
{"valid": true or false, "value": "...", "message": "a short friendly hint for the client if not valid"}`, rule, text)
}

func transcript(turns []domain.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func intentPrompt(req ports.IntentRequest) string {
	var menu string
	if req.Catalog != nil {
		menu = req.Catalog.Markdown()
	}
	return fmt.Sprintf(`You read a conversation between a beauty studio assistant and a client
and decide whether the client has chosen everything needed for a booking.

Today is %s.

Catalog:
%s
Conversation:
%s
"ready" is true only if the client named a concrete service from the catalog, a master who
offers it, a date and a time, and the assistant has not already said the time is taken or
that the request was sent to the administrator. A general word like "manicure" is not a
concrete service.

Answer with JSON only:
{"ready": true or false, "service": "exact catalog name", "master": "...", "price": 0,
 "date": "YYYY-MM-DD", "time": "HH:MM", "reason": "why not ready"}`,
		req.Today, menu, transcript(req.Window))
}

func systemPrompt(cat *catalog.Catalog, today string) string {
	return fmt.Sprintf(`You are the virtual administrator of %s. Answer briefly and warmly,
in the client's language. Help the client choose a service, a master, a date and a time.

Today is %s. Working hours are from 10:00 to 21:00.

Catalog:
%s
Rules:
- Only offer services and masters from the catalog, with their exact prices.
- Never confirm a booking yourself, the administrator confirms it.
- When the client names a master, a date and a time, add one last line exactly like
  %s master=<name>, date=<YYYY-MM-DD>, time=<HH:MM>
  so the time can be checked.
- Lines starting with "SYSTEM:" are notes from the booking system; follow them.`,
		cat.Business, today, cat.Markdown(), checkDirective)
}
