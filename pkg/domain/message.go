package domain

import (
	"context"
	"strings"
)

// Profile is what the transport knows about a sender.
type Profile struct {
	Name  string
	Phone string
}

// InboundMessage is a text received from the messaging transport.
type InboundMessage struct {
	From        string
	Body        string
	IsSelfSent  bool
	IsGroupChat bool
	// SenderProfile is resolved lazily because it usually costs a transport round trip.
	SenderProfile func(ctx context.Context) (Profile, error)
}

// Profile resolves the sender profile. A missing resolver yields an empty profile.
func (m InboundMessage) Profile(ctx context.Context) (Profile, error) {
	if m.SenderProfile == nil {
		return Profile{}, nil
	}
	return m.SenderProfile(ctx)
}

// NormalizeAddress strips transport suffixes such as "@c.us" and a leading "+".
func NormalizeAddress(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, '@'); i >= 0 {
		id = id[:i]
	}
	return strings.TrimPrefix(id, "+")
}

// PhoneDigits keeps only the digits of a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneMatches reports whether stored ends with the digits of query.
// An empty query matches nothing.
func PhoneMatches(stored, query string) bool {
	q := PhoneDigits(query)
	return q != "" && strings.HasSuffix(PhoneDigits(stored), q)
}
