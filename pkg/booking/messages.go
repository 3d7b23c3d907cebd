package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

func pendingMessage(b *domain.Booking) string {
	return fmt.Sprintf("Thank you, %s! Your request #%d has been sent to the administrator.\n\n"+
		"Service: %s\nMaster: %s\nDate: %s\nTime: %s\nPrice: %d\n\n"+
		"We will message you as soon as it is confirmed.",
		b.ClientName, b.ID, b.Service, b.Master, b.Date, b.Time, b.Price)
}

func operatorMessage(b *domain.Booking) string {
	return fmt.Sprintf("New booking request #%d\n\n"+
		"Client: %s\nPhone: %s\nService: %s\nMaster: %s\nDate: %s\nTime: %s (%d min)\nPrice: %d\n\n"+
		"/approve %d to confirm\n/reject %d to decline",
		b.ID, b.ClientName, b.ClientPhone, b.Service, b.Master, b.Date, b.Time, b.Duration, b.Price, b.ID, b.ID)
}

func confirmedMessage(b *domain.Booking) string {
	return fmt.Sprintf("Your booking #%d is confirmed!\n\n%s with %s on %s at %s.\nSee you soon!",
		b.ID, b.Service, b.Master, b.Date, b.Time)
}

func rejectedMessage(b *domain.Booking) string {
	return fmt.Sprintf("Unfortunately we cannot confirm booking #%d (%s on %s at %s). "+
		"Please pick another time and I will check it for you.",
		b.ID, b.Master, b.Date, b.Time)
}

func cancelledMessage(b *domain.Booking) string {
	return fmt.Sprintf("Your booking #%d (%s with %s on %s at %s) has been cancelled. "+
		"Write to me any time to book again.",
		b.ID, b.Service, b.Master, b.Date, b.Time)
}

func cancelledOperatorMessage(b *domain.Booking) string {
	return fmt.Sprintf("Client %s (%s) cancelled confirmed booking #%d: %s with %s on %s at %s.",
		b.ClientName, b.ClientPhone, b.ID, b.Service, b.Master, b.Date, b.Time)
}

func rateLimitMessage(e *domain.RateLimitError) string {
	return fmt.Sprintf("You have already sent %d booking requests in the last %s. "+
		"Please wait for the administrator to answer before sending more.",
		e.Limit, humanDuration(e.Window))
}

// ConflictMessage tells the client a slot is taken and offers alternatives.
func ConflictMessage(e *domain.ConflictError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sorry, %s is already booked on %s at %s.", e.Master, e.Date, e.Time)
	if len(e.Alternatives) == 0 {
		b.WriteString(" There are no free slots that day, could another day work for you?")
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nFree times that day: %s.\nWhich one suits you?", strings.Join(e.Alternatives, ", "))
	return b.String()
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		if d == time.Hour {
			return "hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	}
	return d.String()
}

// Markers appended to the client history so the language model does not
// produce the same booking twice.
func createdMarker(b *domain.Booking) string {
	return fmt.Sprintf("SYSTEM: booking request #%d (%s, %s, %s %s) was sent to the administrator. Do not create it again.",
		b.ID, b.Service, b.Master, b.Date, b.Time)
}

func decidedMarker(b *domain.Booking) string {
	return fmt.Sprintf("SYSTEM: booking #%d is now %s.", b.ID, b.Status)
}
