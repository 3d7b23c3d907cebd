package conversation

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/domain"
)

const (
	msgOperatorAck     = "I've passed your request to our administrators, one of them will answer you here soon."
	msgNothingToCancel = "You have no active bookings to cancel. Write to me whenever you want to book!"
	msgFailure         = "Sorry, something went wrong on my side. Please try again in a minute or write \"operator\" to talk to a person."
	maxBusySlots       = 10
)

func welcomeMessage(cat *catalog.Catalog) string {
	return fmt.Sprintf("Hello! I'm the virtual administrator of %s. "+
		"I'll help you pick a service and book a time.\n\n"+
		"To get started, please tell me your name and phone number, for example: Anna +77011234567",
		cat.Business)
}

func askPhoneMessage(name string) string {
	return fmt.Sprintf("Nice to meet you, %s! Please send me your phone number so the administrator can reach you.", name)
}

func menuMessage(name string, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you, %s! Here is what we offer:\n\n", name)
	for _, m := range cat.Masters {
		services := cat.ByMaster(m.Name)
		if len(services) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s, %s:\n", m.Name, m.Title)
		for _, s := range services {
			fmt.Fprintf(&b, "  %s: %d %s\n", s.Name, s.Price, cat.Currency)
		}
		b.WriteString("\n")
	}
	b.WriteString("Which service would you like, and when?")
	return b.String()
}

func operatorRequestMessage(sess *domain.Session, phone string) string {
	name := sess.ClientName
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("Client asks for an operator!\nName: %s\nPhone: %s\n\nTo connect send:\n/connect %s",
		name, phone, phone)
}

func busyMessage(q domain.SlotQuery, slots []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unfortunately %s is already booked on %s at %s.", q.Master, q.Date, q.Time)
	if len(slots) == 0 {
		b.WriteString(" That day is fully booked, could another day work for you?")
		return b.String()
	}
	if len(slots) > maxBusySlots {
		slots = slots[:maxBusySlots]
	}
	b.WriteString("\n\nFree times that day:\n")
	for _, s := range slots {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nWhich one suits you?")
	return b.String()
}
