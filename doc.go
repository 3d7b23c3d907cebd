/*
Package concierge is a conversational appointment-booking assistant for a small
service business.

It talks to clients over a messaging gateway, registers their name and phone,
works out which service, master and time they want, checks that the slot is
free and hands the request to a human operator for approval. Operators use a
small command grammar (/approve, /reject, /connect, /close, /stats) from the
same channel.

# Usage

	store, err := sqlite.NewStore("concierge.db")
	if err != nil {
		log.Fatal(err)
	}
	gen, err := gemini.NewClient(ctx, apiKey, "", 0)
	if err != nil {
		log.Fatal(err)
	}

	assistant, err := concierge.New(store, gateway,
		concierge.WithExtractor(gemini.NewExtractor(gen, logger)),
		concierge.WithResponder(gemini.NewResponder(gen)),
		concierge.WithOperators("77010000001@c.us"),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := assistant.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer assistant.Stop()

	// For every inbound message:
	_ = assistant.Handle(ctx, domain.InboundMessage{From: from, Body: body})

# Concurrency

Messages of one client are handled one at a time under a per-session lock.
Bookings for the same master and day are serialized by a second lock, taken
after the session lock, and the store re-checks overlaps inside its insert
transaction. A Redis lock can be added with WithLocker when several instances
share a database.
*/
package concierge
