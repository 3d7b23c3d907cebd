/*
Package domain contains the core model of the booking assistant.

It defines the entities the conversation engine works with and the rules that
govern how they change. The package is free of I/O: persistence, messaging and
language services live behind the interfaces in package ports.

# Key Entities

  - Session: per-user dialogue state (stage, history, draft, operator binding).
  - Stage: closed set of dialogue stages with an explicit transition table.
  - Booking: an appointment request and its status lifecycle.
  - Client: a returning customer, keyed by phone.
  - MasterStats: per-master counters updated when bookings are confirmed.
*/
package domain
