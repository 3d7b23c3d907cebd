/*
Package ports defines the driven ports (interfaces) of the booking assistant.

These interfaces decouple the conversation engine from the messaging transport,
language services, persistence and calendar, so each can be swapped for a test
double or a different backend.

# Key Interfaces

  - Store: sessions, bookings, statistics and clients.
  - Gateway: outbound message delivery.
  - Extractor: input validation and booking intent detection.
  - Responder: free-form assistant replies.
  - Calendar: external calendar synchronization.
  - DistributedLocker: cross-replica locking for sessions and slots.
*/
package ports
