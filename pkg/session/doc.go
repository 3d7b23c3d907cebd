/*
Package session serializes work on sessions and booking slots.

Manager combines an in-process keyed mutex with an optional distributed lock,
so that one inbound message per user is processed at a time and concurrent
bookings of the same master and day are decided one after another, across
replicas when a locker is configured.
*/
package session
