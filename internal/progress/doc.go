// Package progress broadcasts deploy progress to any number of observers
// (terminal viewer, server-sent event streams, tests).
//
// Delivery is best effort: a failing observer is dropped, and nothing is
// buffered or replayed for late subscribers.
package progress
