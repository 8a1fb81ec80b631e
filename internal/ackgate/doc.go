// Package ackgate provides the acknowledgment barrier that serializes a test
// script's ack-expecting commands over asynchronous agents.
//
// The barrier is a buffered channel of capacity one. Waiting on it is
// event-driven: a blocked dispatcher wakes as soon as a reader frees the slot,
// and a context cancels the wait when the run is forced down.
package ackgate
