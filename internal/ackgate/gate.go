// ABOUTME: Single-slot acknowledgment barrier shared by the dispatcher and agent readers.
// ABOUTME: At most one ack-expecting command may be outstanding across the whole cluster.

package ackgate

import (
	"context"
)

// Gate is a single-slot semaphore. The dispatcher occupies the slot when it
// sends a command that expects exactly one acknowledgment; any agent reader
// frees it when a recognized response arrives.
type Gate struct {
	slot chan struct{}
}

// New returns an open Gate.
func New() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Acquire blocks until the slot is free and then occupies it.
// Returns ctx.Err() if the context is done first.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire occupies the slot if it is free and reports whether it did.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the slot. Releasing an open gate is a no-op; the return value
// reports whether an outstanding acknowledgment was actually cleared.
func (g *Gate) Release() bool {
	select {
	case <-g.slot:
		return true
	default:
		return false
	}
}

// Wait blocks until no acknowledgment is outstanding without occupying the slot.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	g.Release()
	return nil
}

// Awaiting reports whether an acknowledgment is currently outstanding.
func (g *Gate) Awaiting() bool {
	return len(g.slot) == 1
}
