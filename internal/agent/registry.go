// ABOUTME: Tracks live agent connections by id in a single owning goroutine.
// ABOUTME: Callers add, look up, and remove connections by sending operations to that goroutine.

package agent

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// AgentID identifies one spawned agent for the lifetime of a run.
type AgentID int

// ErrAgentAlreadyRegistered indicates an agent with the same ID is already live.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// ErrRegistryClosed indicates the registry no longer accepts operations.
var ErrRegistryClosed = errors.New("agent registry closed")

type registryOp func(agents map[AgentID]*Connection)

// Registry maps agent ids to their live connections. The map is owned by one
// goroutine; every method is a message to it, so no two operations ever
// interleave.
type Registry struct {
	ops       chan registryOp
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewRegistry starts the owning goroutine. Call Close to stop it.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		ops:     make(chan registryOp),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	defer close(r.stopped)
	agents := make(map[AgentID]*Connection)
	for {
		select {
		case op := <-r.ops:
			op(agents)
		case <-r.stop:
			return
		}
	}
}

// do runs op on the owning goroutine and waits for it to finish.
// Returns false if the registry has been closed.
func (r *Registry) do(op registryOp) bool {
	done := make(chan struct{})
	select {
	case r.ops <- func(agents map[AgentID]*Connection) {
		defer close(done)
		op(agents)
	}:
		<-done
		return true
	case <-r.stopped:
		return false
	}
}

// Register adds a live connection.
// Returns ErrAgentAlreadyRegistered if the id is taken.
func (r *Registry) Register(c *Connection) error {
	var err error
	ok := r.do(func(agents map[AgentID]*Connection) {
		if _, exists := agents[c.ID]; exists {
			err = ErrAgentAlreadyRegistered
			return
		}
		if !c.Live() {
			err = ErrConnectionClosed
			return
		}
		agents[c.ID] = c
		r.logger.Info("agent registered",
			"agent_id", int(c.ID),
			"addr", c.RemoteAddr(),
			"total_agents", len(agents),
		)
	})
	if !ok {
		return ErrRegistryClosed
	}
	return err
}

// Get returns the connection registered under id.
func (r *Registry) Get(id AgentID) (*Connection, bool) {
	var (
		c     *Connection
		found bool
	)
	r.do(func(agents map[AgentID]*Connection) {
		c, found = agents[id]
	})
	return c, found
}

// Has reports whether id is registered.
func (r *Registry) Has(id AgentID) bool {
	_, ok := r.Get(id)
	return ok
}

// Take removes and returns the connection registered under id. The caller
// owns its teardown.
func (r *Registry) Take(id AgentID) (*Connection, bool) {
	var (
		c     *Connection
		found bool
	)
	r.do(func(agents map[AgentID]*Connection) {
		c, found = agents[id]
		if found {
			delete(agents, id)
			r.logger.Info("agent removed", "agent_id", int(id), "total_agents", len(agents))
		}
	})
	return c, found
}

// Release removes c if it is still the connection registered under its id
// and marks it dead in the same step. A connection that was already taken,
// or replaced by a newer agent with the same id, is left alone.
func (r *Registry) Release(c *Connection) bool {
	var removed bool
	r.do(func(agents map[AgentID]*Connection) {
		if agents[c.ID] == c {
			delete(agents, c.ID)
			removed = true
			r.logger.Info("agent disconnected", "agent_id", int(c.ID), "total_agents", len(agents))
		}
		c.markDead()
	})
	return removed
}

// TakeAll removes every connection and returns them ordered by id.
func (r *Registry) TakeAll() []*Connection {
	var conns []*Connection
	r.do(func(agents map[AgentID]*Connection) {
		conns = make([]*Connection, 0, len(agents))
		for id, c := range agents {
			conns = append(conns, c)
			delete(agents, id)
		}
	})
	slices.SortFunc(conns, func(a, b *Connection) int { return int(a.ID) - int(b.ID) })
	return conns
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []AgentID {
	var ids []AgentID
	r.do(func(agents map[AgentID]*Connection) {
		ids = make([]AgentID, 0, len(agents))
		for id := range agents {
			ids = append(ids, id)
		}
	})
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	var n int
	r.do(func(agents map[AgentID]*Connection) {
		n = len(agents)
	})
	return n
}

// Close stops the owning goroutine. Later operations find nothing.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.stopped
}
