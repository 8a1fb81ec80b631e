// ABOUTME: Tests for the agent Registry.
// ABOUTME: Validates registration, duplicate rejection, take/release semantics, and concurrent use.

package agent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ovid-master/internal/logging"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(logging.Discard())
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry(t)
	c, _ := newTestConnection(t, 1, nil, nil)

	require.NoError(t, r.Register(c))

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.True(t, r.Has(1))
	assert.False(t, r.Has(2))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RejectsDuplicateAndDead(t *testing.T) {
	r := newTestRegistry(t)
	first, _ := newTestConnection(t, 1, nil, nil)
	second, _ := newTestConnection(t, 1, nil, nil)
	dead, _ := newTestConnection(t, 2, nil, nil)
	dead.Close()

	require.NoError(t, r.Register(first))
	assert.ErrorIs(t, r.Register(second), ErrAgentAlreadyRegistered)
	assert.ErrorIs(t, r.Register(dead), ErrConnectionClosed)

	got, _ := r.Get(1)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Take(t *testing.T) {
	r := newTestRegistry(t)
	c, _ := newTestConnection(t, 7, nil, nil)
	require.NoError(t, r.Register(c))

	got, ok := r.Take(7)
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.False(t, r.Has(7))

	// Taking again behaves like an unknown id.
	_, ok = r.Take(7)
	assert.False(t, ok)
}

func TestRegistry_Release(t *testing.T) {
	t.Run("removes the registered connection and marks it dead", func(t *testing.T) {
		r := newTestRegistry(t)
		c, _ := newTestConnection(t, 1, nil, nil)
		require.NoError(t, r.Register(c))

		assert.True(t, r.Release(c))
		assert.False(t, r.Has(1))
		assert.False(t, c.Live())
	})

	t.Run("leaves a newer agent with the same id alone", func(t *testing.T) {
		r := newTestRegistry(t)
		old, _ := newTestConnection(t, 1, nil, nil)
		require.NoError(t, r.Register(old))
		_, _ = r.Take(1)

		replacement, _ := newTestConnection(t, 1, nil, nil)
		require.NoError(t, r.Register(replacement))

		assert.False(t, r.Release(old))
		got, ok := r.Get(1)
		require.True(t, ok)
		assert.Same(t, replacement, got)
		assert.True(t, replacement.Live())
	})
}

func TestRegistry_TakeAllAndIDs(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []AgentID{100, 3, 1, 999} {
		c, _ := newTestConnection(t, id, nil, nil)
		require.NoError(t, r.Register(c))
	}

	assert.Equal(t, []AgentID{1, 3, 100, 999}, r.IDs())

	conns := r.TakeAll()
	require.Len(t, conns, 4)
	for i, want := range []AgentID{1, 3, 100, 999} {
		assert.Equal(t, want, conns[i].ID)
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Closed(t *testing.T) {
	r := NewRegistry(logging.Discard())
	r.Close()
	r.Close()

	c, _ := newTestConnection(t, 1, nil, nil)
	assert.ErrorIs(t, r.Register(c), ErrRegistryClosed)
	_, ok := r.Get(1)
	assert.False(t, ok)
	assert.Empty(t, r.TakeAll())
}

func TestRegistry_ConcurrentRegisterAndRelease(t *testing.T) {
	r := newTestRegistry(t)

	conns := make([]*Connection, 32)
	for i := range conns {
		conns[i], _ = newTestConnection(t, AgentID(i+1), nil, nil)
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			assert.NoError(t, r.Register(c))
		}(c)
	}
	wg.Wait()
	assert.Equal(t, len(conns), r.Len())

	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			r.Release(c)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
