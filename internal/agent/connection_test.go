// ABOUTME: Tests for the agent Connection.
// ABOUTME: Covers response classification, line reassembly, sends, peer close, and termination.

package agent

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ovid-master/internal/logging"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		line string
		want ResponseKind
	}{
		{"messages a,b,c", ResponseMessages},
		{"messages", ResponseMessages},
		{"alive 1,2", ResponseAlive},
		{"  alive   3", ResponseAlive},
		{"", ResponseInvalid},
		{"   ", ResponseInvalid},
		{"message a", ResponseInvalid},
		{"ALIVE 1", ResponseInvalid},
		{"hello alive", ResponseInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyResponse(tt.line))
		})
	}
}

func TestConnectionServe(t *testing.T) {
	t.Run("echoes acks and releases the barrier", func(t *testing.T) {
		out := newLineRecorder()
		acks := &ackCounter{}
		c, peer := newTestConnection(t, 1, out, acks)
		go c.Serve(nil)

		_, err := peer.Write([]byte("alive 1,2,3\nmessages hello,world\n"))
		require.NoError(t, err)

		assert.Equal(t, "alive 1,2,3", out.next(t))
		assert.Equal(t, "messages hello,world", out.next(t))
		assert.EqualValues(t, 2, acks.n.Load())
	})

	t.Run("reports invalid responses without releasing", func(t *testing.T) {
		out := newLineRecorder()
		acks := &ackCounter{}
		c, peer := newTestConnection(t, 1, out, acks)
		go c.Serve(nil)

		_, err := peer.Write([]byte("garbage here\n"))
		require.NoError(t, err)

		assert.Equal(t, "Invalid Response: garbage here", out.next(t))
		assert.EqualValues(t, 0, acks.n.Load())
		assert.True(t, c.Live(), "invalid response must not kill the connection")
	})

	t.Run("reassembles lines split across writes", func(t *testing.T) {
		out := newLineRecorder()
		c, peer := newTestConnection(t, 1, out, &ackCounter{})
		go c.Serve(nil)

		for _, chunk := range []string{"mess", "ages a", ",b\nali", "ve 9", "\n"} {
			_, err := peer.Write([]byte(chunk))
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond)
		}

		assert.Equal(t, "messages a,b", out.next(t))
		assert.Equal(t, "alive 9", out.next(t))
	})

	t.Run("peer close marks dead and calls onClosed", func(t *testing.T) {
		c, peer := newTestConnection(t, 4, newLineRecorder(), &ackCounter{})

		closed := make(chan *Connection, 1)
		go c.Serve(func(conn *Connection) { closed <- conn })

		require.NoError(t, peer.Close())

		select {
		case got := <-closed:
			assert.Same(t, c, got)
		case <-time.After(2 * time.Second):
			t.Fatal("onClosed not called")
		}
		waitClosed(t, c.Done())
		assert.False(t, c.Live())
		assert.ErrorIs(t, c.Send("get"), ErrConnectionClosed)
	})
}

func TestConnectionSend(t *testing.T) {
	t.Run("writes one newline-terminated line", func(t *testing.T) {
		c, peer := newTestConnection(t, 1, newLineRecorder(), &ackCounter{})
		r := bufio.NewReader(peer)

		require.NoError(t, c.Send("get chatlog"))
		require.NoError(t, c.Send("broadcast hi there"))

		assert.Equal(t, "get chatlog\n", readLine(t, r))
		assert.Equal(t, "broadcast hi there\n", readLine(t, r))
	})

	t.Run("no-op once closed", func(t *testing.T) {
		c, _ := newTestConnection(t, 1, newLineRecorder(), &ackCounter{})
		c.Close()
		c.Close()

		assert.False(t, c.Live())
		assert.ErrorIs(t, c.Send("get"), ErrConnectionClosed)
	})
}

func TestConnectionTerminate(t *testing.T) {
	t.Run("crash message policy sends crash then closes", func(t *testing.T) {
		c, peer := newTestConnection(t, 2, newLineRecorder(), &ackCounter{})
		r := bufio.NewReader(peer)

		require.NoError(t, c.Terminate())
		assert.Equal(t, CrashCommand+"\n", readLine(t, r))
		assert.False(t, c.Live())

		// Second terminate is a no-op.
		require.NoError(t, c.Terminate())
	})

	t.Run("group kill without a process still closes", func(t *testing.T) {
		master, _ := socketPair(t)
		c := NewConnection(ConnectionParams{
			ID:         3,
			Conn:       master,
			Terminator: GroupKill{},
			Logger:     logging.Discard(),
		})

		err := c.Terminate()
		assert.ErrorIs(t, err, ErrNoProcess)
		assert.False(t, c.Live())
	})
}

func TestDial(t *testing.T) {
	t.Run("connects to a listening agent", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(100 * time.Millisecond)
			}
		}()

		c, err := Dial(context.Background(), ln.Addr().String(), ConnectionParams{ID: 5, Logger: logging.Discard()})
		require.NoError(t, err)
		defer c.Close()
		assert.True(t, c.Live())
		assert.Equal(t, AgentID(5), c.ID)
	})

	t.Run("unreachable target is a ConnectionError", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		_, err = Dial(context.Background(), addr, ConnectionParams{ID: 6})
		require.Error(t, err)

		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, AgentID(6), connErr.ID)
		assert.Equal(t, addr, connErr.Addr)
	})
}

func TestNewTerminator(t *testing.T) {
	term, err := NewTerminator("signal")
	require.NoError(t, err)
	assert.Equal(t, "signal", term.Name())

	term, err = NewTerminator("message")
	require.NoError(t, err)
	assert.Equal(t, "message", term.Name())

	term, err = NewTerminator("auto")
	require.NoError(t, err)
	assert.NotNil(t, term)

	_, err = NewTerminator("nuke")
	assert.Error(t, err)
}
