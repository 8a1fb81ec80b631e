// ABOUTME: Tests for the fake agent server.
// ABOUTME: Drives it over a real socket the way the master does.

package fakeagent

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ovid-master/internal/logging"
)

func startServer(t *testing.T, id int) *Server {
	t.Helper()
	s, err := Listen(id, "127.0.0.1:0", logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func TestServer_Protocol(t *testing.T) {
	s := startServer(t, 3)

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte("alive\nbroadcast hello\nbroadcast world\nget\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "alive 3\n", line)

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "messages hello,world\n", line)

	assert.Equal(t, []string{"hello", "world"}, s.Messages())
}

func TestServer_Crash(t *testing.T) {
	s := startServer(t, 1)

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("crash\n"))
	require.NoError(t, err)

	select {
	case <-s.Crashed():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not crash")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = bufio.NewReader(conn).ReadString('\n')
	assert.Error(t, err, "connection should be closed after crash")
}
