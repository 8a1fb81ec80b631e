// ABOUTME: Shared helpers for agent package tests.
// ABOUTME: Provides loopback socket pairs and recorders for transcript lines and acks.

package agent

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/ovid-master/internal/logging"
)

// lineRecorder implements Output and lets tests wait for lines.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	ch    chan string
}

func newLineRecorder() *lineRecorder {
	return &lineRecorder{ch: make(chan string, 64)}
}

func (r *lineRecorder) Line(s string) {
	r.mu.Lock()
	r.lines = append(r.lines, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *lineRecorder) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript line")
		return ""
	}
}

func (r *lineRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// ackCounter implements AckReleaser.
type ackCounter struct {
	n atomic.Int32
}

func (a *ackCounter) Release() bool {
	a.n.Add(1)
	return true
}

// socketPair returns the master side and the agent side of a loopback TCP connection.
func socketPair(t *testing.T) (master net.Conn, peer net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	master, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	peer, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		master.Close()
		peer.Close()
	})
	return master, peer
}

func newTestConnection(t *testing.T, id AgentID, out Output, acks AckReleaser) (*Connection, net.Conn) {
	t.Helper()
	master, peer := socketPair(t)
	c := NewConnection(ConnectionParams{
		ID:           id,
		Conn:         master,
		Terminator:   CrashMessage{},
		Output:       out,
		Acks:         acks,
		WriteTimeout: time.Second,
		Logger:       logging.Discard(),
	})
	return c, peer
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := r.ReadString('\n')
		ch <- result{s, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read: %v", res.err)
		}
		return res.s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading from socket")
		return ""
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}
