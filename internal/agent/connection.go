// ABOUTME: Represents a single spawned agent and owns the socket to it.
// ABOUTME: Reassembles newline-delimited responses, echoes acks, and forwards raw commands.

package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrConnectionClosed indicates the connection is no longer live.
var ErrConnectionClosed = errors.New("agent connection closed")

// ConnectionError wraps a failure to reach a freshly spawned agent.
type ConnectionError struct {
	ID   AgentID
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to agent %d at %s: %v", e.ID, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Output receives whole transcript lines.
type Output interface {
	Line(s string)
}

// AckReleaser is cleared when an agent acknowledges a command.
type AckReleaser interface {
	Release() bool
}

// ResponseKind classifies one line received from an agent.
type ResponseKind int

const (
	ResponseInvalid ResponseKind = iota
	ResponseMessages
	ResponseAlive
)

// ClassifyResponse inspects the first whitespace-separated token of line.
func ClassifyResponse(line string) ResponseKind {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ResponseInvalid
	}
	switch fields[0] {
	case "messages":
		return ResponseMessages
	case "alive":
		return ResponseAlive
	default:
		return ResponseInvalid
	}
}

// ConnectionParams holds the collaborators of a Connection.
type ConnectionParams struct {
	ID           AgentID
	Conn         net.Conn
	Process      *Process
	Terminator   Terminator
	Output       Output
	Acks         AckReleaser
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Connection represents one agent process and the socket the master holds to it.
type Connection struct {
	ID AgentID

	conn         net.Conn
	process      *Process
	terminator   Terminator
	out          Output
	acks         AckReleaser
	writeTimeout time.Duration
	logger       *slog.Logger

	live      atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection wraps an established socket.
func NewConnection(p ConnectionParams) *Connection {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	terminator := p.Terminator
	if terminator == nil {
		terminator = CrashMessage{}
	}
	c := &Connection{
		ID:           p.ID,
		conn:         p.Conn,
		process:      p.Process,
		terminator:   terminator,
		out:          p.Output,
		acks:         p.Acks,
		writeTimeout: p.WriteTimeout,
		logger:       logger.With("agent_id", int(p.ID)),
		done:         make(chan struct{}),
	}
	c.live.Store(true)
	return c
}

// Dial opens a stream socket to addr and wraps it in a Connection.
// Failure is returned as a *ConnectionError.
func Dial(ctx context.Context, addr string, p ConnectionParams) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{ID: p.ID, Addr: addr, Err: err}
	}
	p.Conn = conn
	return NewConnection(p), nil
}

// Live reports whether the connection can still carry commands.
func (c *Connection) Live() bool {
	return c.live.Load()
}

// Process returns the spawned process behind this connection, if any.
func (c *Connection) Process() *Process {
	return c.process
}

// RemoteAddr returns the agent's socket address.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Done is closed once the receive loop has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send writes line plus a newline to the agent in a single write.
// Returns ErrConnectionClosed if the connection is no longer live. A failed
// or timed-out write marks the connection dead.
func (c *Connection) Send(line string) error {
	if !c.Live() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.logger.Warn("write to agent failed", "error", err)
		c.Close()
		return fmt.Errorf("writing to agent %d: %w", c.ID, err)
	}

	c.logger.Debug("sent to agent", "line", line)
	return nil
}

// Serve runs the receive loop until the socket fails or the peer closes it.
// onClosed is invoked once, after the connection is marked dead and before
// the socket is closed.
func (c *Connection) Serve(onClosed func(*Connection)) {
	defer close(c.done)

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if line != "" {
				c.logger.Debug("dropping partial line", "line", line)
			}
			if c.Live() {
				c.logger.Info("agent connection lost", "error", err)
			}
			break
		}
		c.handleLine(strings.TrimSuffix(line, "\n"))
	}

	if onClosed != nil {
		onClosed(c)
	}
	c.Close()
}

func (c *Connection) handleLine(line string) {
	switch ClassifyResponse(line) {
	case ResponseMessages, ResponseAlive:
		if c.out != nil {
			c.out.Line(line)
		}
		if c.acks != nil {
			c.acks.Release()
		}
	default:
		if c.out != nil {
			c.out.Line("Invalid Response: " + line)
		}
		c.logger.Warn("invalid response from agent", "line", line)
	}
}

// Terminate stops the agent with the connection's termination strategy if
// it is still live, then closes the socket regardless of the outcome.
func (c *Connection) Terminate() error {
	if !c.Live() {
		return nil
	}
	err := c.terminator.Terminate(c)
	c.Close()
	if err != nil {
		return fmt.Errorf("terminating agent %d: %w", c.ID, err)
	}
	c.logger.Info("agent terminated")
	return nil
}

// Close marks the connection dead and closes the socket.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.markDead()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Connection) markDead() {
	c.live.Store(false)
}
