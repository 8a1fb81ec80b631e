// ABOUTME: Minimal agent speaking the master's newline-delimited socket protocol.
// ABOUTME: Answers get with its broadcast log, alive with its id, and exits on crash.

// Package fakeagent implements a stand-in agent for exercising the master
// without a real cluster.
package fakeagent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Server listens for the master and answers its commands.
type Server struct {
	ID int

	ln      net.Listener
	logger  *slog.Logger
	mu      sync.Mutex
	log     []string
	conns   map[net.Conn]struct{}
	crashed chan struct{}
	once    sync.Once
}

// Listen binds addr for agent id.
func Listen(id int, addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Server{
		ID:      id,
		ln:      ln,
		logger:  logger.With("agent_id", id),
		conns:   make(map[net.Conn]struct{}),
		crashed: make(chan struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Crashed is closed once a crash command has been received.
func (s *Server) Crashed() <-chan struct{} {
	return s.crashed
}

// Messages returns the broadcast payloads received so far.
func (s *Server) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

// Serve accepts connections until ctx is done, Close is called, or a crash
// command arrives.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-s.crashed:
		}
		s.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting: %w", err)
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply, crash := s.respond(scanner.Text())
		if crash {
			s.logger.Info("crash requested")
			s.once.Do(func() { close(s.crashed) })
			return
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			s.logger.Warn("reply failed", "error", err)
			return
		}
	}
}

// respond computes the reply to one command line.
func (s *Server) respond(line string) (reply string, crash bool) {
	verb, payload, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case "get":
		s.mu.Lock()
		defer s.mu.Unlock()
		return "messages " + strings.Join(s.log, ","), false
	case "alive":
		return "alive " + strconv.Itoa(s.ID), false
	case "broadcast":
		s.mu.Lock()
		s.log = append(s.log, payload)
		s.mu.Unlock()
		return "", false
	case "crash":
		return "", true
	default:
		s.logger.Debug("ignoring command", "line", line)
		return "", false
	}
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
