// ABOUTME: Minimal fake agent for end-to-end testing of ovid-master over TCP.
// ABOUTME: Usage: fake-agent <id> <host> <port>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/2389/ovid-master/internal/config"
	"github.com/2389/ovid-master/internal/fakeagent"
	"github.com/2389/ovid-master/internal/logging"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "Usage: fake-agent <id> <host> <port>")
		os.Exit(1)
	}

	id, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid id %q\n", os.Args[1])
		os.Exit(1)
	}

	logger := logging.New(config.LoggingConfig{Level: "info", Format: "text"}, os.Stderr)

	if err := run(id, net.JoinHostPort(os.Args[2], os.Args[3]), logger); err != nil {
		logger.Error("fake agent failed", "error", err)
		os.Exit(1)
	}
}

func run(id int, addr string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := fakeagent.Listen(id, addr, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	logger.Info("listening", "addr", srv.Addr())

	select {
	case <-srv.Crashed():
		logger.Info("crashing")
		return nil
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
