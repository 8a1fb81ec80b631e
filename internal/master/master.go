// ABOUTME: Command dispatcher driving a cluster of agents from a line-oriented script.
// ABOUTME: Spawns agents, routes commands through the registry, and serializes acks through the barrier.

package master

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/2389/ovid-master/internal/ackgate"
	"github.com/2389/ovid-master/internal/agent"
	"github.com/2389/ovid-master/internal/config"
	"github.com/2389/ovid-master/internal/transcript"
)

// MsgTestcaseError is printed when a command targets an agent that is not registered.
const MsgTestcaseError = "Master or testcase error!"

var (
	// ErrExit is returned by Dispatch for the exit command.
	ErrExit = errors.New("exit requested")

	// ErrWatchdogExpired is the cancellation cause when the run deadline passes.
	ErrWatchdogExpired = errors.New("watchdog expired")

	// ErrInputFailed is the cancellation cause when the script cannot be read.
	ErrInputFailed = errors.New("reading input failed")
)

// Params holds the collaborators of a Master.
type Params struct {
	Config     *config.Config
	Spawner    agent.Spawner
	Terminator agent.Terminator
	Output     *transcript.Writer
	// Cleanup replaces the configured cleanup command when set.
	Cleanup func() error
	Debug   bool
	Logger  *slog.Logger
}

// Master executes an input script against a set of agents.
type Master struct {
	cfg        *config.Config
	registry   *agent.Registry
	gate       *ackgate.Gate
	spawner    agent.Spawner
	terminator agent.Terminator
	out        *transcript.Writer
	cleanup    func() error
	debug      bool
	logger     *slog.Logger
	watchdog   *Watchdog
}

// New creates a Master. The registry it owns is closed at the end of Run.
func New(p Params) (*Master, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if p.Spawner == nil {
		return nil, fmt.Errorf("spawner is required")
	}
	if p.Output == nil {
		return nil, fmt.Errorf("output is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	terminator := p.Terminator
	if terminator == nil {
		var err error
		terminator, err = agent.NewTerminator(p.Config.Agents.CrashPolicy)
		if err != nil {
			return nil, err
		}
	}

	m := &Master{
		cfg:        p.Config,
		registry:   agent.NewRegistry(logger),
		gate:       ackgate.New(),
		spawner:    p.Spawner,
		terminator: terminator,
		out:        p.Output,
		cleanup:    p.Cleanup,
		debug:      p.Debug,
		logger:     logger,
	}
	if m.cleanup == nil {
		m.cleanup = m.runCleanupCommand
	}
	return m, nil
}

// Registry exposes the live agent registry.
func (m *Master) Registry() *agent.Registry {
	return m.registry
}

// Gate exposes the acknowledgment barrier.
func (m *Master) Gate() *ackgate.Gate {
	return m.gate
}

// Run dispatches every line of in until exit, end of input, a fatal error,
// cancellation of ctx, or the watchdog. It always tears the cluster down
// and returns the process exit code.
func (m *Master) Run(ctx context.Context, in io.Reader) int {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if m.debug {
		m.out.Line("Master started")
	}
	m.logger.Info("master started",
		"watchdog", m.cfg.Timing.Watchdog,
		"crash_policy", m.terminator.Name(),
	)

	m.watchdog = NewWatchdog(m.cfg.Timing.Watchdog, func() {
		m.out.Line("Timeout!")
		m.logger.Error("watchdog expired, forcing shutdown", "after", m.cfg.Timing.Watchdog)
		cancel(ErrWatchdogExpired)
	})
	defer m.watchdog.Stop()

	lines := readLines(ctx, in, func(err error) {
		m.logger.Error("reading input", "error", err)
		cancel(fmt.Errorf("%w: %w", ErrInputFailed, err))
	})

	for {
		select {
		case <-ctx.Done():
			return m.Shutdown(ctx, true, context.Cause(ctx))
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return m.Shutdown(ctx, true, context.Cause(ctx))
				}
				m.logger.Info("end of input")
				return m.Shutdown(ctx, false, nil)
			}
			err := m.Dispatch(ctx, line)
			switch {
			case err == nil:
			case errors.Is(err, ErrExit):
				return m.Shutdown(ctx, false, nil)
			case ctx.Err() != nil:
				return m.Shutdown(ctx, true, context.Cause(ctx))
			default:
				return m.Shutdown(ctx, true, err)
			}
		}
	}
}

// readLines feeds in to the returned channel one line at a time and closes
// it at end of input. A read error is reported through onErr first.
func readLines(ctx context.Context, in io.Reader, onErr func(error)) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		r := bufio.NewReader(in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					onErr(err)
				}
				return
			}
		}
	}()
	return lines
}

// Dispatch executes one input line. It returns nil for lines that were
// handled or reported, ErrExit for exit, and any other error for conditions
// that must end the run.
func (m *Master) Dispatch(ctx context.Context, line string) error {
	cmd, err := ParseCommand(line)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			m.out.Line(cmdErr.Error())
			if cmdErr.Fatal() {
				return err
			}
			m.logger.Warn("skipping invalid command", "line", cmdErr.Line)
			return nil
		}
		return err
	}

	m.logger.Debug("dispatching", "kind", cmd.Kind.String(), "agent_id", int(cmd.Target))

	switch cmd.Kind {
	case KindSkip:
		return nil
	case KindExit:
		if m.debug {
			m.out.Line("Received exit command. Terminating...")
		}
		return ErrExit
	case KindSleep:
		return sleep(ctx, cmd.Delay)
	case KindStart:
		return m.start(ctx, cmd)
	case KindGet, KindAlive:
		return m.sendAwaitingAck(ctx, cmd)
	case KindBroadcast:
		return m.broadcast(ctx, cmd)
	case KindCrash:
		return m.crash(ctx, cmd)
	default:
		return fmt.Errorf("unhandled command kind %v", cmd.Kind)
	}
}

func (m *Master) start(ctx context.Context, cmd Command) error {
	if m.registry.Has(cmd.Target) {
		m.out.Line(MsgTestcaseError)
		m.logger.Warn("start for an agent that is already running", "agent_id", int(cmd.Target))
		return nil
	}

	proc, err := m.spawner.Spawn(ctx, cmd.Target, cmd.Host, cmd.Port)
	if err != nil {
		m.out.Linef("Could not start agent %d: %v", cmd.Target, err)
		return err
	}

	// Give the agent time to bind its listening port.
	if err := sleep(ctx, m.cfg.Timing.Settle); err != nil {
		killProcess(proc)
		return err
	}

	host := m.cfg.Agents.ConnectHost
	if host == "" {
		host = cmd.Host
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cmd.Port))

	conn, err := agent.Dial(ctx, addr, agent.ConnectionParams{
		ID:           cmd.Target,
		Process:      proc,
		Terminator:   m.terminator,
		Output:       m.out,
		Acks:         m.gate,
		WriteTimeout: m.cfg.Agents.WriteTimeout,
		Logger:       m.logger,
	})
	if err != nil {
		m.out.Linef("Could not connect to agent %d: %v", cmd.Target, err)
		killProcess(proc)
		return err
	}

	if err := m.registry.Register(conn); err != nil {
		m.logger.Error("registering agent", "agent_id", int(cmd.Target), "error", err)
		_ = conn.Terminate()
		m.out.Line(MsgTestcaseError)
		return nil
	}

	go conn.Serve(func(c *agent.Connection) {
		m.registry.Release(c)
	})
	return nil
}

func (m *Master) sendAwaitingAck(ctx context.Context, cmd Command) error {
	if err := m.gate.Acquire(ctx); err != nil {
		return err
	}

	conn, ok := m.registry.Get(cmd.Target)
	if !ok {
		m.gate.Release()
		m.out.Line(MsgTestcaseError)
		return nil
	}

	if err := conn.Send(cmd.Payload); err != nil {
		m.gate.Release()
		m.logger.Warn("send failed", "agent_id", int(cmd.Target), "error", err)
		m.out.Line(MsgTestcaseError)
	}
	return nil
}

func (m *Master) broadcast(ctx context.Context, cmd Command) error {
	if err := m.gate.Wait(ctx); err != nil {
		return err
	}

	conn, ok := m.registry.Get(cmd.Target)
	if !ok {
		m.out.Line(MsgTestcaseError)
		return nil
	}

	if err := conn.Send(cmd.Payload); err != nil {
		m.logger.Warn("broadcast failed", "agent_id", int(cmd.Target), "error", err)
		m.out.Line(MsgTestcaseError)
	}
	return nil
}

func (m *Master) crash(ctx context.Context, cmd Command) error {
	if err := m.gate.Wait(ctx); err != nil {
		return err
	}

	conn, ok := m.registry.Take(cmd.Target)
	if !ok {
		m.out.Line(MsgTestcaseError)
	} else if err := conn.Terminate(); err != nil {
		m.logger.Warn("crash did not complete cleanly", "agent_id", int(cmd.Target), "error", err)
	}

	// Let the rest of the cluster notice the failure.
	return sleep(ctx, m.cfg.Timing.CrashPause)
}

func killProcess(p *agent.Process) {
	if p != nil {
		_ = p.Kill()
	}
}

// sleep pauses for d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
