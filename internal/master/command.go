// ABOUTME: Parses one line of the master's input script into a Command.
// ABOUTME: Invalid pid and port are fatal; every other malformed line is reported and skipped.

package master

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/2389/ovid-master/internal/agent"
)

// Kind identifies what a parsed line asks the master to do.
type Kind int

const (
	KindSkip Kind = iota // blank line
	KindExit
	KindSleep
	KindStart
	KindGet
	KindAlive
	KindBroadcast
	KindCrash
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindExit:
		return "exit"
	case KindSleep:
		return "sleep"
	case KindStart:
		return "start"
	case KindGet:
		return "get"
	case KindAlive:
		return "alive"
	case KindBroadcast:
		return "broadcast"
	case KindCrash:
		return "crash"
	default:
		return "unknown"
	}
}

// Command is one parsed input line.
type Command struct {
	Kind   Kind
	Target agent.AgentID
	// Payload is the line without its target token, forwarded verbatim to
	// the agent for get, alive and broadcast ("get chatlog").
	Payload string
	Host    string
	Port    int
	Delay   time.Duration
	Line    string
}

// ErrorKind classifies a CommandError.
type ErrorKind int

const (
	InvalidCommand ErrorKind = iota
	InvalidPID
	InvalidPort
)

// CommandError describes a line that could not be parsed. Error() is the
// exact diagnostic printed to the transcript.
type CommandError struct {
	Kind  ErrorKind
	Line  string
	Token string
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case InvalidPID:
		return "Invalid pid: " + e.Token
	case InvalidPort:
		return "Invalid port: " + e.Token
	default:
		return "Invalid command: " + e.Line
	}
}

// Fatal reports whether the error must abort the run.
func (e *CommandError) Fatal() bool {
	return e.Kind == InvalidPID || e.Kind == InvalidPort
}

// ParseCommand parses one input line.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{Kind: KindSkip}, nil
	}
	if trimmed == "exit" {
		return Command{Kind: KindExit, Line: trimmed}, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return Command{}, &CommandError{Kind: InvalidCommand, Line: trimmed}
	}
	rest := strings.TrimSpace(trimmed[len(fields[0]):])

	if fields[0] == "sleep" {
		ms, err := strconv.ParseFloat(rest, 64)
		if err != nil || ms < 0 || math.IsInf(ms, 0) || math.IsNaN(ms) {
			return Command{}, &CommandError{Kind: InvalidCommand, Line: trimmed}
		}
		return Command{
			Kind:  KindSleep,
			Delay: time.Duration(ms * float64(time.Millisecond)),
			Line:  trimmed,
		}, nil
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 0 {
		return Command{}, &CommandError{Kind: InvalidPID, Line: trimmed, Token: fields[0]}
	}

	cmd := Command{
		Target:  agent.AgentID(id),
		Payload: rest,
		Line:    trimmed,
	}

	switch fields[1] {
	case "start":
		if len(fields) < 4 {
			return Command{}, &CommandError{Kind: InvalidCommand, Line: trimmed}
		}
		port, err := strconv.Atoi(fields[3])
		if err != nil || port <= 0 || port > math.MaxUint16 {
			return Command{}, &CommandError{Kind: InvalidPort, Line: trimmed, Token: fields[3]}
		}
		cmd.Kind = KindStart
		cmd.Host = fields[2]
		cmd.Port = port
	case "get":
		cmd.Kind = KindGet
	case "alive":
		cmd.Kind = KindAlive
	case "broadcast":
		cmd.Kind = KindBroadcast
	case "crash":
		cmd.Kind = KindCrash
	default:
		return Command{}, &CommandError{Kind: InvalidCommand, Line: trimmed}
	}

	return cmd, nil
}
