// ABOUTME: Tests for input line parsing.
// ABOUTME: Covers every verb, payload extraction, and the fatal/non-fatal error split.

package master

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"blank", "", Command{Kind: KindSkip}},
		{"whitespace", "   \t\n", Command{Kind: KindSkip}},
		{"exit", "exit\n", Command{Kind: KindExit, Line: "exit"}},
		{"exit padded", "  exit  ", Command{Kind: KindExit, Line: "exit"}},
		{"sleep", "sleep 250", Command{Kind: KindSleep, Delay: 250 * time.Millisecond, Line: "sleep 250"}},
		{"sleep fractional", "sleep 1.5", Command{Kind: KindSleep, Delay: 1500 * time.Microsecond, Line: "sleep 1.5"}},
		{
			"start",
			"1 start 127.0.0.1 5001\n",
			Command{Kind: KindStart, Target: 1, Host: "127.0.0.1", Port: 5001, Payload: "start 127.0.0.1 5001", Line: "1 start 127.0.0.1 5001"},
		},
		{"get", "2 get chatLog", Command{Kind: KindGet, Target: 2, Payload: "get chatLog", Line: "2 get chatLog"}},
		{"get bare", "2 get", Command{Kind: KindGet, Target: 2, Payload: "get", Line: "2 get"}},
		{"alive", "0 alive ping", Command{Kind: KindAlive, Target: 0, Payload: "alive ping", Line: "0 alive ping"}},
		{
			"broadcast keeps inner spacing",
			"100 broadcast hello   world",
			Command{Kind: KindBroadcast, Target: 100, Payload: "broadcast hello   world", Line: "100 broadcast hello   world"},
		},
		{"crash", "3 crash", Command{Kind: KindCrash, Target: 3, Payload: "crash", Line: "3 crash"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		kind      ErrorKind
		fatal     bool
		diagnosis string
	}{
		{"single token", "hello", InvalidCommand, false, "Invalid command: hello"},
		{"bare sleep", "sleep", InvalidCommand, false, "Invalid command: sleep"},
		{"sleep not a number", "sleep soon", InvalidCommand, false, "Invalid command: sleep soon"},
		{"sleep negative", "sleep -5", InvalidCommand, false, "Invalid command: sleep -5"},
		{"unknown verb", "1 dance now", InvalidCommand, false, "Invalid command: 1 dance now"},
		{"start missing port", "1 start 127.0.0.1", InvalidCommand, false, "Invalid command: 1 start 127.0.0.1"},
		{"pid not a number", "x get y", InvalidPID, true, "Invalid pid: x"},
		{"negative pid", "-1 get y", InvalidPID, true, "Invalid pid: -1"},
		{"port not a number", "1 start 127.0.0.1 abc", InvalidPort, true, "Invalid port: abc"},
		{"port out of range", "1 start 127.0.0.1 70000", InvalidPort, true, "Invalid port: 70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			require.Error(t, err)

			var cmdErr *CommandError
			require.True(t, errors.As(err, &cmdErr))
			assert.Equal(t, tt.kind, cmdErr.Kind)
			assert.Equal(t, tt.fatal, cmdErr.Fatal())
			assert.Equal(t, tt.diagnosis, cmdErr.Error())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "broadcast", KindBroadcast.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
