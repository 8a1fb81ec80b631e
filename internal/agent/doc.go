// Package agent manages the spawned processes of a cluster under test and the
// socket the master holds to each of them.
//
// # Overview
//
// The master starts every agent as a child process, waits for it to bind its
// port, then connects to it. From then on the agent is driven with plain
// newline-delimited text commands and answers asynchronously.
//
// # Connection
//
// A Connection owns one socket:
//
//	conn, err := agent.Dial(ctx, "localhost:5001", agent.ConnectionParams{
//	    ID:         1,
//	    Process:    proc,
//	    Terminator: term,
//	    Output:     transcript,
//	    Acks:       gate,
//	    Logger:     logger,
//	})
//	go conn.Serve(func(c *agent.Connection) { registry.Release(c) })
//
// Serve reassembles lines from the byte stream. A line whose first token is
// "messages" or "alive" is echoed to the transcript and clears the
// acknowledgment barrier; anything else is reported as an invalid response
// and dropped. When the socket fails or the peer closes it, the connection is
// marked dead and removed from the registry.
//
// Send never blocks past the configured write timeout; a failed write marks
// the connection dead.
//
// # Registry
//
// The Registry maps AgentID to *Connection. A single goroutine owns the map
// and every method is a message to it:
//
//   - Register(conn): add a live connection, refusing duplicate ids
//   - Get(id) / Has(id): look up a connection
//   - Take(id): remove and hand over a connection for teardown
//   - Release(conn): reader-side removal, only if conn is still the entry
//   - TakeAll(): empty the registry at shutdown
//
// Every id present in the registry has a live connection.
//
// # Termination
//
// A Terminator is chosen once per run:
//
//   - GroupKill: SIGKILL to the agent's process group (default on Linux/BSD)
//   - CrashMessage: send "crash" and let the agent exit (default on macOS)
//
// Connection.Terminate applies it and closes the socket either way.
package agent
