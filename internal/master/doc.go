// Package master runs a scripted test against a cluster of agent processes.
//
// # Input
//
// One command per line:
//
//	sleep <ms>
//	exit
//	<id> start <host> <port>
//	<id> get <payload>
//	<id> alive <payload>
//	<id> broadcast <payload>
//	<id> crash
//
// # Flow
//
// A single goroutine dispatches lines in order. start spawns the agent,
// waits the settle interval, connects, and registers the connection; each
// connection then reads responses on its own goroutine. get and alive take
// the acknowledgment barrier, so at most one of them is outstanding across
// the cluster; the agent's "messages" or "alive" reply frees it. broadcast
// and crash wait for the barrier without taking it.
//
// # Termination
//
// exit and end of input shut down in order: wait for the outstanding ack,
// terminate every agent, run the cleanup command, pause, return. The
// watchdog, fatal parse errors (bad pid or port), connect failures, and
// input errors shut down forced, skipping the ack wait.
package master
