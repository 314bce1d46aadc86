/*
Package raft implements the core of a Raft consensus library: a per-node
replicated state machine engine that turns a quorum of cooperating nodes
into a single logically-consistent log and applies committed entries to a
caller-supplied state machine (Ongaro's dissertation).

# Scope

This package owns leader election, log replication, one-at-a-time
membership change, and log-based snapshotting. It does not own durable
persistence, wire transport, or the application state machine — those are
pluggable through the Storage, Transport, and FSM ports in ports.go.
Byzantine fault tolerance, read leases, pre-vote, and joint-consensus
membership change are explicitly out of scope.

# Threading model

An Engine is single-threaded and cooperative: OnTick, OnMessage, and every
completion callback handed to a port must be invoked on the same goroutine,
one at a time. The engine itself never spawns a goroutine or blocks;
callers (typically pkg/raft/fixture in tests, or a production event loop in
cmd/raftd) own the scheduling of ticks and message delivery and must
serialize completions from Storage and Transport back onto that same
goroutine.

# Lifecycle

	e := raft.New(id, addr, storage, transport, fsm, clock, cfg, logger)
	_ = e.Bootstrap(initialConfiguration) // once, cluster-wide
	_ = e.Load()
	e.Start()
	// drive e.OnTick / e.OnMessage from an event loop
	e.Close()
*/
package raft
