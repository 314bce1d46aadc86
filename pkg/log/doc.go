/*
Package log provides structured logging for raftcore using zerolog.

It wraps zerolog with a global root Logger, a small Config/Init pair, and a
set of WithXxx helpers that build the per-instance child loggers the rest of
this tree holds as a struct field rather than looking up a global on every
call.

# Architecture

	┌─────────────────────── LOGGING SYSTEM ───────────────────────┐
	│                                                                │
	│  ┌──────────────────────────────────────────────┐            │
	│  │                 Logger                        │            │
	│  │  - package-level zerolog.Logger                │            │
	│  │  - built once via log.Init() in cmd/raftd       │            │
	│  └──────────────────────┬───────────────────────┘            │
	│                         │                                      │
	│  ┌──────────────────────▼───────────────────────┐            │
	│  │               Configuration                    │            │
	│  │  - Level: debug/info/warn/error                │            │
	│  │  - JSONOutput: JSON or console (human)          │            │
	│  │  - Output: stdout or any io.Writer              │            │
	│  └──────────────────────┬───────────────────────┘            │
	│                         │                                      │
	│  ┌──────────────────────▼───────────────────────┐            │
	│  │            Per-instance child loggers          │            │
	│  │  - WithComponent("raft"|"transport"|"adminapi") │            │
	│  │  - WithNodeID(serverID)                         │            │
	│  │  - WithTerm(term), WithRole(role), WithIndex(i) │            │
	│  │  seeded once at construction, held as a field    │            │
	│  └──────────────────────┬───────────────────────┘            │
	│                         │                                      │
	│  ┌──────────────────────▼───────────────────────┐            │
	│  │                 Log output                     │            │
	│  │  {"level":"info","component":"raft",            │            │
	│  │   "node_id":"n1","term":4,"role":"leader",      │            │
	│  │   "message":"became leader"}                    │            │
	│  └────────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	engineLog := log.WithComponent("raft").With().Str("node_id", "n1").Logger()
	engineLog.Info().Uint64("term", 4).Msg("became leader")

Every long-lived collaborator in this tree — pkg/raft.Engine,
pkg/transport.TCPTransport, pkg/adminapi.Service — takes a zerolog.Logger at
construction time (never this package directly) and tags it with its own
component and node id once, so hot-path log calls never pay for rebuilding
context fields.

# Log lines

Lines follow one convention everywhere in this tree: a short, static
message and structured fields for anything dynamic — never string
formatting of a term, index, or server id into the message itself. The
fields that recur across packages are `component`, `node_id`, `term`,
`role`, and `index`, matching how the engine itself reasons about its
state (spec.md §4).

# See also

  - Zerolog: https://github.com/rs/zerolog
*/
package log
