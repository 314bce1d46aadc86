/*
Package metrics provides Prometheus metrics collection and exposition for the
Raft engine.

The metrics package defines and registers all engine metrics using the
Prometheus client library, giving operators visibility into leadership
status, log growth, replication lag, and snapshot activity. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │  Gauge: instant values (term, commit index) │          │
	│  │  Counter: monotonic increases (elections)   │          │
	│  │  Histogram: distributions (apply latency)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

raftcore_is_leader:
  - Type: Gauge
  - Description: whether this node believes it is leader (1=leader, 0=not)

raftcore_current_term:
  - Type: Gauge
  - Description: current term

raftcore_elections_total:
  - Type: Counter
  - Description: elections started by this node

raftcore_votes_granted_total:
  - Type: Counter
  - Description: RequestVote RPCs granted

raftcore_last_log_index, raftcore_commit_index, raftcore_applied_index:
  - Type: Gauge
  - Description: log index watermarks

raftcore_log_entries:
  - Type: Gauge
  - Description: entries held in the in-memory ring buffer

raftcore_replication_lag{follower_id}:
  - Type: Gauge
  - Description: last_index - match_index per follower

raftcore_apply_duration_seconds:
  - Type: Histogram
  - Description: time from Apply() to commit

raftcore_snapshots_total, raftcore_snapshot_duration_seconds,
raftcore_install_snapshots_total:
  - Type: Counter / Histogram
  - Description: snapshot activity, leader and follower side

raftcore_servers_total, raftcore_voters_total:
  - Type: Gauge
  - Description: size of the committed configuration

# Usage

	timer := metrics.NewTimer()
	// ... apply entry, wait for commit ...
	timer.ObserveDuration(metrics.RaftApplyDuration)

	metrics.RaftReplicationLag.WithLabelValues(followerID).Set(lag)

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Metrics are updated event-driven, from the engine's tick and message
handlers, not via a background poller — the engine is the sole owner of
this state and a separate collector goroutine would race it.
*/
package metrics
