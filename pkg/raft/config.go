package raft

// EngineConfig holds the engine-level knobs of spec.md §6.
type EngineConfig struct {
	ElectionTimeoutMS    int64
	HeartbeatTimeoutMS   int64
	SnapshotThreshold    uint64
	SnapshotTrailing     uint64
	MaxCatchUpRounds     int
	MaxCatchUpDurationMS int64

	// UnresponsiveFollowerMS gates §4.3 rule 1: past this many ms since
	// last contact, the leader only sends a heartbeat tail to a follower
	// rather than re-replicating its whole backlog. spec.md §9 leaves
	// whether this should be user-configurable as an open question; it is
	// exposed here so callers who want to tune it can, while the zero
	// value still resolves to the spec's constant via defaults().
	UnresponsiveFollowerMS int64
}

// DefaultEngineConfig returns the defaults named in spec.md §6.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ElectionTimeoutMS:      1000,
		HeartbeatTimeoutMS:     100,
		SnapshotThreshold:      0,
		SnapshotTrailing:       100,
		MaxCatchUpRounds:       10,
		MaxCatchUpDurationMS:   30000,
		UnresponsiveFollowerMS: 5000,
	}
}

func (c *EngineConfig) defaults() {
	d := DefaultEngineConfig()
	if c.ElectionTimeoutMS == 0 {
		c.ElectionTimeoutMS = d.ElectionTimeoutMS
	}
	if c.HeartbeatTimeoutMS == 0 {
		c.HeartbeatTimeoutMS = d.HeartbeatTimeoutMS
	}
	if c.SnapshotTrailing == 0 {
		c.SnapshotTrailing = d.SnapshotTrailing
	}
	if c.MaxCatchUpRounds == 0 {
		c.MaxCatchUpRounds = d.MaxCatchUpRounds
	}
	if c.MaxCatchUpDurationMS == 0 {
		c.MaxCatchUpDurationMS = d.MaxCatchUpDurationMS
	}
	if c.UnresponsiveFollowerMS == 0 {
		c.UnresponsiveFollowerMS = d.UnresponsiveFollowerMS
	}
}
