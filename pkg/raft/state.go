package raft

// Role is the node's position in the Raft state machine.
type Role int

const (
	Unavailable Role = iota
	Follower
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Unavailable:
		return "unavailable"
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// ReplicationState is the leader's view of one follower's catch-up mode.
type ReplicationState int

const (
	ProgressProbe ReplicationState = iota
	ProgressPipeline
	ProgressSnapshot
)

// Progress is the leader's per-follower replication bookkeeping.
type Progress struct {
	NextIndex   uint64
	MatchIndex  uint64
	LastContact int64
	State       ReplicationState
}

// followerState holds Follower-role-only substate.
type followerState struct {
	currentLeaderID   string
	currentLeaderAddr string
}

// candidateState holds Candidate-role-only substate.
type candidateState struct {
	votes map[string]bool // voter id -> granted
}

// leaderState holds Leader-role-only substate.
type leaderState struct {
	progress map[string]*Progress

	promoteeID       string
	promoteRound     int
	roundStart       uint64 // last_index at the start of the current round
	roundStartTimeMs int64
	catchUpStartMs   int64

	pending map[uint64]ApplyCallback // index -> caller callback
}

func newLeaderState() *leaderState {
	return &leaderState{
		progress: make(map[string]*Progress),
		pending:  make(map[uint64]ApplyCallback),
	}
}
