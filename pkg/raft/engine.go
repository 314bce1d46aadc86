package raft

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/raftcore/pkg/metrics"
)

// Engine is one node's Raft core: the role state machine, its log, and the
// bookkeeping needed to drive leader election, replication, membership
// change, and snapshotting. An Engine is single-threaded and cooperative —
// every method runs to completion on whatever goroutine calls it, and the
// caller is responsible for ensuring OnTick/OnMessage/completion callbacks
// never run concurrently with each other for the same Engine.
type Engine struct {
	id      string
	address string

	storage   Storage
	transport Transport
	fsm       FSM
	clock     Clock
	cfg       EngineConfig

	log zerolog.Logger

	role Role

	entries *Log

	currentTerm uint64
	votedFor    string
	commitIndex uint64
	lastApplied uint64

	configuration                 Configuration
	configurationIndex            uint64
	configurationUncommittedIndex uint64

	snapshot *Snapshot

	follower  followerState
	candidate candidateState
	leader    *leaderState

	timerMs             int64
	electionTimeoutRand int64

	closed bool

	pendingAppend   bool
	pendingTruncate bool
	pendingSnapPut  bool
	pendingSnapGet  bool

	takingSnapshot     bool
	installingSnapshot bool
}

// New constructs an Engine. It does no I/O; call Bootstrap (once, cluster
// wide) and then Load and Start to bring it up.
func New(id, address string, storage Storage, transport Transport, fsm FSM, clock Clock, cfg EngineConfig, logger zerolog.Logger) *Engine {
	cfg.defaults()
	return &Engine{
		id:        id,
		address:   address,
		storage:   storage,
		transport: transport,
		fsm:       fsm,
		clock:     clock,
		cfg:       cfg,
		log:       logger.With().Str("component", "raft").Str("node_id", id).Logger(),
		role:      Unavailable,
		entries:   NewLog(),
	}
}

// ID returns the engine's server id.
func (e *Engine) ID() string { return e.id }

// Role returns the current role.
func (e *Engine) Role() Role { return e.role }

// CurrentTerm returns the current term.
func (e *Engine) CurrentTerm() uint64 { return e.currentTerm }

// CommitIndex returns the commit index.
func (e *Engine) CommitIndex() uint64 { return e.commitIndex }

// LastApplied returns the last applied index.
func (e *Engine) LastApplied() uint64 { return e.lastApplied }

// Configuration returns the committed configuration.
func (e *Engine) Configuration() Configuration { return e.configuration.Clone() }

// FirstLogIndex returns the oldest live log index, or 0 if empty.
func (e *Engine) FirstLogIndex() uint64 { return e.entries.FirstIndex() }

// LastLogIndex returns the newest live log index.
func (e *Engine) LastLogIndex() uint64 { return e.entries.LastIndex() }

// Get returns the log entry at index, if live.
func (e *Engine) Get(index uint64) (Entry, bool) {
	return e.entries.Get(index)
}

// EntriesFrom returns a read-only copy of the log's live entries from
// fromIndex through last_index, for inspection by tests and the fixture.
// It does not affect refcounts.
func (e *Engine) EntriesFrom(fromIndex uint64) []Entry {
	var out []Entry
	for i := fromIndex; i <= e.entries.LastIndex(); i++ {
		if ent, ok := e.entries.Get(i); ok {
			out = append(out, ent)
		}
	}
	return out
}

// IsLeader reports whether this engine believes it is leader.
func (e *Engine) IsLeader() bool { return e.role == Leader }

// LeaderHint returns the last known leader id and address, if any.
func (e *Engine) LeaderHint() (string, string) {
	if e.role == Leader {
		return e.id, e.address
	}
	return e.follower.currentLeaderID, e.follower.currentLeaderAddr
}

// Bootstrap writes the initial configuration entry at index 1, term 1.
// Exactly-once across the cluster; fails if any state already exists.
func (e *Engine) Bootstrap(conf Configuration) error {
	return e.storage.Bootstrap(conf)
}

// Load reads persistent term, vote, entries and optional snapshot from the
// storage port into memory. Must be called before Start.
func (e *Engine) Load() error {
	term, votedFor, snap, entries, err := e.storage.Load()
	if err != nil {
		return wrapError(ErrIO, "load", err)
	}
	e.currentTerm = term
	e.votedFor = votedFor
	e.snapshot = snap

	e.entries = NewLog()
	if snap != nil {
		e.entries.SetOffset(snap.Index)
		e.commitIndex = snap.Index
		e.lastApplied = snap.Index
		e.configuration = snap.Configuration.Clone()
		e.configurationIndex = snap.ConfIndex
	}
	for _, ent := range entries {
		e.entries.Append(ent.Term, ent.Type, ent.Payload, nil)
		if ent.Type == EntryConfiguration {
			conf, cerr := DecodeConfiguration(ent.Payload)
			if cerr == nil {
				e.configuration = conf
				e.configurationIndex = ent.Index
			}
		}
	}
	return nil
}

// Start transitions the engine to follower and begins the election timer.
func (e *Engine) Start() {
	e.becomeFollower(e.currentTerm)
	e.log.Info().Msg("engine started")
}

// Close marks the engine Unavailable and fails every pending apply callback
// with ErrCanceledErr; afterwards ApplyRequest returns ErrCanceledErr. It
// does not wait for outstanding storage or transport I/O and does not
// release log refs.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.role = Unavailable
	if e.leader != nil {
		for _, cb := range e.leader.pending {
			cb(ErrCanceledErr)
		}
		e.leader = nil
	}
	e.log.Info().Msg("engine closed")
}

// ForceElectionTimeout fast-forwards this engine's election timer past its
// randomized deadline so the next OnTick converts it to candidate. Intended
// for deterministic test harnesses (pkg/raft/fixture); production callers
// have no use for it.
func (e *Engine) ForceElectionTimeout() {
	e.timerMs = e.electionTimeoutRand + 1
}

func (e *Engine) isVoter(id string) bool {
	s, ok := e.activeConfiguration().Find(id)
	return ok && s.Voting
}

// activeConfiguration returns the uncommitted configuration if one is
// pending, otherwise the committed one — per spec.md §3, uncommitted
// membership changes are effective for voting/replication immediately.
func (e *Engine) activeConfiguration() Configuration {
	if e.configurationUncommittedIndex != 0 {
		if ent, ok := e.entries.Get(e.configurationUncommittedIndex); ok {
			if conf, err := DecodeConfiguration(ent.Payload); err == nil {
				return conf
			}
		}
	}
	return e.configuration
}

func (e *Engine) resetElectionTimer() {
	e.timerMs = 0
	spread := int(e.cfg.ElectionTimeoutMS)
	e.electionTimeoutRand = e.cfg.ElectionTimeoutMS + int64(e.clock.Random(0, spread))
}

func (e *Engine) becomeFollower(term uint64) {
	if term > e.currentTerm {
		e.currentTerm = term
		e.votedFor = ""
		_ = e.storage.SetTerm(term)
	}
	e.role = Follower
	e.candidate = candidateState{}
	if e.leader != nil {
		for _, cb := range e.leader.pending {
			cb(ErrNotLeaderErr)
		}
	}
	e.leader = nil
	e.resetElectionTimer()
	metrics.RaftIsLeader.Set(0)
	metrics.RaftCurrentTerm.Set(float64(e.currentTerm))
}

func (e *Engine) becomeCandidate() {
	e.currentTerm++
	e.votedFor = e.id
	_ = e.storage.SetTerm(e.currentTerm)
	_ = e.storage.SetVote(e.id)
	e.role = Candidate
	e.leader = nil
	e.candidate = candidateState{votes: map[string]bool{e.id: true}}
	e.resetElectionTimer()
	metrics.RaftElectionsTotal.Inc()
	metrics.RaftCurrentTerm.Set(float64(e.currentTerm))

	lastIndex := e.entries.LastIndex()
	lastTerm := e.entries.LastTerm()
	for _, voterID := range e.activeConfiguration().Voters() {
		if voterID == e.id {
			continue
		}
		e.sendRequestVote(voterID, lastIndex, lastTerm)
	}
	e.log.Debug().Uint64("term", e.currentTerm).Msg("started election")
	if len(e.candidate.votes) >= e.activeConfiguration().Quorum() {
		e.becomeLeader()
	}
}

func (e *Engine) becomeLeader() {
	e.role = Leader
	e.candidate = candidateState{}
	e.leader = newLeaderState()
	now := e.clock.NowMS()
	lastIndex := e.entries.LastIndex()
	for _, s := range e.activeConfiguration().Servers {
		if s.ID == e.id {
			continue
		}
		e.leader.progress[s.ID] = &Progress{
			NextIndex:   lastIndex + 1,
			MatchIndex:  0,
			LastContact: now,
			State:       ProgressProbe,
		}
	}
	e.follower = followerState{}
	metrics.RaftIsLeader.Set(1)
	e.log.Info().Uint64("term", e.currentTerm).Msg("became leader")
	e.replicateToAll()
}
