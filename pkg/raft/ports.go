package raft

// Storage is the durable persistence port. All methods return quickly and
// signal completion either synchronously (Load, fast reads) or via the
// supplied callback (Append, Truncate, SnapshotPut, SnapshotGet) — the
// engine never blocks waiting on disk. Callbacks must be invoked on the
// engine's own goroutine; see pkg/raft/doc.go for the serialization
// contract this implies for callers.
type Storage interface {
	Load() (term uint64, votedFor string, snap *Snapshot, entries []Entry, err error)
	Bootstrap(conf Configuration) error
	SetTerm(term uint64) error
	SetVote(id string) error
	Append(entries []Entry, cb func(error))
	Truncate(fromIndex uint64, cb func(error))
	SnapshotPut(snap Snapshot, cb func(error))
	SnapshotGet(cb func(*Snapshot, error))
}

// Clock is the time/randomness port, dependency-injected so fixtures can
// drive deterministic simulations.
type Clock interface {
	NowMS() int64
	Random(min, max int) int
}

// Transport is the messaging port. Send is asynchronous; cb fires once the
// message has been handed off (or failed) — it reports only the outcome of
// the send itself, never a reply. Inbound messages (requests and replies
// alike) arrive through Engine.OnMessage, invoked by whatever owns the
// Transport (the fixture, or a production network listener) once the
// message has crossed the wire back to this engine's id.
type Transport interface {
	Send(to string, msg Message, cb func(error))
}

// FSM is the user's application state machine.
type FSM interface {
	Apply(payload []byte) error
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// MessageKind enumerates the six wire message kinds of spec.md §6: three
// RPCs and their results.
type MessageKind int

const (
	MsgRequestVote MessageKind = iota
	MsgRequestVoteResult
	MsgAppendEntries
	MsgAppendEntriesResult
	MsgInstallSnapshot
	MsgInstallSnapshotResult
)

// Message is a tagged union of every RPC the engine sends or receives.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Message struct {
	Kind   MessageKind
	Term   uint64
	From   string
	To     string

	RequestVote       *RequestVoteArgs
	RequestVoteResult *RequestVoteResult

	AppendEntries       *AppendEntriesArgs
	AppendEntriesResult *AppendEntriesResult

	InstallSnapshot       *InstallSnapshotArgs
	InstallSnapshotResult *InstallSnapshotResult
}

type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

type RequestVoteResult struct {
	Term        uint64
	VoteGranted bool
}

type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	LeaderAddr   string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
}

type AppendEntriesResult struct {
	Term         uint64
	Success      bool
	LastLogIndex uint64
}

type InstallSnapshotArgs struct {
	Term        uint64
	LeaderID    string
	LeaderAddr  string
	LastIndex   uint64
	LastTerm    uint64
	ConfIndex   uint64
	Conf        Configuration
	Data        []byte
}

type InstallSnapshotResult struct {
	Term    uint64
	Success bool
}

// ApplyCallback is invoked once the submitted entry is committed and
// applied (or fails, e.g. because the engine steps down or closes first).
type ApplyCallback func(error)

// ApplyRequest is a pending caller submission, keyed by the log index it
// lands at once the leader appends it.
type ApplyRequest struct {
	Index    uint64
	Callback ApplyCallback
}
