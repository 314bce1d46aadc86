package raft

// EntryType distinguishes the three kinds of log entry the engine knows
// how to produce and apply.
type EntryType int

const (
	EntryCommand EntryType = iota
	EntryConfiguration
	EntryBarrier
)

func (t EntryType) String() string {
	switch t {
	case EntryCommand:
		return "command"
	case EntryConfiguration:
		return "configuration"
	case EntryBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// Batch is a shared allocation backing the payload of every entry that was
// materialized together (e.g. decoded off one AppendEntries RPC). The log
// keeps a refcount per entry, not per batch; the batch itself is just the
// owner that the last releasing entry frees.
type Batch struct {
	payload []byte
}

// Entry is a single Raft log record. Index is carried on the entry so that
// acquired slices remain self-describing once they're copied out of the
// ring.
type Entry struct {
	Index   uint64
	Term    uint64
	Type    EntryType
	Payload []byte
	batch   *Batch
}

// Server describes one member of a Configuration.
type Server struct {
	ID      string
	Address string
	Voting  bool
}

// Configuration is an ordered list of servers with no duplicate ids. It is
// installed by the first log entry (bootstrap) and thereafter only replaced
// by applying a configuration entry.
type Configuration struct {
	Servers []Server
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the engine's cached configuration.
func (c Configuration) Clone() Configuration {
	out := Configuration{Servers: make([]Server, len(c.Servers))}
	copy(out.Servers, c.Servers)
	return out
}

// Find returns the server with the given id, if present.
func (c Configuration) Find(id string) (Server, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return Server{}, false
}

// Voters returns the ids of every voting server.
func (c Configuration) Voters() []string {
	var out []string
	for _, s := range c.Servers {
		if s.Voting {
			out = append(out, s.ID)
		}
	}
	return out
}

// Quorum is a strict majority of voters.
func (c Configuration) Quorum() int {
	return len(c.Voters())/2 + 1
}

// WithServer returns a copy of the configuration with the given server
// added (or replaced, if the id already exists).
func (c Configuration) WithServer(s Server) Configuration {
	out := c.Clone()
	for i, existing := range out.Servers {
		if existing.ID == s.ID {
			out.Servers[i] = s
			return out
		}
	}
	out.Servers = append(out.Servers, s)
	return out
}

// WithoutServer returns a copy of the configuration with the given id removed.
func (c Configuration) WithoutServer(id string) Configuration {
	out := Configuration{}
	for _, s := range c.Servers {
		if s.ID != id {
			out.Servers = append(out.Servers, s)
		}
	}
	return out
}

// Snapshot is the persisted state that replaces a log prefix.
type Snapshot struct {
	Index         uint64
	Term          uint64
	Configuration Configuration
	ConfIndex     uint64
	Data          []byte
}
