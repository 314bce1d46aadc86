package fixture

import "github.com/cuemby/raftcore/pkg/raft"

// memStorage is an in-memory Storage port: every call completes
// synchronously (the fixture is single-threaded anyway) but still goes
// through the callback shape the real port uses, so engine code doesn't
// need a test-only code path.
type memStorage struct {
	term         uint64
	votedFor     string
	snapshot     *raft.Snapshot
	entries      []raft.Entry
	bootstrapped bool
}

func newMemStorage() *memStorage {
	return &memStorage{}
}

func (s *memStorage) Load() (uint64, string, *raft.Snapshot, []raft.Entry, error) {
	return s.term, s.votedFor, s.snapshot, append([]raft.Entry(nil), s.entries...), nil
}

func (s *memStorage) Bootstrap(conf raft.Configuration) error {
	if s.bootstrapped || len(s.entries) > 0 {
		return raft.ErrBadStateErr
	}
	l := raft.NewLog()
	ent, encErr := l.AppendConfiguration(1, conf)
	if encErr != nil {
		return encErr
	}
	s.term = 1
	s.entries = append(s.entries, ent)
	s.bootstrapped = true
	return nil
}

func (s *memStorage) SetTerm(term uint64) error {
	s.term = term
	return nil
}

func (s *memStorage) SetVote(id string) error {
	s.votedFor = id
	return nil
}

func (s *memStorage) Append(entries []raft.Entry, cb func(error)) {
	s.entries = append(s.entries, entries...)
	if cb != nil {
		cb(nil)
	}
}

func (s *memStorage) Truncate(fromIndex uint64, cb func(error)) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Index < fromIndex {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	if cb != nil {
		cb(nil)
	}
}

func (s *memStorage) SnapshotPut(snap raft.Snapshot, cb func(error)) {
	s.snapshot = &snap
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Index > snap.Index {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	if cb != nil {
		cb(nil)
	}
}

func (s *memStorage) SnapshotGet(cb func(*raft.Snapshot, error)) {
	cb(s.snapshot, nil)
}

// setTerm/setSnapshot/setEntries seed persistent state before Start, used
// by Cluster.SetTerm/SetSnapshot/SetEntries.
func (s *memStorage) setTerm(term uint64)            { s.term = term }
func (s *memStorage) setSnapshot(snap *raft.Snapshot) { s.snapshot = snap }
func (s *memStorage) setEntries(entries []raft.Entry) { s.entries = entries }
