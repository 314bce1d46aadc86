package raft

import (
	"sort"

	"github.com/cuemby/raftcore/pkg/metrics"
)

// replicateToAll triggers an AppendEntries send to every follower. Used for
// heartbeats and immediately after becoming leader.
func (e *Engine) replicateToAll() {
	if e.leader == nil {
		return
	}
	for id := range e.leader.progress {
		e.sendAppendEntriesTo(id)
	}
}

// sendAppendEntriesTo implements spec.md §4.3 "Sending AppendEntries to
// follower i".
func (e *Engine) sendAppendEntriesTo(id string) {
	prog, ok := e.leader.progress[id]
	if !ok {
		return
	}
	server, ok := e.activeConfiguration().Find(id)
	if !ok {
		return
	}

	now := e.clock.NowMS()
	unresponsive := now-prog.LastContact > e.cfg.UnresponsiveFollowerMS

	var sendFrom uint64
	var prevIndex, prevTerm uint64
	if prog.State == ProgressSnapshot || unresponsive {
		sendFrom = e.entries.LastIndex() + 1
	} else {
		sendFrom = prog.NextIndex
		if sendFrom == 1 {
			prevIndex, prevTerm = 0, 0
		} else {
			prevIndex = sendFrom - 1
			prevTerm = e.entries.TermOf(prevIndex)
			if prevTerm == 0 && e.snapshot != nil && prevIndex == e.snapshot.Index {
				prevTerm = e.snapshot.Term
			}
			if prevTerm == 0 {
				e.sendInstallSnapshot(id)
				return
			}
		}
	}

	entries, n := e.entries.Acquire(sendFrom)
	args := &AppendEntriesArgs{
		Term:         e.currentTerm,
		LeaderID:     e.id,
		LeaderAddr:   e.address,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      append([]Entry(nil), entries...),
		LeaderCommit: e.commitIndex,
	}
	msg := Message{Kind: MsgAppendEntries, Term: e.currentTerm, From: e.id, To: id, AppendEntries: args}
	e.transport.Send(id, msg, func(err error) {
		e.entries.Release(sendFrom, entries, n)
	})
}

// recomputeCommit implements the commit rule of spec.md §4.3.
func (e *Engine) recomputeCommit() {
	if e.role != Leader || e.leader == nil {
		return
	}
	voters := e.activeConfiguration().Voters()
	matches := make([]uint64, 0, len(voters))
	for _, id := range voters {
		if id == e.id {
			matches = append(matches, e.entries.LastIndex())
			continue
		}
		if prog, ok := e.leader.progress[id]; ok {
			matches = append(matches, prog.MatchIndex)
		} else {
			matches = append(matches, 0)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
	m := matches[(len(matches)-1)/2]

	if m > e.commitIndex && e.entries.TermOf(m) == e.currentTerm {
		e.commitIndex = m
		e.applyCommitted()
	}
}

// applyCommitted applies every entry from last_applied+1..commit_index, in
// order, per spec.md §4.3 "Apply".
func (e *Engine) applyCommitted() {
	for e.lastApplied < e.commitIndex {
		idx := e.lastApplied + 1
		ent, ok := e.entries.Get(idx)
		if !ok {
			break
		}
		switch ent.Type {
		case EntryCommand:
			err := e.fsm.Apply(ent.Payload)
			if e.role == Leader && e.leader != nil {
				if cb, ok := e.leader.pending[idx]; ok {
					cb(err)
					delete(e.leader.pending, idx)
				}
			}
		case EntryConfiguration:
			conf, err := DecodeConfiguration(ent.Payload)
			if err == nil {
				e.configuration = conf
				e.configurationIndex = idx
				if e.configurationUncommittedIndex == idx {
					e.configurationUncommittedIndex = 0
				}
				if _, stillIn := conf.Find(e.id); !stillIn && e.role == Leader {
					e.becomeFollower(e.currentTerm)
				}
			}
		}
		e.lastApplied = idx
		e.recordApplyMetrics()
	}
	e.maybeSnapshot()
}

func (e *Engine) recordApplyMetrics() {
	metrics.RaftCommitIndex.Set(float64(e.commitIndex))
	metrics.RaftAppliedIndex.Set(float64(e.lastApplied))
	metrics.RaftLastLogIndex.Set(float64(e.entries.LastIndex()))
}
