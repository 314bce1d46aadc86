package raft

import "github.com/cuemby/raftcore/pkg/metrics"

// OnMessage dispatches one inbound RPC or RPC result to the appropriate
// handler. Must be called on the engine's owning goroutine.
func (e *Engine) OnMessage(msg Message) {
	if e.closed {
		return
	}
	switch msg.Kind {
	case MsgRequestVote:
		e.handleRequestVote(msg)
	case MsgRequestVoteResult:
		e.handleRequestVoteResult(msg)
	case MsgAppendEntries:
		e.handleAppendEntries(msg)
	case MsgAppendEntriesResult:
		e.handleAppendEntriesResult(msg)
	case MsgInstallSnapshot:
		e.handleInstallSnapshot(msg)
	case MsgInstallSnapshotResult:
		e.handleInstallSnapshotResult(msg)
	}
}

func (e *Engine) sendRequestVote(to string, lastLogIndex, lastLogTerm uint64) {
	args := &RequestVoteArgs{
		Term:         e.currentTerm,
		CandidateID:  e.id,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	}
	msg := Message{Kind: MsgRequestVote, Term: e.currentTerm, From: e.id, To: to, RequestVote: args}
	e.transport.Send(to, msg, func(err error) {
		if err != nil {
			e.log.Debug().Err(err).Str("to", to).Msg("request vote send failed")
		}
	})
}

// handleRequestVote implements spec.md §4.5.
func (e *Engine) handleRequestVote(msg Message) {
	args := msg.RequestVote
	if args.Term > e.currentTerm {
		e.becomeFollower(args.Term)
	}

	granted := false
	if args.Term >= e.currentTerm {
		voter, isVoter := e.activeConfiguration().Find(e.id)
		if isVoter && voter.Voting &&
			(e.votedFor == "" || e.votedFor == args.CandidateID) &&
			e.candidateUpToDate(args.LastLogTerm, args.LastLogIndex) {
			e.votedFor = args.CandidateID
			_ = e.storage.SetVote(args.CandidateID)
			e.resetElectionTimer()
			granted = true
			metrics.RaftVotesGrantedTotal.Inc()
		}
	}

	reply := Message{
		Kind: MsgRequestVoteResult,
		Term: e.currentTerm,
		From: e.id,
		To:   msg.From,
		RequestVoteResult: &RequestVoteResult{
			Term:        e.currentTerm,
			VoteGranted: granted,
		},
	}
	e.transport.Send(msg.From, reply, nil)
}

// candidateUpToDate compares (lastLogTerm, lastLogIndex) against the local
// log lexicographically; an empty local log is always <=.
func (e *Engine) candidateUpToDate(lastLogTerm, lastLogIndex uint64) bool {
	localTerm := e.entries.LastTerm()
	localIndex := e.entries.LastIndex()
	if localTerm == 0 && localIndex == 0 {
		return true
	}
	if lastLogTerm != localTerm {
		return lastLogTerm > localTerm
	}
	return lastLogIndex >= localIndex
}

func (e *Engine) handleRequestVoteResult(msg Message) {
	res := msg.RequestVoteResult
	if res.Term > e.currentTerm {
		e.becomeFollower(res.Term)
		return
	}
	if e.role != Candidate || res.Term < e.currentTerm {
		return
	}
	if !res.VoteGranted {
		return
	}
	e.candidate.votes[msg.From] = true
	granted := 0
	for _, v := range e.candidate.votes {
		if v {
			granted++
		}
	}
	if granted >= e.activeConfiguration().Quorum() {
		e.becomeLeader()
	}
}

// handleAppendEntries implements spec.md §4.4.
func (e *Engine) handleAppendEntries(msg Message) {
	args := msg.AppendEntries

	if args.Term < e.currentTerm {
		e.replyAppendEntries(msg.From, false, e.entries.LastIndex())
		return
	}
	if args.Term > e.currentTerm {
		e.becomeFollower(args.Term)
	} else if e.role == Candidate {
		e.becomeFollower(e.currentTerm)
	}

	e.role = Follower
	e.follower.currentLeaderID = args.LeaderID
	e.follower.currentLeaderAddr = args.LeaderAddr
	e.resetElectionTimer()

	var prevTerm uint64
	if e.snapshot != nil && args.PrevLogIndex == e.snapshot.Index {
		prevTerm = e.snapshot.Term
	} else {
		prevTerm = e.entries.TermOf(args.PrevLogIndex)
	}
	if args.PrevLogIndex != 0 && (prevTerm == 0 || prevTerm != args.PrevLogTerm) {
		if args.PrevLogIndex <= e.commitIndex {
			e.fatal("append entries mismatch at or below commit index")
			return
		}
		e.replyAppendEntries(msg.From, false, e.entries.LastIndex())
		return
	}

	firstNew := 0
	for j, newEntry := range args.Entries {
		idx := args.PrevLogIndex + 1 + uint64(j)
		local := e.entries.TermOf(idx)
		if local != 0 && local != newEntry.Term {
			if idx <= e.commitIndex {
				e.fatal("append entries conflict at or below commit index")
				return
			}
			if e.configurationUncommittedIndex >= idx {
				e.configurationUncommittedIndex = 0
			}
			e.entries.Truncate(idx)
			e.storage.Truncate(idx, func(error) {})
			firstNew = j
			break
		}
		if local == newEntry.Term {
			firstNew = j + 1
		}
	}

	var appended []Entry
	for _, newEntry := range args.Entries[firstNew:] {
		a := e.entries.Append(newEntry.Term, newEntry.Type, newEntry.Payload, nil)
		appended = append(appended, a)
	}

	e.storage.Append(appended, func(err error) {
		if err != nil {
			e.replyAppendEntries(msg.From, false, e.entries.LastIndex())
			return
		}
		for _, a := range appended {
			if a.Type == EntryConfiguration {
				e.configurationUncommittedIndex = a.Index
			}
		}
		e.replyAppendEntries(msg.From, true, e.entries.LastIndex())
		if args.LeaderCommit > e.commitIndex {
			e.commitIndex = min(args.LeaderCommit, e.entries.LastIndex())
			e.applyCommitted()
		}
	})
}

func (e *Engine) replyAppendEntries(to string, success bool, lastLogIndex uint64) {
	reply := Message{
		Kind: MsgAppendEntriesResult,
		Term: e.currentTerm,
		From: e.id,
		To:   to,
		AppendEntriesResult: &AppendEntriesResult{
			Term:         e.currentTerm,
			Success:      success,
			LastLogIndex: lastLogIndex,
		},
	}
	e.transport.Send(to, reply, nil)
}

func (e *Engine) fatal(reason string) {
	e.log.Error().Str("reason", reason).Msg("fatal invariant violation, shutting down")
	e.Close()
}

// handleAppendEntriesResult implements the leader-side bookkeeping of
// spec.md §4.3.
func (e *Engine) handleAppendEntriesResult(msg Message) {
	res := msg.AppendEntriesResult
	if res.Term > e.currentTerm {
		e.becomeFollower(res.Term)
		return
	}
	if e.role != Leader || e.leader == nil {
		return
	}
	prog, ok := e.leader.progress[msg.From]
	if !ok {
		return
	}
	prog.LastContact = e.clock.NowMS()

	if res.Success {
		if res.LastLogIndex <= prog.MatchIndex {
			return
		}
		prog.MatchIndex = res.LastLogIndex
		prog.NextIndex = prog.MatchIndex + 1
		prog.State = ProgressPipeline
		e.recomputeCommit()
		return
	}

	// A failure reply is only stale once some later success has already
	// moved MatchIndex past what it reports; MatchIndex==0 means nothing
	// has been confirmed yet; a follower with no log at all always
	// replies LastLogIndex==0 here, so comparing unconditionally would
	// block the very first catch-up round for every newly added server.
	if prog.MatchIndex > 0 && res.LastLogIndex <= prog.MatchIndex {
		return
	}
	if res.LastLogIndex > 0 {
		prog.NextIndex = min(res.LastLogIndex, e.entries.LastIndex())
	} else if prog.NextIndex > 1 {
		prog.NextIndex--
	}
	if prog.NextIndex < 1 {
		prog.NextIndex = 1
	}
	e.sendAppendEntriesTo(msg.From)
}
