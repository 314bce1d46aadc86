package raft

import "github.com/cuemby/raftcore/pkg/metrics"

// maybeSnapshot implements spec.md §4.3's "after apply" trailer: once
// last_applied has grown snapshot_threshold entries past the last
// snapshot, take a new one and compact the log.
func (e *Engine) maybeSnapshot() {
	if e.cfg.SnapshotThreshold == 0 || e.takingSnapshot {
		return
	}
	var since uint64
	if e.snapshot != nil {
		since = e.lastApplied - e.snapshot.Index
	} else {
		since = e.lastApplied
	}
	if since < e.cfg.SnapshotThreshold {
		return
	}
	e.takeSnapshot()
}

func (e *Engine) takeSnapshot() {
	if e.takingSnapshot {
		return
	}
	e.takingSnapshot = true
	timer := metrics.NewTimer()

	data, err := e.fsm.Snapshot()
	if err != nil {
		e.log.Error().Err(err).Msg("fsm snapshot failed")
		e.takingSnapshot = false
		return
	}
	snap := Snapshot{
		Index:         e.lastApplied,
		Term:          e.entries.TermOf(e.lastApplied),
		Configuration: e.configuration.Clone(),
		ConfIndex:     e.configurationIndex,
		Data:          data,
	}
	e.storage.SnapshotPut(snap, func(err error) {
		e.takingSnapshot = false
		if err != nil {
			e.log.Error().Err(err).Msg("snapshot persist failed")
			return
		}
		e.snapshot = &snap
		trailing := e.cfg.SnapshotTrailing
		shiftTo := snap.Index
		if shiftTo > trailing {
			shiftTo -= trailing
		} else {
			shiftTo = 0
		}
		e.entries.Shift(shiftTo)
		metrics.RaftSnapshotsTotal.Inc()
		timer.ObserveDuration(metrics.RaftSnapshotDuration)
		e.log.Info().Uint64("index", snap.Index).Msg("snapshot taken")
	})
}

func (e *Engine) sendInstallSnapshot(to string) {
	if e.snapshot == nil {
		return
	}
	prog := e.leader.progress[to]
	if prog != nil {
		prog.State = ProgressSnapshot
	}
	args := &InstallSnapshotArgs{
		Term:       e.currentTerm,
		LeaderID:   e.id,
		LeaderAddr: e.address,
		LastIndex:  e.snapshot.Index,
		LastTerm:   e.snapshot.Term,
		ConfIndex:  e.snapshot.ConfIndex,
		Conf:       e.snapshot.Configuration.Clone(),
		Data:       e.snapshot.Data,
	}
	msg := Message{Kind: MsgInstallSnapshot, Term: e.currentTerm, From: e.id, To: to, InstallSnapshot: args}
	e.transport.Send(to, msg, func(err error) {
		if err != nil {
			e.log.Debug().Err(err).Str("to", to).Msg("install snapshot send failed")
		}
	})
}

// handleInstallSnapshot implements spec.md §4.6.
func (e *Engine) handleInstallSnapshot(msg Message) {
	args := msg.InstallSnapshot

	if args.Term < e.currentTerm {
		e.replyInstallSnapshot(msg.From, false)
		return
	}
	if args.Term > e.currentTerm {
		e.becomeFollower(args.Term)
	}
	e.role = Follower
	e.follower.currentLeaderID = args.LeaderID
	e.follower.currentLeaderAddr = args.LeaderAddr
	e.resetElectionTimer()

	if e.installingSnapshot {
		e.replyInstallSnapshot(msg.From, false)
		return
	}
	if e.snapshot != nil && e.snapshot.Index >= args.LastIndex {
		e.replyInstallSnapshot(msg.From, true)
		return
	}
	if ent, ok := e.entries.Get(args.LastIndex); ok && ent.Term >= args.LastTerm {
		e.replyInstallSnapshot(msg.From, true)
		return
	}

	e.installingSnapshot = true
	e.entries.Truncate(e.entries.FirstIndex())
	snap := Snapshot{
		Index:         args.LastIndex,
		Term:          args.LastTerm,
		Configuration: args.Conf.Clone(),
		ConfIndex:     args.ConfIndex,
		Data:          args.Data,
	}
	e.storage.SnapshotPut(snap, func(err error) {
		e.installingSnapshot = false
		if err != nil {
			e.log.Error().Err(err).Msg("install snapshot persist failed")
			e.replyInstallSnapshot(msg.From, false)
			return
		}
		e.snapshot = &snap
		e.entries = NewLog()
		e.entries.SetOffset(snap.Index)
		e.lastApplied = snap.Index
		if e.commitIndex < snap.Index {
			e.commitIndex = snap.Index
		}
		e.configuration = snap.Configuration.Clone()
		e.configurationIndex = snap.ConfIndex
		e.configurationUncommittedIndex = 0
		metrics.RaftInstallSnapshotsTotal.Inc()
		if rerr := e.fsm.Restore(snap.Data); rerr != nil {
			e.log.Error().Err(rerr).Msg("fsm restore failed")
		}
		e.replyInstallSnapshot(msg.From, true)
	})
}

func (e *Engine) replyInstallSnapshot(to string, success bool) {
	reply := Message{
		Kind: MsgInstallSnapshotResult,
		Term: e.currentTerm,
		From: e.id,
		To:   to,
		InstallSnapshotResult: &InstallSnapshotResult{
			Term:    e.currentTerm,
			Success: success,
		},
	}
	e.transport.Send(to, reply, nil)
}

func (e *Engine) handleInstallSnapshotResult(msg Message) {
	res := msg.InstallSnapshotResult
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
	if res.Success && e.snapshot != nil {
		prog.MatchIndex = e.snapshot.Index
		prog.NextIndex = e.snapshot.Index + 1
		prog.State = ProgressProbe
		e.recomputeCommit()
	}
}
