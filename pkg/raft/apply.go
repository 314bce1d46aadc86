package raft

import (
	"github.com/google/uuid"

	"github.com/cuemby/raftcore/pkg/metrics"
)

// ApplyRequest submits payload as a new command entry. callback fires once
// the entry is committed and applied to the FSM (with FSM.Apply's error),
// or with an error if the attempt is abandoned (the storage append fails,
// the leader steps down first, or the engine closes).
func (e *Engine) ApplyRequest(payload []byte, callback ApplyCallback) error {
	if e.closed {
		return ErrCanceledErr
	}
	if e.role != Leader || e.leader == nil {
		return ErrNotLeaderErr
	}

	// requestID only correlates this submission's log lines; it is never
	// sent over the wire or compared for dedup.
	requestID := uuid.NewString()
	timer := metrics.NewTimer()
	ent := e.entries.Append(e.currentTerm, EntryCommand, payload, nil)
	e.log.Debug().Str("request_id", requestID).Uint64("index", ent.Index).Msg("apply request submitted")
	e.leader.pending[ent.Index] = func(err error) {
		timer.ObserveDuration(metrics.RaftApplyDuration)
		if callback != nil {
			callback(err)
		}
	}
	e.storage.Append([]Entry{ent}, func(err error) {
		if err != nil {
			if cb, ok := e.leader.pending[ent.Index]; ok {
				cb(err)
				delete(e.leader.pending, ent.Index)
			}
			return
		}
		e.replicateToAll()
		e.recomputeCommit()
	})
	return nil
}
