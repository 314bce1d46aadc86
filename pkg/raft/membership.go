package raft

// appendConfigurationEntry is the common path for every membership change:
// at most one uncommitted configuration change may be in flight.
func (e *Engine) appendConfigurationEntry(conf Configuration) error {
	if e.role != Leader {
		return ErrNotLeaderErr
	}
	if e.configurationUncommittedIndex != 0 {
		return ErrBusyErr
	}
	ent, err := e.entries.AppendConfiguration(e.currentTerm, conf)
	if err != nil {
		return err
	}
	e.configurationUncommittedIndex = ent.Index
	e.storage.Append([]Entry{ent}, func(err error) {
		if err != nil {
			e.log.Error().Err(err).Msg("persist configuration entry failed")
			return
		}
		e.replicateToAll()
	})
	return nil
}

// AddServer appends a configuration entry adding id as a non-voting member
// and starts replicating to it. Leader-only. It does not start promotion;
// that is a separate Promote call.
func (e *Engine) AddServer(id, address string) error {
	if e.role != Leader {
		return ErrNotLeaderErr
	}
	conf := e.activeConfiguration().WithServer(Server{ID: id, Address: address, Voting: false})
	if err := e.appendConfigurationEntry(conf); err != nil {
		return err
	}
	e.leader.progress[id] = &Progress{
		NextIndex:   e.entries.LastIndex() + 1,
		MatchIndex:  0,
		LastContact: e.clock.NowMS(),
		State:       ProgressProbe,
	}
	return nil
}

// RemoveServer appends a configuration entry removing id. Leader-only; if
// the leader removes itself, it steps down once the removal commits (see
// applyCommitted).
func (e *Engine) RemoveServer(id string) error {
	if e.role != Leader {
		return ErrNotLeaderErr
	}
	conf := e.activeConfiguration().WithoutServer(id)
	if err := e.appendConfigurationEntry(conf); err != nil {
		return err
	}
	if e.leader.promoteeID == id {
		e.leader.promoteeID = ""
	}
	delete(e.leader.progress, id)
	return nil
}

// Promote begins the catch-up process for a non-voting server, eventually
// appending a configuration entry that makes it a voter once it is caught
// up within the round/duration bounds of spec.md §4.7.
func (e *Engine) Promote(id string) error {
	if e.role != Leader || e.leader == nil {
		return ErrNotLeaderErr
	}
	server, ok := e.activeConfiguration().Find(id)
	if !ok || server.Voting {
		return newError(ErrBadState, "server not present as non-voting")
	}
	if e.leader.promoteeID != "" {
		return ErrBusyErr
	}
	e.leader.promoteeID = id
	e.leader.promoteRound = 0
	e.leader.catchUpStartMs = e.clock.NowMS()
	e.startCatchUpRound()
	return nil
}

func (e *Engine) startCatchUpRound() {
	e.leader.promoteRound++
	e.leader.roundStart = e.entries.LastIndex()
	e.leader.roundStartTimeMs = 0
}

func (e *Engine) finishPromotion() {
	id := e.leader.promoteeID
	e.leader.promoteeID = ""
	server, ok := e.activeConfiguration().Find(id)
	if !ok {
		return
	}
	server.Voting = true
	conf := e.activeConfiguration().WithServer(server)
	if err := e.appendConfigurationEntry(conf); err != nil {
		e.log.Warn().Err(err).Str("server", id).Msg("promotion commit failed")
	}
}
