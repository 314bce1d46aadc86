package raft

// OnTick advances the engine's internal timer by deltaMs and applies the
// per-role tick rules of spec.md §4.2. Must be called on the engine's
// owning goroutine.
func (e *Engine) OnTick(deltaMs int64) {
	if e.closed {
		return
	}
	e.timerMs += deltaMs

	switch e.role {
	case Follower:
		e.tickFollower()
	case Candidate:
		e.tickCandidate()
	case Leader:
		e.tickLeader(deltaMs)
	}
}

func (e *Engine) tickFollower() {
	if !e.isVoter(e.id) {
		return
	}
	if e.timerMs > e.electionTimeoutRand {
		e.becomeCandidate()
	}
}

func (e *Engine) tickCandidate() {
	if e.timerMs > e.electionTimeoutRand {
		e.becomeCandidate()
	}
}

func (e *Engine) tickLeader(deltaMs int64) {
	if e.leader == nil {
		return
	}

	// Rule 1: step down if partitioned from a majority.
	now := e.clock.NowMS()
	quorum := e.activeConfiguration().Quorum()
	contacted := 1 // self
	for _, id := range e.activeConfiguration().Voters() {
		if id == e.id {
			continue
		}
		if prog, ok := e.leader.progress[id]; ok && now-prog.LastContact <= e.cfg.ElectionTimeoutMS {
			contacted++
		}
	}
	if contacted < quorum {
		e.log.Warn().Msg("stepping down, partitioned from majority")
		e.becomeFollower(e.currentTerm)
		return
	}

	// Rule 2: heartbeat.
	if e.timerMs > e.cfg.HeartbeatTimeoutMS {
		e.timerMs = 0
		e.replicateToAll()
	}

	// Rule 3: promotion round bookkeeping.
	e.tickPromotion(deltaMs)
}

func (e *Engine) tickPromotion(deltaMs int64) {
	if e.leader.promoteeID == "" {
		return
	}
	e.leader.roundStartTimeMs += deltaMs
	prog, ok := e.leader.progress[e.leader.promoteeID]
	if !ok {
		e.leader.promoteeID = ""
		return
	}
	roundElapsed := e.leader.roundStartTimeMs

	if prog.MatchIndex >= e.leader.roundStart {
		// Round complete: the follower caught up to where the leader was
		// when the round started.
		if e.leader.promoteRound < e.cfg.MaxCatchUpRounds || roundElapsed < e.cfg.ElectionTimeoutMS {
			e.finishPromotion()
			return
		}
		e.startCatchUpRound()
		return
	}

	overRounds := e.leader.promoteRound >= e.cfg.MaxCatchUpRounds && roundElapsed > e.cfg.ElectionTimeoutMS
	overDuration := e.leader.catchUpStartMs+e.cfg.MaxCatchUpDurationMS < e.clock.NowMS()
	if overRounds || overDuration {
		e.log.Warn().Str("promotee", e.leader.promoteeID).Msg("aborting promotion catch-up")
		e.leader.promoteeID = ""
	}
}
