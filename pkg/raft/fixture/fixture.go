// Package fixture implements the deterministic cluster simulator of
// spec.md §4.8: N Raft engines sharing a virtual clock and an in-memory,
// latency-injecting transport, driven through simulated time instead of
// wall-clock goroutines so tests are reproducible.
package fixture

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/raftcore/pkg/raft"
)

const defaultQuantumMs = 10

type link struct{ a, b string }

func normLink(a, b string) link {
	if a > b {
		a, b = b, a
	}
	return link{a, b}
}

// Cluster owns every engine, its storage and transport, and the simulated
// passage of time. Build one with NewCluster, then drive it with Step/Run
// or the StepUntil* convergence helpers.
type Cluster struct {
	cfg raft.EngineConfig

	order      []string
	engines    map[string]*raft.Engine
	storages   map[string]*memStorage
	transports map[string]*memTransport
	clocks     map[string]*virtualClock
	fsms       map[string]*CounterFSM

	alive   map[string]bool
	started map[string]bool

	disconnected map[link]bool
	minLatencyMs int64
	maxLatencyMs int64

	nowMs   int64
	pending []pendingMessage

	dropResultsFor string // leader id whose AE/IS results are dropped (depose)

	prevLeaderID  string
	prevLeaderLog []raft.Entry
	invariantErr  error

	seq int
}

// Option configures NewCluster.
type Option func(*Cluster)

// WithLatency sets the per-link delivery latency range in milliseconds.
func WithLatency(min, max int64) Option {
	return func(c *Cluster) { c.minLatencyMs, c.maxLatencyMs = min, max }
}

// WithEngineConfig overrides the EngineConfig every engine is constructed with.
func WithEngineConfig(cfg raft.EngineConfig) Option {
	return func(c *Cluster) { c.cfg = cfg }
}

// NewCluster builds and starts a cluster of n voting engines (ids n0..n{n-1})
// with a freshly bootstrapped configuration containing all of them.
func NewCluster(n int, opts ...Option) *Cluster {
	c := &Cluster{
		cfg:          raft.DefaultEngineConfig(),
		order:        nil,
		engines:      make(map[string]*raft.Engine),
		storages:     make(map[string]*memStorage),
		transports:   make(map[string]*memTransport),
		clocks:       make(map[string]*virtualClock),
		fsms:         make(map[string]*CounterFSM),
		alive:        make(map[string]bool),
		started:      make(map[string]bool),
		disconnected: make(map[link]bool),
		minLatencyMs: 1,
		maxLatencyMs: 5,
	}
	for _, opt := range opts {
		opt(c)
	}

	var servers []raft.Server
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		servers = append(servers, raft.Server{ID: id, Address: id + ":addr", Voting: true})
	}
	conf := raft.Configuration{Servers: servers}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		c.addEngine(id, id+":addr", int64(i))
		store := c.storages[id]
		_ = store.Bootstrap(conf)
		c.startEngine(id)
	}
	return c
}

func (c *Cluster) addEngine(id, addr string, seed int64) {
	store := newMemStorage()
	transport := &memTransport{id: id, cluster: c}
	clock := newVirtualClock(c, seed)
	fsm := NewCounterFSM()

	c.order = append(c.order, id)
	c.storages[id] = store
	c.transports[id] = transport
	c.clocks[id] = clock
	c.fsms[id] = fsm
	c.alive[id] = true

	logger := zerolog.Nop()
	e := raft.New(id, addr, store, transport, fsm, clock, c.cfg, logger)
	c.engines[id] = e
}

func (c *Cluster) startEngine(id string) {
	e := c.engines[id]
	if err := e.Load(); err != nil {
		panic(err)
	}
	e.Start()
	c.started[id] = true
}

// Grow adds a new, non-started engine to the cluster and returns its id.
// It is not part of any configuration until AddServer is called against
// the current leader.
func (c *Cluster) Grow() string {
	c.seq++
	id := fmt.Sprintf("grown%d", c.seq)
	c.addEngine(id, id+":addr", int64(100+c.seq))
	return id
}

// StartGrown loads and starts a previously-Grow'n engine, e.g. after it
// has been seeded via SetSnapshot/SetEntries.
func (c *Cluster) StartGrown(id string) {
	c.startEngine(id)
}

// Engine returns the named engine.
func (c *Cluster) Engine(id string) *raft.Engine { return c.engines[id] }

// FSM returns the named engine's CounterFSM.
func (c *Cluster) FSM(id string) *CounterFSM { return c.fsms[id] }

// Ids returns every engine id in creation order.
func (c *Cluster) Ids() []string { return append([]string(nil), c.order...) }

// NowMS returns current virtual time.
func (c *Cluster) NowMS() int64 { return c.nowMs }

// SetTerm/SetSnapshot/SetEntries seed a not-yet-started engine's persistent
// state, per spec.md §4.8.
func (c *Cluster) SetTerm(id string, term uint64)            { c.storages[id].setTerm(term) }
func (c *Cluster) SetSnapshot(id string, snap *raft.Snapshot) { c.storages[id].setSnapshot(snap) }
func (c *Cluster) SetEntries(id string, entries []raft.Entry) { c.storages[id].setEntries(entries) }

// Kill marks an engine dead: it stops receiving ticks and messages.
func (c *Cluster) Kill(id string) { c.alive[id] = false }

// Revive marks a previously killed engine alive again.
func (c *Cluster) Revive(id string) { c.alive[id] = true }

// Disconnect drops the link between a and b in both directions.
func (c *Cluster) Disconnect(a, b string) { c.disconnected[normLink(a, b)] = true }

// Reconnect restores the link between a and b.
func (c *Cluster) Reconnect(a, b string) { delete(c.disconnected, normLink(a, b)) }

// Elect fast-forwards id's election timer so it wins the next election,
// then steps the cluster until it becomes leader or maxMs elapses.
func (c *Cluster) Elect(id string, maxMs int64) error {
	c.engines[id].ForceElectionTimeout()
	return c.StepUntil(maxMs, func(c *Cluster) bool {
		return c.engines[id].IsLeader()
	})
}

// Depose drops AppendEntriesResult/InstallSnapshotResult traffic addressed
// to the current leader until it steps down, simulating the leader losing
// contact with a majority.
func (c *Cluster) Depose(maxMs int64) error {
	leader := c.stableLeader()
	if leader == "" {
		return fmt.Errorf("no leader to depose")
	}
	c.dropResultsFor = leader
	err := c.StepUntil(maxMs, func(c *Cluster) bool {
		return !c.engines[leader].IsLeader()
	})
	c.dropResultsFor = ""
	return err
}

func (c *Cluster) enqueue(from, to string, msg raft.Message) {
	if c.disconnected[normLink(from, to)] {
		return
	}
	if !c.alive[to] {
		return
	}
	if c.dropResultsFor != "" && to == c.dropResultsFor &&
		(msg.Kind == raft.MsgAppendEntriesResult || msg.Kind == raft.MsgInstallSnapshotResult) {
		return
	}
	latency := c.minLatencyMs
	if c.maxLatencyMs > c.minLatencyMs {
		latency += c.clocks[from].rng.Int63n(c.maxLatencyMs - c.minLatencyMs)
	}
	c.pending = append(c.pending, pendingMessage{
		deliverAt: c.nowMs + latency,
		from:      from,
		to:        to,
		msg:       msg,
	})
}

// Step advances virtual time by one quantum, delivers any due messages,
// ticks every alive+started engine, and updates invariant tracking.
func (c *Cluster) Step() {
	c.nowMs += defaultQuantumMs

	var due, rest []pendingMessage
	for _, m := range c.pending {
		if m.deliverAt <= c.nowMs {
			due = append(due, m)
		} else {
			rest = append(rest, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deliverAt < due[j].deliverAt })
	c.pending = rest
	for _, m := range due {
		if !c.alive[m.to] || !c.started[m.to] {
			continue
		}
		c.engines[m.to].OnMessage(m.msg)
	}

	for _, id := range c.order {
		if c.alive[id] && c.started[id] {
			c.engines[id].OnTick(defaultQuantumMs)
		}
	}

	c.checkLeaderAppendOnly()
}

// Run steps the cluster until totalMs of virtual time has elapsed.
func (c *Cluster) Run(totalMs int64) {
	target := c.nowMs + totalMs
	for c.nowMs < target {
		c.Step()
	}
}

// StepUntil steps the cluster until cond holds or maxMs elapses.
func (c *Cluster) StepUntil(maxMs int64, cond func(*Cluster) bool) error {
	target := c.nowMs + maxMs
	for {
		if cond(c) {
			return nil
		}
		if c.nowMs >= target {
			return fmt.Errorf("condition not met within %dms", maxMs)
		}
		c.Step()
	}
}

// stableLeader returns the alive, started engine that reports itself leader
// with the highest term, or "" if none. It does not check whether a
// majority of the configuration acknowledges that leader.
func (c *Cluster) stableLeader() string {
	var best string
	var bestTerm uint64
	for _, id := range c.order {
		e := c.engines[id]
		if !c.alive[id] || !c.started[id] || !e.IsLeader() {
			continue
		}
		if e.CurrentTerm() > bestTerm {
			best, bestTerm = id, e.CurrentTerm()
		}
	}
	return best
}

// checkLeaderAppendOnly implements spec.md §4.8 step 3/4: if the same
// engine is stably leader across consecutive steps, its log must only have
// grown as an extension of its previous snapshot.
func (c *Cluster) checkLeaderAppendOnly() {
	leader := c.stableLeader()
	if leader == "" {
		c.prevLeaderID = ""
		return
	}
	e := c.engines[leader]
	cur := snapshotLog(e)
	if leader == c.prevLeaderID {
		if !isExtension(c.prevLeaderLog, cur) {
			c.invariantErr = fmt.Errorf("leader append-only violated for %s", leader)
		}
	}
	c.prevLeaderID = leader
	c.prevLeaderLog = cur
}

func snapshotLog(e *raft.Engine) []raft.Entry {
	return e.EntriesFrom(e.FirstLogIndex())
}

func isExtension(prev, cur []raft.Entry) bool {
	if len(cur) < len(prev) {
		return false
	}
	for i := range prev {
		if prev[i].Index != cur[i].Index || prev[i].Term != cur[i].Term {
			return false
		}
	}
	return true
}

// InvariantError returns the first invariant violation detected during
// Step/Run/StepUntil, if any.
func (c *Cluster) InvariantError() error { return c.invariantErr }
