// Package node wires pkg/raft's Engine together with the production
// Storage, Transport, and an application FSM into one running server, and
// owns the single goroutine the engine's threading contract requires.
// cmd/raftd is a thin cobra shell around this package, the same way
// cmd/warren was a thin shell around pkg/manager.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/raftcore/pkg/config"
	"github.com/cuemby/raftcore/pkg/raft"
	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/transport"
)

// tickInterval is the fixed quantum the event loop drives the engine at.
const tickInterval = 10 * time.Millisecond

// submitQueueSize bounds how many pending closures (inbound messages or
// admin-API calls) the loop will buffer before a sender blocks.
const submitQueueSize = 256

// Node owns one Raft server's storage, transport, and engine, and the one
// goroutine permitted to call into the engine.
type Node struct {
	cfg config.Config
	log zerolog.Logger

	store     *storage.Store
	transport *transport.TCPTransport
	engine    *raft.Engine

	submitCh chan func()
	doneCh   chan struct{}
}

// New opens the node's storage, starts its transport listener, and builds
// the engine. It does not bootstrap or start ticking; call Bootstrap (new
// clusters only) and then Run.
func New(cfg config.Config, fsm raft.FSM, logger zerolog.Logger) (*Node, error) {
	logger = logger.With().Str("node_id", cfg.NodeID).Logger()

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("node: opening storage: %w", err)
	}

	tr, err := transport.Listen(cfg.NodeID, cfg.BindAddr, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("node: starting transport: %w", err)
	}

	n := &Node{
		cfg:       cfg,
		log:       logger,
		store:     store,
		transport: tr,
		submitCh:  make(chan func(), submitQueueSize),
		doneCh:    make(chan struct{}),
	}

	engine := raft.New(cfg.NodeID, cfg.BindAddr, store, tr, fsm, raft.NewSystemClock(), cfg.EngineConfig(), logger)
	n.engine = engine

	// Inbound wire messages arrive on the transport's own read goroutines;
	// route them through submitCh so they're serialized with ticks and
	// admin-API calls on the loop goroutine instead of racing the engine.
	tr.SetReceiver(receiverFunc(func(msg raft.Message) {
		n.learnLeaderAddr(msg)
		n.Submit(func() { engine.OnMessage(msg) })
	}))

	for _, s := range cfg.Servers {
		if s.ID != cfg.NodeID {
			tr.UpdatePeer(s.ID, s.Address)
		}
	}

	return n, nil
}

// receiverFunc adapts a plain function to transport.Receiver.
type receiverFunc func(raft.Message)

func (f receiverFunc) OnMessage(msg raft.Message) { f(msg) }

// learnLeaderAddr registers the sender's address the first time a joining
// node hears from a leader it doesn't already have a transport peer entry
// for, so it can reply (AppendEntriesResult, InstallSnapshotResult)
// without having been given the leader's address up front — the node it
// joined through only needed to know this node's address, not the other
// way around.
func (n *Node) learnLeaderAddr(msg raft.Message) {
	var addr string
	switch msg.Kind {
	case raft.MsgAppendEntries:
		if msg.AppendEntries != nil {
			addr = msg.AppendEntries.LeaderAddr
		}
	case raft.MsgInstallSnapshot:
		if msg.InstallSnapshot != nil {
			addr = msg.InstallSnapshot.LeaderAddr
		}
	}
	if addr != "" {
		n.transport.UpdatePeer(msg.From, addr)
	}
}

// RegisterPeer records a dial address for another server, so this node's
// transport can reach it. cmd/raftd wires this to pkg/adminapi.Service's
// OnAddServer hook, so a leader can dial a server as soon as it admits it.
func (n *Node) RegisterPeer(id, address string) {
	n.transport.UpdatePeer(id, address)
}

// Engine returns the underlying engine, for read-only inspection (status
// reporting) from outside the loop goroutine. Mutating calls must go
// through Submit instead.
func (n *Node) Engine() *raft.Engine { return n.engine }

// Bootstrap installs the initial configuration. Only the first node of a
// new cluster should call this, once, before Run.
func (n *Node) Bootstrap() error {
	return n.engine.Bootstrap(n.cfg.Configuration())
}

// Submit marshals fn onto the node's single owning goroutine and blocks
// until it has run. This is the function pkg/adminapi.Service is given as
// its submit callback, and it's what the transport receiver above uses to
// deliver inbound messages safely.
func (n *Node) Submit(fn func()) {
	done := make(chan struct{})
	select {
	case n.submitCh <- func() { fn(); close(done) }:
	case <-n.doneCh:
		return
	}
	select {
	case <-done:
	case <-n.doneCh:
	}
}

// Run loads persisted state, starts the engine, and drives its tick/message
// loop until ctx is canceled. It blocks for the lifetime of the node.
func (n *Node) Run(ctx context.Context) error {
	if err := n.engine.Load(); err != nil {
		return fmt.Errorf("node: loading state: %w", err)
	}
	n.engine.Start()
	defer close(n.doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			n.engine.Close()
			return nil
		case now := <-ticker.C:
			delta := now.Sub(last).Milliseconds()
			last = now
			n.engine.OnTick(delta)
		case fn := <-n.submitCh:
			fn()
		}
	}
}

// Close tears down the transport and storage. Call after Run returns.
func (n *Node) Close() error {
	trErr := n.transport.Close()
	stErr := n.store.Close()
	if trErr != nil {
		return trErr
	}
	return stErr
}
