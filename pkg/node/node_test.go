package node

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/raftcore/examples/kvfsm"
	"github.com/cuemby/raftcore/pkg/config"
	"github.com/cuemby/raftcore/pkg/raft"
)

func newTestNode(t *testing.T) (*Node, *kvfsm.FSM) {
	t.Helper()
	cfg := config.Default()
	cfg.NodeID = "n1"
	cfg.BindAddr = "127.0.0.1:0"
	cfg.DataDir = t.TempDir()
	cfg.Servers = []config.ServerConfig{{ID: "n1", Address: cfg.BindAddr, Voting: true}}

	fsm := kvfsm.New()
	n, err := New(cfg, fsm, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, n.Bootstrap())
	return n, fsm
}

func TestSingleNodeElectsSelfAndApplies(t *testing.T) {
	n, fsm := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(runDone)
	}()
	defer func() {
		cancel()
		<-runDone
		require.NoError(t, n.Close())
	}()

	require.Eventually(t, func() bool {
		leader := false
		n.Submit(func() { leader = n.Engine().IsLeader() })
		return leader
	}, 3*time.Second, 10*time.Millisecond)

	applied := make(chan error, 1)
	n.Submit(func() {
		err := n.Engine().ApplyRequest(kvfsm.SetPayload("k", "v"), func(err error) {
			applied <- err
		})
		if err != nil {
			applied <- err
		}
	})
	require.NoError(t, <-applied)

	require.Eventually(t, func() bool {
		v, ok := fsm.Get("k")
		return ok && v == "v"
	}, time.Second, 10*time.Millisecond)
}

func TestSendFailsForUnregisteredPeer(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Close()

	errCh := make(chan error, 1)
	n.transport.Send("ghost", raft.Message{}, func(err error) { errCh <- err })
	err := <-errCh
	require.ErrorContains(t, err, "unknown peer")
}

func TestRegisterPeerAllowsSend(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Close()

	n.RegisterPeer("ghost", "127.0.0.1:1")

	errCh := make(chan error, 1)
	n.transport.Send("ghost", raft.Message{}, func(err error) { errCh <- err })
	// Nothing listens on that address, so the send itself still fails, but
	// not because the peer is unknown.
	err := <-errCh
	require.Error(t, err)
	require.NotContains(t, err.Error(), "unknown peer")
}

func TestLearnLeaderAddrRegistersSenderFromAppendEntries(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Close()

	n.learnLeaderAddr(raft.Message{
		Kind:          raft.MsgAppendEntries,
		From:          "leader1",
		AppendEntries: &raft.AppendEntriesArgs{LeaderAddr: "127.0.0.1:1"},
	})

	errCh := make(chan error, 1)
	n.transport.Send("leader1", raft.Message{}, func(err error) { errCh <- err })
	err := <-errCh
	require.Error(t, err)
	require.NotContains(t, err.Error(), "unknown peer")
}
