package transport

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/raftcore/pkg/raft"
)

type recorder struct {
	ch chan raft.Message
}

func newRecorder() *recorder { return &recorder{ch: make(chan raft.Message, 8)} }

func (r *recorder) OnMessage(msg raft.Message) { r.ch <- msg }

func TestSendDeliversAcrossTCP(t *testing.T) {
	a, err := Listen("a", "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	b, err := Listen("b", "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	recvB := newRecorder()
	b.SetReceiver(recvB)

	a.UpdatePeer("b", b.ln.Addr().String())

	sent := make(chan error, 1)
	a.Send("b", raft.Message{
		Kind: raft.MsgRequestVote,
		Term: 3,
		From: "a",
		To:   "b",
		RequestVote: &raft.RequestVoteArgs{
			Term:        3,
			CandidateID: "a",
		},
	}, func(err error) { sent <- err })

	require.NoError(t, <-sent)

	select {
	case msg := <-recvB.ch:
		require.Equal(t, raft.MsgRequestVote, msg.Kind)
		require.Equal(t, uint64(3), msg.Term)
		require.Equal(t, "a", msg.From)
		require.NotNil(t, msg.RequestVote)
		require.Equal(t, "a", msg.RequestVote.CandidateID)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSendToUnknownPeerFails(t *testing.T) {
	a, err := Listen("a", "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	done := make(chan error, 1)
	a.Send("nope", raft.Message{Kind: raft.MsgRequestVote}, func(err error) { done <- err })
	require.Error(t, <-done)
}
