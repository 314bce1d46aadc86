package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/raftcore/pkg/raft"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBootstrapThenLoad(t *testing.T) {
	s := openTestStore(t)
	conf := raft.Configuration{Servers: []raft.Server{{ID: "n0", Address: "n0:1", Voting: true}}}
	require.NoError(t, s.Bootstrap(conf))

	term, votedFor, snap, entries, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(1), term)
	require.Empty(t, votedFor)
	require.Nil(t, snap)
	require.Len(t, entries, 1)
	require.Equal(t, raft.EntryConfiguration, entries[0].Type)
}

func TestBootstrapTwiceFails(t *testing.T) {
	s := openTestStore(t)
	conf := raft.Configuration{Servers: []raft.Server{{ID: "n0", Voting: true}}}
	require.NoError(t, s.Bootstrap(conf))
	require.Error(t, s.Bootstrap(conf))
}

func TestSetTermAndVotePersist(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetTerm(5))
	require.NoError(t, s.SetVote("n2"))

	term, votedFor, _, _, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(5), term)
	require.Equal(t, "n2", votedFor)
}

func TestAppendAndTruncate(t *testing.T) {
	s := openTestStore(t)
	done := make(chan error, 1)
	s.Append([]raft.Entry{
		{Index: 1, Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
		{Index: 2, Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
		{Index: 3, Term: 1, Type: raft.EntryCommand, Payload: []byte("c")},
	}, func(err error) { done <- err })
	require.NoError(t, <-done)

	_, _, _, entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	s.Truncate(2, func(err error) { done <- err })
	require.NoError(t, <-done)

	_, _, _, entries, err = s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(1), entries[0].Index)
}

func TestSnapshotPutDropsCoveredEntries(t *testing.T) {
	s := openTestStore(t)
	done := make(chan error, 1)
	s.Append([]raft.Entry{
		{Index: 1, Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
		{Index: 2, Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
		{Index: 3, Term: 2, Type: raft.EntryCommand, Payload: []byte("c")},
	}, func(err error) { done <- err })
	require.NoError(t, <-done)

	snap := raft.Snapshot{Index: 2, Term: 1, Data: []byte("snap")}
	s.SnapshotPut(snap, func(err error) { done <- err })
	require.NoError(t, <-done)

	_, _, gotSnap, entries, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, gotSnap)
	require.Equal(t, uint64(2), gotSnap.Index)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(3), entries[0].Index)
}

func TestSnapshotGetEmpty(t *testing.T) {
	s := openTestStore(t)
	done := make(chan struct {
		snap *raft.Snapshot
		err  error
	}, 1)
	s.SnapshotGet(func(snap *raft.Snapshot, err error) {
		done <- struct {
			snap *raft.Snapshot
			err  error
		}{snap, err}
	})
	res := <-done
	require.NoError(t, res.err)
	require.Nil(t, res.snap)
}
