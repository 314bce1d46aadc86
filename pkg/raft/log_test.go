package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAndGet(t *testing.T) {
	l := NewLog()
	e := l.Append(1, EntryCommand, []byte("a"), nil)
	require.Equal(t, uint64(1), e.Index)
	require.Equal(t, uint64(1), l.LastIndex())
	require.Equal(t, uint64(0), l.FirstIndex()-1)

	got, ok := l.Get(1)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Term)
	require.Equal(t, EntryCommand, got.Type)
}

func TestLogEmpty(t *testing.T) {
	l := NewLog()
	require.Equal(t, uint64(0), l.LastIndex())
	require.Equal(t, uint64(0), l.FirstIndex())
	require.Equal(t, uint64(0), l.LastTerm())
	_, ok := l.Get(1)
	require.False(t, ok)
}

func TestLogTruncateReturnsToPreAppendSize(t *testing.T) {
	l := NewLog()
	l.Append(1, EntryCommand, []byte("a"), nil)
	l.Append(1, EntryCommand, []byte("b"), nil)
	before := l.NEntries()

	l.Append(1, EntryCommand, []byte("c"), nil)
	l.Truncate(3)

	require.Equal(t, before, l.NEntries())
	_, ok := l.Get(3)
	require.False(t, ok)
}

func TestLogShiftPreservesLastIndex(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		l.Append(1, EntryCommand, []byte{byte(i)}, nil)
	}
	last := l.LastIndex()
	l.Shift(3)

	require.Equal(t, last, l.LastIndex())
	require.Equal(t, uint64(4), l.FirstIndex())
}

func TestLogShiftToEmpty(t *testing.T) {
	l := NewLog()
	l.Append(1, EntryCommand, []byte("a"), nil)
	l.Shift(1)
	require.Equal(t, uint64(0), l.FirstIndex())
}

func TestLogAcquireReleaseRoundTrip(t *testing.T) {
	l := NewLog()
	for i := 0; i < 3; i++ {
		l.Append(1, EntryCommand, []byte{byte(i)}, nil)
	}
	before := l.refCount

	entries, n := l.Acquire(1)
	require.Equal(t, 3, n)
	l.Release(1, entries, n)

	require.Equal(t, before, l.refCount)
}

func TestLogAcquireOutOfRange(t *testing.T) {
	l := NewLog()
	l.Append(1, EntryCommand, []byte("a"), nil)

	entries, n := l.Acquire(5)
	require.Nil(t, entries)
	require.Equal(t, 0, n)

	entries, n = l.Acquire(0)
	require.Equal(t, 0, n)
}

func TestLogWraparoundAfterGrowth(t *testing.T) {
	l := NewLog()
	// force several growths (2 -> 6 -> 14 -> 30 cadence)
	for i := 0; i < 20; i++ {
		l.Append(1, EntryCommand, []byte{byte(i)}, nil)
	}
	require.Equal(t, 20, l.NEntries())
	for i := uint64(1); i <= 20; i++ {
		e, ok := l.Get(i)
		require.True(t, ok)
		require.Equal(t, byte(i-1), e.Payload[0])
	}
}

func TestLogAppendAfterTruncateDifferentTerm(t *testing.T) {
	l := NewLog()
	l.Append(1, EntryCommand, []byte("a"), nil)
	l.Append(1, EntryCommand, []byte("b"), nil)

	l.Truncate(2)
	e := l.Append(2, EntryCommand, []byte("b2"), nil)
	require.Equal(t, uint64(2), e.Index)
	require.Equal(t, uint64(2), e.Term)

	got, ok := l.Get(2)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Term)
}

func TestConfigurationEncodeDecodeRoundTrip(t *testing.T) {
	conf := Configuration{Servers: []Server{
		{ID: "a", Address: "a:1", Voting: true},
		{ID: "b", Address: "b:1", Voting: false},
	}}
	l := NewLog()
	e, err := l.AppendConfiguration(1, conf)
	require.NoError(t, err)

	got, ok := l.Get(e.Index)
	require.True(t, ok)
	decoded, err := DecodeConfiguration(got.Payload)
	require.NoError(t, err)
	require.Equal(t, conf, decoded)
}

func TestConfigurationQuorum(t *testing.T) {
	conf := Configuration{Servers: []Server{
		{ID: "a", Voting: true},
		{ID: "b", Voting: true},
		{ID: "c", Voting: true},
		{ID: "d", Voting: false},
	}}
	require.Equal(t, 2, conf.Quorum())
	require.Len(t, conf.Voters(), 3)
}
