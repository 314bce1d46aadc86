package raft

import "encoding/json"

// refKey identifies one entry for the purposes of reference counting. An
// index is only ever associated with one (index, term) pair at a time in
// the live log, but a truncated-and-reappended index can briefly exist
// twice in refs (once detached, once live) while the old one drains.
type refKey struct {
	index uint64
	term  uint64
}

// refEntry is one slot of the open-addressed refs table.
type refEntry struct {
	key   refKey
	count int
	entry Entry
	used  bool
}

// Log is the ring-buffered in-memory sequence of entries described in
// spec.md §3/§4.1. It never talks to disk directly; durability is the
// storage port's job. The log's job is fast, safe, shared-ownership access
// to recently-written entries while they're in flight to followers or the
// FSM.
type Log struct {
	size  int // ring capacity, 0 or a "2*n+2" cadence value
	front int // index into the ring of the first live slot
	back  int // index into the ring one past the last live slot
	ring  []Entry

	offset uint64 // base index; k-th live entry has Raft index offset+k+1

	refs     []refEntry
	refCount int // number of used slots, for resize load-factor tracking
}

const refsInitialSize = 256

// NewLog returns an empty log with offset 0.
func NewLog() *Log {
	return &Log{
		refs: make([]refEntry, refsInitialSize),
	}
}

// SetOffset installs the starting index after loading a snapshot into an
// empty log. It is only valid on an empty log.
func (l *Log) SetOffset(value uint64) {
	l.offset = value
}

func (l *Log) liveCount() int {
	if l.size == 0 {
		return 0
	}
	if l.back >= l.front {
		return l.back - l.front
	}
	return l.size - l.front + l.back
}

// FirstIndex returns the Raft index of the oldest live entry, or 0 if empty.
func (l *Log) FirstIndex() uint64 {
	if l.liveCount() == 0 {
		return 0
	}
	return l.offset + 1
}

// LastIndex returns the Raft index of the newest live entry, or offset if empty.
func (l *Log) LastIndex() uint64 {
	n := uint64(l.liveCount())
	return l.offset + n
}

// NEntries returns the number of live entries.
func (l *Log) NEntries() int {
	return l.liveCount()
}

// LastTerm returns the term of the last entry, or 0 if empty.
func (l *Log) LastTerm() uint64 {
	if l.liveCount() == 0 {
		return 0
	}
	return l.slotAt(l.LastIndex()).Term
}

// TermOf returns the term of the entry at index, or 0 if index is out of
// the live range.
func (l *Log) TermOf(index uint64) uint64 {
	e, ok := l.Get(index)
	if !ok {
		return 0
	}
	return e.Term
}

// Get returns the entry at the given Raft index, if live.
func (l *Log) Get(index uint64) (Entry, bool) {
	if l.liveCount() == 0 || index <= l.offset || index > l.LastIndex() {
		return Entry{}, false
	}
	return l.slotAt(index), true
}

func (l *Log) ringPos(index uint64) int {
	k := int(index - l.offset - 1)
	return (l.front + k) % l.size
}

func (l *Log) slotAt(index uint64) Entry {
	return l.ring[l.ringPos(index)]
}

// grow doubles capacity using the 2*size+2 cadence (2, 6, 14, 30, ...) and
// relays entries out starting at slot 0.
func (l *Log) grow() {
	next := 2*l.size + 2
	newRing := make([]Entry, next)
	n := l.liveCount()
	for k := 0; k < n; k++ {
		newRing[k] = l.ring[(l.front+k)%max(l.size, 1)]
	}
	l.ring = newRing
	l.size = next
	l.front = 0
	l.back = n
}

// Append places a new entry at last_index+1. Fails only on OOM, which this
// implementation cannot simulate, so it always succeeds.
func (l *Log) Append(term uint64, typ EntryType, payload []byte, batch *Batch) Entry {
	if l.liveCount()+1 >= l.size {
		l.grow()
	}
	index := l.LastIndex() + 1
	e := Entry{Index: index, Term: term, Type: typ, Payload: payload, batch: batch}
	l.ring[l.back] = e
	l.back = (l.back + 1) % l.size
	return e
}

// AppendConfiguration serializes the configuration deterministically
// (field-ordered JSON) and appends it as a configuration entry.
func (l *Log) AppendConfiguration(term uint64, conf Configuration) (Entry, error) {
	payload, err := json.Marshal(conf)
	if err != nil {
		return Entry{}, wrapError(ErrBadConfig, "marshal configuration", err)
	}
	return l.Append(term, EntryConfiguration, payload, nil), nil
}

// DecodeConfiguration is the inverse of AppendConfiguration's encoding.
func DecodeConfiguration(payload []byte) (Configuration, error) {
	var conf Configuration
	if err := json.Unmarshal(payload, &conf); err != nil {
		return Configuration{}, wrapError(ErrBadConfig, "unmarshal configuration", err)
	}
	return conf, nil
}

// Acquire returns a contiguous slice of entries starting at from_index,
// bumping refcounts on each. If the live range wraps the ring, the slice
// is copied into a freshly allocated array; otherwise it's a view.
// Returns (nil, 0) if from_index is out of the acquirable range.
func (l *Log) Acquire(fromIndex uint64) ([]Entry, int) {
	if fromIndex > l.LastIndex() || fromIndex <= l.offset {
		return nil, 0
	}
	startPos := l.ringPos(fromIndex)
	n := int(l.LastIndex() - fromIndex + 1)

	var out []Entry
	if startPos+n <= l.size {
		out = l.ring[startPos : startPos+n]
	} else {
		out = make([]Entry, n)
		copy(out, l.ring[startPos:l.size])
		copy(out[l.size-startPos:], l.ring[:n-(l.size-startPos)])
	}
	for i := 0; i < n; i++ {
		l.bumpRef(out[i], 1)
	}
	return out, n
}

// Release decrements refcounts for a previously acquired slice, freeing
// entry payloads (and their batch, once unreferenced) once the count
// reaches zero and the entry is no longer live.
func (l *Log) Release(fromIndex uint64, slice []Entry, n int) {
	for i := 0; i < n; i++ {
		l.bumpRef(slice[i], -1)
	}
}

func (l *Log) refIndex(key refKey, insert bool) int {
	h := int(key.index*1000003+key.term) % len(l.refs)
	if h < 0 {
		h += len(l.refs)
	}
	for i := 0; i < len(l.refs); i++ {
		pos := (h + i) % len(l.refs)
		slot := l.refs[pos]
		if !slot.used {
			if insert {
				return pos
			}
			return -1
		}
		if slot.key == key {
			return pos
		}
	}
	return -1
}

func (l *Log) bumpRef(e Entry, delta int) {
	key := refKey{index: e.Index, term: e.Term}
	pos := l.refIndex(key, delta > 0)
	if pos < 0 {
		return
	}
	if !l.refs[pos].used {
		l.refs[pos] = refEntry{key: key, entry: e, used: true}
		l.refCount++
		if 4*l.refCount >= 3*len(l.refs) {
			l.resizeRefs()
			pos = l.refIndex(key, true)
		}
	}
	l.refs[pos].count += delta
	if l.refs[pos].count <= 0 {
		l.refs[pos] = refEntry{}
		l.refCount--
	}
}

func (l *Log) isLive(key refKey) bool {
	e, ok := l.Get(key.index)
	return ok && e.Term == key.term
}

func (l *Log) resizeRefs() {
	old := l.refs
	l.refs = make([]refEntry, 2*len(old))
	l.refCount = 0
	for _, slot := range old {
		if !slot.used {
			continue
		}
		pos := l.refIndex(slot.key, true)
		l.refs[pos] = slot
		l.refCount++
	}
}

// Truncate discards entries at and after from_index. Entries still
// referenced remain in the refs table (detached) until released, but
// become unreachable through Get.
func (l *Log) Truncate(fromIndex uint64) {
	if fromIndex > l.LastIndex() {
		return
	}
	if fromIndex <= l.offset {
		l.front, l.back, l.size = 0, 0, l.size
		return
	}
	n := int(fromIndex - l.offset - 1)
	l.back = (l.front + n) % max(l.size, 1)
}

// Shift discards entries at or below up_to_index and advances offset to
// up_to_index. Used after snapshotting.
func (l *Log) Shift(upToIndex uint64) {
	if upToIndex <= l.offset {
		return
	}
	if upToIndex >= l.LastIndex() {
		l.front, l.back = 0, 0
		l.offset = upToIndex
		return
	}
	drop := int(upToIndex - l.offset)
	l.front = (l.front + drop) % l.size
	l.offset = upToIndex
}
