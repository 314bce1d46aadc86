// Package storage implements the durable Storage port (pkg/raft.Storage)
// on top of BoltDB. Every engine owns exactly one Store, opened against its
// own data directory; writes are serialized onto a single background
// goroutine so the engine's own goroutine never blocks on disk I/O, and the
// completion callback fires once the write transaction has committed.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/raftcore/pkg/raft"
)

var (
	bucketMeta = []byte("meta")
	bucketLog  = []byte("log")
	bucketSnap = []byte("snapshot")

	keyTerm         = []byte("term")
	keyVote         = []byte("vote")
	keyBootstrapped = []byte("bootstrapped")
	keySnapshot     = []byte("snapshot")
)

type writeJob struct {
	run func(*bolt.Tx) error
	cb  func(error)
}

// Store is a BoltDB-backed implementation of raft.Storage. One Store per
// engine, one file per Store.
type Store struct {
	db      *bolt.DB
	writes  chan writeJob
	closeCh chan struct{}
}

// Open creates or opens the node's database file under dataDir and starts
// the background write loop. Call Close when the engine shuts down.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "raft.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open raft storage: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketLog, bucketSnap} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		writes:  make(chan writeJob, 64),
		closeCh: make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Close drains pending writes and closes the underlying database file.
func (s *Store) Close() error {
	close(s.closeCh)
	return s.db.Close()
}

func (s *Store) writeLoop() {
	for {
		select {
		case job := <-s.writes:
			err := s.db.Update(job.run)
			if job.cb != nil {
				job.cb(err)
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Store) submit(run func(*bolt.Tx) error, cb func(error)) {
	s.writes <- writeJob{run: run, cb: cb}
}

func indexKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

func encodeEntry(e raft.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireEntry{e.Index, e.Term, e.Type, e.Payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (raft.Entry, error) {
	var w wireEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return raft.Entry{}, err
	}
	return raft.Entry{Index: w.Index, Term: w.Term, Type: w.Type, Payload: w.Payload}, nil
}

// wireEntry mirrors raft.Entry's exported fields; Entry itself carries an
// unexported batch pointer that gob cannot (and needn't) serialize.
type wireEntry struct {
	Index   uint64
	Term    uint64
	Type    raft.EntryType
	Payload []byte
}

func encodeSnapshot(snap raft.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (raft.Snapshot, error) {
	var snap raft.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return raft.Snapshot{}, err
	}
	return snap, nil
}

// Load implements raft.Storage. It runs synchronously: startup always waits
// for disk before the engine can do anything useful anyway.
func (s *Store) Load() (uint64, string, *raft.Snapshot, []raft.Entry, error) {
	var term uint64
	var votedFor string
	var snap *raft.Snapshot
	var entries []raft.Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyTerm); v != nil {
			term = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keyVote); v != nil {
			votedFor = string(v)
		}

		snapBucket := tx.Bucket(bucketSnap)
		if v := snapBucket.Get(keySnapshot); v != nil {
			decoded, err := decodeSnapshot(v)
			if err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			snap = &decoded
		}

		logBucket := tx.Bucket(bucketLog)
		return logBucket.ForEach(func(_, v []byte) error {
			ent, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("decode log entry: %w", err)
			}
			entries = append(entries, ent)
			return nil
		})
	})
	return term, votedFor, snap, entries, err
}

// Bootstrap writes the initial configuration entry at index 1, term 1.
// Fails with raft.ErrBadStateErr if the store already has state.
func (s *Store) Bootstrap(conf raft.Configuration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyBootstrapped) != nil || meta.Get(keyTerm) != nil {
			return raft.ErrBadStateErr
		}
		if k, _ := tx.Bucket(bucketLog).Cursor().First(); k != nil {
			return raft.ErrBadStateErr
		}

		l := raft.NewLog()
		ent, err := l.AppendConfiguration(1, conf)
		if err != nil {
			return err
		}
		data, err := encodeEntry(ent)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketLog).Put(indexKey(ent.Index), data); err != nil {
			return err
		}

		termBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(termBuf, 1)
		if err := meta.Put(keyTerm, termBuf); err != nil {
			return err
		}
		return meta.Put(keyBootstrapped, []byte{1})
	})
}

// SetTerm persists the current term. Synchronous: it is always followed
// immediately by a vote or an RPC send that must see it durable.
func (s *Store) SetTerm(term uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, term)
		return tx.Bucket(bucketMeta).Put(keyTerm, buf)
	})
}

// SetVote persists the current term's vote.
func (s *Store) SetVote(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyVote, []byte(id))
	})
}

// Append persists entries and invokes cb once committed.
func (s *Store) Append(entries []raft.Entry, cb func(error)) {
	s.submit(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		for _, e := range entries {
			data, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := b.Put(indexKey(e.Index), data); err != nil {
				return err
			}
		}
		return nil
	}, cb)
}

// Truncate deletes every log entry at or after fromIndex.
func (s *Store) Truncate(fromIndex uint64, cb func(error)) {
	s.submit(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		c := b.Cursor()
		for k, _ := c.Seek(indexKey(fromIndex)); k != nil; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}, cb)
}

// SnapshotPut persists snap and drops every log entry it now covers.
func (s *Store) SnapshotPut(snap raft.Snapshot, cb func(error)) {
	s.submit(func(tx *bolt.Tx) error {
		data, err := encodeSnapshot(snap)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketSnap).Put(keySnapshot, data); err != nil {
			return err
		}
		b := tx.Bucket(bucketLog)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if binary.BigEndian.Uint64(k) > snap.Index {
				break
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}, cb)
}

// SnapshotGet reads the latest snapshot, if any.
func (s *Store) SnapshotGet(cb func(*raft.Snapshot, error)) {
	go func() {
		var snap *raft.Snapshot
		err := s.db.View(func(tx *bolt.Tx) error {
			v := tx.Bucket(bucketSnap).Get(keySnapshot)
			if v == nil {
				return nil
			}
			decoded, err := decodeSnapshot(v)
			if err != nil {
				return err
			}
			snap = &decoded
			return nil
		})
		cb(snap, err)
	}()
}
