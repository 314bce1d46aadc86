package fixture

import (
	"encoding/binary"
	"sync"
)

// CounterFSM is the trivial FSM used by the fixture's own scenario tests:
// every command payload is a little-endian int64 delta added to X. It
// records the value of X after every apply or restore in Applied so tests
// can compare that sequence across engines.
type CounterFSM struct {
	mu      sync.Mutex
	X       int64
	Applied []int64 // X after each apply, in order
	snaps   int
}

func NewCounterFSM() *CounterFSM {
	return &CounterFSM{}
}

// DeltaPayload encodes a delta for ApplyRequest.
func DeltaPayload(delta int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(delta))
	return buf
}

func (f *CounterFSM) Apply(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delta := int64(binary.LittleEndian.Uint64(payload))
	f.X += delta
	f.Applied = append(f.Applied, f.X)
	return nil
}

func (f *CounterFSM) Snapshot() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps++
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(f.X))
	return buf, nil
}

func (f *CounterFSM) Restore(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.X = int64(binary.LittleEndian.Uint64(data))
	f.Applied = append(f.Applied, f.X)
	return nil
}

func (f *CounterFSM) SnapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps
}
