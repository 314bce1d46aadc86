package raft

import (
	"math/rand"
	"time"
)

// SystemClock is the production Clock: wall-clock monotonic milliseconds
// and math/rand-backed randomization. Tests use the deterministic clock in
// pkg/raft/fixture instead.
type SystemClock struct {
	start time.Time
	rng   *rand.Rand
}

// NewSystemClock returns a Clock seeded from the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{
		start: time.Now(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SystemClock) NowMS() int64 {
	return time.Since(c.start).Milliseconds()
}

func (c *SystemClock) Random(min, max int) int {
	if max <= min {
		return min
	}
	return min + c.rng.Intn(max-min)
}
