package fixture

import "math/rand"

// virtualClock is the Clock port used by every engine in a Cluster. Time
// only advances when the Cluster steps it forward; randomness is seeded
// per engine so a whole run can be replayed from a seed.
type virtualClock struct {
	cluster *Cluster
	rng     *rand.Rand
}

func newVirtualClock(c *Cluster, seed int64) *virtualClock {
	return &virtualClock{cluster: c, rng: rand.New(rand.NewSource(seed))}
}

func (c *virtualClock) NowMS() int64 {
	return c.cluster.nowMs
}

func (c *virtualClock) Random(min, max int) int {
	if max <= min {
		return min
	}
	return min + c.rng.Intn(max-min)
}
