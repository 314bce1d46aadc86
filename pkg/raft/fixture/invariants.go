package fixture

import "fmt"

// CheckElectionSafety asserts at most one leader exists per term across
// every engine in the cluster, at the current instant.
func (c *Cluster) CheckElectionSafety() error {
	leadersByTerm := make(map[uint64]string)
	for _, id := range c.order {
		e := c.engines[id]
		if !e.IsLeader() {
			continue
		}
		term := e.CurrentTerm()
		if other, ok := leadersByTerm[term]; ok && other != id {
			return fmt.Errorf("election safety violated: both %s and %s claim leadership in term %d", other, id, term)
		}
		leadersByTerm[term] = id
	}
	return nil
}

// CheckLogMatching asserts that for every pair of engines, if their logs
// agree at some index on term, they agree on every prior index too.
func (c *Cluster) CheckLogMatching() error {
	for i, idA := range c.order {
		for _, idB := range c.order[i+1:] {
			a := c.engines[idA]
			b := c.engines[idB]
			lo := max(a.FirstLogIndex(), b.FirstLogIndex())
			hi := min(a.LastLogIndex(), b.LastLogIndex())
			agreedFrom := uint64(0)
			agreed := false
			for idx := lo; idx <= hi; idx++ {
				ea, _ := a.Get(idx)
				eb, _ := b.Get(idx)
				if ea.Term == eb.Term {
					if !agreed {
						agreedFrom = idx
						agreed = true
					}
				} else if agreed {
					return fmt.Errorf("log matching violated between %s and %s: agree at %d but diverge at %d", idA, idB, agreedFrom, idx)
				}
			}
		}
	}
	return nil
}

// CheckStateMachineSafety asserts that every engine's applied sequence
// (as recorded by CounterFSM) agrees at every index both engines reached.
func (c *Cluster) CheckStateMachineSafety() error {
	for i, idA := range c.order {
		for _, idB := range c.order[i+1:] {
			fa := c.fsms[idA].Applied
			fb := c.fsms[idB].Applied
			n := len(fa)
			if len(fb) < n {
				n = len(fb)
			}
			for k := 0; k < n; k++ {
				if fa[k] != fb[k] {
					return fmt.Errorf("state machine safety violated between %s and %s at apply step %d", idA, idB, k)
				}
			}
		}
	}
	return nil
}

func max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
