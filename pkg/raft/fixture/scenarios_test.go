package fixture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/raftcore/pkg/raft"
)

// electLeader is a small helper shared by scenario tests: it tries each
// engine in order until one wins within maxMs, since the fixture's virtual
// randomness means not every id is guaranteed to win on the first push.
func electLeader(t *testing.T, c *Cluster, maxMs int64) string {
	t.Helper()
	for _, id := range c.Ids() {
		if err := c.Elect(id, maxMs); err == nil {
			return id
		}
	}
	t.Fatal("no engine could be elected leader")
	return ""
}

func assertInvariants(t *testing.T, c *Cluster) {
	t.Helper()
	require.NoError(t, c.InvariantError())
	require.NoError(t, c.CheckElectionSafety())
	require.NoError(t, c.CheckLogMatching())
	require.NoError(t, c.CheckStateMachineSafety())
}

// Scenario 1: a cluster of three elects exactly one leader.
func TestScenarioElectFirstOfThree(t *testing.T) {
	c := NewCluster(3)
	leader := electLeader(t, c, 5000)
	require.NotEmpty(t, leader)

	followers := 0
	for _, id := range c.Ids() {
		if id != leader {
			require.Equal(t, raft.Follower, c.Engine(id).Role())
			followers++
		}
	}
	require.Equal(t, 2, followers)
	assertInvariants(t, c)
}

// Scenario 2: a single committed command is applied identically everywhere.
func TestScenarioApplySingleCommand(t *testing.T) {
	c := NewCluster(3)
	leader := electLeader(t, c, 5000)

	applied := make(chan error, 1)
	err := c.Engine(leader).ApplyRequest(DeltaPayload(7), func(err error) { applied <- err })
	require.NoError(t, err)

	require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
		select {
		case err := <-applied:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}))

	require.NoError(t, c.StepUntil(2000, func(c *Cluster) bool {
		for _, id := range c.Ids() {
			if c.FSM(id).X != 7 {
				return false
			}
		}
		return true
	}))
	assertInvariants(t, c)
}

// Scenario 3: two commands applied in order produce the same running total
// on every replica.
func TestScenarioApplyTwoCommands(t *testing.T) {
	c := NewCluster(3)
	leader := electLeader(t, c, 5000)

	for _, delta := range []int64{3, 4} {
		done := make(chan error, 1)
		require.NoError(t, c.Engine(leader).ApplyRequest(DeltaPayload(delta), func(err error) { done <- err }))
		require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
			select {
			case err := <-done:
				require.NoError(t, err)
				return true
			default:
				return false
			}
		}))
	}

	require.NoError(t, c.StepUntil(2000, func(c *Cluster) bool {
		for _, id := range c.Ids() {
			if c.FSM(id).X != 7 {
				return false
			}
		}
		return true
	}))
	for _, id := range c.Ids() {
		require.Equal(t, []int64{3, 7}, c.FSM(id).Applied)
	}
	assertInvariants(t, c)
}

// Scenario 4: deposing the leader triggers a new election in a higher term
// with a different leader id.
func TestScenarioElectionChange(t *testing.T) {
	c := NewCluster(3)
	firstLeader := electLeader(t, c, 5000)
	firstTerm := c.Engine(firstLeader).CurrentTerm()

	require.NoError(t, c.Depose(3000))

	var secondLeader string
	require.NoError(t, c.StepUntil(10000, func(c *Cluster) bool {
		for _, id := range c.Ids() {
			if id == firstLeader {
				continue
			}
			if c.Engine(id).IsLeader() && c.Engine(id).CurrentTerm() > firstTerm {
				secondLeader = id
				return true
			}
		}
		return false
	}))
	require.NotEmpty(t, secondLeader)
	require.NotEqual(t, firstLeader, secondLeader)
	assertInvariants(t, c)
}

// Scenario 5: a follower cut off from the leader misses a committed entry
// and catches up to match the leader once it reconnects.
func TestScenarioFollowerTruncation(t *testing.T) {
	c := NewCluster(3)
	leader := electLeader(t, c, 5000)
	var stray string
	for _, id := range c.Ids() {
		if id != leader {
			stray = id
			break
		}
	}

	c.Disconnect(leader, stray)
	require.NoError(t, c.StepUntil(3000, func(c *Cluster) bool {
		return true
	}))

	done := make(chan error, 1)
	require.NoError(t, c.Engine(leader).ApplyRequest(DeltaPayload(1), func(err error) { done <- err }))
	require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}))

	c.Reconnect(leader, stray)
	require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
		return c.Engine(stray).LastLogIndex() == c.Engine(leader).LastLogIndex()
	}))
	assertInvariants(t, c)
}

// Scenario 6: a lagging follower that falls behind the leader's retained
// log window catches up via InstallSnapshot instead of AppendEntries.
func TestScenarioSnapshotInstall(t *testing.T) {
	cfg := raft.DefaultEngineConfig()
	cfg.SnapshotThreshold = 10
	cfg.SnapshotTrailing = 5
	c := NewCluster(3, WithEngineConfig(cfg))
	leader := electLeader(t, c, 5000)
	var lagging string
	for _, id := range c.Ids() {
		if id != leader {
			lagging = id
			break
		}
	}

	c.Kill(lagging)

	for i := int64(0); i < 20; i++ {
		done := make(chan error, 1)
		require.NoError(t, c.Engine(leader).ApplyRequest(DeltaPayload(1), func(err error) { done <- err }))
		require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
			select {
			case err := <-done:
				require.NoError(t, err)
				return true
			default:
				return false
			}
		}))
	}

	require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
		return c.FSM(leader).SnapshotCount() > 0
	}))

	c.Revive(lagging)
	require.NoError(t, c.StepUntil(10000, func(c *Cluster) bool {
		return c.FSM(lagging).X == c.FSM(leader).X
	}))
	assertInvariants(t, c)
}

// Scenario 7: a freshly added non-voting server, whose log starts empty,
// catches up and gets promoted to a full voting member.
func TestScenarioAddServerCatchesUpAndPromotes(t *testing.T) {
	c := NewCluster(3)
	leader := electLeader(t, c, 5000)

	newID := c.Grow()
	require.NoError(t, c.Engine(leader).AddServer(newID, newID+":addr"))
	c.StartGrown(newID)

	require.NoError(t, c.StepUntil(5000, func(c *Cluster) bool {
		srv, ok := c.Engine(leader).Configuration().Find(newID)
		return ok && !srv.Voting
	}))

	require.NoError(t, c.Engine(leader).Promote(newID))

	require.NoError(t, c.StepUntil(10000, func(c *Cluster) bool {
		srv, ok := c.Engine(leader).Configuration().Find(newID)
		return ok && srv.Voting
	}))
	assertInvariants(t, c)
}
