package fixture

import "github.com/cuemby/raftcore/pkg/raft"

// memTransport is one engine's Transport port; Send hands the message to
// the shared Cluster router, which applies link state and latency before
// delivering it (or dropping it).
type memTransport struct {
	id      string
	cluster *Cluster
}

func (t *memTransport) Send(to string, msg raft.Message, cb func(error)) {
	t.cluster.enqueue(t.id, to, msg)
	if cb != nil {
		cb(nil)
	}
}

// pendingMessage is one in-flight wire message, scheduled for delivery at
// a simulated future time.
type pendingMessage struct {
	deliverAt int64
	from, to  string
	msg       raft.Message
}
