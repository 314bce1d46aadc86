/*
Package node is the composition root for one running Raft server: it opens
pkg/storage, starts pkg/transport, and constructs a pkg/raft.Engine over
them, then runs the single goroutine that serializes everything the engine
touches — ticks, inbound wire messages, and admin-API calls submitted from
other goroutines via Submit.

cmd/raftd is the cobra binary around this package; pkg/adminapi.Service is
handed Node.Submit as its submit function so gRPC handlers can safely drive
the engine from their own goroutines.
*/
package node
