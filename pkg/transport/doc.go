/*
Package transport implements pkg/raft.Transport over TCP.

Each server listens on one address and dials its peers lazily: the first
Send to a peer id opens a connection, which then stays open and is reused
by a dedicated write goroutine so concurrent Sends to the same peer are
pipelined in order rather than racing each other onto the socket. A
failed write drops the connection; the next Send reconnects.

Wire format is a 4-byte big-endian length prefix followed by a
gob-encoded raft.Message. There is no framing-level compression or TLS —
both are left to callers who need them (e.g. by wrapping the dialed/
accepted net.Conn before this package sees it would require a small
extension point this package doesn't currently expose).

# Construction order

A TCPTransport must exist before the Engine that uses it (the Engine's
constructor takes a Transport), but the transport must also be told
which Engine to deliver inbound messages to. SetReceiver bridges this:
construct the transport, construct the engine with it, then call
SetReceiver(engine).
*/
package transport
