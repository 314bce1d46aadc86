// Package transport implements the production pkg/raft.Transport port over
// plain TCP, gob-encoding one Message per frame. It is the non-fixture
// counterpart to pkg/raft/fixture's in-memory transport: same interface,
// real sockets.
package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/raftcore/pkg/raft"
)

// Receiver is satisfied by *raft.Engine. Kept as an interface so this
// package doesn't need the engine to exist yet at Dial/Listen time.
type Receiver interface {
	OnMessage(msg raft.Message)
}

// sendJob is one queued outbound message for a peer connection.
type sendJob struct {
	msg raft.Message
	cb  func(error)
}

// peer owns the live (or not-yet-established) connection to one other
// server and serializes writes to it through a buffered job channel, so
// concurrent Send calls from the engine don't interleave frames on the
// wire — the same pipelining hashicorp/raft's NetworkTransport provides
// via its connection pool.
type peer struct {
	id   string
	addr string

	mu   sync.Mutex
	conn net.Conn

	jobs chan sendJob
}

// TCPTransport listens for inbound connections and dials outbound ones
// lazily, on first Send to a given peer id.
type TCPTransport struct {
	id  string
	log zerolog.Logger

	ln net.Listener

	mu    sync.Mutex
	peers map[string]*peer

	recv   Receiver
	recvMu sync.RWMutex

	closeCh chan struct{}
}

// Listen starts accepting connections on bindAddr for server id.
func Listen(id, bindAddr string, logger zerolog.Logger) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport listen %s: %w", bindAddr, err)
	}
	t := &TCPTransport{
		id:      id,
		log:     logger.With().Str("component", "transport").Str("node_id", id).Logger(),
		ln:      ln,
		peers:   make(map[string]*peer),
		closeCh: make(chan struct{}),
	}
	go t.acceptLoop()
	return t, nil
}

// SetReceiver wires the engine that inbound messages are delivered to.
// Must be called before any peer traffic arrives; pkg/raft.Engine and this
// transport are constructed in two steps for exactly this reason (the
// engine needs a transport to be built, and the transport needs an engine
// to deliver to).
func (t *TCPTransport) SetReceiver(r Receiver) {
	t.recvMu.Lock()
	defer t.recvMu.Unlock()
	t.recv = r
}

// UpdatePeer records or changes the dial address for a peer id. Called
// whenever the caller learns of a new or changed server address (initial
// configuration, or a later AddServer).
func (t *TCPTransport) UpdatePeer(id, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.addr = addr
		return
	}
	t.peers[id] = t.newPeer(id, addr)
}

func (t *TCPTransport) newPeer(id, addr string) *peer {
	p := &peer{id: id, addr: addr, jobs: make(chan sendJob, 256)}
	go t.peerWriteLoop(p)
	return p
}

// Send implements raft.Transport. It never blocks on the network: the
// frame is queued for the peer's write goroutine, and cb fires once that
// goroutine has written it (or failed to).
func (t *TCPTransport) Send(to string, msg raft.Message, cb func(error)) {
	t.mu.Lock()
	p, ok := t.peers[to]
	if !ok {
		t.mu.Unlock()
		if cb != nil {
			cb(fmt.Errorf("transport: unknown peer %s", to))
		}
		return
	}
	t.mu.Unlock()

	select {
	case p.jobs <- sendJob{msg: msg, cb: cb}:
	default:
		if cb != nil {
			cb(fmt.Errorf("transport: send queue full for peer %s", to))
		}
	}
}

// Close stops accepting connections and tears down every peer connection.
func (t *TCPTransport) Close() error {
	close(t.closeCh)
	t.mu.Lock()
	for _, p := range t.peers {
		p.mu.Lock()
		if p.conn != nil {
			p.conn.Close()
		}
		p.mu.Unlock()
	}
	t.mu.Unlock()
	return t.ln.Close()
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
				t.log.Warn().Err(err).Msg("accept failed")
				return
			}
		}
		go t.readLoop(conn)
	}
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		msg, err := readFrame(r)
		if err != nil {
			if err != io.EOF {
				t.log.Debug().Err(err).Msg("read frame failed")
			}
			return
		}
		t.recvMu.RLock()
		recv := t.recv
		t.recvMu.RUnlock()
		if recv != nil {
			recv.OnMessage(msg)
		}
	}
}

func (t *TCPTransport) peerWriteLoop(p *peer) {
	for job := range p.jobs {
		err := t.writeTo(p, job.msg)
		if job.cb != nil {
			job.cb(err)
		}
	}
}

func (t *TCPTransport) writeTo(p *peer, msg raft.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, err := net.Dial("tcp", p.addr)
		if err != nil {
			return fmt.Errorf("transport: dial %s: %w", p.addr, err)
		}
		p.conn = conn
	}
	if err := writeFrame(p.conn, msg); err != nil {
		p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func writeFrame(w io.Writer, msg raft.Message) error {
	var header [4]byte
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readFrame(r *bufio.Reader) (raft.Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return raft.Message{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return raft.Message{}, err
	}
	var msg raft.Message
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&msg); err != nil {
		return raft.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
