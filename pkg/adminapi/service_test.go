package adminapi

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/raftcore/pkg/raft/fixture"
)

// runInline is a submit func for tests: safe because nothing else ticks
// the engine concurrently with a test's gRPC calls.
func runInline(fn func()) { fn() }

func dialer(lis *bufconn.Listener) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
}

func newTestClient(t *testing.T, svc *Service) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	grpcServer := NewGRPCServer(svc)
	go grpcServer.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(lis)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	return NewClient(conn), func() {
		conn.Close()
		grpcServer.Stop()
	}
}

func TestStatusAndServersRoundTrip(t *testing.T) {
	c := fixture.NewCluster(1)
	require.NoError(t, c.Elect(c.Ids()[0], 5000))
	engine := c.Engine(c.Ids()[0])

	svc := NewService(engine, runInline, zerolog.Nop())
	client, closeFn := newTestClient(t, svc)
	defer closeFn()

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "leader", status.Role)
	require.Equal(t, engine.ID(), status.ID)

	servers, err := client.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers.Servers, 1)
}

func TestApplyRoundTrip(t *testing.T) {
	c := fixture.NewCluster(1)
	id := c.Ids()[0]
	require.NoError(t, c.Elect(id, 5000))
	engine := c.Engine(id)

	svc := NewService(engine, runInline, zerolog.Nop())
	client, closeFn := newTestClient(t, svc)
	defer closeFn()

	// A single-node cluster commits and applies synchronously within the
	// ApplyRequest call (quorum of one, no network round trip), so the
	// gRPC call returns with the result already known.
	resp, err := client.Apply(context.Background(), "req-1", fixture.DeltaPayload(9))
	require.NoError(t, err)
	require.Empty(t, resp.Error)
	require.Equal(t, int64(9), c.FSM(id).X)
}

func TestAddServerRejectedWhenNotLeader(t *testing.T) {
	c := fixture.NewCluster(1)
	id := c.Ids()[0]
	engine := c.Engine(id) // not elected, still follower

	svc := NewService(engine, runInline, zerolog.Nop())
	client, closeFn := newTestClient(t, svc)
	defer closeFn()

	ack, err := client.AddServer(context.Background(), "n9", "n9:addr")
	require.NoError(t, err)
	require.NotEmpty(t, ack.Error)
}
