package adminapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client is a thin wrapper around a *grpc.ClientConn that calls the admin
// API's six RPCs using gobCodec, the way cmd/raftctl drives a node.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection. Callers dial with
// grpc.NewClient(addr, grpc.WithTransportCredentials(...)) themselves, the
// same split the teacher's pkg/client leaves to its callers.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, reply any) error {
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, method)
	return c.conn.Invoke(ctx, fullMethod, req, reply, grpc.CallContentSubtype(codecName))
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke(ctx, "Status", &StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Servers(ctx context.Context) (*ServersResponse, error) {
	resp := new(ServersResponse)
	if err := c.invoke(ctx, "Servers", &ServersRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Apply(ctx context.Context, requestID string, payload []byte) (*ApplyResponse, error) {
	resp := new(ApplyResponse)
	req := &ApplyRequest{RequestID: requestID, Payload: payload}
	if err := c.invoke(ctx, "Apply", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AddServer(ctx context.Context, id, address string) (*Ack, error) {
	resp := new(Ack)
	req := &AddServerRequest{ID: id, Address: address}
	if err := c.invoke(ctx, "AddServer", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RemoveServer(ctx context.Context, id string) (*Ack, error) {
	resp := new(Ack)
	req := &RemoveServerRequest{ID: id}
	if err := c.invoke(ctx, "RemoveServer", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Promote(ctx context.Context, id string) (*Ack, error) {
	resp := new(Ack)
	req := &PromoteRequest{ID: id}
	if err := c.invoke(ctx, "Promote", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
