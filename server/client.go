package server

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/hostbridge/wire"
)

// Client calls a running inspection server over gRPC. Errors carry the
// server's status code; read it with status.Code.
type Client struct {
	target string
	conn   *grpc.ClientConn

	mu     sync.Mutex
	closed bool
}

// Dial creates a client for the server at target ("host:port"). The
// connection is cleartext HTTP/2, which ListenAndServe accepts, and is made
// lazily on the first call.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{target: target, conn: conn}, nil
}

// Target returns the address the client was dialed with.
func (c *Client) Target() string { return c.target }

// Close releases the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, procedure string, req, resp proto.Message) error {
	return c.conn.Invoke(ctx, procedure, req, resp)
}

func (c *Client) describe(ctx context.Context, procedure string) (*structpb.Struct, error) {
	resp := &structpb.Struct{}
	if err := c.invoke(ctx, procedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListObjects calls ListObjects.
func (c *Client) ListObjects(ctx context.Context) (*structpb.Struct, error) {
	return c.describe(ctx, ListObjectsProcedure)
}

// ListClasses calls ListClasses.
func (c *Client) ListClasses(ctx context.Context) (*structpb.Struct, error) {
	return c.describe(ctx, ListClassesProcedure)
}

// ListHookTables calls ListHookTables.
func (c *Client) ListHookTables(ctx context.Context) (*structpb.Struct, error) {
	return c.describe(ctx, ListHookTablesProcedure)
}

// Profile calls Profile.
func (c *Client) Profile(ctx context.Context) (*structpb.Struct, error) {
	return c.describe(ctx, ProfileProcedure)
}

// Journal calls Journal.
func (c *Client) Journal(ctx context.Context) (*structpb.Struct, error) {
	return c.describe(ctx, JournalProcedure)
}

// Snapshot fetches and decodes the scene snapshot.
func (c *Client) Snapshot(ctx context.Context) (*wire.Snapshot, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, SnapshotProcedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return wire.UnmarshalSnapshot(resp.GetValue())
}

// Step runs n frames on the server and returns the resulting frame number.
func (c *Client) Step(ctx context.Context, n uint32) (uint64, error) {
	resp := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, StepProcedure, wrapperspb.UInt32(n), resp); err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}
