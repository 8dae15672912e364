package modelrt

import (
	"context"
	"fmt"
	"strings"

	"github.com/nadzzz/podsite/internal/jsoncodec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client implements Runtime over a gRPC connection.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the runtime at endpoint (host:port). The
// connection is established lazily on the first call.
func Dial(endpoint string, opts ...grpc.DialOption) (*Client, error) {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(jsoncodec.Name),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("modelrt: dial %s: %w", endpoint, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return fmt.Errorf("modelrt: %s: %w", method, err)
	}
	return nil
}

// Devices implements Runtime.
func (c *Client) Devices(ctx context.Context) (*DevicesResponse, error) {
	var resp DevicesResponse
	if err := c.invoke(ctx, "Devices", &Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Load implements Runtime.
func (c *Client) Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error) {
	var resp LoadResponse
	if err := c.invoke(ctx, "Load", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Generate implements Runtime.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.invoke(ctx, "Generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unload implements Runtime.
func (c *Client) Unload(ctx context.Context) error {
	return c.invoke(ctx, "Unload", &Empty{}, &Empty{})
}

// EmptyCache implements Runtime.
func (c *Client) EmptyCache(ctx context.Context, device string) error {
	return c.invoke(ctx, "EmptyCache", &EmptyCacheRequest{Device: device}, &Empty{})
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
