package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
)

// #region client-struct
// Client is a model.Model backed by a remote ModelService over gRPC.
// It is stateless and safe to share between episodes.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a ModelService at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fault.New(fault.ClassConfiguration, "codec.dial", fmt.Errorf("grpc dial %s: %w", addr, err))
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an injected connection.
// Used for testing without a real gRPC connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region generate
// Generate sends the request with its control bundle to the model service.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return model.Response{}, fault.New(fault.ClassModel, "codec.generate", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, generateMethod, in, out); err != nil {
		return model.Response{}, classify(ctx, fmt.Errorf("generate rpc: %w", err))
	}
	return decodeResponse(out), nil
}

// classify separates runner-initiated cancellation from service failures.
func classify(ctx context.Context, err error) error {
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return fault.New(fault.ClassCancelled, "codec.generate", err)
	}
	if ctx.Err() != nil {
		return fault.New(fault.ClassCancelled, "codec.generate", err)
	}
	return fault.New(fault.ClassModel, "codec.generate", err)
}

// #endregion generate
