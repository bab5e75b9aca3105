package grpccas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/wallet/cidutil"
	"xdao.co/wallet/storage"
)

var errClosed = errors.New("grpccas: client is closed")

// Client is a storage.CAS backed by a remote CAS service. Every block that
// crosses the wire is hashed again on this side.
type Client struct {
	cc  *grpc.ClientConn
	rpc CASClient

	// Timeout bounds each call when non-zero.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// Timeout, when non-zero, makes Dial wait until the connection is ready.
	Timeout time.Duration
	// MaxMsgBytes caps both directions when non-zero.
	MaxMsgBytes int
	Extra       []grpc.DialOption
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		if err := waitReady(ctx, cc); err != nil {
			_ = cc.Close()
			return nil, fmt.Errorf("grpccas: dial %s: %w", target, err)
		}
	}
	return &Client{cc: cc, rpc: NewCASClient(cc)}, nil
}

func waitReady(ctx context.Context, cc *grpc.ClientConn) error {
	cc.Connect()
	for {
		state := cc.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errClosed
		}
		if !cc.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(data []byte) (cid.Cid, error) {
	if c == nil || c.rpc == nil {
		return cid.Undef, errClosed
	}
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := c.callContext()
	defer cancel()

	reply, err := c.rpc.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	got, ok := cidutil.ParseDefined(reply.GetValue())
	if !ok {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if c == nil || c.rpc == nil {
		return nil, errClosed
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.callContext()
	defer cancel()

	reply, err := c.rpc.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	data := reply.GetValue()
	if !cidutil.Verify(id, data) {
		return nil, storage.ErrCIDMismatch
	}
	return data, nil
}

// Has reports false on any transport failure.
func (c *Client) Has(id cid.Cid) bool {
	if c == nil || c.rpc == nil || !id.Defined() {
		return false
	}
	ctx, cancel := c.callContext()
	defer cancel()

	reply, err := c.rpc.Has(ctx, wrapperspb.String(id.String()))
	return err == nil && reply.GetValue()
}

func (c *Client) callContext() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.WithCancel(context.Background())
}
