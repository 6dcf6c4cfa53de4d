package slip_rpc

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

var _ grpc.ClientConnInterface = (*Client)(nil)

type callKey struct {
	serviceID uint32
	methodID  uint32
	callID    uint32
}

// Client issues unary RPCs over a SLIP link. It implements
// grpc.ClientConnInterface so generated client stubs can use it.
type Client struct {
	conn      *Conn
	channelID uint32
	logger    zerolog.Logger

	nextCallID atomic.Uint32

	mu    sync.Mutex
	calls map[callKey]chan *Packet

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewClient starts a client on rwc. The link runs until Close is called or
// the stream ends.
func NewClient(rwc io.ReadWriteCloser, opts ...slip_link.Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		channelID: DefaultChannelID,
		calls:     make(map[callKey]chan *Packet),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.conn = NewConn(rwc, c, opts...)
	c.logger = c.conn.logger

	go func() {
		err := c.conn.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		close(c.done)
	}()

	return c
}

func (c *Client) Conn() *Conn {
	return c.conn
}

// Invoke sends a request and blocks until the matching response arrives,
// ctx ends or the link goes down. Errors are grpc status errors.
func (c *Client) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	serviceID, methodID, err := ParseMethod(method)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	req, ok := args.(proto.Message)
	if !ok {
		return status.Errorf(codes.Internal, "slip_rpc: request %T is not a proto.Message", args)
	}
	resp, ok := reply.(proto.Message)
	if !ok {
		return status.Errorf(codes.Internal, "slip_rpc: reply %T is not a proto.Message", reply)
	}

	payload, err := proto.Marshal(req)
	if err != nil {
		return status.Errorf(codes.Internal, "slip_rpc: marshal request: %v", err)
	}

	key := callKey{
		serviceID: serviceID,
		methodID:  methodID,
		callID:    c.nextCallID.Add(1),
	}
	ch := make(chan *Packet, 1)

	c.mu.Lock()
	c.calls[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.calls, key)
		c.mu.Unlock()
	}()

	err = c.conn.Send(ctx, &Packet{
		Type:      PacketTypeRequest,
		ChannelID: c.channelID,
		ServiceID: serviceID,
		MethodID:  methodID,
		Payload:   payload,
		CallID:    key.callID,
	})
	if err != nil {
		return sendStatus(err)
	}

	select {
	case <-ctx.Done():
		return status.FromContextError(ctx.Err()).Err()
	case <-c.done:
		return status.Error(codes.Unavailable, ErrClientClosed.Error())
	case packet := <-ch:
		if packet.Type == PacketTypeServerError {
			return status.Error(packet.Status, string(packet.Payload))
		}

		if err := proto.Unmarshal(packet.Payload, resp); err != nil {
			return status.Errorf(codes.Internal, "slip_rpc: unmarshal response: %v", err)
		}

		return nil
	}
}

// NewStream is not supported; only unary methods can be called.
func (c *Client) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Errorf(codes.Unimplemented, "slip_rpc: streaming call %s is not supported", method)
}

func (c *Client) HandlePacket(ctx context.Context, conn *Conn, packet *Packet) error {
	switch packet.Type {
	case PacketTypeResponse, PacketTypeServerError:
	default:
		c.logger.Debug().Stringer("type", packet.Type).Msg("client ignoring packet")
		return nil
	}

	key := callKey{
		serviceID: packet.ServiceID,
		methodID:  packet.MethodID,
		callID:    packet.CallID,
	}

	c.mu.Lock()
	ch, ok := c.calls[key]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug().
			Uint32("service_id", packet.ServiceID).
			Uint32("method_id", packet.MethodID).
			Uint32("call_id", packet.CallID).
			Msg("no pending call for response")
		return nil
	}

	select {
	case ch <- packet:
	default:
	}

	return nil
}

// Close stops the link and waits for it to finish. It returns the error
// that stopped the link, if any.
func (c *Client) Close() error {
	c.cancel()
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func sendStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, slip_link.ErrFrameTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, slip_link.ErrClosed):
		return status.Error(codes.Unavailable, ErrClientClosed.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
