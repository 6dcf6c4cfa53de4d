package slip_rpc

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

// PacketHandler receives RPC packets decoded on a Conn.
type PacketHandler interface {
	HandlePacket(ctx context.Context, conn *Conn, packet *Packet) error
}

// Conn carries addressed frames over a SLIP link. Frames for RpcAddress go
// to the packet handler; frames for LogAddress are written to the log.
type Conn struct {
	link   *slip_link.Link
	ph     PacketHandler
	logger zerolog.Logger
}

func NewConn(rwc io.ReadWriteCloser, ph PacketHandler, opts ...slip_link.Option) *Conn {
	c := &Conn{
		ph: ph,
	}
	c.link = slip_link.New(rwc, slip_link.HandlerFunc(c.processFrame), opts...)
	c.logger = c.link.Logger()

	return c
}

// Run processes inbound frames until the link stops. See slip_link.Link.Run.
func (c *Conn) Run(ctx context.Context) error {
	return c.link.Run(ctx)
}

func (c *Conn) Send(ctx context.Context, packet *Packet) error {
	return c.link.Send(ctx, EncodeFrame(RpcAddress, packet.Marshal()))
}

// SendLog sends msg to the peer's log.
func (c *Conn) SendLog(ctx context.Context, msg string) error {
	return c.link.Send(ctx, EncodeFrame(LogAddress, []byte(msg)))
}

func (c *Conn) Close() error {
	return c.link.Close()
}

func (c *Conn) Done() <-chan struct{} {
	return c.link.Done()
}

func (c *Conn) Stats() slip_link.Stats {
	return c.link.Stats()
}

func (c *Conn) processFrame(ctx context.Context, frame []byte) error {
	address, payload, err := DecodeFrame(frame)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping frame")
		return nil
	}

	switch address {
	case RpcAddress:
		packet, err := UnmarshalPacket(payload)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping packet")
			return nil
		}

		if c.ph == nil {
			return nil
		}

		return c.ph.HandlePacket(ctx, c, packet)
	case LogAddress:
		c.logger.Info().Str("remote", string(payload)).Msg("remote log")
	default:
		c.logger.Warn().Err(ErrBadAddress).Uint64("address", address).Msg("dropping frame")
	}

	return nil
}
