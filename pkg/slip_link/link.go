// Package slip_link runs SLIP framing over a duplex byte stream such as a
// TCP connection, a tty or an in-memory pipe.
package slip_link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robertfarnum/go_slip/pkg/slip"
)

var (
	ErrClosed        = errors.New("slip_link: link closed")
	ErrFrameTooLarge = errors.New("slip_link: frame exceeds link capacity")
)

// Handler receives every frame decoded on a link. Returning an error stops
// the link.
type Handler interface {
	HandleFrame(ctx context.Context, frame []byte) error
}

type HandlerFunc func(ctx context.Context, frame []byte) error

func (f HandlerFunc) HandleFrame(ctx context.Context, frame []byte) error {
	return f(ctx, frame)
}

type options struct {
	capacity   int
	leadingEnd bool
	readSize   int
	logger     zerolog.Logger
}

type Option func(*options)

// WithCapacity bounds frames in both directions. Zero means unbounded.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

func WithLeadingEnd(leadingEnd bool) Option {
	return func(o *options) {
		o.leadingEnd = leadingEnd
	}
}

func WithReadSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.readSize = size
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Stats is a snapshot of link counters.
type Stats struct {
	FramesIn         uint64
	FramesOut        uint64
	BytesIn          uint64
	BytesOut         uint64
	FramingErrors    uint64
	OversizedPackets uint64
}

type Link struct {
	id       uuid.UUID
	rwc      io.ReadWriteCloser
	handler  Handler
	decoder  *slip.Decoder
	encoder  *slip.Encoder
	writer   *slip.Writer
	readSize int
	capacity int
	logger   zerolog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}

	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	bytesIn       atomic.Uint64
	bytesOut      atomic.Uint64
	framingErrors atomic.Uint64
	oversized     atomic.Uint64
}

func New(rwc io.ReadWriteCloser, handler Handler, opts ...Option) *Link {
	o := options{
		capacity:   slip.MaxPacketSize,
		leadingEnd: true,
		readSize:   slip.DefaultReadSize,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if handler == nil {
		handler = HandlerFunc(func(context.Context, []byte) error { return nil })
	}

	id := uuid.New()

	return &Link{
		id:       id,
		rwc:      rwc,
		handler:  handler,
		decoder:  slip.NewDecoderWithCapacity(o.capacity),
		encoder:  slip.NewEncoder(o.leadingEnd),
		writer:   slip.NewWriter(rwc, o.leadingEnd),
		readSize: o.readSize,
		capacity: o.capacity,
		logger:   o.logger.With().Str("link", id.String()).Logger(),
		closed:   make(chan struct{}),
	}
}

func (l *Link) ID() uuid.UUID {
	return l.id
}

func (l *Link) Logger() zerolog.Logger {
	return l.logger
}

// Run reads from the stream and hands decoded frames to the handler until
// the stream ends, the handler fails, ctx is cancelled or Close is called.
// The stream is closed on return. End of stream and Close are not errors.
func (l *Link) Run(ctx context.Context) error {
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-l.closed:
		}
		if err := l.Close(); err != nil {
			l.logger.Debug().Err(err).Msg("close stream")
		}
		return nil
	})

	g.Go(func() error {
		defer l.Close()
		return l.recv(ctx)
	})

	l.logger.Debug().Msg("link running")

	err := g.Wait()
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if err != nil {
		l.logger.Error().Err(err).Msg("link stopped")
	}

	return err
}

// Send encodes frame and writes it to the stream in one write. A frame
// longer than the link capacity fails with ErrFrameTooLarge and nothing is
// written. It is safe to call from multiple goroutines.
func (l *Link) Send(ctx context.Context, frame []byte) error {
	if l.isClosed() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if l.capacity > 0 && len(frame) > l.capacity {
		return fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(frame), l.capacity)
	}

	if err := l.writer.WriteFrame(frame); err != nil {
		if l.isClosed() {
			return ErrClosed
		}
		return err
	}

	l.framesOut.Add(1)
	l.bytesOut.Add(uint64(l.encoder.EncodedLen(frame)))

	return nil
}

func (l *Link) Stats() Stats {
	return Stats{
		FramesIn:         l.framesIn.Load(),
		FramesOut:        l.framesOut.Load(),
		BytesIn:          l.bytesIn.Load(),
		BytesOut:         l.bytesOut.Load(),
		FramingErrors:    l.framingErrors.Load(),
		OversizedPackets: l.oversized.Load(),
	}
}

// Close closes the underlying stream. It is safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.closeErr = l.rwc.Close()
	})

	return l.closeErr
}

// Done is closed once the link has been closed.
func (l *Link) Done() <-chan struct{} {
	return l.closed
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *Link) recv(ctx context.Context) error {
	chunk := make([]byte, l.readSize)

	for {
		n, err := l.rwc.Read(chunk)
		if n > 0 {
			l.bytesIn.Add(uint64(n))
			if herr := l.consume(ctx, chunk[:n]); herr != nil {
				return herr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || l.isClosed() {
				return nil
			}
			return err
		}
	}
}

func (l *Link) consume(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		frame, n, err := l.decoder.Decode(data)
		data = data[n:]

		switch {
		case errors.Is(err, slip.ErrFraming):
			l.framingErrors.Add(1)
			l.logger.Warn().Err(err).Msg("dropping frame")
		case errors.Is(err, slip.ErrOversizedPacket):
			l.oversized.Add(1)
			l.logger.Warn().Err(err).Int("capacity", l.decoder.Capacity()).Msg("dropping frame")
			l.decoder.Recover()
		}

		if frame == nil {
			continue
		}

		l.framesIn.Add(1)
		if err := l.handler.HandleFrame(ctx, frame); err != nil {
			return err
		}
	}

	return nil
}
