package slip_link

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/robertfarnum/go_slip/pkg/slip"
)

// Frames decodes r in a goroutine and delivers the frames on the returned
// channel. Damaged and oversized frames are logged to the logger carried by
// ctx and skipped. The error channel yields the error that ended the stream,
// if any besides io.EOF, and both channels are then closed. Cancelling ctx
// is noticed between frames; close r to unblock a pending read.
func Frames(ctx context.Context, r io.Reader, opts ...slip.ReaderOption) (<-chan []byte, <-chan error) {
	frames := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(frames)

		logger := zerolog.Ctx(ctx)
		reader := slip.NewReader(r, opts...)

		for {
			frame, err := reader.ReadFrame()
			switch {
			case errors.Is(err, slip.ErrFraming):
				logger.Warn().Err(err).Msg("dropping frame")
				continue
			case errors.Is(err, slip.ErrOversizedPacket):
				logger.Warn().Err(err).Msg("dropping frame")
				reader.Recover()
				continue
			case errors.Is(err, io.EOF):
				return
			case err != nil:
				errc <- err
				return
			}

			select {
			case frames <- frame:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return frames, errc
}

// Pump encodes every frame received on frames onto w until frames is closed
// or ctx is cancelled.
func Pump(ctx context.Context, frames <-chan []byte, w io.Writer, leadingEnd bool) error {
	writer := slip.NewWriter(w, leadingEnd)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := writer.WriteFrame(frame); err != nil {
				return err
			}
		}
	}
}
