package slip

import (
	"bytes"
	"errors"
)

const initialBufferSize = 1024

// Decoder recovers frames from a SLIP byte stream. State and the partial
// frame persist between calls, so input may be split anywhere. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	buffer     []byte
	state      State
	capacity   int
	overflowed bool
}

// NewDecoder returns a decoder without a bound on frame size.
func NewDecoder() *Decoder {
	return &Decoder{
		buffer: make([]byte, 0, initialBufferSize),
		state:  StateNormal,
	}
}

// NewDecoderWithCapacity returns a decoder that fails with ErrOversizedPacket
// once a frame holds more than capacity bytes. A capacity of zero or less
// means no bound.
func NewDecoderWithCapacity(capacity int) *Decoder {
	if capacity <= 0 {
		return NewDecoder()
	}

	return &Decoder{
		buffer:   make([]byte, 0, capacity),
		state:    StateNormal,
		capacity: capacity,
	}
}

// Decode consumes bytes from chunk until one frame completes, an error is
// detected, or chunk runs out. It returns the frame, if any, and the number
// of bytes consumed. Bytes after n were not looked at and must be passed to
// the next call before any new input.
//
// ErrFraming is reported once, on the offending byte; the decoder then
// skips to the next End by itself. ErrOversizedPacket latches: until Recover
// is called every call returns it without consuming input.
func (d *Decoder) Decode(chunk []byte) (frame []byte, n int, err error) {
	if len(chunk) == 0 {
		return nil, 0, nil
	}

	if d.overflowed {
		return nil, 0, ErrOversizedPacket
	}

	for n < len(chunk) {
		frame, err = d.process(chunk[n])
		n++
		if frame != nil || err != nil {
			return frame, n, err
		}
	}

	return nil, n, nil
}

// DecodeAll runs Decode over data until it is consumed. Framing errors do
// not stop it; the first one is returned along with the frames. An
// oversized packet stops it.
func (d *Decoder) DecodeAll(data []byte) ([][]byte, error) {
	var (
		frames   [][]byte
		firstErr error
	)

	for len(data) > 0 {
		frame, n, err := d.Decode(data)
		data = data[n:]

		if errors.Is(err, ErrFraming) {
			if firstErr == nil {
				firstErr = err
			}
		} else if err != nil {
			return frames, err
		}

		if frame != nil {
			frames = append(frames, frame)
		}
	}

	return frames, firstErr
}

// Recover clears an oversized packet condition by moving the decoder into
// error recovery. The rest of the oversized frame is dropped up to the next
// End.
func (d *Decoder) Recover() {
	d.overflowed = false
	d.buffer = d.buffer[:0]
	d.state = StateErrorRecovery
}

// Reset drops any partial frame and returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.overflowed = false
	d.buffer = d.buffer[:0]
	d.state = StateNormal
}

func (d *Decoder) State() State {
	return d.state
}

// Buffered returns the number of bytes held for the frame in progress.
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}

func (d *Decoder) Capacity() int {
	return d.capacity
}

func (d *Decoder) process(b byte) ([]byte, error) {
	switch d.state {
	case StateNormal:
		switch b {
		case End:
			// Back-to-back delimiters are line noise, not empty frames.
			if len(d.buffer) == 0 {
				return nil, nil
			}

			frame := bytes.Clone(d.buffer)
			d.buffer = d.buffer[:0]

			return frame, nil
		case Esc:
			d.state = StateEscaping
			return nil, nil
		}

		return nil, d.appendByte(b)
	case StateEscaping:
		switch b {
		case EscEnd:
			d.state = StateNormal
			return nil, d.appendByte(End)
		case EscEsc:
			d.state = StateNormal
			return nil, d.appendByte(Esc)
		}

		d.state = StateErrorRecovery

		return nil, ErrFraming
	case StateErrorRecovery:
		if b == End {
			d.buffer = d.buffer[:0]
			d.state = StateNormal
		}

		return nil, nil
	}

	return nil, nil
}

func (d *Decoder) appendByte(b byte) error {
	if d.capacity > 0 && len(d.buffer) >= d.capacity {
		d.overflowed = true
		return ErrOversizedPacket
	}

	d.buffer = append(d.buffer, b)

	return nil
}
