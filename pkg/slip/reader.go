package slip

import (
	"errors"
	"io"
)

const (
	DefaultReadSize = 4096

	maxEmptyReads = 100
)

type readerOptions struct {
	capacity int
	readSize int
}

type ReaderOption func(*readerOptions)

// WithCapacity bounds the size of frames the reader accepts.
func WithCapacity(capacity int) ReaderOption {
	return func(o *readerOptions) {
		o.capacity = capacity
	}
}

// WithReadSize sets how many bytes are requested from the source per read.
func WithReadSize(size int) ReaderOption {
	return func(o *readerOptions) {
		if size > 0 {
			o.readSize = size
		}
	}
}

// Reader pulls frames out of a blocking byte source.
type Reader struct {
	source  io.Reader
	decoder *Decoder
	chunk   []byte
	pending []byte
	err     error
}

func NewReader(source io.Reader, opts ...ReaderOption) *Reader {
	o := readerOptions{
		readSize: DefaultReadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Reader{
		source:  source,
		decoder: NewDecoderWithCapacity(o.capacity),
		chunk:   make([]byte, o.readSize),
	}
}

// ReadFrame blocks until a frame is decoded or an error occurs. ErrFraming
// and ErrOversizedPacket leave the reader usable; after ErrOversizedPacket
// call Recover before reading on. When the source hits io.EOF in the middle
// of a frame io.ErrUnexpectedEOF is returned. Other source errors are
// returned unchanged once the bytes read before them have been decoded.
func (r *Reader) ReadFrame() ([]byte, error) {
	empty := 0

	for {
		if len(r.pending) > 0 {
			frame, n, err := r.decoder.Decode(r.pending)
			r.pending = r.pending[n:]
			if err != nil {
				return nil, err
			}
			if frame != nil {
				return frame, nil
			}
			continue
		}

		if r.err != nil {
			return nil, r.terminalError()
		}

		n, err := r.source.Read(r.chunk)
		if n > 0 {
			r.pending = r.chunk[:n]
			empty = 0
		}
		if err != nil {
			r.err = err
			continue
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return nil, io.ErrNoProgress
			}
		}
	}
}

// Recover clears an oversized packet condition. See Decoder.Recover.
func (r *Reader) Recover() {
	r.decoder.Recover()
}

func (r *Reader) Decoder() *Decoder {
	return r.decoder
}

func (r *Reader) terminalError() error {
	if !errors.Is(r.err, io.EOF) {
		return r.err
	}

	if r.decoder.Buffered() > 0 || r.decoder.State() == StateEscaping {
		return io.ErrUnexpectedEOF
	}

	return io.EOF
}
