package slip

import (
	"io"
	"sync"
)

// Writer encodes frames onto a byte sink. Each frame reaches the sink in a
// single Write, so frames from concurrent callers never interleave.
type Writer struct {
	sink    io.Writer
	encoder *Encoder
	scratch []byte
	mu      sync.Mutex
}

func NewWriter(sink io.Writer, leadingEnd bool) *Writer {
	return &Writer{
		sink:    sink,
		encoder: NewEncoder(leadingEnd),
	}
}

func (w *Writer) WriteFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.scratch = w.encoder.Append(w.scratch[:0], frame)

	_, err := w.sink.Write(w.scratch)

	return err
}
