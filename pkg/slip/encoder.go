package slip

import "io"

var endToken = []byte{End}

// Encoder byte-stuffs frames for the wire. It keeps no state between frames.
type Encoder struct {
	leadingEnd bool
}

// NewEncoder returns an encoder. With leadingEnd set every frame is preceded
// by an End token as well as followed by one, which flushes any line noise
// the receiver picked up since the last frame.
func NewEncoder(leadingEnd bool) *Encoder {
	return &Encoder{
		leadingEnd: leadingEnd,
	}
}

// Encode writes the encoded frame to w in a single pass and returns the
// number of bytes written. Runs of plain bytes are written straight from
// frame. Errors from w are returned as is.
func (e *Encoder) Encode(w io.Writer, frame []byte) (int, error) {
	written := 0
	write := func(p []byte) error {
		n, err := w.Write(p)
		written += n
		return err
	}

	if e.leadingEnd {
		if err := write(endToken); err != nil {
			return written, err
		}
	}

	start := 0
	for i, b := range frame {
		escaped := escapeSequence(b)
		if escaped == nil {
			continue
		}

		if start < i {
			if err := write(frame[start:i]); err != nil {
				return written, err
			}
		}

		if err := write(escaped); err != nil {
			return written, err
		}

		start = i + 1
	}

	if start < len(frame) {
		if err := write(frame[start:]); err != nil {
			return written, err
		}
	}

	if err := write(endToken); err != nil {
		return written, err
	}

	return written, nil
}

// Append appends the encoded frame to dst and returns the extended slice.
func (e *Encoder) Append(dst, frame []byte) []byte {
	if e.leadingEnd {
		dst = append(dst, End)
	}

	for _, b := range frame {
		if escaped := escapeSequence(b); escaped != nil {
			dst = append(dst, escaped...)
		} else {
			dst = append(dst, b)
		}
	}

	return append(dst, End)
}

// EncodedLen returns the length of frame once encoded.
func (e *Encoder) EncodedLen(frame []byte) int {
	n := len(frame) + 1
	if e.leadingEnd {
		n++
	}

	for _, b := range frame {
		if NeedsEscaping(b) {
			n++
		}
	}

	return n
}

// Encode returns frame encoded with both a leading and a trailing End.
func Encode(frame []byte) []byte {
	e := NewEncoder(true)
	return e.Append(make([]byte, 0, e.EncodedLen(frame)), frame)
}

func escapeSequence(b byte) []byte {
	switch b {
	case End:
		return escapedEnd
	case Esc:
		return escapedEsc
	}
	return nil
}
