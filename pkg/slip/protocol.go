// Package slip implements the Serial Line Internet Protocol framing from
// RFC 1055: a decoder that recovers frames from a byte stream delivered in
// arbitrary chunks, and an encoder that byte-stuffs a frame for the wire.
package slip

import "errors"

// Protocol tokens.
const (
	End    = byte(0xC0)
	Esc    = byte(0xDB)
	EscEnd = byte(0xDC)
	EscEsc = byte(0xDD)
)

// MaxPacketSize is the recommended decoder capacity from RFC 1055. It is not
// enforced unless a decoder is built with it.
const MaxPacketSize = 1006

var (
	escapedEnd = []byte{Esc, EscEnd}
	escapedEsc = []byte{Esc, EscEsc}
)

type State int

const (
	StateNormal State = iota
	StateEscaping
	StateErrorRecovery
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateEscaping:
		return "escaping"
	case StateErrorRecovery:
		return "error-recovery"
	}
	return "unknown"
}

var (
	// ErrFraming reports an escape byte followed by something other than
	// EscEnd or EscEsc. The decoder discards input up to the next End.
	ErrFraming = errors.New("slip: framing error")

	// ErrOversizedPacket reports a frame that outgrew the decoder capacity.
	// The decoder refuses input until Recover is called.
	ErrOversizedPacket = errors.New("slip: oversized packet")
)

func NeedsEscaping(b byte) bool {
	return b == End || b == Esc
}
