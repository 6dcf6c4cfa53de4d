package slip_rpc

import "errors"

var (
	ErrBadAddress      = errors.New("slip_rpc: bad address")
	ErrMalformedPacket = errors.New("slip_rpc: malformed packet")
	ErrClientClosed    = errors.New("slip_rpc: client closed")
	ErrInvalidMethod   = errors.New("slip_rpc: invalid full method name")
)
