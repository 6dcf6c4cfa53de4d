package slip_rpc

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/robertfarnum/go_slip/pkg/pw_varint"
)

const (
	k65599HashConstant = uint32(65599)

	// DefaultChannelID is the channel used when none is configured.
	DefaultChannelID = uint32(1)
)

// Frame addresses.
const (
	RpcAddress = uint64('R')
	LogAddress = uint64(1)
)

const addressFormat = pw_varint.OneTerminatedLeastSignificant

type PacketType int32

const (
	PacketTypeRequest                 PacketType = 0
	PacketTypeResponse                PacketType = 1
	PacketTypeClientStream            PacketType = 2
	PacketTypeServerStream            PacketType = 3
	PacketTypeClientError             PacketType = 4
	PacketTypeServerError             PacketType = 5
	PacketTypeClientRequestCompletion PacketType = 8
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeRequest:
		return "REQUEST"
	case PacketTypeResponse:
		return "RESPONSE"
	case PacketTypeClientStream:
		return "CLIENT_STREAM"
	case PacketTypeServerStream:
		return "SERVER_STREAM"
	case PacketTypeClientError:
		return "CLIENT_ERROR"
	case PacketTypeServerError:
		return "SERVER_ERROR"
	case PacketTypeClientRequestCompletion:
		return "CLIENT_REQUEST_COMPLETION"
	}
	return fmt.Sprintf("PacketType(%d)", int32(t))
}

// Packet is the RpcPacket message carried in frames sent to RpcAddress.
//
// Wire format (protobuf):
//
//	1 type        varint
//	2 channel_id  varint
//	3 service_id  fixed32
//	4 method_id   fixed32
//	5 payload     bytes
//	6 status      varint
//	7 call_id     varint
type Packet struct {
	Type      PacketType
	ChannelID uint32
	ServiceID uint32
	MethodID  uint32
	Payload   []byte
	Status    codes.Code
	CallID    uint32
}

const (
	fieldType      protowire.Number = 1
	fieldChannelID protowire.Number = 2
	fieldServiceID protowire.Number = 3
	fieldMethodID  protowire.Number = 4
	fieldPayload   protowire.Number = 5
	fieldStatus    protowire.Number = 6
	fieldCallID    protowire.Number = 7
)

// Marshal encodes the packet. Zero-valued fields are omitted.
func (p *Packet) Marshal() []byte {
	var b []byte

	appendVarint := func(num protowire.Number, v uint64) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, v)
		}
	}
	appendFixed32 := func(num protowire.Number, v uint32) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, v)
		}
	}

	appendVarint(fieldType, uint64(p.Type))
	appendVarint(fieldChannelID, uint64(p.ChannelID))
	appendFixed32(fieldServiceID, p.ServiceID)
	appendFixed32(fieldMethodID, p.MethodID)
	if len(p.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Payload)
	}
	appendVarint(fieldStatus, uint64(p.Status))
	appendVarint(fieldCallID, uint64(p.CallID))

	return b
}

// UnmarshalPacket decodes a packet. Unknown fields are skipped.
func UnmarshalPacket(b []byte) (*Packet, error) {
	p := &Packet{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedPacket, num, protowire.ParseError(n))
			}
			b = b[n:]
			p.setVarint(num, v)
		case typ == protowire.Fixed32Type && (num == fieldServiceID || num == fieldMethodID):
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedPacket, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldServiceID {
				p.ServiceID = v
			} else {
				p.MethodID = v
			}
		case typ == protowire.BytesType && num == fieldPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedPacket, num, protowire.ParseError(n))
			}
			b = b[n:]
			p.Payload = append([]byte(nil), v...)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedPacket, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return p, nil
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldType, fieldChannelID, fieldStatus, fieldCallID:
		return true
	}
	return false
}

func (p *Packet) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldType:
		p.Type = PacketType(v)
	case fieldChannelID:
		p.ChannelID = uint32(v)
	case fieldStatus:
		p.Status = codes.Code(v)
	case fieldCallID:
		p.CallID = uint32(v)
	}
}

// EncodeFrame prefixes payload with its frame address.
func EncodeFrame(address uint64, payload []byte) []byte {
	frame := pw_varint.Encode(address, addressFormat)
	return append(frame, payload...)
}

// DecodeFrame splits a frame into its address and payload.
func DecodeFrame(frame []byte) (uint64, []byte, error) {
	address, n := pw_varint.Decode(frame, addressFormat)
	if n == 0 {
		return 0, nil, ErrBadAddress
	}
	return address, frame[n:], nil
}

// Hash returns the id of a service or method name.
func Hash(s string) uint32 {
	hash := uint32(len(s))
	coefficient := k65599HashConstant
	for _, ch := range s {
		hash += coefficient * uint32(ch)
		coefficient *= k65599HashConstant
	}

	return hash
}

// ParseMethod splits a full method name of the form /package.Service/Method
// into service and method ids.
func ParseMethod(method string) (serviceID, methodID uint32, err error) {
	parts := strings.Split(method, "/")
	if len(parts) != 3 || parts[0] != "" || parts[1] == "" || parts[2] == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	return Hash(parts[1]), Hash(parts[2]), nil
}
