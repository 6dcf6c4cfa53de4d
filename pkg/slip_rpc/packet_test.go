package slip_rpc

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestPacketMarshal(t *testing.T) {
	p := &Packet{
		Type:      PacketTypeResponse,
		ChannelID: 1,
		ServiceID: 0x01020304,
		CallID:    2,
	}

	want := []byte{0x08, 0x01, 0x10, 0x01, 0x1D, 0x04, 0x03, 0x02, 0x01, 0x38, 0x02}
	if got := p.Marshal(); !bytes.Equal(got, want) {
		t.Fatalf("Marshal() = %x, want %x", got, want)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	tests := []*Packet{
		{},
		{Type: PacketTypeRequest, ChannelID: 1, ServiceID: Hash("slip.echo.Echo"), MethodID: Hash("Echo"), Payload: []byte{0xC0, 0xDB}, CallID: 7},
		{Type: PacketTypeServerError, ChannelID: 3, Status: codes.NotFound, Payload: []byte("missing"), CallID: 1 << 31},
	}

	for _, want := range tests {
		got, err := UnmarshalPacket(want.Marshal())
		if err != nil {
			t.Fatalf("UnmarshalPacket() error = %v", err)
		}
		if got.Type != want.Type || got.ChannelID != want.ChannelID || got.ServiceID != want.ServiceID ||
			got.MethodID != want.MethodID || got.Status != want.Status || got.CallID != want.CallID ||
			!bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("UnmarshalPacket() = %+v, want %+v", got, want)
		}
	}
}

func TestUnmarshalPacketSkipsUnknownFields(t *testing.T) {
	b := (&Packet{Type: PacketTypeResponse, CallID: 9}).Marshal()
	b = append(b, 0x48, 0x05)

	got, err := UnmarshalPacket(b)
	if err != nil {
		t.Fatalf("UnmarshalPacket() error = %v", err)
	}
	if got.Type != PacketTypeResponse || got.CallID != 9 {
		t.Fatalf("UnmarshalPacket() = %+v", got)
	}
}

func TestUnmarshalPacketMalformed(t *testing.T) {
	tests := [][]byte{
		{0x08},
		{0x2A, 0x05, 'a'},
		{0x1D, 0x01, 0x02},
	}

	for _, b := range tests {
		if _, err := UnmarshalPacket(b); !errors.Is(err, ErrMalformedPacket) {
			t.Fatalf("UnmarshalPacket(%x) error = %v, want ErrMalformedPacket", b, err)
		}
	}
}

func TestFrameAddress(t *testing.T) {
	frame := EncodeFrame(RpcAddress, []byte("x"))
	if want := []byte{0xA5, 'x'}; !bytes.Equal(frame, want) {
		t.Fatalf("EncodeFrame() = %x, want %x", frame, want)
	}

	address, payload, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if address != RpcAddress || string(payload) != "x" {
		t.Fatalf("DecodeFrame() = %d %q", address, payload)
	}

	address, payload, err = DecodeFrame(EncodeFrame(LogAddress, nil))
	if err != nil || address != LogAddress || len(payload) != 0 {
		t.Fatalf("DecodeFrame(log) = %d %q %v", address, payload, err)
	}
}

func TestDecodeFrameBadAddress(t *testing.T) {
	for _, frame := range [][]byte{{}, {0x02}, {0x02, 0x04}} {
		if _, _, err := DecodeFrame(frame); !errors.Is(err, ErrBadAddress) {
			t.Fatalf("DecodeFrame(%x) error = %v, want ErrBadAddress", frame, err)
		}
	}
}

func TestHash(t *testing.T) {
	if got := Hash(""); got != 0 {
		t.Fatalf("Hash(\"\") = %d, want 0", got)
	}
	if got := Hash("a"); got != 1+65599*97 {
		t.Fatalf("Hash(\"a\") = %d, want %d", got, 1+65599*97)
	}
	if Hash("Echo") == Hash("echo") {
		t.Fatalf("Hash is case insensitive")
	}
}

func TestParseMethod(t *testing.T) {
	serviceID, methodID, err := ParseMethod("/slip.echo.Echo/Echo")
	if err != nil {
		t.Fatalf("ParseMethod() error = %v", err)
	}
	if serviceID != Hash("slip.echo.Echo") || methodID != Hash("Echo") {
		t.Fatalf("ParseMethod() = %d %d", serviceID, methodID)
	}

	for _, method := range []string{"", "Echo", "slip.echo.Echo/Echo", "/slip.echo.Echo/", "//Echo", "/a/b/c"} {
		if _, _, err := ParseMethod(method); !errors.Is(err, ErrInvalidMethod) {
			t.Fatalf("ParseMethod(%q) error = %v, want ErrInvalidMethod", method, err)
		}
	}
}

func TestPacketTypeString(t *testing.T) {
	if got := PacketTypeServerError.String(); got != "SERVER_ERROR" {
		t.Fatalf("String() = %q", got)
	}
	if got := PacketType(42).String(); got != "PacketType(42)" {
		t.Fatalf("String() = %q", got)
	}
}
