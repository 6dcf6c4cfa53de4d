// Package pw_varint encodes the LEB128 variants used for frame addresses.
// The terminating bit may be zero or one, and it may sit in the least or
// the most significant bit of each byte.
package pw_varint

type Format int

const (
	ZeroTerminatedLeastSignificant Format = 0
	ZeroTerminatedMostSignificant  Format = 1
	OneTerminatedLeastSignificant  Format = 2
	OneTerminatedMostSignificant   Format = 3
)

const (
	MaxVarint32SizeBytes = 5
	MaxVarint64SizeBytes = 10
)

func ZeroTerminated(format Format) bool {
	return (format & 0b10) == 0
}

func LeastSignificant(format Format) bool {
	return (format & 0b01) == 0
}

// Encode returns value encoded in format. Zero encodes as a single byte.
func Encode(value uint64, format Format) []byte {
	out := make([]byte, 0, MaxVarint64SizeBytes)

	for {
		last := value>>7 == 0
		out = append(out, pack(byte(value)&0x7f, last, format))
		value >>= 7

		if last {
			return out
		}
	}
}

// Decode reads a varint from the start of input. It returns the value and
// the number of bytes used; a count of zero means input was truncated or
// longer than a 64-bit varint.
func Decode(input []byte, format Format) (uint64, int) {
	var value uint64

	limit := min(MaxVarint64SizeBytes, len(input))
	for count := 0; count < limit; count++ {
		bits, last := unpack(input[count], format)
		value |= uint64(bits) << (7 * count)

		if last {
			return value, count + 1
		}
	}

	return 0, 0
}

func pack(bits byte, last bool, format Format) byte {
	flag := byte(0)
	if last != ZeroTerminated(format) {
		flag = 1
	}

	if LeastSignificant(format) {
		return bits<<1 | flag
	}
	return bits | flag<<7
}

func unpack(b byte, format Format) (byte, bool) {
	var bits, flag byte
	if LeastSignificant(format) {
		bits, flag = b>>1, b&0x01
	} else {
		bits, flag = b&0x7f, b>>7
	}

	return bits, (flag == 1) != ZeroTerminated(format)
}
