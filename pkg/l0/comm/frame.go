package comm

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Wire constants.
const (
	Preamble1 byte = 0xAA
	Preamble2 byte = 0x55
	Preamble3 byte = 0x1E
	Trailer   byte = 0xC6

	// MaxPayloadSize is limited by the 1-byte length field which also
	// counts the 2 endpoint id bytes.
	MaxPayloadSize = 0xff - 2

	frameOverhead = 7
)

// EndpointID identifies a logical endpoint on the link.
type EndpointID uint16

// Frame is one complete wire unit.
type Frame struct {
	Endpoint EndpointID
	Payload  []byte
}

// Len returns the encoded length of the frame.
func (f *Frame) Len() int {
	return len(f.Payload) + frameOverhead
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() ([]byte, error) {
	return f.AppendTo(make([]byte, 0, f.Len()))
}

// AppendTo appends the encoded frame to dst.
func (f *Frame) AppendTo(dst []byte) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return dst, ErrPayloadTooLarge
	}
	dst = append(dst,
		Preamble1, Preamble2, Preamble3,
		byte(len(f.Payload)+2),
		byte(f.Endpoint>>8), byte(f.Endpoint))
	dst = append(dst, f.Payload...)
	return append(dst, Trailer), nil
}

// WriteTo writes encoded bytes in a single Write.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// DecodeText renders bytes as text. Bytes which can't be decoded are
// replaced with an empty placeholder and decoding continues.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}
