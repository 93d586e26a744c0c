package wire

import (
	"encoding/binary"
)

// ENCODER FUNCTIONS

// AppendFixed32 appends v as four little-endian bytes.
func AppendFixed32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendFixed64 appends v as eight little-endian bytes.
func AppendFixed64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// UTILITY FUNCTIONS

// Fixed32Size returns the size of a fixed32 value (always 4 bytes)
func Fixed32Size() int {
	return 4
}

// Fixed64Size returns the size of a fixed64 value (always 8 bytes)
func Fixed64Size() int {
	return 8
}

// DECODERS

// fixedDecoder collects exactly want bytes.
type fixedDecoder struct {
	buf  [8]byte
	want int
	have int
}

func (d *fixedDecoder) decode(buf []byte, eos bool) (int, error) {
	n := copy(d.buf[d.have:d.want], buf)
	d.have += n
	if d.have < d.want && eos {
		return n, Errorf(ErrMalformed, "input ended after %d of %d fixed-width bytes", d.have, d.want)
	}
	return n, nil
}

// Fixed32Decoder decodes a 32-bit fixed-width value
type Fixed32Decoder struct {
	fixedDecoder
}

// NewFixed32Decoder creates a new fixed32 decoder
func NewFixed32Decoder() *Fixed32Decoder {
	return &Fixed32Decoder{fixedDecoder{want: 4}}
}

// Decode implements Decoder.
func (d *Fixed32Decoder) Decode(buf []byte, eos bool) (int, error) { return d.decode(buf, eos) }

// Done implements Decoder.
func (d *Fixed32Decoder) Done() bool { return d.have == 4 }

// Value returns the decoded value.
func (d *Fixed32Decoder) Value() uint32 { return binary.LittleEndian.Uint32(d.buf[:4]) }

// Fixed64Decoder decodes a 64-bit fixed-width value
type Fixed64Decoder struct {
	fixedDecoder
}

// NewFixed64Decoder creates a new fixed64 decoder
func NewFixed64Decoder() *Fixed64Decoder {
	return &Fixed64Decoder{fixedDecoder{want: 8}}
}

// Decode implements Decoder.
func (d *Fixed64Decoder) Decode(buf []byte, eos bool) (int, error) { return d.decode(buf, eos) }

// Done implements Decoder.
func (d *Fixed64Decoder) Done() bool { return d.have == 8 }

// Value returns the decoded value.
func (d *Fixed64Decoder) Value() uint64 { return binary.LittleEndian.Uint64(d.buf[:8]) }
