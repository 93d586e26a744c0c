package wire

// MaxVarintLen is the longest valid varint encoding of a 64-bit value.
const MaxVarintLen = 10

// ENCODER FUNCTIONS

// AppendVarint appends v in base-128 little-endian form.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// VarintSize returns the number of bytes needed to encode the given varint
func VarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}

// UTILITY FUNCTIONS

// DecodeZigZag32 decodes a zigzag-encoded 32-bit integer
func DecodeZigZag32(encoded uint64) int32 {
	return int32((uint32(encoded) >> 1) ^ uint32(-int32(encoded&1)))
}

// DecodeZigZag64 decodes a zigzag-encoded 64-bit integer
func DecodeZigZag64(encoded uint64) int64 {
	return int64((encoded >> 1) ^ uint64(-int64(encoded&1)))
}

// EncodeZigZag32 encodes a signed 32-bit integer using zigzag encoding
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// EncodeZigZag64 encodes a signed 64-bit integer using zigzag encoding
func EncodeZigZag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// DECODER

// VarintDecoder decodes one varint, possibly spread over several calls.
type VarintDecoder struct {
	value uint64
	shift uint
	count int
	done  bool
}

// NewVarintDecoder creates a new varint decoder
func NewVarintDecoder() *VarintDecoder {
	return &VarintDecoder{}
}

// Decode implements Decoder.
func (d *VarintDecoder) Decode(buf []byte, eos bool) (int, error) {
	if d.done {
		return 0, nil
	}
	for i, b := range buf {
		// The tenth byte contributes only its lowest bit; higher bits are
		// dropped, which is the wire format's width tolerance.
		d.value |= uint64(b&0x7F) << d.shift
		d.count++

		// If MSB is not set, we're done
		if b&0x80 == 0 {
			d.done = true
			return i + 1, nil
		}
		if d.count == MaxVarintLen {
			return i + 1, Errorf(ErrMalformed, "varint longer than %d bytes", MaxVarintLen)
		}
		d.shift += 7
	}
	if eos {
		return len(buf), Errorf(ErrMalformed, "input ended inside a varint")
	}
	return len(buf), nil
}

// Done implements Decoder.
func (d *VarintDecoder) Done() bool { return d.done }

// Value returns the decoded varint.
func (d *VarintDecoder) Value() uint64 { return d.value }

// Started reports whether any byte has been consumed.
func (d *VarintDecoder) Started() bool { return d.count > 0 }

// Reset prepares the decoder for the next varint.
func (d *VarintDecoder) Reset() { *d = VarintDecoder{} }

// TagDecoder decodes a field tag and validates its parts.
type TagDecoder struct {
	varint VarintDecoder
	num    FieldNumber
	wt     WireType
}

// Decode implements Decoder.
func (d *TagDecoder) Decode(buf []byte, eos bool) (int, error) {
	if d.varint.Done() {
		return 0, nil
	}
	n, err := d.varint.Decode(buf, eos)
	if err != nil || !d.varint.Done() {
		return n, err
	}

	v := d.varint.Value()
	if v>>3 > uint64(MaxFieldNumber) || v>>3 == 0 {
		return n, Errorf(ErrMalformed, "invalid field number %d", v>>3)
	}
	d.num, d.wt = ParseTag(Tag(v))
	switch {
	case d.wt.IsGroup():
		return n, Errorf(ErrUnsupportedWireType, "field %d uses group wire type %d", d.num, d.wt)
	case d.wt > WireFixed32:
		return n, Errorf(ErrMalformed, "field %d uses invalid wire type %d", d.num, d.wt)
	}
	return n, nil
}

// Done implements Decoder.
func (d *TagDecoder) Done() bool { return d.varint.Done() }

// Started reports whether the tag has consumed any byte.
func (d *TagDecoder) Started() bool { return d.varint.Started() }

// Value returns the decoded field number and wire type.
func (d *TagDecoder) Value() (FieldNumber, WireType) { return d.num, d.wt }

// Reset prepares the decoder for the next tag.
func (d *TagDecoder) Reset() { *d = TagDecoder{} }

// convertDecoder maps the output of an inner decoder.
type convertDecoder[A, B any] struct {
	inner ValueDecoder[A]
	conv  func(A) (B, error)
	value B
	done  bool
}

// Convert returns a decoder yielding conv applied to the inner decoder's
// value. An error from conv fails the decode.
func Convert[A, B any](inner ValueDecoder[A], conv func(A) (B, error)) ValueDecoder[B] {
	return &convertDecoder[A, B]{inner: inner, conv: conv}
}

func (d *convertDecoder[A, B]) Decode(buf []byte, eos bool) (int, error) {
	if d.done {
		return 0, nil
	}
	n, err := d.inner.Decode(buf, eos)
	if err != nil || !d.inner.Done() {
		return n, err
	}
	d.value, err = d.conv(d.inner.Value())
	if err != nil {
		return n, err
	}
	d.done = true
	return n, nil
}

func (d *convertDecoder[A, B]) Done() bool { return d.done }
func (d *convertDecoder[A, B]) Value() B   { return d.value }
