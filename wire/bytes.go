package wire

import (
	"math"
)

// ENCODER FUNCTIONS

// AppendBytes appends a length-delimited byte array.
func AppendBytes(b []byte, data []byte) []byte {
	b = AppendVarint(b, uint64(len(data)))
	return append(b, data...)
}

// AppendString appends a length-delimited string.
func AppendString(b []byte, s string) []byte {
	b = AppendVarint(b, uint64(len(s)))
	return append(b, s...)
}

// UTILITY FUNCTIONS

// BytesSize returns the size needed to encode n bytes with their length prefix.
func BytesSize(n int) int {
	return VarintSize(uint64(n)) + n
}

// checkLength validates a decoded length prefix against max (0 = unlimited).
func checkLength(l uint64, max int) (int, error) {
	if l > math.MaxInt32 {
		return 0, Errorf(ErrMalformed, "length %d exceeds 2 GiB", l)
	}
	if max > 0 && l > uint64(max) {
		return 0, Errorf(ErrMalformed, "length %d exceeds limit %d", l, max)
	}
	return int(l), nil
}

// BytesDecoder decodes a length-delimited byte array into a fresh slice.
type BytesDecoder struct {
	length VarintDecoder
	max    int
	want   int
	data   []byte
	done   bool
}

// NewBytesDecoder creates a new bytes decoder. max bounds the accepted
// length prefix; zero means unlimited.
func NewBytesDecoder(max int) *BytesDecoder {
	return &BytesDecoder{max: max}
}

// Decode implements Decoder.
func (d *BytesDecoder) Decode(buf []byte, eos bool) (int, error) {
	if d.done {
		return 0, nil
	}
	n := 0
	if !d.length.Done() {
		m, err := d.length.Decode(buf, eos)
		n += m
		if err != nil {
			return n, WithPhase(err, PhaseLength)
		}
		if !d.length.Done() {
			return n, nil
		}
		if d.want, err = checkLength(d.length.Value(), d.max); err != nil {
			return n, WithPhase(err, PhaseLength)
		}
		// Grow with the input instead of trusting the prefix up front.
		d.data = make([]byte, 0, min(d.want, 4096))
	}

	take := min(d.want-len(d.data), len(buf)-n)
	d.data = append(d.data, buf[n:n+take]...)
	n += take
	if len(d.data) == d.want {
		d.done = true
		return n, nil
	}
	if eos {
		return n, Errorf(ErrMalformed, "length-delimited payload truncated: have %d of %d bytes", len(d.data), d.want)
	}
	return n, nil
}

// Done implements Decoder.
func (d *BytesDecoder) Done() bool { return d.done }

// Value returns the payload.
func (d *BytesDecoder) Value() []byte { return d.data }

// boundedDecoder limits an inner decoder to a length-prefixed window.
type boundedDecoder[T any] struct {
	length    VarintDecoder
	inner     ValueDecoder[T]
	max       int
	remaining int
}

// Bounded returns a decoder that reads a varint length N and then feeds the
// inner decoder exactly N bytes, signalling end of input at the ceiling.
// The inner decoder never sees bytes past its window. An inner decoder that
// completes before consuming the whole window is ErrMalformed; max bounds N
// (zero means unlimited).
func Bounded[T any](inner ValueDecoder[T], max int) ValueDecoder[T] {
	return &boundedDecoder[T]{inner: inner, max: max}
}

func (d *boundedDecoder[T]) Decode(buf []byte, eos bool) (int, error) {
	if d.Done() {
		return 0, nil
	}
	n := 0
	if !d.length.Done() {
		m, err := d.length.Decode(buf, eos)
		n += m
		if err != nil {
			return n, WithPhase(err, PhaseLength)
		}
		if !d.length.Done() {
			return n, nil
		}
		if d.remaining, err = checkLength(d.length.Value(), d.max); err != nil {
			return n, WithPhase(err, PhaseLength)
		}
	}

	window := buf[n:]
	if len(window) > d.remaining {
		window = window[:d.remaining]
	}
	atCeiling := len(window) == d.remaining
	m, err := d.inner.Decode(window, atCeiling)
	n += m
	d.remaining -= m
	if err != nil {
		return n, err
	}

	if d.inner.Done() {
		if d.remaining > 0 {
			return n, Errorf(ErrMalformed, "%d unread bytes inside length-delimited value", d.remaining)
		}
		return n, nil
	}
	if atCeiling {
		return n, Errorf(ErrMalformed, "length-delimited value ended before its content was complete")
	}
	if eos && n == len(buf) {
		return n, Errorf(ErrMalformed, "length-delimited value truncated: %d bytes missing", d.remaining)
	}
	return n, nil
}

func (d *boundedDecoder[T]) Done() bool {
	return d.length.Done() && d.remaining == 0 && d.inner.Done()
}

func (d *boundedDecoder[T]) Value() T { return d.inner.Value() }

// Skipper consumes one field value of a known wire type without decoding it.
type Skipper struct {
	wt        WireType
	varint    VarintDecoder
	remaining int
	max       int
	ready     bool
}

// NewSkipper returns a Skipper for a value of wire type wt. Group wire types
// fail with ErrUnsupportedWireType on the first call to Decode.
func NewSkipper(wt WireType, max int) *Skipper {
	s := &Skipper{wt: wt, max: max}
	switch wt {
	case WireFixed32:
		s.remaining, s.ready = 4, true
	case WireFixed64:
		s.remaining, s.ready = 8, true
	}
	return s
}

// Decode implements Decoder.
func (s *Skipper) Decode(buf []byte, eos bool) (int, error) {
	switch s.wt {
	case WireVarint:
		return s.varint.Decode(buf, eos)
	case WireFixed32, WireFixed64:
	case WireBytes:
		if !s.ready {
			n, err := s.varint.Decode(buf, eos)
			if err != nil {
				return n, WithPhase(err, PhaseLength)
			}
			if !s.varint.Done() {
				return n, nil
			}
			if s.remaining, err = checkLength(s.varint.Value(), s.max); err != nil {
				return n, WithPhase(err, PhaseLength)
			}
			s.ready = true
			m, err := s.skip(buf[n:], eos)
			return n + m, err
		}
	case WireStartGroup, WireEndGroup:
		return 0, Errorf(ErrUnsupportedWireType, "cannot skip group wire type %d", s.wt)
	default:
		return 0, Errorf(ErrMalformed, "cannot skip invalid wire type %d", s.wt)
	}
	return s.skip(buf, eos)
}

func (s *Skipper) skip(buf []byte, eos bool) (int, error) {
	n := min(s.remaining, len(buf))
	s.remaining -= n
	if s.remaining > 0 && eos {
		return n, Errorf(ErrMalformed, "input ended while skipping: %d bytes missing", s.remaining)
	}
	return n, nil
}

// Done implements Decoder.
func (s *Skipper) Done() bool {
	if s.wt == WireVarint {
		return s.varint.Done()
	}
	return s.ready && s.remaining == 0
}
