// Package message composes field descriptors into a codec for a whole
// message value.
//
// A Codec decodes by reading tags and dispatching each occurrence to the
// field that claims its number, skipping numbers no field claims. It encodes
// by streaming every field in declaration order. Sizes of nested messages are
// computed up front, so encoding never buffers.
package message

import (
	"fmt"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/wire"
)

// Option configures a Codec.
type Option func(*config)

type config struct {
	name           string
	rejectReserved bool
	maxLength      int
}

// Named sets the name that prefixes error paths from Decode.
func Named(name string) Option {
	return func(c *config) { c.name = name }
}

// RejectReserved makes field numbers in 19000..19999 fail with
// wire.ErrMalformed instead of being dispatched or skipped.
func RejectReserved() Option {
	return func(c *config) { c.rejectReserved = true }
}

// MaxLength caps length prefixes of skipped fields and of the message itself
// when embedded. Declared fields take their limit from field.MaxLength.
// Zero means unlimited.
func MaxLength(n int) Option {
	return func(c *config) { c.maxLength = n }
}

// Codec encodes and decodes values of M according to a list of fields.
// A Codec is immutable and safe for concurrent use.
type Codec[M any] struct {
	fields   []field.Field[M]
	byNumber map[wire.FieldNumber]field.Field[M]
	config
}

// New builds a Codec from fields. Fields are encoded in the order given.
// New panics if two fields claim the same number.
func New[M any](fields []field.Field[M], opts ...Option) *Codec[M] {
	c := &Codec[M]{
		fields:   fields,
		byNumber: make(map[wire.FieldNumber]field.Field[M]),
	}
	for _, opt := range opts {
		opt(&c.config)
	}
	for _, f := range fields {
		for _, num := range f.Numbers() {
			if _, dup := c.byNumber[num]; dup {
				panic(fmt.Sprintf("message: %sfield number %d declared twice", c.prefix(), num))
			}
			c.byNumber[num] = f
		}
	}
	return c
}

func (c *Codec[M]) prefix() string {
	if c.name == "" {
		return ""
	}
	return c.name + ": "
}

// Name returns the name set with Named.
func (c *Codec[M]) Name() string { return c.name }

// EncodedSize returns the number of bytes Encode produces for v.
func (c *Codec[M]) EncodedSize(v M) int {
	size := 0
	for _, f := range c.fields {
		size += f.Size(&v)
	}
	return size
}

// NewEncoder returns a streaming encoder for v. v is copied; slices and
// containers it references must not change until the encoder is done.
func (c *Codec[M]) NewEncoder(v M) wire.Encoder {
	m := &v
	i := 0
	return wire.Sequence(func() (wire.Encoder, bool) {
		if i == len(c.fields) {
			return nil, false
		}
		f := c.fields[i]
		i++
		return f.NewEncoder(m), true
	})
}

// Append appends the encoding of v to b.
func (c *Codec[M]) Append(b []byte, v M) ([]byte, error) {
	b, err := wire.EncodeAll(b, c.NewEncoder(v), c.EncodedSize(v))
	return b, c.label(wire.WithPhase(err, wire.PhaseEncode))
}

// Encode returns the encoding of v.
func (c *Codec[M]) Encode(v M) ([]byte, error) {
	return c.Append(nil, v)
}

// NewDecoder returns a decoder for one message. The message ends with the
// input: the decoder completes only when eos arrives at a tag boundary.
func (c *Codec[M]) NewDecoder() wire.ValueDecoder[M] {
	return &decoder[M]{codec: c}
}

// Decode decodes a complete message from b.
func (c *Codec[M]) Decode(b []byte) (M, error) {
	v, _, err := wire.DecodeAll(c.NewDecoder(), b)
	return v, c.label(err)
}

// Embedded returns the length-delimited view of the codec, for use as the
// element of a repeated field, a map value or a oneof branch.
func (c *Codec[M]) Embedded() wire.Codec[M] {
	return field.Embed[M](c, c.maxLength)
}

func (c *Codec[M]) label(err error) error {
	if err == nil || c.name == "" {
		return err
	}
	return wire.WrapWithField(err, c.name)
}

// decoder is the dispatch loop for one message.
type decoder[M any] struct {
	codec *Codec[M]
	value M
	tag   wire.TagDecoder
	cur   wire.Decoder
	// skipLabel is set while cur skips an unknown field.
	skipLabel string
	done      bool
}

func (d *decoder[M]) Decode(buf []byte, eos bool) (int, error) {
	n := 0
	for !d.done {
		if d.cur == nil {
			if !d.tag.Started() && n == len(buf) {
				d.done = eos
				return n, nil
			}
			m, err := d.tag.Decode(buf[n:], eos)
			n += m
			if err != nil {
				return n, wire.WithPhase(err, wire.PhaseTag)
			}
			if !d.tag.Done() {
				return n, nil
			}
			num, wt := d.tag.Value()
			d.tag.Reset()
			if err := d.start(num, wt); err != nil {
				return n, err
			}
		}

		m, err := d.cur.Decode(buf[n:], eos)
		n += m
		if err != nil {
			if d.skipLabel != "" {
				err = wire.WrapWithField(wire.WithPhase(err, wire.PhaseSkip), d.skipLabel)
			}
			return n, err
		}
		if !d.cur.Done() {
			return n, nil
		}
		d.cur, d.skipLabel = nil, ""
	}
	return n, nil
}

func (d *decoder[M]) start(num wire.FieldNumber, wt wire.WireType) error {
	if d.codec.rejectReserved && num.IsReserved() {
		return wire.WrapWithField(
			wire.WithPhase(wire.Errorf(wire.ErrMalformed, "field number %d is reserved", num), wire.PhaseTag),
			wire.FieldLabel("", num),
		)
	}
	if f, ok := d.codec.byNumber[num]; ok {
		dec, err := f.DecodeField(&d.value, num, wt)
		if err != nil {
			return err
		}
		d.cur = dec
		return nil
	}
	d.cur = wire.NewSkipper(wt, d.codec.maxLength)
	d.skipLabel = wire.FieldLabel("", num)
	return nil
}

func (d *decoder[M]) Done() bool { return d.done }

func (d *decoder[M]) Value() M { return d.value }
