package protofile

import (
	"unicode/utf8"

	"github.com/anirudhraja/protocodec/wire"
)

// RawField is one field occurrence read without a schema.
type RawField struct {
	Number   wire.FieldNumber
	WireType wire.WireType
	// Value is uint64 for varint and fixed64, uint32 for fixed32 and []byte
	// for length-delimited values.
	Value any
}

// RawCodec reads and writes messages as flat lists of field occurrences,
// in wire order. It implements field.MessageCodec[[]RawField].
type RawCodec struct {
	// MaxLength caps length prefixes; zero means unlimited.
	MaxLength int
}

func (c RawCodec) valueSize(f RawField) int {
	switch v := f.Value.(type) {
	case uint64:
		if f.WireType == wire.WireFixed64 {
			return wire.Fixed64Size()
		}
		return wire.VarintSize(v)
	case uint32:
		return wire.Fixed32Size()
	case []byte:
		return wire.BytesSize(len(v))
	}
	return 0
}

// EncodedSize implements field.MessageCodec.
func (c RawCodec) EncodedSize(fields []RawField) int {
	size := 0
	for _, f := range fields {
		size += wire.TagSize(f.Number) + c.valueSize(f)
	}
	return size
}

// NewEncoder implements field.MessageCodec.
func (c RawCodec) NewEncoder(fields []RawField) wire.Encoder {
	i := 0
	return wire.Sequence(func() (wire.Encoder, bool) {
		if i == len(fields) {
			return nil, false
		}
		f := fields[i]
		i++
		var value wire.Encoder
		switch v := f.Value.(type) {
		case uint64:
			if f.WireType == wire.WireFixed64 {
				value = wire.Fixed64Encoder(v)
			} else {
				value = wire.VarintEncoder(v)
			}
		case uint32:
			value = wire.Fixed32Encoder(v)
		case []byte:
			value = wire.Chain(wire.VarintEncoder(uint64(len(v))), wire.NewRawEncoder(v))
		default:
			value = wire.FailedEncoder(wire.Errorf(wire.ErrMalformed, "field %d holds %T", f.Number, f.Value))
		}
		return wire.Chain(wire.TagEncoder(f.Number, f.WireType, -1), value), true
	})
}

// NewDecoder implements field.MessageCodec.
func (c RawCodec) NewDecoder() wire.ValueDecoder[[]RawField] {
	return &rawDecoder{max: c.MaxLength}
}

// Decode reads every field occurrence in b.
func (c RawCodec) Decode(b []byte) ([]RawField, error) {
	v, _, err := wire.DecodeAll(c.NewDecoder(), b)
	return v, err
}

type rawDecoder struct {
	max    int
	tag    wire.TagDecoder
	cur    wire.ValueDecoder[any]
	num    wire.FieldNumber
	wt     wire.WireType
	fields []RawField
	done   bool
}

func (d *rawDecoder) start(wt wire.WireType) wire.ValueDecoder[any] {
	switch wt {
	case wire.WireVarint:
		return boxed[uint64](wire.NewVarintDecoder())
	case wire.WireFixed64:
		return boxed[uint64](wire.NewFixed64Decoder())
	case wire.WireFixed32:
		return boxed[uint32](wire.NewFixed32Decoder())
	default:
		return boxed[[]byte](wire.NewBytesDecoder(d.max))
	}
}

func boxed[T any](dec wire.ValueDecoder[T]) wire.ValueDecoder[any] {
	return wire.Convert(dec, func(v T) (any, error) { return v, nil })
}

func (d *rawDecoder) Decode(buf []byte, eos bool) (int, error) {
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
			d.num, d.wt = d.tag.Value()
			d.tag.Reset()
			d.cur = d.start(d.wt)
		}

		m, err := d.cur.Decode(buf[n:], eos)
		n += m
		if err != nil {
			return n, wire.WrapWithField(wire.WithPhase(err, wire.PhaseValue), wire.FieldLabel("", d.num))
		}
		if !d.cur.Done() {
			return n, nil
		}
		d.fields = append(d.fields, RawField{Number: d.num, WireType: d.wt, Value: d.cur.Value()})
		d.cur = nil
	}
	return n, nil
}

func (d *rawDecoder) Done() bool { return d.done }

func (d *rawDecoder) Value() []RawField { return d.fields }

// Interpretation guesses what a length-delimited raw value holds.
type Interpretation struct {
	// Fields is set when the bytes parse as a message.
	Fields []RawField
	// Text is set when the bytes are valid UTF-8 and not a message.
	Text string
	IsText bool
}

// Interpret guesses the content of a length-delimited value: a nested
// message if the bytes parse as one, else text if they are valid UTF-8.
// Empty values are neither.
func (f RawField) Interpret() (Interpretation, bool) {
	b, ok := f.Value.([]byte)
	if !ok || len(b) == 0 {
		return Interpretation{}, false
	}
	if fields, err := (RawCodec{}).Decode(b); err == nil {
		return Interpretation{Fields: fields}, true
	}
	if utf8.Valid(b) {
		return Interpretation{Text: string(b), IsText: true}, true
	}
	return Interpretation{}, false
}
