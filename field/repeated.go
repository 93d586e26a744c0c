package field

import (
	"fmt"

	"github.com/anirudhraja/protocodec/scalar"
	"github.com/anirudhraja/protocodec/wire"
)

type repeated[M, T any] struct {
	base
	codec  wire.Codec[T]
	get    func(*M) *[]T
	packed bool
}

// Repeated binds a repeated field encoded as one tag+value pair per element.
// Every occurrence is appended in arrival order. For packable element codecs
// the packed form is accepted on decode as well.
func Repeated[M, T any](num wire.FieldNumber, c wire.Codec[T], get func(*M) *[]T, opts ...Option) Field[M] {
	o := buildOptions(num, opts)
	return &repeated[M, T]{base: base{num: num, options: o}, codec: limit(c, o.maxLength), get: get}
}

// Packed binds a repeated scalar field encoded as a single length-delimited
// blob. Unpacked occurrences are accepted on decode and appended to the same
// slice. It panics if c is length-delimited.
func Packed[M, T any](num wire.FieldNumber, c wire.Codec[T], get func(*M) *[]T, opts ...Option) Field[M] {
	if !scalar.Packable(c) {
		panic(fmt.Sprintf("field: %d: length-delimited values cannot be packed", num))
	}
	return &repeated[M, T]{base: base{num: num, options: buildOptions(num, opts)}, codec: c, get: get, packed: true}
}

func (f *repeated[M, T]) DecodeField(m *M, _ wire.FieldNumber, wt wire.WireType) (wire.Decoder, error) {
	slot := f.get(m)
	push := func(v T) { *slot = append(*slot, v) }

	switch {
	case wt == f.codec.WireType():
		return newCommit(f.label(), f.codec.NewDecoder(), push), nil
	case wt == wire.WireBytes && scalar.Packable(f.codec):
		blob := wire.Bounded[struct{}](&packedDecoder[T]{codec: f.codec, push: push}, f.maxLength)
		return newCommit(f.label(), blob, func(struct{}) {}), nil
	default:
		return nil, f.mismatch(f.codec.WireType(), wt)
	}
}

// payloadSize is the size of the packed blob content.
func (f *repeated[M, T]) payloadSize(elems []T) int {
	size := 0
	for _, v := range elems {
		size += f.codec.Size(v)
	}
	return size
}

func (f *repeated[M, T]) Size(m *M) int {
	elems := *f.get(m)
	if len(elems) == 0 {
		return 0
	}
	if f.packed {
		return wire.TagSize(f.num) + wire.BytesSize(f.payloadSize(elems))
	}
	return len(elems)*wire.TagSize(f.num) + f.payloadSize(elems)
}

func (f *repeated[M, T]) NewEncoder(m *M) wire.Encoder {
	elems := *f.get(m)
	if len(elems) == 0 {
		return wire.Empty
	}

	i := 0
	if f.packed {
		values := wire.Sequence(func() (wire.Encoder, bool) {
			if i == len(elems) {
				return nil, false
			}
			i++
			return f.codec.NewEncoder(elems[i-1]), true
		})
		return wire.Chain(wire.TagEncoder(f.num, wire.WireBytes, f.payloadSize(elems)), values)
	}
	return wire.Sequence(func() (wire.Encoder, bool) {
		if i == len(elems) {
			return nil, false
		}
		i++
		return wire.Chain(wire.TagEncoder(f.num, f.codec.WireType(), -1), f.codec.NewEncoder(elems[i-1])), true
	})
}

// packedDecoder decodes back-to-back elements until its bounded window ends.
type packedDecoder[T any] struct {
	codec wire.Codec[T]
	push  func(T)
	cur   wire.ValueDecoder[T]
	count int
	done  bool
}

func (d *packedDecoder[T]) Decode(buf []byte, eos bool) (int, error) {
	n := 0
	for !d.done {
		if d.cur == nil {
			if n == len(buf) {
				d.done = eos
				return n, nil
			}
			d.cur = d.codec.NewDecoder()
		}

		// Elements never see eos: a short tail is reported as an incomplete
		// packed element rather than a truncated scalar.
		m, err := d.cur.Decode(buf[n:], false)
		n += m
		if err != nil {
			return n, wire.WithPhase(err, fmt.Sprintf("packed element %d", d.count))
		}
		if d.cur.Done() {
			d.push(d.cur.Value())
			d.cur = nil
			d.count++
			continue
		}
		if eos {
			err := wire.Errorf(wire.ErrIncompletePacked, "trailing bytes do not form a whole element")
			return n, wire.WithPhase(err, fmt.Sprintf("packed element %d", d.count))
		}
		return n, nil
	}
	return n, nil
}

func (d *packedDecoder[T]) Done() bool { return d.done }

func (d *packedDecoder[T]) Value() struct{} { return struct{}{} }
