package field

import (
	"fmt"

	"github.com/anirudhraja/protocodec/wire"
)

// Branch is one alternative of a oneof whose Go representation is U,
// typically a sealed interface with one implementation per branch.
type Branch[U any] interface {
	number() wire.FieldNumber
	decode(slot *U, wt wire.WireType) (wire.Decoder, error)
	// active reports whether u holds this branch.
	active(u U) bool
	size(u U) int
	encode(u U) wire.Encoder
}

type branch[U, T any] struct {
	base
	codec  wire.Codec[T]
	wrap   func(T) U
	unwrap func(U) (T, bool)
}

// NewBranch declares a oneof alternative carried as field num. wrap builds
// the oneof value from a decoded payload; unwrap extracts the payload when
// the value holds this alternative.
func NewBranch[U, T any](num wire.FieldNumber, c wire.Codec[T], wrap func(T) U, unwrap func(U) (T, bool), opts ...Option) Branch[U] {
	o := buildOptions(num, opts)
	return &branch[U, T]{base: base{num: num, options: o}, codec: limit(c, o.maxLength), wrap: wrap, unwrap: unwrap}
}

func (b *branch[U, T]) number() wire.FieldNumber { return b.num }

func (b *branch[U, T]) decode(slot *U, wt wire.WireType) (wire.Decoder, error) {
	if wt != b.codec.WireType() {
		return nil, b.mismatch(b.codec.WireType(), wt)
	}
	return newCommit(b.label(), b.codec.NewDecoder(), func(v T) { *slot = b.wrap(v) }), nil
}

func (b *branch[U, T]) active(u U) bool {
	_, ok := b.unwrap(u)
	return ok
}

func (b *branch[U, T]) size(u U) int {
	v, _ := b.unwrap(u)
	return wire.TagSize(b.num) + b.codec.Size(v)
}

func (b *branch[U, T]) encode(u U) wire.Encoder {
	v, _ := b.unwrap(u)
	return wire.Chain(wire.TagEncoder(b.num, b.codec.WireType(), -1), b.codec.NewEncoder(v))
}

type oneof[M, U any] struct {
	get      func(*M) *U
	branches []Branch[U]
	numbers  []wire.FieldNumber
}

// Oneof binds a group of mutually exclusive fields to a single slot. The slot
// is unset when no branch recognizes its value (for an interface U, nil).
// Whichever branch appears last in the stream wins. The active branch is
// always encoded, even when its payload is the default. Oneof panics when
// two branches share a field number.
func Oneof[M, U any](get func(*M) *U, branches ...Branch[U]) Field[M] {
	o := &oneof[M, U]{get: get, branches: branches}
	seen := make(map[wire.FieldNumber]bool, len(branches))
	for _, b := range branches {
		num := b.number()
		if seen[num] {
			panic(fmt.Sprintf("field: oneof declares field number %d twice", num))
		}
		seen[num] = true
		o.numbers = append(o.numbers, num)
	}
	return o
}

func (o *oneof[M, U]) Numbers() []wire.FieldNumber { return o.numbers }

func (o *oneof[M, U]) IsTarget(num wire.FieldNumber) bool {
	return o.find(num) != nil
}

func (o *oneof[M, U]) find(num wire.FieldNumber) Branch[U] {
	for _, b := range o.branches {
		if b.number() == num {
			return b
		}
	}
	return nil
}

func (o *oneof[M, U]) activeBranch(u U) Branch[U] {
	for _, b := range o.branches {
		if b.active(u) {
			return b
		}
	}
	return nil
}

func (o *oneof[M, U]) DecodeField(m *M, num wire.FieldNumber, wt wire.WireType) (wire.Decoder, error) {
	b := o.find(num)
	if b == nil {
		return nil, wire.Errorf(wire.ErrMalformed, "field %d is not part of the oneof", num)
	}
	return b.decode(o.get(m), wt)
}

func (o *oneof[M, U]) Size(m *M) int {
	u := *o.get(m)
	if b := o.activeBranch(u); b != nil {
		return b.size(u)
	}
	return 0
}

func (o *oneof[M, U]) NewEncoder(m *M) wire.Encoder {
	u := *o.get(m)
	if b := o.activeBranch(u); b != nil {
		return b.encode(u)
	}
	return wire.Empty
}
