// Package field binds value codecs to field numbers and message slots.
//
// A Field[M] describes how one slot of a message value M is decoded from and
// encoded to the wire. Fields are built from a wire.Codec for the payload and
// an accessor returning a pointer into M. The message package sequences a
// list of fields into a complete message codec.
package field

import (
	"fmt"

	"github.com/anirudhraja/protocodec/wire"
)

// Field is the descriptor capability every message slot provides.
type Field[M any] interface {
	// Numbers lists the field numbers the slot claims.
	Numbers() []wire.FieldNumber
	// IsTarget reports whether an occurrence of num belongs to this slot.
	IsTarget(num wire.FieldNumber) bool
	// DecodeField starts decoding one occurrence of num with wire type wt.
	// The returned decoder merges its result into m once it completes.
	DecodeField(m *M, num wire.FieldNumber, wt wire.WireType) (wire.Decoder, error)
	// Size returns the encoded size of the slot in m, tags included.
	Size(m *M) int
	// NewEncoder returns an encoder for the slot in m; wire.Empty when the
	// slot is omitted.
	NewEncoder(m *M) wire.Encoder
}

// Option configures a field.
type Option func(*options)

type options struct {
	name       string
	alwaysEmit bool
	maxLength  int
}

// Named sets the name used for the field in error paths.
func Named(name string) Option {
	return func(o *options) { o.name = name }
}

// AlwaysEmit makes a singular field encode even when it holds the default.
func AlwaysEmit() Option {
	return func(o *options) { o.alwaysEmit = true }
}

// MaxLength caps every length prefix read for the field: string and bytes
// values, embedded messages, packed blobs and map entries. Zero means
// unlimited.
func MaxLength(n int) Option {
	return func(o *options) { o.maxLength = n }
}

// Limiter is implemented by length-delimited codecs that can cap the length
// they accept on decode. Fields built with MaxLength apply it to their codec.
type Limiter[T any] interface {
	WithMaxLength(n int) wire.Codec[T]
}

func limit[T any](c wire.Codec[T], max int) wire.Codec[T] {
	if l, ok := c.(Limiter[T]); ok && max > 0 {
		return l.WithMaxLength(max)
	}
	return c
}

func buildOptions(num wire.FieldNumber, opts []Option) options {
	if !num.IsValid() {
		panic(fmt.Sprintf("field: invalid field number %d", num))
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// base holds what every single-number field shares.
type base struct {
	num wire.FieldNumber
	options
}

func (b *base) Numbers() []wire.FieldNumber { return []wire.FieldNumber{b.num} }

func (b *base) IsTarget(num wire.FieldNumber) bool { return num == b.num }

func (b *base) label() string { return wire.FieldLabel(b.name, b.num) }

func (b *base) mismatch(want, got wire.WireType) error {
	return wire.WrapWithField(
		wire.Errorf(wire.ErrMalformed, "wire type %s does not match expected %s", got, want),
		b.label(),
	)
}

// commitDecoder hands the inner value to commit once it is complete and
// labels errors with the field, if label is set.
type commitDecoder[T any] struct {
	inner  wire.ValueDecoder[T]
	commit func(T)
	label  string
	done   bool
}

func newCommit[T any](label string, inner wire.ValueDecoder[T], commit func(T)) *commitDecoder[T] {
	return &commitDecoder[T]{inner: inner, commit: commit, label: label}
}

func (d *commitDecoder[T]) Decode(buf []byte, eos bool) (int, error) {
	if d.done {
		return 0, nil
	}
	n, err := d.inner.Decode(buf, eos)
	if err != nil {
		err = wire.WithPhase(err, wire.PhaseValue)
		if d.label != "" {
			err = wire.WrapWithField(err, d.label)
		}
		return n, err
	}
	if d.inner.Done() {
		d.commit(d.inner.Value())
		d.done = true
	}
	return n, nil
}

func (d *commitDecoder[T]) Done() bool { return d.done }

// ===== SINGULAR =====

type singular[M, T any] struct {
	base
	codec wire.Codec[T]
	get   func(*M) *T
}

// Singular binds a plain (proto3 implicit presence) field. Each occurrence
// overwrites the slot; the last one in the stream wins. Encoding omits the
// field when it holds the codec's default unless AlwaysEmit is set.
func Singular[M, T any](num wire.FieldNumber, c wire.Codec[T], get func(*M) *T, opts ...Option) Field[M] {
	o := buildOptions(num, opts)
	return &singular[M, T]{base: base{num: num, options: o}, codec: limit(c, o.maxLength), get: get}
}

func (f *singular[M, T]) DecodeField(m *M, _ wire.FieldNumber, wt wire.WireType) (wire.Decoder, error) {
	if wt != f.codec.WireType() {
		return nil, f.mismatch(f.codec.WireType(), wt)
	}
	slot := f.get(m)
	return newCommit(f.label(), f.codec.NewDecoder(), func(v T) { *slot = v }), nil
}

func (f *singular[M, T]) Size(m *M) int {
	v := *f.get(m)
	if !f.alwaysEmit && f.codec.IsDefault(v) {
		return 0
	}
	return wire.TagSize(f.num) + f.codec.Size(v)
}

func (f *singular[M, T]) NewEncoder(m *M) wire.Encoder {
	v := *f.get(m)
	if !f.alwaysEmit && f.codec.IsDefault(v) {
		return wire.Empty
	}
	return wire.Chain(wire.TagEncoder(f.num, f.codec.WireType(), -1), f.codec.NewEncoder(v))
}

// ===== OPTIONAL =====

type optional[M, T any] struct {
	base
	codec wire.Codec[T]
	get   func(*M) **T
}

// Optional binds a field with explicit presence: a nil pointer is unset and
// omitted, a non-nil pointer is always encoded, default or not.
func Optional[M, T any](num wire.FieldNumber, c wire.Codec[T], get func(*M) **T, opts ...Option) Field[M] {
	o := buildOptions(num, opts)
	return &optional[M, T]{base: base{num: num, options: o}, codec: limit(c, o.maxLength), get: get}
}

func (f *optional[M, T]) DecodeField(m *M, _ wire.FieldNumber, wt wire.WireType) (wire.Decoder, error) {
	if wt != f.codec.WireType() {
		return nil, f.mismatch(f.codec.WireType(), wt)
	}
	slot := f.get(m)
	return newCommit(f.label(), f.codec.NewDecoder(), func(v T) { *slot = &v }), nil
}

func (f *optional[M, T]) Size(m *M) int {
	p := *f.get(m)
	if p == nil {
		return 0
	}
	return wire.TagSize(f.num) + f.codec.Size(*p)
}

func (f *optional[M, T]) NewEncoder(m *M) wire.Encoder {
	p := *f.get(m)
	if p == nil {
		return wire.Empty
	}
	return wire.Chain(wire.TagEncoder(f.num, f.codec.WireType(), -1), f.codec.NewEncoder(*p))
}
