package field

import (
	"github.com/anirudhraja/protocodec/wire"
)

// MessageCodec is what a message-shaped value must provide to be embedded in
// another message. The encoding it describes has no length prefix; Embed
// adds one.
type MessageCodec[T any] interface {
	EncodedSize(v T) int
	NewEncoder(v T) wire.Encoder
	// NewDecoder returns a decoder that completes only at end of input.
	NewDecoder() wire.ValueDecoder[T]
}

type embedded[T any] struct {
	mc  MessageCodec[T]
	max int
}

// Embed turns a message codec into a length-delimited value codec, usable as
// the element of Repeated, the value of Map or a Oneof branch. Embedded
// values are never considered default. max caps the length prefix accepted
// on decode; zero means unlimited.
func Embed[T any](mc MessageCodec[T], max int) wire.Codec[T] {
	return embedded[T]{mc: mc, max: max}
}

func (e embedded[T]) WireType() wire.WireType { return wire.WireBytes }
func (e embedded[T]) IsDefault(T) bool        { return false }

func (e embedded[T]) Size(v T) int {
	return wire.BytesSize(e.mc.EncodedSize(v))
}

func (e embedded[T]) NewEncoder(v T) wire.Encoder {
	return wire.Chain(wire.VarintEncoder(uint64(e.mc.EncodedSize(v))), e.mc.NewEncoder(v))
}

func (e embedded[T]) NewDecoder() wire.ValueDecoder[T] {
	return wire.Bounded(e.mc.NewDecoder(), e.max)
}

func (e embedded[T]) WithMaxLength(n int) wire.Codec[T] {
	return embedded[T]{mc: e.mc, max: n}
}

// Message binds a singular embedded message field. A nil pointer is unset.
// A later occurrence replaces the whole value; contents of repeated
// occurrences are not merged.
func Message[M, T any](num wire.FieldNumber, mc MessageCodec[T], get func(*M) **T, opts ...Option) Field[M] {
	o := buildOptions(num, opts)
	return Optional(num, Embed(mc, o.maxLength), get, opts...)
}
