// Package scalar provides wire.Codec implementations for the protobuf scalar
// kinds. Each codec is stateless and may be shared freely; encoders and
// decoders it returns are single-use.
package scalar

import (
	"math"
	"unicode/utf8"

	"github.com/anirudhraja/protocodec/wire"
)

// ===== VARINT KINDS =====

type varintCodec[T any] struct {
	to        func(T) uint64
	from      func(uint64) T
	isDefault func(T) bool
}

func (c varintCodec[T]) WireType() wire.WireType { return wire.WireVarint }
func (c varintCodec[T]) IsDefault(v T) bool      { return c.isDefault(v) }
func (c varintCodec[T]) Size(v T) int            { return wire.VarintSize(c.to(v)) }

func (c varintCodec[T]) NewEncoder(v T) wire.Encoder {
	return wire.VarintEncoder(c.to(v))
}

func (c varintCodec[T]) NewDecoder() wire.ValueDecoder[T] {
	return wire.Convert[uint64, T](wire.NewVarintDecoder(), func(u uint64) (T, error) {
		return c.from(u), nil
	})
}

func isZero[T comparable](v T) bool {
	var zero T
	return v == zero
}

var (
	// Bool decodes any non-zero varint as true and always encodes 0 or 1.
	Bool wire.Codec[bool] = varintCodec[bool]{
		to: func(v bool) uint64 {
			if v {
				return 1
			}
			return 0
		},
		from:      func(u uint64) bool { return u != 0 },
		isDefault: func(v bool) bool { return !v },
	}

	// Int32 sign-extends negatives to ten bytes and truncates wider input.
	Int32 wire.Codec[int32] = varintCodec[int32]{
		to:        func(v int32) uint64 { return uint64(int64(v)) },
		from:      func(u uint64) int32 { return int32(u) },
		isDefault: isZero[int32],
	}

	Int64 wire.Codec[int64] = varintCodec[int64]{
		to:        func(v int64) uint64 { return uint64(v) },
		from:      func(u uint64) int64 { return int64(u) },
		isDefault: isZero[int64],
	}

	Uint32 wire.Codec[uint32] = varintCodec[uint32]{
		to:        func(v uint32) uint64 { return uint64(v) },
		from:      func(u uint64) uint32 { return uint32(u) },
		isDefault: isZero[uint32],
	}

	Uint64 wire.Codec[uint64] = varintCodec[uint64]{
		to:        func(v uint64) uint64 { return v },
		from:      func(u uint64) uint64 { return u },
		isDefault: isZero[uint64],
	}

	Sint32 wire.Codec[int32] = varintCodec[int32]{
		to:        wire.EncodeZigZag32,
		from:      wire.DecodeZigZag32,
		isDefault: isZero[int32],
	}

	Sint64 wire.Codec[int64] = varintCodec[int64]{
		to:        wire.EncodeZigZag64,
		from:      wire.DecodeZigZag64,
		isDefault: isZero[int64],
	}
)

// Enum returns the codec for an enum type backed by int32. Unknown numbers
// are kept as-is; enums are open.
func Enum[E ~int32]() wire.Codec[E] {
	return varintCodec[E]{
		to:        func(v E) uint64 { return uint64(int64(v)) },
		from:      func(u uint64) E { return E(int32(u)) },
		isDefault: isZero[E],
	}
}

// ===== FIXED-WIDTH KINDS =====

type fixed32Codec[T any] struct {
	to        func(T) uint32
	from      func(uint32) T
	isDefault func(T) bool
}

func (c fixed32Codec[T]) WireType() wire.WireType { return wire.WireFixed32 }
func (c fixed32Codec[T]) IsDefault(v T) bool      { return c.isDefault(v) }
func (c fixed32Codec[T]) Size(T) int              { return wire.Fixed32Size() }

func (c fixed32Codec[T]) NewEncoder(v T) wire.Encoder {
	return wire.Fixed32Encoder(c.to(v))
}

func (c fixed32Codec[T]) NewDecoder() wire.ValueDecoder[T] {
	return wire.Convert[uint32, T](wire.NewFixed32Decoder(), func(u uint32) (T, error) {
		return c.from(u), nil
	})
}

type fixed64Codec[T any] struct {
	to        func(T) uint64
	from      func(uint64) T
	isDefault func(T) bool
}

func (c fixed64Codec[T]) WireType() wire.WireType { return wire.WireFixed64 }
func (c fixed64Codec[T]) IsDefault(v T) bool      { return c.isDefault(v) }
func (c fixed64Codec[T]) Size(T) int              { return wire.Fixed64Size() }

func (c fixed64Codec[T]) NewEncoder(v T) wire.Encoder {
	return wire.Fixed64Encoder(c.to(v))
}

func (c fixed64Codec[T]) NewDecoder() wire.ValueDecoder[T] {
	return wire.Convert[uint64, T](wire.NewFixed64Decoder(), func(u uint64) (T, error) {
		return c.from(u), nil
	})
}

var (
	Fixed32 wire.Codec[uint32] = fixed32Codec[uint32]{
		to:        func(v uint32) uint32 { return v },
		from:      func(u uint32) uint32 { return u },
		isDefault: isZero[uint32],
	}

	Sfixed32 wire.Codec[int32] = fixed32Codec[int32]{
		to:        func(v int32) uint32 { return uint32(v) },
		from:      func(u uint32) int32 { return int32(u) },
		isDefault: isZero[int32],
	}

	// Float compares bit patterns, so -0.0 is not a default value.
	Float wire.Codec[float32] = fixed32Codec[float32]{
		to:        math.Float32bits,
		from:      math.Float32frombits,
		isDefault: func(v float32) bool { return math.Float32bits(v) == 0 },
	}

	Fixed64 wire.Codec[uint64] = fixed64Codec[uint64]{
		to:        func(v uint64) uint64 { return v },
		from:      func(u uint64) uint64 { return u },
		isDefault: isZero[uint64],
	}

	Sfixed64 wire.Codec[int64] = fixed64Codec[int64]{
		to:        func(v int64) uint64 { return uint64(v) },
		from:      func(u uint64) int64 { return int64(u) },
		isDefault: isZero[int64],
	}

	Double wire.Codec[float64] = fixed64Codec[float64]{
		to:        math.Float64bits,
		from:      math.Float64frombits,
		isDefault: func(v float64) bool { return math.Float64bits(v) == 0 },
	}
)

// ===== LENGTH-DELIMITED KINDS =====

// bytesCodec and stringCodec reject payloads longer than max on decode;
// zero means unlimited.
type bytesCodec struct{ max int }

func (bytesCodec) WireType() wire.WireType { return wire.WireBytes }
func (bytesCodec) IsDefault(v []byte) bool { return len(v) == 0 }
func (bytesCodec) Size(v []byte) int       { return wire.BytesSize(len(v)) }

func (bytesCodec) NewEncoder(v []byte) wire.Encoder {
	return wire.Chain(wire.VarintEncoder(uint64(len(v))), wire.NewRawEncoder(v))
}

func (c bytesCodec) NewDecoder() wire.ValueDecoder[[]byte] {
	return wire.NewBytesDecoder(c.max)
}

// WithMaxLength returns a copy of the codec that caps decoded payloads at n
// bytes.
func (bytesCodec) WithMaxLength(n int) wire.Codec[[]byte] { return bytesCodec{max: n} }

type stringCodec struct{ max int }

func (stringCodec) WireType() wire.WireType { return wire.WireBytes }
func (stringCodec) IsDefault(v string) bool { return v == "" }
func (stringCodec) Size(v string) int       { return wire.BytesSize(len(v)) }

// WithMaxLength returns a copy of the codec that caps decoded payloads at n
// bytes.
func (stringCodec) WithMaxLength(n int) wire.Codec[string] { return stringCodec{max: n} }

func (stringCodec) NewEncoder(v string) wire.Encoder {
	if !utf8.ValidString(v) {
		return wire.FailedEncoder(wire.Errorf(wire.ErrMalformed, "string field contains invalid UTF-8"))
	}
	return wire.Chain(wire.VarintEncoder(uint64(len(v))), wire.NewRawEncoder([]byte(v)))
}

func (c stringCodec) NewDecoder() wire.ValueDecoder[string] {
	return wire.Convert[[]byte, string](wire.NewBytesDecoder(c.max), func(b []byte) (string, error) {
		if !utf8.Valid(b) {
			return "", wire.Errorf(wire.ErrMalformed, "string field contains invalid UTF-8")
		}
		return string(b), nil
	})
}

var (
	// Bytes performs no validation.
	Bytes wire.Codec[[]byte] = bytesCodec{}
	// String requires well-formed UTF-8 in both directions.
	String wire.Codec[string] = stringCodec{}
)

// LimitedBytes is Bytes with decoded payloads capped at max bytes.
func LimitedBytes(max int) wire.Codec[[]byte] { return bytesCodec{max: max} }

// LimitedString is String with decoded payloads capped at max bytes.
func LimitedString(max int) wire.Codec[string] { return stringCodec{max: max} }

// Packable reports whether values of c may use the packed repeated encoding.
func Packable[T any](c wire.Codec[T]) bool {
	return c.WireType() != wire.WireBytes
}
