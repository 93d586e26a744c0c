package protofile

import (
	"fmt"
	"time"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/scalar"
	"github.com/anirudhraja/protocodec/schema"
	"github.com/anirudhraja/protocodec/wellknown"
	"github.com/anirudhraja/protocodec/wire"
)

// valueCodec is a wire.Codec over dynamically typed values.
type valueCodec interface {
	wire.Codec[any]
	// normalize checks v and converts it to the stored representation.
	normalize(v any) (any, error)
}

// typed adapts a wire.Codec[T] to dynamic values holding a T. A nil value
// stands for the zero T. With presence set, only nil counts as default.
type typed[T any] struct {
	c        wire.Codec[T]
	presence bool
}

func (t typed[T]) get(v any) T {
	x, _ := v.(T)
	return x
}

func (t typed[T]) WireType() wire.WireType { return t.c.WireType() }

func (t typed[T]) IsDefault(v any) bool {
	if v == nil {
		return true
	}
	return !t.presence && t.c.IsDefault(t.get(v))
}

func (t typed[T]) Size(v any) int { return t.c.Size(t.get(v)) }

func (t typed[T]) NewEncoder(v any) wire.Encoder {
	if _, ok := v.(T); !ok && v != nil {
		return wire.FailedEncoder(fmt.Errorf("value of type %T where %T is expected", v, *new(T)))
	}
	return t.c.NewEncoder(t.get(v))
}

func (t typed[T]) NewDecoder() wire.ValueDecoder[any] {
	return wire.Convert(t.c.NewDecoder(), func(v T) (any, error) { return v, nil })
}

func (t typed[T]) normalize(v any) (any, error) {
	if x, ok := v.(T); ok {
		return x, nil
	}
	return nil, fmt.Errorf("value of type %T where %T is expected", v, *new(T))
}

// withPresence returns a copy of c that treats every non-nil value as set.
func withPresence(c valueCodec) valueCodec {
	switch t := c.(type) {
	case typed[bool]:
		t.presence = true
		return t
	case typed[int32]:
		t.presence = true
		return t
	case typed[int64]:
		t.presence = true
		return t
	case typed[uint32]:
		t.presence = true
		return t
	case typed[uint64]:
		t.presence = true
		return t
	case typed[float32]:
		t.presence = true
		return t
	case typed[float64]:
		t.presence = true
		return t
	case typed[string]:
		t.presence = true
		return t
	case typed[[]byte]:
		t.presence = true
		return t
	case enumCodec:
		t.presence = true
		return t
	default:
		// embedded kinds are never default
		return c
	}
}

// primitiveCodec returns the codec of a scalar type. max caps string and
// bytes payloads; zero means unlimited.
func primitiveCodec(p schema.PrimitiveType, max int) (valueCodec, error) {
	switch p {
	case schema.TypeDouble:
		return typed[float64]{c: scalar.Double}, nil
	case schema.TypeFloat:
		return typed[float32]{c: scalar.Float}, nil
	case schema.TypeInt64:
		return typed[int64]{c: scalar.Int64}, nil
	case schema.TypeUint64:
		return typed[uint64]{c: scalar.Uint64}, nil
	case schema.TypeInt32:
		return typed[int32]{c: scalar.Int32}, nil
	case schema.TypeFixed64:
		return typed[uint64]{c: scalar.Fixed64}, nil
	case schema.TypeFixed32:
		return typed[uint32]{c: scalar.Fixed32}, nil
	case schema.TypeBool:
		return typed[bool]{c: scalar.Bool}, nil
	case schema.TypeString:
		return typed[string]{c: scalar.LimitedString(max)}, nil
	case schema.TypeBytes:
		return typed[[]byte]{c: scalar.LimitedBytes(max)}, nil
	case schema.TypeUint32:
		return typed[uint32]{c: scalar.Uint32}, nil
	case schema.TypeSfixed32:
		return typed[int32]{c: scalar.Sfixed32}, nil
	case schema.TypeSfixed64:
		return typed[int64]{c: scalar.Sfixed64}, nil
	case schema.TypeSint32:
		return typed[int32]{c: scalar.Sint32}, nil
	case schema.TypeSint64:
		return typed[int64]{c: scalar.Sint64}, nil
	default:
		return nil, fmt.Errorf("unknown scalar type %q", p)
	}
}

func wrapperCodec(w schema.WrapperType, max int) (valueCodec, error) {
	switch w {
	case schema.WrapperDoubleValue:
		return typed[float64]{c: field.Embed[float64](wellknown.DoubleValue, max)}, nil
	case schema.WrapperFloatValue:
		return typed[float32]{c: field.Embed[float32](wellknown.FloatValue, max)}, nil
	case schema.WrapperInt64Value:
		return typed[int64]{c: field.Embed[int64](wellknown.Int64Value, max)}, nil
	case schema.WrapperUInt64Value:
		return typed[uint64]{c: field.Embed[uint64](wellknown.UInt64Value, max)}, nil
	case schema.WrapperInt32Value:
		return typed[int32]{c: field.Embed[int32](wellknown.Int32Value, max)}, nil
	case schema.WrapperUInt32Value:
		return typed[uint32]{c: field.Embed[uint32](wellknown.UInt32Value, max)}, nil
	case schema.WrapperBoolValue:
		return typed[bool]{c: field.Embed[bool](wellknown.BoolValue, max)}, nil
	case schema.WrapperStringValue:
		return typed[string]{c: field.Embed[string](wellknown.StringValue, max)}, nil
	case schema.WrapperBytesValue:
		return typed[[]byte]{c: field.Embed[[]byte](wellknown.BytesValue, max)}, nil
	default:
		return nil, fmt.Errorf("unknown wrapper type %q", w)
	}
}

// durationCodec stores wellknown.Duration and also accepts time.Duration.
type durationCodec struct{ typed[wellknown.Duration] }

func (c durationCodec) normalize(v any) (any, error) {
	if d, ok := v.(time.Duration); ok {
		return wellknown.FromDuration(d), nil
	}
	return c.typed.normalize(v)
}

// timestampCodec stores wellknown.Timestamp and also accepts time.Time.
type timestampCodec struct{ typed[wellknown.Timestamp] }

func (c timestampCodec) normalize(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return wellknown.FromTime(t), nil
	}
	return c.typed.normalize(v)
}

// enumCodec stores known enum numbers as their value name and unknown ones
// as int32; enums are open.
type enumCodec struct {
	enum     *schema.Enum
	presence bool
}

func (c enumCodec) number(v any) (int32, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case int32:
		return x, true
	case string:
		if ev, ok := c.enum.ByName(x); ok {
			return ev.Number, true
		}
	}
	return 0, false
}

func (c enumCodec) WireType() wire.WireType { return wire.WireVarint }

func (c enumCodec) IsDefault(v any) bool {
	if v == nil {
		return true
	}
	n, _ := c.number(v)
	return !c.presence && n == 0
}

func (c enumCodec) Size(v any) int {
	n, _ := c.number(v)
	return scalar.Int32.Size(n)
}

func (c enumCodec) NewEncoder(v any) wire.Encoder {
	n, ok := c.number(v)
	if !ok {
		return wire.FailedEncoder(fmt.Errorf("%v is not a value of enum %s", v, c.enum.FullName))
	}
	return scalar.Int32.NewEncoder(n)
}

func (c enumCodec) NewDecoder() wire.ValueDecoder[any] {
	return wire.Convert(scalar.Int32.NewDecoder(), func(n int32) (any, error) {
		if ev, ok := c.enum.ByNumber(n); ok {
			return ev.Name, nil
		}
		return n, nil
	})
}

func (c enumCodec) normalize(v any) (any, error) {
	switch x := v.(type) {
	case string:
		if _, ok := c.enum.ByName(x); ok {
			return x, nil
		}
		return nil, fmt.Errorf("%q is not a value of enum %s", x, c.enum.FullName)
	case int32:
		if ev, ok := c.enum.ByNumber(x); ok {
			return ev.Name, nil
		}
		return x, nil
	default:
		return nil, fmt.Errorf("enum %s takes a value name or int32, got %T", c.enum.FullName, v)
	}
}

// messageCodec embeds a dynamic message codec.
type messageCodec struct {
	typed[*Message]
	codec *Codec
}

func newMessageCodec(c *Codec, max int) messageCodec {
	return messageCodec{typed: typed[*Message]{c: field.Embed[*Message](c, max)}, codec: c}
}

func (c messageCodec) normalize(v any) (any, error) {
	m, ok := v.(*Message)
	if !ok || m == nil {
		return nil, fmt.Errorf("%s takes a non-nil *Message, got %T", c.codec.desc.FullName, v)
	}
	if m.desc != c.codec.desc {
		return nil, fmt.Errorf("message of type %s where %s is expected", m.desc.FullName, c.codec.desc.FullName)
	}
	return m, nil
}
