package protofile

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/schema"
	"github.com/anirudhraja/protocodec/wellknown"
	"github.com/anirudhraja/protocodec/wire"
)

// Codec encodes and decodes dynamic messages of one type. It implements
// field.MessageCodec[*Message], so it plugs into the protocodec drivers.
type Codec struct {
	desc   *schema.Message
	layout *layout
	inner  *message.Codec[Message]
}

// Codec returns the codec for the named message, building and caching it on
// first use. Recursive message types are supported.
func (r *Registry) Codec(name string) (*Codec, error) {
	desc, err := r.GetMessage(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build(desc)
}

// New returns an empty message of the named type.
func (r *Registry) New(name string) (*Message, error) {
	c, err := r.Codec(name)
	if err != nil {
		return nil, err
	}
	return c.New(), nil
}

func (r *Registry) build(desc *schema.Message) (*Codec, error) {
	if c, ok := r.codecs[desc.FullName]; ok {
		return c, nil
	}
	c := &Codec{desc: desc, layout: newLayout(desc)}
	// Cache before building fields so self references find it.
	r.codecs[desc.FullName] = c

	fields, err := r.buildFields(c)
	if err != nil {
		delete(r.codecs, desc.FullName)
		return nil, errors.Wrapf(err, "build codec for %s", desc.FullName)
	}
	opts := []message.Option{message.Named(desc.FullName), message.MaxLength(r.maxLen)}
	if r.rejectReserved {
		opts = append(opts, message.RejectReserved())
	}
	c.inner = message.New(fields, opts...)
	level.Debug(r.logger).Log("msg", "built message codec", "message", desc.FullName, "fields", len(fields))
	return c, nil
}

func (r *Registry) valueCodec(ft *schema.FieldType) (valueCodec, error) {
	switch ft.Kind {
	case schema.KindPrimitive:
		return primitiveCodec(ft.PrimitiveType, r.maxLen)
	case schema.KindEnum:
		e, err := r.GetEnum(ft.EnumType)
		if err != nil {
			return nil, err
		}
		return enumCodec{enum: e}, nil
	case schema.KindMessage:
		desc, err := r.GetMessage(ft.MessageType)
		if err != nil {
			return nil, err
		}
		sub, err := r.build(desc)
		if err != nil {
			return nil, err
		}
		return newMessageCodec(sub, r.maxLen), nil
	case schema.KindWrapper:
		return wrapperCodec(ft.WrapperType, r.maxLen)
	case schema.KindDuration:
		return durationCodec{typed[wellknown.Duration]{c: field.Embed[wellknown.Duration](wellknown.DurationCodec, r.maxLen)}}, nil
	case schema.KindTimestamp:
		return timestampCodec{typed[wellknown.Timestamp]{c: field.Embed[wellknown.Timestamp](wellknown.TimestampCodec, r.maxLen)}}, nil
	default:
		return nil, errors.Errorf("field type kind %q cannot be a value", ft.Kind)
	}
}

func (r *Registry) buildFields(c *Codec) ([]field.Field[Message], error) {
	l := c.layout
	var fields []field.Field[Message]

	for _, f := range c.desc.Fields {
		s := l.slots[f.Name]
		opts := []field.Option{field.Named(f.Name), field.MaxLength(r.maxLen)}
		num := wire.FieldNumber(f.Number)

		if f.Type.Kind == schema.KindMap {
			key, err := r.valueCodec(f.Type.MapKey)
			if err != nil {
				return nil, errors.Wrapf(err, "map key of %s", f.Name)
			}
			val, err := r.valueCodec(f.Type.MapValue)
			if err != nil {
				return nil, errors.Wrapf(err, "map value of %s", f.Name)
			}
			s.key, s.codec = key, val
			idx := s.index
			fields = append(fields, field.Map[Message, any, any](num, key, val, func(m *Message) field.Container[any, any] {
				m.ensure(l)
				if m.maps[idx] == nil {
					m.maps[idx] = field.NewOrderedMap[any, any]()
				}
				return m.maps[idx]
			}, opts...))
			continue
		}

		vc, err := r.valueCodec(&f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		idx := s.index

		if f.Label == schema.LabelRepeated {
			s.codec = vc
			get := func(m *Message) *[]any {
				m.ensure(l)
				return &m.lists[idx]
			}
			if f.Packed {
				fields = append(fields, field.Packed[Message, any](num, vc, get, opts...))
			} else {
				fields = append(fields, field.Repeated[Message, any](num, vc, get, opts...))
			}
			continue
		}

		if f.Presence {
			vc = withPresence(vc)
		}
		s.codec = vc
		fields = append(fields, field.Singular[Message, any](num, vc, func(m *Message) *any {
			m.ensure(l)
			return &m.values[idx]
		}, opts...))
	}

	for _, o := range c.desc.Oneofs {
		idx := l.oneofSlots[o.Name]
		var branches []field.Branch[any]
		for _, f := range o.Fields {
			vc, err := r.valueCodec(&f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "oneof %s field %s", o.Name, f.Name)
			}
			vc = withPresence(vc)
			l.slots[f.Name].codec = vc
			member := f
			branches = append(branches, field.NewBranch[any, any](wire.FieldNumber(f.Number), vc,
				func(v any) any { return oneofValue{field: member, value: v} },
				func(u any) (any, bool) {
					ov, ok := u.(oneofValue)
					if !ok || ov.field != member {
						return nil, false
					}
					return ov.value, true
				},
				field.Named(f.Name), field.MaxLength(r.maxLen),
			))
		}
		fields = append(fields, field.Oneof[Message, any](func(m *Message) *any {
			m.ensure(l)
			return &m.values[idx]
		}, branches...))
	}
	return fields, nil
}

// Descriptor returns the message definition.
func (c *Codec) Descriptor() *schema.Message { return c.desc }

// New returns an empty message.
func (c *Codec) New() *Message {
	m := &Message{desc: c.desc}
	m.ensure(c.layout)
	return m
}

func (c *Codec) value(m *Message) Message {
	if m == nil {
		return *c.New()
	}
	return *m
}

// EncodedSize implements field.MessageCodec.
func (c *Codec) EncodedSize(m *Message) int {
	if m != nil && m.desc != c.desc {
		return 0
	}
	return c.inner.EncodedSize(c.value(m))
}

// NewEncoder implements field.MessageCodec. A nil message encodes as empty.
func (c *Codec) NewEncoder(m *Message) wire.Encoder {
	if m != nil && m.desc != c.desc {
		return wire.FailedEncoder(errors.Errorf("message of type %s given to codec for %s", m.desc.FullName, c.desc.FullName))
	}
	return c.inner.NewEncoder(c.value(m))
}

// NewDecoder implements field.MessageCodec.
func (c *Codec) NewDecoder() wire.ValueDecoder[*Message] {
	return wire.Convert(c.inner.NewDecoder(), func(m Message) (*Message, error) {
		m.desc = c.desc
		m.ensure(c.layout)
		return &m, nil
	})
}

// Decode decodes a complete message from b.
func (c *Codec) Decode(b []byte) (*Message, error) {
	v, _, err := wire.DecodeAll(c.NewDecoder(), b)
	if err != nil {
		return nil, wire.WrapWithField(err, c.desc.FullName)
	}
	return v, nil
}

// Encode returns the encoding of m.
func (c *Codec) Encode(m *Message) ([]byte, error) {
	b, err := wire.EncodeAll(nil, c.NewEncoder(m), c.EncodedSize(m))
	if err != nil {
		return nil, wire.WrapWithField(err, c.desc.FullName)
	}
	return b, nil
}
