package protofile

import (
	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/schema"
	"github.com/anirudhraja/protocodec/wellknown"
)

// slotKind says which storage of a Message holds a field.
type slotKind int

const (
	slotValue slotKind = iota
	slotList
	slotMap
)

type slot struct {
	kind  slotKind
	index int
	field *schema.Field
	oneof *schema.Oneof // set for oneof members, which share one value slot
	codec valueCodec    // element codec for lists, value codec for maps
	key   valueCodec    // map key codec
}

// layout assigns storage to the fields of one message type.
type layout struct {
	slots               map[string]*slot
	values, lists, maps int
	oneofSlots          map[string]int
}

func newLayout(desc *schema.Message) *layout {
	l := &layout{slots: make(map[string]*slot), oneofSlots: make(map[string]int)}
	for _, f := range desc.Fields {
		s := &slot{field: f}
		switch {
		case f.Type.Kind == schema.KindMap:
			s.kind, s.index = slotMap, l.maps
			l.maps++
		case f.Label == schema.LabelRepeated:
			s.kind, s.index = slotList, l.lists
			l.lists++
		default:
			s.kind, s.index = slotValue, l.values
			l.values++
		}
		l.slots[f.Name] = s
	}
	for _, o := range desc.Oneofs {
		idx := l.values
		l.values++
		l.oneofSlots[o.Name] = idx
		for _, f := range o.Fields {
			l.slots[f.Name] = &slot{kind: slotValue, index: idx, field: f, oneof: o}
		}
	}
	return l
}

// oneofValue is what a oneof slot holds while one of its members is set.
type oneofValue struct {
	field *schema.Field
	value any
}

// Message is a message value whose shape is known only at runtime.
type Message struct {
	desc   *schema.Message
	layout *layout
	values []any
	lists  [][]any
	maps   []*field.OrderedMap[any, any]
}

// ensure allocates storage for l. The decoder starts from a zero Message.
func (m *Message) ensure(l *layout) {
	if m.layout != nil {
		return
	}
	m.layout = l
	m.values = make([]any, l.values)
	m.lists = make([][]any, l.lists)
	m.maps = make([]*field.OrderedMap[any, any], l.maps)
}

// Descriptor returns the message definition.
func (m *Message) Descriptor() *schema.Message { return m.desc }

func (m *Message) slot(name string) (*slot, error) {
	s, ok := m.layout.slots[name]
	if !ok {
		return nil, errors.Errorf("%s has no field %s", m.desc.FullName, name)
	}
	return s, nil
}

// Get returns the value of the named field and whether it is set. Lists are
// []any, maps are *field.OrderedMap[any, any], embedded messages *Message.
func (m *Message) Get(name string) (any, bool) {
	s, ok := m.layout.slots[name]
	if !ok {
		return nil, false
	}
	switch s.kind {
	case slotList:
		l := m.lists[s.index]
		return l, len(l) > 0
	case slotMap:
		mp := m.maps[s.index]
		return mp, mp != nil && mp.Len() > 0
	}
	v := m.values[s.index]
	if s.oneof != nil {
		ov, ok := v.(oneofValue)
		if !ok || ov.field != s.field {
			return nil, false
		}
		return ov.value, true
	}
	return v, v != nil
}

// Set assigns the named field. Setting a oneof member clears the others.
func (m *Message) Set(name string, v any) error {
	s, err := m.slot(name)
	if err != nil {
		return err
	}
	wrap := func(err error) error { return errors.Wrapf(err, "set %s.%s", m.desc.FullName, name) }

	switch s.kind {
	case slotList:
		in, ok := v.([]any)
		if !ok {
			return wrap(errors.Errorf("repeated field takes []any, got %T", v))
		}
		out := make([]any, len(in))
		for i, e := range in {
			if out[i], err = s.codec.normalize(e); err != nil {
				return wrap(errors.Wrapf(err, "element %d", i))
			}
		}
		m.lists[s.index] = out
		return nil
	case slotMap:
		in, ok := v.(map[any]any)
		if !ok {
			return wrap(errors.Errorf("map field takes map[any]any, got %T", v))
		}
		out := field.NewOrderedMap[any, any]()
		for k, e := range in {
			nk, err := s.key.normalize(k)
			if err != nil {
				return wrap(errors.Wrap(err, "key"))
			}
			ne, err := s.codec.normalize(e)
			if err != nil {
				return wrap(errors.Wrapf(err, "value for key %v", k))
			}
			out.Insert(nk, ne)
		}
		m.maps[s.index] = out
		return nil
	}

	nv, err := s.codec.normalize(v)
	if err != nil {
		return wrap(err)
	}
	if s.oneof != nil {
		nv = oneofValue{field: s.field, value: nv}
	}
	m.values[s.index] = nv
	return nil
}

// Clear unsets the named field.
func (m *Message) Clear(name string) error {
	s, err := m.slot(name)
	if err != nil {
		return err
	}
	switch s.kind {
	case slotList:
		m.lists[s.index] = nil
	case slotMap:
		m.maps[s.index] = nil
	default:
		if _, set := m.Get(name); set || s.oneof == nil {
			m.values[s.index] = nil
		}
	}
	return nil
}

// WhichOneof returns the name of the member of oneof that is set, or "".
func (m *Message) WhichOneof(oneof string) string {
	idx, ok := m.layout.oneofSlots[oneof]
	if !ok {
		return ""
	}
	if ov, ok := m.values[idx].(oneofValue); ok {
		return ov.field.Name
	}
	return ""
}

// AsMap renders the set fields by name: embedded messages as nested maps,
// repeated fields as []any, map fields as map[any]any, durations as
// time.Duration and timestamps as time.Time.
func (m *Message) AsMap() map[string]any {
	out := make(map[string]any)
	for _, f := range m.desc.AllFields() {
		v, ok := m.Get(f.Name)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case []any:
			list := make([]any, len(x))
			for i, e := range x {
				list[i] = plain(e)
			}
			out[f.Name] = list
		case *field.OrderedMap[any, any]:
			mp := make(map[any]any, x.Len())
			x.Range(func(k, e any) bool {
				mp[k] = plain(e)
				return true
			})
			out[f.Name] = mp
		default:
			out[f.Name] = plain(x)
		}
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Message:
		if x == nil {
			return nil
		}
		return x.AsMap()
	case wellknown.Duration:
		return x.AsDuration()
	case wellknown.Timestamp:
		return x.AsTime()
	default:
		return v
	}
}
