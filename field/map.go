package field

import (
	"github.com/anirudhraja/protocodec/wire"
)

// Container is the storage a map field decodes into and encodes from.
type Container[K, V any] interface {
	// Insert stores v under k, replacing any earlier value.
	Insert(k K, v V)
	// Range calls fn for each entry until it returns false.
	Range(fn func(k K, v V) bool)
	Len() int
}

// OrderedMap is a Container that ranges in first-insertion order. Replacing
// a value keeps the key's original position.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{values: make(map[K]V)}
}

func (m *OrderedMap[K, V]) Insert(k K, v V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *OrderedMap[K, V]) Range(fn func(k K, v V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K { return m.keys }

// HashMap adapts a plain Go map. Its range order is unspecified.
type HashMap[K comparable, V any] map[K]V

func (m HashMap[K, V]) Insert(k K, v V) { m[k] = v }

func (m HashMap[K, V]) Range(fn func(k K, v V) bool) {
	for k, v := range m {
		if !fn(k, v) {
			return
		}
	}
}

func (m HashMap[K, V]) Len() int { return len(m) }

// Entry field numbers inside a map entry message.
const (
	mapKeyNumber   wire.FieldNumber = 1
	mapValueNumber wire.FieldNumber = 2
)

type mapField[M, K, V any] struct {
	base
	key   wire.Codec[K]
	value wire.Codec[V]
	get   func(*M) Container[K, V]
}

// Map binds a map field. On the wire each entry is a length-delimited message
// with the key as field 1 and the value as field 2. A missing key or value
// decodes as the zero value and a repeated key replaces the earlier entry.
// get may allocate the container on first use; it is called once per decoded
// entry and once per encode. The field is omitted when the container is empty.
func Map[M, K, V any](num wire.FieldNumber, kc wire.Codec[K], vc wire.Codec[V], get func(*M) Container[K, V], opts ...Option) Field[M] {
	o := buildOptions(num, opts)
	return &mapField[M, K, V]{base: base{num: num, options: o}, key: limit(kc, o.maxLength), value: limit(vc, o.maxLength), get: get}
}

func (f *mapField[M, K, V]) DecodeField(m *M, _ wire.FieldNumber, wt wire.WireType) (wire.Decoder, error) {
	if wt != wire.WireBytes {
		return nil, f.mismatch(wire.WireBytes, wt)
	}
	entry := wire.Bounded[mapEntry[K, V]](&entryDecoder[K, V]{key: f.key, value: f.value, max: f.maxLength}, f.maxLength)
	return newCommit(f.label(), entry, func(e mapEntry[K, V]) {
		f.get(m).Insert(e.key, e.value)
	}), nil
}

func (f *mapField[M, K, V]) entrySize(k K, v V) int {
	return wire.TagSize(mapKeyNumber) + f.key.Size(k) + wire.TagSize(mapValueNumber) + f.value.Size(v)
}

func (f *mapField[M, K, V]) Size(m *M) int {
	c := f.get(m)
	if c == nil {
		return 0
	}
	size := 0
	c.Range(func(k K, v V) bool {
		size += wire.TagSize(f.num) + wire.BytesSize(f.entrySize(k, v))
		return true
	})
	return size
}

func (f *mapField[M, K, V]) NewEncoder(m *M) wire.Encoder {
	c := f.get(m)
	if c == nil || c.Len() == 0 {
		return wire.Empty
	}

	// Snapshot the pairs so HashMap iteration order is fixed for this encode.
	entries := make([]mapEntry[K, V], 0, c.Len())
	c.Range(func(k K, v V) bool {
		entries = append(entries, mapEntry[K, V]{key: k, value: v})
		return true
	})

	i := 0
	return wire.Sequence(func() (wire.Encoder, bool) {
		if i == len(entries) {
			return nil, false
		}
		e := entries[i]
		i++
		return wire.Chain(
			wire.TagEncoder(f.num, wire.WireBytes, f.entrySize(e.key, e.value)),
			wire.TagEncoder(mapKeyNumber, f.key.WireType(), -1),
			f.key.NewEncoder(e.key),
			wire.TagEncoder(mapValueNumber, f.value.WireType(), -1),
			f.value.NewEncoder(e.value),
		), true
	})
}

type mapEntry[K, V any] struct {
	key   K
	value V
}

// entryDecoder decodes the body of one map entry. It completes at end of
// input.
type entryDecoder[K, V any] struct {
	key   wire.Codec[K]
	value wire.Codec[V]
	max   int

	tag   wire.TagDecoder
	cur   wire.Decoder
	label string
	entry mapEntry[K, V]
	done  bool
}

func (d *entryDecoder[K, V]) Decode(buf []byte, eos bool) (int, error) {
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
			if d.cur, d.label, err = d.start(num, wt); err != nil {
				return n, err
			}
		}

		m, err := d.cur.Decode(buf[n:], eos)
		n += m
		if err != nil {
			return n, wire.WrapWithField(err, d.label)
		}
		if !d.cur.Done() {
			return n, nil
		}
		d.cur = nil
	}
	return n, nil
}

func (d *entryDecoder[K, V]) start(num wire.FieldNumber, wt wire.WireType) (wire.Decoder, string, error) {
	switch num {
	case mapKeyNumber:
		if wt != d.key.WireType() {
			return nil, "", wire.WrapWithField(wire.Errorf(wire.ErrMalformed, "map key wire type %s, want %s", wt, d.key.WireType()), "key")
		}
		return newCommit("", d.key.NewDecoder(), func(k K) { d.entry.key = k }), "key", nil
	case mapValueNumber:
		if wt != d.value.WireType() {
			return nil, "", wire.WrapWithField(wire.Errorf(wire.ErrMalformed, "map value wire type %s, want %s", wt, d.value.WireType()), "value")
		}
		return newCommit("", d.value.NewDecoder(), func(v V) { d.entry.value = v }), "value", nil
	default:
		return wire.NewSkipper(wt, d.max), wire.FieldLabel("", num), nil
	}
}

func (d *entryDecoder[K, V]) Done() bool { return d.done }

func (d *entryDecoder[K, V]) Value() mapEntry[K, V] { return d.entry }
