package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/scalar"
	"github.com/anirudhraja/protocodec/wire"
)

type searchRequest struct {
	Query         string
	PageNumber    int32
	ResultPerPage int32
}

var searchRequestCodec = message.New([]field.Field[searchRequest]{
	field.Singular(1, scalar.String, func(m *searchRequest) *string { return &m.Query }, field.Named("query")),
	field.Singular(2, scalar.Int32, func(m *searchRequest) *int32 { return &m.PageNumber }, field.Named("page_number")),
	field.Singular(3, scalar.Int32, func(m *searchRequest) *int32 { return &m.ResultPerPage }, field.Named("result_per_page")),
}, message.Named("SearchRequest"))

// encodeField runs the encoder of a single field and checks it against Size.
func encodeField[M any](t *testing.T, f field.Field[M], m *M) []byte {
	t.Helper()
	b, err := wire.EncodeAll(nil, f.NewEncoder(m), f.Size(m))
	require.NoError(t, err)
	require.Len(t, b, f.Size(m))
	return b
}

// decodeFields decodes b with a message made of fs, feeding one byte at a
// time as well as all at once, and checks both agree.
func decodeFields[M any](t *testing.T, b []byte, fs ...field.Field[M]) (M, error) {
	t.Helper()
	c := message.New(fs)
	whole, err := c.Decode(b)

	dec := c.NewDecoder()
	var bytewiseErr error
	if len(b) == 0 {
		_, bytewiseErr = dec.Decode(nil, true)
	}
	for i := range b {
		if _, bytewiseErr = dec.Decode(b[i:i+1], i == len(b)-1); bytewiseErr != nil {
			break
		}
	}
	if err != nil {
		require.Error(t, bytewiseErr)
		return whole, err
	}
	require.NoError(t, bytewiseErr)
	require.True(t, dec.Done())
	require.Equal(t, whole, dec.Value(), "bytewise decode differs")
	return whole, nil
}

func TestSingular(t *testing.T) {
	type msg struct{ N int32 }
	f := field.Singular(2, scalar.Int32, func(m *msg) *int32 { return &m.N })

	assert.Empty(t, encodeField(t, f, &msg{}))
	assert.Equal(t, []byte{0x10, 0x03}, encodeField(t, f, &msg{N: 3}))

	emit := field.Singular(2, scalar.Int32, func(m *msg) *int32 { return &m.N }, field.AlwaysEmit())
	assert.Equal(t, []byte{0x10, 0x00}, encodeField(t, emit, &msg{}))

	// Last occurrence wins.
	got, err := decodeFields(t, []byte{0x10, 0x01, 0x10, 0x07}, f)
	require.NoError(t, err)
	assert.Equal(t, int32(7), got.N)

	_, err = decodeFields(t, []byte{0x12, 0x01, 0x00}, f)
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestOptional(t *testing.T) {
	type msg struct{ N *uint64 }
	f := field.Optional(1, scalar.Uint64, func(m *msg) **uint64 { return &m.N })

	assert.Empty(t, encodeField(t, f, &msg{}))
	zero := uint64(0)
	assert.Equal(t, []byte{0x08, 0x00}, encodeField(t, f, &msg{N: &zero}))

	got, err := decodeFields(t, []byte{0x08, 0x00}, f)
	require.NoError(t, err)
	require.NotNil(t, got.N)
	assert.Equal(t, uint64(0), *got.N)

	got, err = decodeFields(t, nil, f)
	require.NoError(t, err)
	assert.Nil(t, got.N)
}

func TestFieldNumberValidation(t *testing.T) {
	type msg struct{ N int32 }
	get := func(m *msg) *int32 { return &m.N }
	assert.Panics(t, func() { field.Singular(0, scalar.Int32, get) })
	assert.Panics(t, func() { field.Singular(wire.MaxFieldNumber+1, scalar.Int32, get) })
	assert.NotPanics(t, func() { field.Singular(wire.MaxFieldNumber, scalar.Int32, get) })
}

func TestRepeated(t *testing.T) {
	type msg struct{ Samples []int32 }
	get := func(m *msg) *[]int32 { return &m.Samples }
	packed := field.Packed(4, scalar.Int32, get, field.Named("samples"))
	unpacked := field.Repeated(4, scalar.Int32, get, field.Named("samples"))

	packedBytes := []byte{0x22, 0x06, 0x03, 0x8e, 0x02, 0x9e, 0xa7, 0x05}
	unpackedBytes := []byte{0x20, 0x03, 0x20, 0x8e, 0x02, 0x20, 0x9e, 0xa7, 0x05}
	want := []int32{3, 270, 86942}

	assert.Equal(t, packedBytes, encodeField(t, packed, &msg{Samples: want}))
	assert.Equal(t, unpackedBytes, encodeField(t, unpacked, &msg{Samples: want}))

	var oracle []byte
	oracle = protowire.AppendTag(oracle, 4, protowire.BytesType)
	oracle = protowire.AppendVarint(oracle, 6)
	for _, v := range want {
		oracle = protowire.AppendVarint(oracle, uint64(v))
	}
	assert.Equal(t, oracle, packedBytes)

	// Either form decodes with either declaration.
	for _, f := range []field.Field[msg]{packed, unpacked} {
		for _, in := range [][]byte{packedBytes, unpackedBytes} {
			got, err := decodeFields(t, in, f)
			require.NoError(t, err)
			assert.Equal(t, want, got.Samples)
		}
	}

	// Occurrences of both forms concatenate in order.
	mixed := append(append([]byte{}, packedBytes...), 0x20, 0x05)
	got, err := decodeFields(t, mixed, packed)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 270, 86942, 5}, got.Samples)

	// An empty packed blob adds nothing; an empty list is omitted.
	got, err = decodeFields(t, []byte{0x22, 0x00}, packed)
	require.NoError(t, err)
	assert.Empty(t, got.Samples)
	assert.Empty(t, encodeField(t, packed, &msg{}))
}

func TestRepeated_IncompletePacked(t *testing.T) {
	type msg struct {
		Ints   []int32
		Fixeds []uint32
	}
	ints := field.Packed(1, scalar.Int32, func(m *msg) *[]int32 { return &m.Ints }, field.Named("ints"))
	fixeds := field.Packed(2, scalar.Fixed32, func(m *msg) *[]uint32 { return &m.Fixeds }, field.Named("fixeds"))

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "varint cut short", input: []byte{0x0a, 0x02, 0x03, 0x8e}},
		{name: "fixed32 cut short", input: []byte{0x12, 0x05, 1, 0, 0, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFields(t, tt.input, ints, fixeds)
			require.ErrorIs(t, err, wire.ErrIncompletePacked)

			var fe *wire.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "packed element 1", fe.Phase)
		})
	}
}

func TestRepeated_Messages(t *testing.T) {
	type response struct{ Results []searchRequest }
	f := field.Repeated(1, searchRequestCodec.Embedded(), func(m *response) *[]searchRequest { return &m.Results })

	in := response{Results: []searchRequest{{Query: "foo", PageNumber: 1}, {}, {ResultPerPage: 2}}}
	b := encodeField(t, f, &in)
	assert.Equal(t, []byte{0x0a, 0x07, 0x0a, 0x03, 'f', 'o', 'o', 0x10, 0x01, 0x0a, 0x00, 0x0a, 0x02, 0x18, 0x02}, b)

	got, err := decodeFields(t, b, f)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestPacked_RejectsLengthDelimited(t *testing.T) {
	type msg struct{ S []string }
	assert.Panics(t, func() {
		field.Packed(1, scalar.String, func(m *msg) *[]string { return &m.S })
	})
}

type flags struct {
	Set *field.OrderedMap[uint64, bool]
}

func flagsField(opts ...field.Option) field.Field[flags] {
	return field.Map(5, scalar.Uint64, scalar.Bool, func(m *flags) field.Container[uint64, bool] {
		if m.Set == nil {
			m.Set = field.NewOrderedMap[uint64, bool]()
		}
		return m.Set
	}, opts...)
}

func TestMap(t *testing.T) {
	f := flagsField(field.Named("flags"))

	m := flags{Set: field.NewOrderedMap[uint64, bool]()}
	m.Set.Insert(0, true)
	m.Set.Insert(11, false)
	m.Set.Insert(222, true)

	want := []byte{42, 4, 8, 0, 16, 1, 42, 4, 8, 11, 16, 0, 42, 5, 8, 222, 1, 16, 1}
	assert.Equal(t, want, encodeField(t, f, &m))

	got, err := decodeFields(t, want, f)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 11, 222}, got.Set.Keys())
	for _, k := range []uint64{0, 222} {
		v, ok := got.Set.Get(k)
		assert.True(t, ok)
		assert.True(t, v)
	}
	v, ok := got.Set.Get(11)
	assert.True(t, ok)
	assert.False(t, v)

	assert.Empty(t, encodeField(t, f, &flags{}))
}

func TestMap_Entries(t *testing.T) {
	f := flagsField()
	tests := []struct {
		name  string
		input []byte
		keys  []uint64
		vals  []bool
	}{
		{name: "value before key", input: []byte{42, 4, 16, 1, 8, 7}, keys: []uint64{7}, vals: []bool{true}},
		{name: "missing value", input: []byte{42, 2, 8, 9}, keys: []uint64{9}, vals: []bool{false}},
		{name: "missing key", input: []byte{42, 2, 16, 1}, keys: []uint64{0}, vals: []bool{true}},
		{name: "empty entry", input: []byte{42, 0}, keys: []uint64{0}, vals: []bool{false}},
		{name: "unknown entry field skipped", input: []byte{42, 7, 8, 1, 26, 1, 'x', 16, 1}, keys: []uint64{1}, vals: []bool{true}},
		{name: "duplicate key replaces", input: []byte{42, 4, 8, 3, 16, 1, 42, 4, 8, 3, 16, 0}, keys: []uint64{3}, vals: []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFields(t, tt.input, f)
			require.NoError(t, err)
			require.Equal(t, tt.keys, got.Set.Keys())
			for i, k := range tt.keys {
				v, _ := got.Set.Get(k)
				assert.Equal(t, tt.vals[i], v, "key %d", k)
			}
		})
	}

	_, err := decodeFields(t, []byte{42, 2, 10, 0}, f)
	assert.ErrorIs(t, err, wire.ErrMalformed)
	_, err = decodeFields(t, []byte{40, 1}, f)
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestMap_HashMap(t *testing.T) {
	type counts struct{ ByName field.HashMap[string, int32] }
	f := field.Map(1, scalar.String, scalar.Sint32, func(m *counts) field.Container[string, int32] {
		if m.ByName == nil {
			m.ByName = field.HashMap[string, int32]{}
		}
		return m.ByName
	})

	in := counts{ByName: field.HashMap[string, int32]{"a": -1, "bb": 2, "ccc": 0}}
	got, err := decodeFields(t, encodeField(t, f, &in), f)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

type result interface{ isResult() }

type resultText struct{ Text string }

type resultRequest struct{ Request searchRequest }

func (resultText) isResult()    {}
func (resultRequest) isResult() {}

type envelope struct{ Result result }

func resultField() field.Field[envelope] {
	return field.Oneof(func(m *envelope) *result { return &m.Result },
		field.NewBranch(4, scalar.String,
			func(s string) result { return resultText{Text: s} },
			func(u result) (string, bool) { r, ok := u.(resultText); return r.Text, ok },
			field.Named("text")),
		field.NewBranch(6, searchRequestCodec.Embedded(),
			func(r searchRequest) result { return resultRequest{Request: r} },
			func(u result) (searchRequest, bool) { r, ok := u.(resultRequest); return r.Request, ok },
			field.Named("request")),
	)
}

func TestOneof(t *testing.T) {
	f := resultField()
	tests := []struct {
		name     string
		value    result
		expected []byte
	}{
		{name: "text", value: resultText{Text: "foo"}, expected: []byte{34, 3, 102, 111, 111}},
		{name: "request", value: resultRequest{Request: searchRequest{Query: "bar", PageNumber: 3, ResultPerPage: 10}}, expected: []byte{50, 9, 10, 3, 98, 97, 114, 16, 3, 24, 10}},
		{name: "none", value: nil, expected: nil},
		{name: "default payload still emitted", value: resultText{}, expected: []byte{34, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := envelope{Result: tt.value}
			b := encodeField(t, f, &m)
			assert.Equal(t, tt.expected, b)

			got, err := decodeFields(t, b, f)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got.Result)
		})
	}
}

func TestOneof_LastWins(t *testing.T) {
	f := resultField()
	var in []byte
	in = append(in, 34, 3, 'f', 'o', 'o')
	in = append(in, 50, 9, 10, 3, 98, 97, 114, 16, 3, 24, 10)
	in = append(in, 34, 3, 'b', 'a', 'z')

	got, err := decodeFields(t, in, f)
	require.NoError(t, err)
	assert.Equal(t, resultText{Text: "baz"}, got.Result)

	got, err = decodeFields(t, in[:16], f)
	require.NoError(t, err)
	assert.Equal(t, resultRequest{Request: searchRequest{Query: "bar", PageNumber: 3, ResultPerPage: 10}}, got.Result)
}

func TestOneof_Numbers(t *testing.T) {
	f := resultField()
	assert.Equal(t, []wire.FieldNumber{4, 6}, f.Numbers())
	assert.True(t, f.IsTarget(6))
	assert.False(t, f.IsTarget(5))

	assert.Panics(t, func() {
		field.Oneof(func(m *envelope) *result { return &m.Result },
			field.NewBranch(4, scalar.String, func(s string) result { return resultText{s} }, func(result) (string, bool) { return "", false }),
			field.NewBranch(4, scalar.String, func(s string) result { return resultText{s} }, func(result) (string, bool) { return "", false }),
		)
	})
}

func TestMessage_LastOccurrenceReplaces(t *testing.T) {
	type outer struct{ Req *searchRequest }
	f := field.Message(1, searchRequestCodec, func(m *outer) **searchRequest { return &m.Req }, field.Named("req"))

	assert.Empty(t, encodeField(t, f, &outer{}))
	assert.Equal(t, []byte{0x0a, 0x00}, encodeField(t, f, &outer{Req: &searchRequest{}}))

	in := []byte{0x0a, 0x05, 0x0a, 0x01, 'a', 0x10, 0x01, 0x0a, 0x02, 0x18, 0x05}
	got, err := decodeFields(t, in, f)
	require.NoError(t, err)
	require.NotNil(t, got.Req)
	assert.Equal(t, searchRequest{ResultPerPage: 5}, *got.Req)
}

func TestEmbed_MaxLength(t *testing.T) {
	type outer struct{ Req *searchRequest }
	f := field.Message(1, searchRequestCodec, func(m *outer) **searchRequest { return &m.Req }, field.Named("req"), field.MaxLength(4))

	_, err := decodeFields(t, []byte{0x0a, 0x05, 0x0a, 0x01, 'a', 0x10, 0x01}, f)
	require.ErrorIs(t, err, wire.ErrMalformed)
	assert.Contains(t, err.Error(), "req")
}

func TestMaxLength_StringAndBytes(t *testing.T) {
	type msg struct {
		S    string
		B    []byte
		P    *string
		L    []string
		R    result
		Free string
	}
	fs := []field.Field[msg]{
		field.Singular(1, scalar.String, func(m *msg) *string { return &m.S }, field.Named("s"), field.MaxLength(2)),
		field.Singular(2, scalar.Bytes, func(m *msg) *[]byte { return &m.B }, field.Named("b"), field.MaxLength(2)),
		field.Optional(3, scalar.String, func(m *msg) **string { return &m.P }, field.Named("p"), field.MaxLength(2)),
		field.Repeated(4, scalar.String, func(m *msg) *[]string { return &m.L }, field.Named("l"), field.MaxLength(2)),
		field.Oneof(func(m *msg) *result { return &m.R },
			field.NewBranch(5, scalar.String,
				func(s string) result { return resultText{s} },
				func(r result) (string, bool) {
					rt, ok := r.(resultText)
					return rt.Text, ok
				},
				field.Named("r"), field.MaxLength(2)),
		),
		field.Singular(6, scalar.String, func(m *msg) *string { return &m.Free }, field.Named("free")),
	}

	tests := []struct {
		name  string
		input []byte
		label string
	}{
		{name: "singular string", input: []byte{0x0a, 3, 'a', 'b', 'c'}, label: "s"},
		{name: "singular bytes", input: []byte{0x12, 5, 1, 2, 3, 4, 5}, label: "b"},
		{name: "optional", input: []byte{0x1a, 3, 'a', 'b', 'c'}, label: "p"},
		{name: "repeated", input: []byte{0x22, 1, 'a', 0x22, 3, 'a', 'b', 'c'}, label: "l"},
		{name: "oneof branch", input: []byte{0x2a, 3, 'a', 'b', 'c'}, label: "r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFields(t, tt.input, fs...)
			require.ErrorIs(t, err, wire.ErrMalformed)
			var fe *wire.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, []string{tt.label}, fe.FieldPath)
			assert.Contains(t, err.Error(), "exceeds limit 2")
		})
	}

	// At the limit, and fields without a limit.
	in := []byte{0x0a, 2, 'a', 'b', 0x12, 2, 1, 2, 0x2a, 2, 'x', 'y', 0x32, 5, 'h', 'e', 'l', 'l', 'o'}
	got, err := decodeFields(t, in, fs...)
	require.NoError(t, err)
	assert.Equal(t, msg{S: "ab", B: []byte{1, 2}, R: resultText{"xy"}, Free: "hello"}, got)
}
