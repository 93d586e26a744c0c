package message_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/scalar"
	"github.com/anirudhraja/protocodec/wire"
)

type SearchRequest struct {
	Query         string
	PageNumber    int32
	ResultPerPage int32
}

func searchRequestFields() []field.Field[SearchRequest] {
	return []field.Field[SearchRequest]{
		field.Singular(1, scalar.String, func(m *SearchRequest) *string { return &m.Query }, field.Named("query")),
		field.Singular(2, scalar.Int32, func(m *SearchRequest) *int32 { return &m.PageNumber }, field.Named("page_number")),
		field.Singular(3, scalar.Int32, func(m *SearchRequest) *int32 { return &m.ResultPerPage }, field.Named("result_per_page")),
	}
}

var searchRequestCodec = message.New(searchRequestFields(), message.Named("SearchRequest"))

type Result struct {
	URL      string
	Title    string
	Snippets []string
}

var resultCodec = message.New([]field.Field[Result]{
	field.Singular(1, scalar.String, func(m *Result) *string { return &m.URL }, field.Named("url")),
	field.Singular(2, scalar.String, func(m *Result) *string { return &m.Title }, field.Named("title")),
	field.Repeated(3, scalar.String, func(m *Result) *[]string { return &m.Snippets }, field.Named("snippets")),
}, message.Named("Result"))

type SearchResponse struct {
	Results []Result
}

var searchResponseCodec = message.New([]field.Field[SearchResponse]{
	field.Repeated(1, resultCodec.Embedded(), func(m *SearchResponse) *[]Result { return &m.Results }, field.Named("results")),
}, message.Named("SearchResponse"))

type Seconds struct {
	Value uint64
}

var secondsCodec = message.New([]field.Field[Seconds]{
	field.Singular(1, scalar.Uint64, func(m *Seconds) *uint64 { return &m.Value }),
})

// decodeChunked decodes b split into three chunks at i and j.
func decodeChunked[M any](t *testing.T, c *message.Codec[M], b []byte, i, j int) M {
	t.Helper()
	dec := c.NewDecoder()
	chunks := [][]byte{b[:i], b[i:j], b[j:]}
	for k, chunk := range chunks {
		n, err := dec.Decode(chunk, k == len(chunks)-1)
		require.NoError(t, err, "chunks at %d,%d", i, j)
		require.Equal(t, len(chunk), n)
	}
	require.True(t, dec.Done())
	return dec.Value()
}

// checkEverySplit decodes b under every three-way split and compares each
// result to want.
func checkEverySplit[M any](t *testing.T, c *message.Codec[M], b []byte, want M) {
	t.Helper()
	for i := 0; i <= len(b); i++ {
		for j := i; j <= len(b); j++ {
			if diff := cmp.Diff(want, decodeChunked(t, c, b, i, j)); diff != "" {
				t.Fatalf("split %d,%d (-want +got):\n%s", i, j, diff)
			}
		}
	}
}

// drain encodes through an n-byte window.
func drain(t *testing.T, enc wire.Encoder, n int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, n)
	for !enc.Done() {
		w, err := enc.Encode(buf)
		require.NoError(t, err)
		require.Positive(t, w)
		out = append(out, buf[:w]...)
	}
	return out
}

func TestSearchRequest(t *testing.T) {
	tests := []struct {
		name     string
		value    SearchRequest
		expected []byte
	}{
		{
			name:     "all fields",
			value:    SearchRequest{Query: "foo", PageNumber: 3, ResultPerPage: 10},
			expected: []byte{10, 3, 102, 111, 111, 16, 3, 24, 10},
		},
		{
			name:     "default page omitted",
			value:    SearchRequest{Query: "foo", ResultPerPage: 10},
			expected: []byte{10, 3, 102, 111, 111, 24, 10},
		},
		{
			name:     "empty",
			value:    SearchRequest{},
			expected: nil,
		},
		{
			name:     "negative page",
			value:    SearchRequest{PageNumber: -1},
			expected: []byte{16, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := searchRequestCodec.Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, b)
			assert.Equal(t, len(tt.expected), searchRequestCodec.EncodedSize(tt.value))

			for _, window := range []int{1, 2, 5} {
				assert.Equal(t, tt.expected, drain(t, searchRequestCodec.NewEncoder(tt.value), window))
			}

			got, err := searchRequestCodec.Decode(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
			checkEverySplit(t, searchRequestCodec, tt.expected, tt.value)
		})
	}
}

func TestSearchRequest_MatchesProtowire(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "protocodec")
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	got, err := searchRequestCodec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, SearchRequest{Query: "protocodec", PageNumber: 42, ResultPerPage: 7}, got)

	out, err := searchRequestCodec.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, b, out)
}

func TestSearchResponse(t *testing.T) {
	in := []byte{10, 19, 10, 3, 102, 111, 111, 18, 3, 49, 49, 49, 26, 1, 97, 26, 1, 98, 26, 1, 99}
	want := SearchResponse{Results: []Result{{URL: "foo", Title: "111", Snippets: []string{"a", "b", "c"}}}}

	got, err := searchResponseCodec.Decode(in)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decode (-want +got):\n%s", diff)
	}
	checkEverySplit(t, searchResponseCodec, in, want)

	out, err := searchResponseCodec.Encode(want)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSkipsUnknownFields(t *testing.T) {
	in := []byte{
		(10 << 3) | 2, 3, 102, 111, 111,
		(11 << 3) | 0, 3,
		(12 << 3) | 5, 10, 1, 2, 3,
		(12 << 3) | 1, 1, 2, 3, 4, 5, 6, 7, 8,
	}
	got, err := searchRequestCodec.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, SearchRequest{}, got)
	checkEverySplit(t, searchRequestCodec, in, SearchRequest{})

	// Known fields around unknown ones still decode.
	mixed := append([]byte{10, 1, 'q'}, in...)
	mixed = append(mixed, 24, 9)
	got, err = searchRequestCodec.Decode(mixed)
	require.NoError(t, err)
	assert.Equal(t, SearchRequest{Query: "q", ResultPerPage: 9}, got)
}

func TestSeconds(t *testing.T) {
	b, err := secondsCodec.Encode(Seconds{})
	require.NoError(t, err)
	assert.Empty(t, b)

	b, err = secondsCodec.Encode(Seconds{Value: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x01}, b)

	got, err := secondsCodec.Decode([]byte{0x08, 0x5c})
	require.NoError(t, err)
	assert.Equal(t, Seconds{Value: 92}, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		kind    error
		path    string
		phase   string
		reserve bool
	}{
		{name: "truncated string", input: []byte{10, 5, 'f', 'o'}, kind: wire.ErrMalformed, path: "SearchRequest.query", phase: wire.PhaseValue},
		{name: "truncated length", input: []byte{10, 0x80}, kind: wire.ErrMalformed, path: "SearchRequest.query", phase: wire.PhaseLength},
		{name: "truncated varint", input: []byte{16, 0x80}, kind: wire.ErrMalformed, path: "SearchRequest.page_number", phase: wire.PhaseValue},
		{name: "partial tag", input: []byte{10, 1, 'q', 0x80}, kind: wire.ErrMalformed, path: "SearchRequest", phase: wire.PhaseTag},
		{name: "field zero", input: []byte{0x00, 0x01}, kind: wire.ErrMalformed, path: "SearchRequest", phase: wire.PhaseTag},
		{name: "group", input: []byte{(5 << 3) | 3, 0, (5 << 3) | 4}, kind: wire.ErrUnsupportedWireType, path: "SearchRequest", phase: wire.PhaseTag},
		{name: "wire type 7", input: []byte{(5 << 3) | 7}, kind: wire.ErrMalformed, path: "SearchRequest", phase: wire.PhaseTag},
		{name: "wrong wire type", input: []byte{(2 << 3) | 2, 0}, kind: wire.ErrMalformed, path: "SearchRequest.page_number"},
		{name: "invalid utf8", input: []byte{10, 1, 0xff}, kind: wire.ErrMalformed, path: "SearchRequest.query", phase: wire.PhaseValue},
		{name: "truncated unknown", input: []byte{(9 << 3) | 2, 4, 1}, kind: wire.ErrMalformed, path: "SearchRequest.#9", phase: wire.PhaseSkip},
		{name: "reserved rejected", input: append(protowire.AppendTag(nil, 19000, protowire.VarintType), 1), kind: wire.ErrMalformed, path: "SearchRequest.#19000", phase: wire.PhaseTag, reserve: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := searchRequestCodec
			if tt.reserve {
				c = message.New(searchRequestFields(), message.Named("SearchRequest"), message.RejectReserved())
			}
			_, err := c.Decode(tt.input)
			require.ErrorIs(t, err, tt.kind)

			var fe *wire.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.path, strings.Join(fe.FieldPath, "."))
			assert.Equal(t, tt.phase, fe.Phase)
		})
	}
}

func TestReservedNumbers_PassThroughByDefault(t *testing.T) {
	in := append(protowire.AppendTag(nil, 19500, protowire.VarintType), 1)
	got, err := searchRequestCodec.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, SearchRequest{}, got)
}

func TestNestedErrorPath(t *testing.T) {
	in := []byte{10, 5, 18, 3, 'a', 0xff, 'b'}
	_, err := searchResponseCodec.Decode(in)
	require.ErrorIs(t, err, wire.ErrMalformed)
	assert.Contains(t, err.Error(), "SearchResponse.results.title")
}

func TestMaxLength(t *testing.T) {
	c := message.New(searchRequestFields(), message.MaxLength(2))
	_, err := c.Decode([]byte{(9 << 3) | 2, 3, 1, 2, 3})
	assert.ErrorIs(t, err, wire.ErrMalformed)

	// Declared fields use their own limit.
	got, err := c.Decode([]byte{10, 3, 'a', 'b', 'c'})
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Query)

	type blob struct {
		S string
		B []byte
	}
	limited := message.New([]field.Field[blob]{
		field.Singular(1, scalar.String, func(m *blob) *string { return &m.S }, field.Named("s"), field.MaxLength(2)),
		field.Singular(2, scalar.Bytes, func(m *blob) *[]byte { return &m.B }, field.Named("b"), field.MaxLength(2)),
	}, message.Named("Blob"), message.MaxLength(2))

	_, err = limited.Decode([]byte{10, 5, 'h', 'e', 'l', 'l', 'o'})
	require.ErrorIs(t, err, wire.ErrMalformed)
	assert.Contains(t, err.Error(), "Blob.s")
	_, err = limited.Decode([]byte{18, 4, 1, 2, 3, 4})
	require.ErrorIs(t, err, wire.ErrMalformed)
	assert.Contains(t, err.Error(), "Blob.b")

	b, err := limited.Decode([]byte{10, 2, 'h', 'i', 18, 2, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, blob{S: "hi", B: []byte{1, 2}}, b)
}

func TestEncodeErrors(t *testing.T) {
	_, err := searchRequestCodec.Encode(SearchRequest{Query: "\xff\xfe"})
	require.ErrorIs(t, err, wire.ErrMalformed)

	var fe *wire.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, wire.PhaseEncode, fe.Phase)
	assert.Equal(t, []string{"SearchRequest"}, fe.FieldPath)
}

func TestAppend(t *testing.T) {
	b, err := searchRequestCodec.Append([]byte{0xaa}, SearchRequest{PageNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 16, 1}, b)
}

func TestDecoderCompletesOnlyAtEOS(t *testing.T) {
	dec := searchRequestCodec.NewDecoder()
	n, err := dec.Decode([]byte{16, 3}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, dec.Done())

	n, err = dec.Decode(nil, true)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, dec.Done())
	assert.Equal(t, SearchRequest{PageNumber: 3}, dec.Value())
}

func TestNew_DuplicateNumbers(t *testing.T) {
	assert.PanicsWithValue(t, "message: SearchRequest: field number 2 declared twice", func() {
		message.New([]field.Field[SearchRequest]{
			searchRequestFields()[1],
			searchRequestFields()[1],
		}, message.Named("SearchRequest"))
	})
	assert.Equal(t, "SearchRequest", searchRequestCodec.Name())
}

func BenchmarkSearchRequest_Encode(b *testing.B) {
	v := SearchRequest{Query: "benchmark query", PageNumber: 12, ResultPerPage: 50}
	buf := make([]byte, 0, 64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var err error
		if buf, err = searchRequestCodec.Append(buf[:0], v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchResponse_Decode(b *testing.B) {
	resp := SearchResponse{}
	for i := 0; i < 100; i++ {
		resp.Results = append(resp.Results, Result{URL: "https://example.com/item", Title: "title", Snippets: []string{"one", "two"}})
	}
	in, err := searchResponseCodec.Encode(resp)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(in)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := searchResponseCodec.Decode(in); err != nil {
			b.Fatal(err)
		}
	}
}
