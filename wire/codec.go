package wire

// Decoder is a resumable decoding state machine.
//
// Decode consumes a prefix of buf and returns how many bytes it used. eos
// reports that no input follows buf. A decoder that needs more input than
// buf holds consumes all of buf and returns without error, unless eos is set,
// in which case it fails with ErrMalformed. Once Done reports true, Decode
// consumes nothing. After an error the decoder must be discarded.
type Decoder interface {
	Decode(buf []byte, eos bool) (int, error)
	Done() bool
}

// ValueDecoder is a Decoder that yields a value once Done.
type ValueDecoder[T any] interface {
	Decoder
	Value() T
}

// Encoder is a resumable encoding state machine.
//
// Encode writes as many pending bytes as fit into buf and returns the count.
// Bytes already written are never written again.
type Encoder interface {
	Encode(buf []byte) (int, error)
	Done() bool
}

// Codec is the capability a value type must provide to appear as a field
// payload: its wire type, its default check, its encoded size and a fresh
// encoder/decoder pair. Size and the encoder's output cover everything after
// the tag, including the length prefix of length-delimited values.
type Codec[T any] interface {
	WireType() WireType
	IsDefault(v T) bool
	Size(v T) int
	NewEncoder(v T) Encoder
	NewDecoder() ValueDecoder[T]
}

// EncodeAll drains enc into a byte slice appended to b.
func EncodeAll(b []byte, enc Encoder, size int) ([]byte, error) {
	start := len(b)
	if cap(b)-start < size {
		nb := make([]byte, start, start+size)
		copy(nb, b)
		b = nb
	}
	for !enc.Done() {
		if len(b) == cap(b) {
			b = append(b, 0)[:len(b)]
		}
		n, err := enc.Encode(b[len(b):cap(b)])
		b = b[:len(b)+n]
		if err != nil {
			return b[:start], err
		}
	}
	return b, nil
}

// DecodeAll runs dec over a complete input buffer.
func DecodeAll[T any](dec ValueDecoder[T], b []byte) (T, int, error) {
	var zero T
	n, err := dec.Decode(b, true)
	if err != nil {
		return zero, n, err
	}
	if !dec.Done() {
		return zero, n, Errorf(ErrMalformed, "input ended before value was complete")
	}
	return dec.Value(), n, nil
}

// ===== ENCODER BUILDING BLOCKS =====

// rawEncoder writes a fixed byte slice.
type rawEncoder struct {
	b   []byte
	off int
}

// NewRawEncoder returns an Encoder that writes b verbatim. b is not copied.
func NewRawEncoder(b []byte) Encoder {
	return &rawEncoder{b: b}
}

func (e *rawEncoder) Encode(buf []byte) (int, error) {
	n := copy(buf, e.b[e.off:])
	e.off += n
	return n, nil
}

func (e *rawEncoder) Done() bool {
	return e.off == len(e.b)
}

// smallEncoder holds up to 20 bytes inline, enough for a tag plus a varint
// or a fixed64.
type smallEncoder struct {
	b   [20]byte
	n   int
	off int
}

// newSmall builds a smallEncoder from the output of fill.
func newSmall(fill func(b []byte) []byte) *smallEncoder {
	e := &smallEncoder{}
	e.n = len(fill(e.b[:0]))
	return e
}

func (e *smallEncoder) Encode(buf []byte) (int, error) {
	n := copy(buf, e.b[e.off:e.n])
	e.off += n
	return n, nil
}

func (e *smallEncoder) Done() bool {
	return e.off == e.n
}

// VarintEncoder returns an Encoder for a single varint.
func VarintEncoder(v uint64) Encoder {
	return newSmall(func(b []byte) []byte { return AppendVarint(b, v) })
}

// TagEncoder returns an Encoder for a tag, optionally followed by a length
// prefix when length >= 0.
func TagEncoder(num FieldNumber, wt WireType, length int) Encoder {
	return newSmall(func(b []byte) []byte {
		b = AppendTag(b, num, wt)
		if length >= 0 {
			b = AppendVarint(b, uint64(length))
		}
		return b
	})
}

// Fixed32Encoder returns an Encoder for four little-endian bytes.
func Fixed32Encoder(v uint32) Encoder {
	return newSmall(func(b []byte) []byte { return AppendFixed32(b, v) })
}

// Fixed64Encoder returns an Encoder for eight little-endian bytes.
func Fixed64Encoder(v uint64) Encoder {
	return newSmall(func(b []byte) []byte { return AppendFixed64(b, v) })
}

// seqEncoder runs encoders produced by next one after another.
type seqEncoder struct {
	cur  Encoder
	next func() (Encoder, bool)
	done bool
}

// Sequence returns an Encoder that pulls child encoders from next until it
// reports false. Children are created lazily, so a sequence over a large
// repeated field holds one child at a time.
func Sequence(next func() (Encoder, bool)) Encoder {
	return &seqEncoder{next: next}
}

// Chain returns an Encoder that runs encs in order. Nil entries are skipped.
func Chain(encs ...Encoder) Encoder {
	i := 0
	return Sequence(func() (Encoder, bool) {
		for i < len(encs) {
			e := encs[i]
			i++
			if e != nil {
				return e, true
			}
		}
		return nil, false
	})
}

func (e *seqEncoder) advance() {
	for !e.done && (e.cur == nil || e.cur.Done()) {
		next, ok := e.next()
		if !ok {
			e.done = true
			e.cur = nil
			return
		}
		e.cur = next
	}
}

func (e *seqEncoder) Encode(buf []byte) (int, error) {
	written := 0
	for {
		e.advance()
		if e.done || written == len(buf) {
			return written, nil
		}
		n, err := e.cur.Encode(buf[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 && !e.cur.Done() {
			return written, nil
		}
	}
}

func (e *seqEncoder) Done() bool {
	e.advance()
	return e.done
}

// Empty is an Encoder with nothing to write.
var Empty Encoder = emptyEncoder{}

type emptyEncoder struct{}

func (emptyEncoder) Encode([]byte) (int, error) { return 0, nil }
func (emptyEncoder) Done() bool                 { return true }

// failedEncoder reports err on first use.
type failedEncoder struct{ err error }

// FailedEncoder returns an Encoder that fails with err.
func FailedEncoder(err error) Encoder { return &failedEncoder{err: err} }

func (e *failedEncoder) Encode([]byte) (int, error) { return 0, e.err }
func (e *failedEncoder) Done() bool                 { return false }
