package protocodec

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/wire"
)

// WriteDelimited writes v to w preceded by its encoded size as a varint, the
// framing used for streams of messages.
func WriteDelimited[T any](ctx context.Context, w io.Writer, c field.MessageCodec[T], v T, cfg Config) error {
	cfg = cfg.withDefaults()
	size := c.EncodedSize(v)
	if cfg.MaxMessageSize > 0 && size > cfg.MaxMessageSize {
		return wire.Errorf(wire.ErrMalformed, "message of %d bytes exceeds %d", size, cfg.MaxMessageSize)
	}
	enc := wire.Chain(wire.VarintEncoder(uint64(size)), c.NewEncoder(v))
	return drainTo(ctx, w, NewEncoding(enc), make([]byte, cfg.ChunkSize))
}

// DelimitedReader reads a stream of varint-delimited messages.
type DelimitedReader[T any] struct {
	r     *bufio.Reader
	codec field.MessageCodec[T]
	cfg   Config
	err   error
}

// NewDelimitedReader returns a reader of messages written by WriteDelimited.
func NewDelimitedReader[T any](r io.Reader, c field.MessageCodec[T], cfg Config) *DelimitedReader[T] {
	cfg = cfg.withDefaults()
	return &DelimitedReader[T]{r: bufio.NewReaderSize(r, cfg.ChunkSize), codec: c, cfg: cfg}
}

// Next returns the next message. It returns io.EOF when the stream ends
// cleanly between messages; a stream ending inside a message is
// wire.ErrMalformed.
func (d *DelimitedReader[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if d.err != nil {
		return zero, d.err
	}
	v, err := d.next(ctx)
	if err != nil {
		d.err = err
	}
	return v, err
}

func (d *DelimitedReader[T]) next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var length wire.VarintDecoder
	for !length.Done() {
		b, err := d.r.ReadByte()
		if err == io.EOF {
			if !length.Started() {
				return zero, io.EOF
			}
			_, err = length.Decode(nil, true)
			return zero, wire.WithPhase(err, wire.PhaseLength)
		}
		if err != nil {
			return zero, errors.Wrap(err, "reading message length")
		}
		if _, err := length.Decode([]byte{b}, false); err != nil {
			return zero, wire.WithPhase(err, wire.PhaseLength)
		}
	}

	size := length.Value()
	if d.cfg.MaxMessageSize > 0 && size > uint64(d.cfg.MaxMessageSize) {
		return zero, wire.Errorf(wire.ErrMalformed, "message of %d bytes exceeds %d", size, d.cfg.MaxMessageSize)
	}

	body := io.LimitReader(d.r, int64(size))
	v, err := DecodeFrom(ctx, &exactReader{r: body, remaining: int64(size)}, d.codec, Config{ChunkSize: d.cfg.ChunkSize})
	if err != nil {
		return zero, err
	}
	return v, nil
}

// exactReader turns a premature io.EOF from a LimitReader into
// wire.ErrMalformed.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if err == io.EOF && e.remaining > 0 {
		return n, wire.Errorf(wire.ErrMalformed, "stream ended %d bytes before the end of the message", e.remaining)
	}
	return n, err
}
