// Package protocodec drives the resumable encoders and decoders built with
// the field and message packages over byte slices, chunked input and io
// streams.
package protocodec

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/wire"
)

// Status reports whether a driver finished.
type Status int

const (
	// Suspended means the state machine needs more input, or more output
	// space, before it can finish.
	Suspended Status = iota
	// Complete means the value is fully decoded or encoded.
	Complete
)

func (s Status) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one Feed or Drain step.
type Result struct {
	Status Status
	// Consumed counts input bytes used by Feed, or output bytes written by
	// Drain, in this step.
	Consumed int
}

// ===== DECODING =====

// Decoding holds the state of one decode across input chunks.
type Decoding[T any] struct {
	dec   wire.ValueDecoder[T]
	total int
	err   error
}

// NewDecoding starts a decode with dec.
func NewDecoding[T any](dec wire.ValueDecoder[T]) *Decoding[T] {
	return &Decoding[T]{dec: dec}
}

// Feed hands the next chunk of input to the decoder. eos reports that chunk
// is the last one. Bytes not consumed on Complete belong to whatever follows
// the value. After an error every further call returns the same error.
func (d *Decoding[T]) Feed(chunk []byte, eos bool) (Result, error) {
	if d.err != nil {
		return Result{}, d.err
	}
	if d.dec.Done() {
		return Result{Status: Complete}, nil
	}
	n, err := d.dec.Decode(chunk, eos)
	d.total += n
	if err != nil {
		d.err = err
		return Result{Consumed: n}, err
	}
	if d.dec.Done() {
		return Result{Status: Complete, Consumed: n}, nil
	}
	if eos {
		d.err = wire.Errorf(wire.ErrMalformed, "input ended before value was complete")
		return Result{Consumed: n}, d.err
	}
	return Result{Status: Suspended, Consumed: n}, nil
}

// Value returns the decoded value. It is the zero value until Feed reports
// Complete.
func (d *Decoding[T]) Value() T {
	if !d.dec.Done() {
		var zero T
		return zero
	}
	return d.dec.Value()
}

// Total is the number of bytes consumed so far.
func (d *Decoding[T]) Total() int { return d.total }

// ===== ENCODING =====

// Encoding holds the state of one encode across output buffers.
type Encoding struct {
	enc   wire.Encoder
	total int
	err   error
}

// NewEncoding starts an encode with enc.
func NewEncoding(enc wire.Encoder) *Encoding {
	return &Encoding{enc: enc}
}

// Drain writes pending output into buf.
func (e *Encoding) Drain(buf []byte) (Result, error) {
	if e.err != nil {
		return Result{}, e.err
	}
	if e.enc.Done() {
		return Result{Status: Complete}, nil
	}
	n, err := e.enc.Encode(buf)
	e.total += n
	if err != nil {
		e.err = err
		return Result{Consumed: n}, err
	}
	if e.enc.Done() {
		return Result{Status: Complete, Consumed: n}, nil
	}
	return Result{Status: Suspended, Consumed: n}, nil
}

// Total is the number of bytes written so far.
func (e *Encoding) Total() int { return e.total }

// ===== WHOLE-BUFFER API =====

// Decode decodes one message occupying all of b.
func Decode[T any](c field.MessageCodec[T], b []byte) (T, error) {
	v, _, err := wire.DecodeAll(c.NewDecoder(), b)
	return v, err
}

// Encode returns the encoding of v.
func Encode[T any](c field.MessageCodec[T], v T) ([]byte, error) {
	return wire.EncodeAll(nil, c.NewEncoder(v), c.EncodedSize(v))
}

// ===== STREAM API =====

// DecodeFrom decodes one message from r, reading until io.EOF in chunks of
// cfg.ChunkSize. It fails when the message exceeds cfg.MaxMessageSize.
func DecodeFrom[T any](ctx context.Context, r io.Reader, c field.MessageCodec[T], cfg Config) (T, error) {
	var zero T
	cfg = cfg.withDefaults()
	d := NewDecoding(c.NewDecoder())
	buf := make([]byte, cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		n, rerr := r.Read(buf)
		if rerr != nil && rerr != io.EOF {
			return zero, errors.Wrap(rerr, "reading message")
		}
		if cfg.MaxMessageSize > 0 && d.Total()+n > cfg.MaxMessageSize {
			return zero, wire.Errorf(wire.ErrMalformed, "message exceeds %d bytes", cfg.MaxMessageSize)
		}
		res, err := d.Feed(buf[:n], rerr == io.EOF)
		if err != nil {
			return zero, err
		}
		if res.Status == Complete {
			return d.Value(), nil
		}
	}
}

// EncodeTo streams the encoding of v to w in chunks of cfg.ChunkSize.
func EncodeTo[T any](ctx context.Context, w io.Writer, c field.MessageCodec[T], v T, cfg Config) error {
	cfg = cfg.withDefaults()
	return drainTo(ctx, w, NewEncoding(c.NewEncoder(v)), make([]byte, cfg.ChunkSize))
}

func drainTo(ctx context.Context, w io.Writer, e *Encoding, buf []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.Drain(buf)
		if err != nil {
			return err
		}
		if res.Consumed > 0 {
			if _, err := w.Write(buf[:res.Consumed]); err != nil {
				return errors.Wrap(err, "writing message")
			}
		}
		if res.Status == Complete {
			return nil
		}
	}
}
