// Package wellknown provides codecs for google.protobuf.Duration,
// google.protobuf.Timestamp and the wrapper messages, with conversions to the
// protobuf-go types and the standard library's time types.
package wellknown

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/scalar"
)

// Duration mirrors google.protobuf.Duration.
type Duration struct {
	Seconds int64
	Nanos   int32
}

// Timestamp mirrors google.protobuf.Timestamp.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

var (
	DurationCodec = message.New([]field.Field[Duration]{
		field.Singular(1, scalar.Int64, func(d *Duration) *int64 { return &d.Seconds }, field.Named("seconds")),
		field.Singular(2, scalar.Int32, func(d *Duration) *int32 { return &d.Nanos }, field.Named("nanos")),
	}, message.Named("google.protobuf.Duration"))

	TimestampCodec = message.New([]field.Field[Timestamp]{
		field.Singular(1, scalar.Int64, func(t *Timestamp) *int64 { return &t.Seconds }, field.Named("seconds")),
		field.Singular(2, scalar.Int32, func(t *Timestamp) *int32 { return &t.Nanos }, field.Named("nanos")),
	}, message.Named("google.protobuf.Timestamp"))
)

// FromDuration converts d, which is exact at nanosecond resolution.
func FromDuration(d time.Duration) Duration {
	return FromDurationProto(durationpb.New(d))
}

// AsDuration converts to a time.Duration, saturating on overflow.
func (d Duration) AsDuration() time.Duration {
	return d.Proto().AsDuration()
}

// Proto returns the protobuf-go form.
func (d Duration) Proto() *durationpb.Duration {
	return &durationpb.Duration{Seconds: d.Seconds, Nanos: d.Nanos}
}

// FromDurationProto copies p; nil yields the zero Duration.
func FromDurationProto(p *durationpb.Duration) Duration {
	return Duration{Seconds: p.GetSeconds(), Nanos: p.GetNanos()}
}

// IsValid reports whether d is within the range and sign rules of
// google.protobuf.Duration.
func (d Duration) IsValid() bool {
	return d.Proto().IsValid()
}

// FromTime converts t to UTC seconds and nanoseconds.
func FromTime(t time.Time) Timestamp {
	return FromTimestampProto(timestamppb.New(t))
}

// AsTime returns the instant in UTC.
func (t Timestamp) AsTime() time.Time {
	return t.Proto().AsTime()
}

// Proto returns the protobuf-go form.
func (t Timestamp) Proto() *timestamppb.Timestamp {
	return &timestamppb.Timestamp{Seconds: t.Seconds, Nanos: t.Nanos}
}

// FromTimestampProto copies p; nil yields the zero Timestamp.
func FromTimestampProto(p *timestamppb.Timestamp) Timestamp {
	return Timestamp{Seconds: p.GetSeconds(), Nanos: p.GetNanos()}
}

// IsValid reports whether t lies in years 1 through 9999 with in-range nanos.
func (t Timestamp) IsValid() bool {
	return t.Proto().IsValid()
}
