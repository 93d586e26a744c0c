package wellknown

import (
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/scalar"
	"github.com/anirudhraja/protocodec/wire"
)

// wrapper builds the codec of a google.protobuf.*Value message, whose only
// field 1 holds the wrapped scalar. The message value is the scalar itself,
// so field.Message over a wrapper codec yields a nullable scalar slot.
func wrapper[T any](name string, c wire.Codec[T]) *message.Codec[T] {
	return message.New([]field.Field[T]{
		field.Singular(1, c, func(v *T) *T { return v }, field.Named("value")),
	}, message.Named(name))
}

var (
	DoubleValue = wrapper("google.protobuf.DoubleValue", scalar.Double)
	FloatValue  = wrapper("google.protobuf.FloatValue", scalar.Float)
	Int64Value  = wrapper("google.protobuf.Int64Value", scalar.Int64)
	UInt64Value = wrapper("google.protobuf.UInt64Value", scalar.Uint64)
	Int32Value  = wrapper("google.protobuf.Int32Value", scalar.Int32)
	UInt32Value = wrapper("google.protobuf.UInt32Value", scalar.Uint32)
	BoolValue   = wrapper("google.protobuf.BoolValue", scalar.Bool)
	StringValue = wrapper("google.protobuf.StringValue", scalar.String)
	BytesValue  = wrapper("google.protobuf.BytesValue", scalar.Bytes)
)

// StringProto converts a nullable string slot to its protobuf-go wrapper.
func StringProto(s *string) *wrapperspb.StringValue {
	if s == nil {
		return nil
	}
	return wrapperspb.String(*s)
}

// Int64Proto converts a nullable int64 slot to its protobuf-go wrapper.
func Int64Proto(v *int64) *wrapperspb.Int64Value {
	if v == nil {
		return nil
	}
	return wrapperspb.Int64(*v)
}

// BoolProto converts a nullable bool slot to its protobuf-go wrapper.
func BoolProto(v *bool) *wrapperspb.BoolValue {
	if v == nil {
		return nil
	}
	return wrapperspb.Bool(*v)
}
