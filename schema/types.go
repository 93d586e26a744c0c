// Package schema models the parts of .proto definitions needed to build
// codecs at runtime.
package schema

// Repo is a set of loaded .proto files.
type Repo struct {
	Files map[string]*File `json:"files"`
}

// File represents a single .proto file
type File struct {
	Name     string     `json:"name"`    // path as imported, e.g. "search/v1/search.proto"
	Package  string     `json:"package"` // package name
	Syntax   string     `json:"syntax"`  // proto2 or proto3
	Imports  []string   `json:"imports"` // resolved import paths
	Messages []*Message `json:"messages"`
	Enums    []*Enum    `json:"enums"`
	Services []*Service `json:"services"`
}

// Message represents a protobuf message definition
type Message struct {
	Name        string     `json:"name"`      // "SearchRequest"
	FullName    string     `json:"full_name"` // "search.v1.SearchRequest"
	Fields      []*Field   `json:"fields"`    // fields outside any oneof
	Oneofs      []*Oneof   `json:"oneofs"`
	NestedTypes []*Message `json:"nested_types"`
	NestedEnums []*Enum    `json:"nested_enums"`
	Syntax      string     `json:"syntax"`
}

// Field represents a message field
type Field struct {
	Name   string    `json:"name"`   // "page_number"
	Number int32     `json:"number"` // 2
	Label  Label     `json:"label"`  // optional, required, repeated
	Type   FieldType `json:"type"`
	// Packed is the encoding chosen for repeated scalars: packed by default
	// in proto3, unpacked in proto2, overridden by [packed = ...].
	Packed bool `json:"packed"`
	// Presence marks singular fields that keep explicit presence: proto2
	// scalars, proto3 `optional` and every message-typed field.
	Presence bool `json:"presence"`
}

// Oneof represents a oneof group
type Oneof struct {
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
}

// Label represents field labels
type Label string

const (
	LabelSingular Label = ""
	LabelOptional Label = "optional"
	LabelRequired Label = "required"
	LabelRepeated Label = "repeated"
)

// FieldType represents field type information
type FieldType struct {
	Kind          Kind          `json:"kind"`
	PrimitiveType PrimitiveType `json:"primitive_type,omitempty"`
	MessageType   string        `json:"message_type,omitempty"` // fully qualified
	EnumType      string        `json:"enum_type,omitempty"`    // fully qualified
	WrapperType   WrapperType   `json:"wrapper_type,omitempty"`
	MapKey        *FieldType    `json:"map_key,omitempty"`
	MapValue      *FieldType    `json:"map_value,omitempty"`
}

// Kind represents the kind of field type
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindMessage   Kind = "message"
	KindEnum      Kind = "enum"
	KindMap       Kind = "map"
	KindWrapper   Kind = "wrapper"
	KindDuration  Kind = "duration"
	KindTimestamp Kind = "timestamp"
)

// PrimitiveType represents protobuf scalar types
type PrimitiveType string

const (
	TypeDouble   PrimitiveType = "double"
	TypeFloat    PrimitiveType = "float"
	TypeInt64    PrimitiveType = "int64"
	TypeUint64   PrimitiveType = "uint64"
	TypeInt32    PrimitiveType = "int32"
	TypeFixed64  PrimitiveType = "fixed64"
	TypeFixed32  PrimitiveType = "fixed32"
	TypeBool     PrimitiveType = "bool"
	TypeString   PrimitiveType = "string"
	TypeBytes    PrimitiveType = "bytes"
	TypeUint32   PrimitiveType = "uint32"
	TypeSfixed32 PrimitiveType = "sfixed32"
	TypeSfixed64 PrimitiveType = "sfixed64"
	TypeSint32   PrimitiveType = "sint32"
	TypeSint64   PrimitiveType = "sint64"
)

var primitives = map[PrimitiveType]bool{
	TypeDouble: true, TypeFloat: true, TypeInt64: true, TypeUint64: true,
	TypeInt32: true, TypeFixed64: true, TypeFixed32: true, TypeBool: true,
	TypeUint32: true, TypeSfixed32: true, TypeSfixed64: true, TypeSint32: true,
	TypeSint64: true,
	// length-delimited
	TypeString: false, TypeBytes: false,
}

// ParsePrimitive reports whether name is a scalar type keyword.
func ParsePrimitive(name string) (PrimitiveType, bool) {
	_, ok := primitives[PrimitiveType(name)]
	return PrimitiveType(name), ok
}

// IsPackedType reports whether repeated fields of t may use packed encoding.
func IsPackedType(t PrimitiveType) bool {
	return primitives[t]
}

// IsPackable reports whether a repeated field of this type may be packed.
func (t FieldType) IsPackable() bool {
	switch t.Kind {
	case KindPrimitive:
		return IsPackedType(t.PrimitiveType)
	case KindEnum:
		return true
	default:
		return false
	}
}

// WrapperType names the google.protobuf wrapper messages
type WrapperType string

const (
	WrapperDoubleValue WrapperType = "google.protobuf.DoubleValue"
	WrapperFloatValue  WrapperType = "google.protobuf.FloatValue"
	WrapperInt64Value  WrapperType = "google.protobuf.Int64Value"
	WrapperUInt64Value WrapperType = "google.protobuf.UInt64Value"
	WrapperInt32Value  WrapperType = "google.protobuf.Int32Value"
	WrapperUInt32Value WrapperType = "google.protobuf.UInt32Value"
	WrapperBoolValue   WrapperType = "google.protobuf.BoolValue"
	WrapperStringValue WrapperType = "google.protobuf.StringValue"
	WrapperBytesValue  WrapperType = "google.protobuf.BytesValue"
)

// Well-known message names resolved without loading their files.
const (
	DurationName  = "google.protobuf.Duration"
	TimestampName = "google.protobuf.Timestamp"
)

var wrappers = map[WrapperType]bool{
	WrapperDoubleValue: true, WrapperFloatValue: true, WrapperInt64Value: true,
	WrapperUInt64Value: true, WrapperInt32Value: true, WrapperUInt32Value: true,
	WrapperBoolValue: true, WrapperStringValue: true, WrapperBytesValue: true,
}

// WellKnown returns the field type for a google.protobuf message handled
// natively.
func WellKnown(fullName string) (FieldType, bool) {
	switch {
	case wrappers[WrapperType(fullName)]:
		return FieldType{Kind: KindWrapper, WrapperType: WrapperType(fullName)}, true
	case fullName == DurationName:
		return FieldType{Kind: KindDuration, MessageType: fullName}, true
	case fullName == TimestampName:
		return FieldType{Kind: KindTimestamp, MessageType: fullName}, true
	}
	return FieldType{}, false
}

// Enum represents an enum definition
type Enum struct {
	Name     string       `json:"name"`
	FullName string       `json:"full_name"`
	Values   []*EnumValue `json:"values"`
}

// EnumValue represents an enum value
type EnumValue struct {
	Name   string `json:"name"`   // "ACTIVE"
	Number int32  `json:"number"` // 1
}

// ByNumber returns the first value declared with n.
func (e *Enum) ByNumber(n int32) (*EnumValue, bool) {
	for _, v := range e.Values {
		if v.Number == n {
			return v, true
		}
	}
	return nil, false
}

// ByName returns the value called name.
func (e *Enum) ByName(name string) (*EnumValue, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Service represents a service definition
type Service struct {
	Name    string    `json:"name"`
	Methods []*Method `json:"methods"`
}

// Method represents a service method
type Method struct {
	Name            string `json:"name"`
	InputType       string `json:"input_type"`
	OutputType      string `json:"output_type"`
	ClientStreaming bool   `json:"client_streaming"`
	ServerStreaming bool   `json:"server_streaming"`
}

// AllFields returns the plain fields followed by every oneof member.
func (m *Message) AllFields() []*Field {
	out := append([]*Field(nil), m.Fields...)
	for _, o := range m.Oneofs {
		out = append(out, o.Fields...)
	}
	return out
}
