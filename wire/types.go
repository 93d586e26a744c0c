package wire

import "fmt"

// ===== PROTOBUF WIRE FORMAT TYPES =====

// WireType represents protobuf wire format types
type WireType int8

const (
	WireVarint     WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // fixed64, sfixed64, double
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // recognized, never supported
	WireEndGroup   WireType = 4 // recognized, never supported
	WireFixed32    WireType = 5 // fixed32, sfixed32, float
)

// String returns the name used in error messages.
func (t WireType) String() string {
	switch t {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireBytes:
		return "bytes"
	case WireStartGroup:
		return "start_group"
	case WireEndGroup:
		return "end_group"
	case WireFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wire_type(%d)", int8(t))
	}
}

// IsGroup reports whether t is one of the legacy group codes.
func (t WireType) IsGroup() bool {
	return t == WireStartGroup || t == WireEndGroup
}

// FieldNumber represents a protobuf field number
type FieldNumber int32

const (
	MinFieldNumber           FieldNumber = 1
	FirstReservedFieldNumber FieldNumber = 19000
	LastReservedFieldNumber  FieldNumber = 19999
	MaxFieldNumber           FieldNumber = 1<<29 - 1
)

// IsValid reports whether n is inside 1..2^29-1.
func (n FieldNumber) IsValid() bool {
	return MinFieldNumber <= n && n <= MaxFieldNumber
}

// IsReserved reports whether n falls into the range reserved for the
// protobuf implementation itself.
func (n FieldNumber) IsReserved() bool {
	return FirstReservedFieldNumber <= n && n <= LastReservedFieldNumber
}

// Tag represents a protobuf field tag (field number + wire type)
type Tag uint64

// MakeTag creates a tag from field number and wire type
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType&0x7))
}

// ParseTag parses a tag into field number and wire type.
// Field numbers wider than 32 bits are truncated; callers validate with IsValid.
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}

// AppendTag appends the varint form of the tag.
func AppendTag(b []byte, fieldNumber FieldNumber, wireType WireType) []byte {
	return AppendVarint(b, uint64(MakeTag(fieldNumber, wireType)))
}

// TagSize returns the encoded size of a tag for the field number.
func TagSize(fieldNumber FieldNumber) int {
	return VarintSize(uint64(MakeTag(fieldNumber, WireVarint)))
}
