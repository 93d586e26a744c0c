package protofile

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/protocodec/schema"
	"github.com/anirudhraja/protocodec/wire"
)

// typeRef is a field type naming a message or enum, resolved once every
// file of a load is registered.
type typeRef struct {
	ft    *schema.FieldType
	field *schema.Field // nil for map values
	raw   string
	scope string
	// packed is the explicit [packed = ...] option, if any.
	packed *bool
	proto3 bool
}

// converter turns one parsed file into the schema model.
type converter struct {
	file *schema.File
	refs []typeRef
}

func convertFile(name string, p *parser.Proto) (*schema.File, []typeRef, error) {
	c := &converter{file: &schema.File{Name: name, Syntax: "proto2"}}
	if p.Syntax != nil {
		c.file.Syntax = strings.Trim(p.Syntax.ProtobufVersion, `"'`)
	}
	// The package must be known before any message gets its full name.
	for _, body := range p.ProtoBody {
		if pkg, ok := body.(*parser.Package); ok {
			c.file.Package = pkg.Name
		}
	}

	for _, body := range p.ProtoBody {
		switch b := body.(type) {
		case *parser.Import:
			c.file.Imports = append(c.file.Imports, strings.Trim(b.Location, `"'`))
		case *parser.Message:
			m, err := c.message(b, c.file.Package)
			if err != nil {
				return nil, nil, err
			}
			c.file.Messages = append(c.file.Messages, m)
		case *parser.Enum:
			e, err := convertEnum(b, c.file.Package)
			if err != nil {
				return nil, nil, err
			}
			c.file.Enums = append(c.file.Enums, e)
		case *parser.Service:
			c.file.Services = append(c.file.Services, convertService(b))
		}
	}
	return c.file, c.refs, nil
}

func (c *converter) proto3() bool { return c.file.Syntax == "proto3" }

func (c *converter) message(pm *parser.Message, scope string) (*schema.Message, error) {
	m := &schema.Message{
		Name:     pm.MessageName,
		FullName: joinName(scope, pm.MessageName),
		Syntax:   c.file.Syntax,
	}
	seen := make(map[int32]string)
	claim := func(f *schema.Field) error {
		if other, dup := seen[f.Number]; dup {
			return errors.Errorf("%s: fields %s and %s share number %d", m.FullName, other, f.Name, f.Number)
		}
		seen[f.Number] = f.Name
		return nil
	}

	for _, body := range pm.MessageBody {
		switch b := body.(type) {
		case *parser.Field:
			f, err := c.field(m.FullName, b.FieldName, b.FieldNumber, b.Type, label(b), b.FieldOptions)
			if err != nil {
				return nil, err
			}
			if err := claim(f); err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)
		case *parser.MapField:
			f, err := c.mapField(m.FullName, b)
			if err != nil {
				return nil, err
			}
			if err := claim(f); err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)
		case *parser.Oneof:
			o := &schema.Oneof{Name: b.OneofName}
			for _, of := range b.OneofFields {
				f, err := c.field(m.FullName, of.FieldName, of.FieldNumber, of.Type, schema.LabelSingular, of.FieldOptions)
				if err != nil {
					return nil, err
				}
				// Oneof members always track which one is set.
				f.Presence = true
				if err := claim(f); err != nil {
					return nil, err
				}
				o.Fields = append(o.Fields, f)
			}
			m.Oneofs = append(m.Oneofs, o)
		case *parser.Message:
			nested, err := c.message(b, m.FullName)
			if err != nil {
				return nil, err
			}
			m.NestedTypes = append(m.NestedTypes, nested)
		case *parser.Enum:
			e, err := convertEnum(b, m.FullName)
			if err != nil {
				return nil, err
			}
			m.NestedEnums = append(m.NestedEnums, e)
		}
	}
	return m, nil
}

func label(f *parser.Field) schema.Label {
	switch {
	case f.IsRepeated:
		return schema.LabelRepeated
	case f.IsRequired:
		return schema.LabelRequired
	case f.IsOptional:
		return schema.LabelOptional
	default:
		return schema.LabelSingular
	}
}

func parseFieldNumber(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "field number %q", s)
	}
	if !wire.FieldNumber(n).IsValid() {
		return 0, errors.Errorf("field number %d out of range", n)
	}
	return int32(n), nil
}

func (c *converter) field(scope, name, number, typ string, l schema.Label, opts []*parser.FieldOption) (*schema.Field, error) {
	num, err := parseFieldNumber(number)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", scope, name)
	}
	f := &schema.Field{Name: name, Number: num, Label: l}
	switch {
	case l == schema.LabelOptional || l == schema.LabelRequired:
		f.Presence = true
	case l == schema.LabelSingular && !c.proto3():
		f.Presence = true
	}

	packed, err := packedOption(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", scope, name)
	}

	if prim, ok := schema.ParsePrimitive(typ); ok {
		f.Type = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim}
		if l == schema.LabelRepeated && f.Type.IsPackable() {
			f.Packed = c.proto3()
			if packed != nil {
				f.Packed = *packed
			}
		}
		return f, nil
	}
	c.refs = append(c.refs, typeRef{ft: &f.Type, field: f, raw: typ, scope: scope, packed: packed, proto3: c.proto3()})
	return f, nil
}

func packedOption(opts []*parser.FieldOption) (*bool, error) {
	for _, o := range opts {
		if o.OptionName != "packed" {
			continue
		}
		v, err := strconv.ParseBool(o.Constant)
		if err != nil {
			return nil, errors.Wrap(err, "packed option")
		}
		return &v, nil
	}
	return nil, nil
}

func (c *converter) mapField(scope string, mf *parser.MapField) (*schema.Field, error) {
	num, err := parseFieldNumber(mf.FieldNumber)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", scope, mf.MapName)
	}
	key, ok := schema.ParsePrimitive(mf.KeyType)
	if !ok || key == schema.TypeBytes || key == schema.TypeFloat || key == schema.TypeDouble {
		return nil, errors.Errorf("%s.%s: invalid map key type %s", scope, mf.MapName, mf.KeyType)
	}
	f := &schema.Field{
		Name:   mf.MapName,
		Number: num,
		Label:  schema.LabelRepeated,
		Type: schema.FieldType{
			Kind:     schema.KindMap,
			MapKey:   &schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: key},
			MapValue: &schema.FieldType{},
		},
	}
	if prim, ok := schema.ParsePrimitive(mf.Type); ok {
		*f.Type.MapValue = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim}
		return f, nil
	}
	c.refs = append(c.refs, typeRef{ft: f.Type.MapValue, raw: mf.Type, scope: scope})
	return f, nil
}

func convertEnum(pe *parser.Enum, scope string) (*schema.Enum, error) {
	e := &schema.Enum{Name: pe.EnumName, FullName: joinName(scope, pe.EnumName)}
	for _, body := range pe.EnumBody {
		ef, ok := body.(*parser.EnumField)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(ef.Number, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", e.FullName, ef.Ident)
		}
		e.Values = append(e.Values, &schema.EnumValue{Name: ef.Ident, Number: int32(n)})
	}
	return e, nil
}

func convertService(ps *parser.Service) *schema.Service {
	s := &schema.Service{Name: ps.ServiceName}
	for _, body := range ps.ServiceBody {
		rpc, ok := body.(*parser.RPC)
		if !ok {
			continue
		}
		s.Methods = append(s.Methods, &schema.Method{
			Name:            rpc.RPCName,
			InputType:       rpc.RPCRequest.MessageType,
			OutputType:      rpc.RPCResponse.MessageType,
			ClientStreaming: rpc.RPCRequest.IsStream,
			ServerStreaming: rpc.RPCResponse.IsStream,
		})
	}
	return s
}

// resolve binds every pending type reference to a registered message or
// enum, or to a natively handled google.protobuf type.
func (r *Registry) resolve(refs []typeRef) error {
	known := func(name string) bool {
		_, isMsg := r.messages[name]
		_, isEnum := r.enums[name]
		return isMsg || isEnum
	}
	for _, ref := range refs {
		if wk, ok := schema.WellKnown(strings.TrimPrefix(ref.raw, ".")); ok {
			*ref.ft = wk
			if ref.field != nil && ref.field.Label != schema.LabelRepeated {
				ref.field.Presence = true
			}
			continue
		}

		name, err := resolveTypeName(ref.raw, ref.scope, known)
		if err != nil {
			return err
		}
		if _, ok := r.messages[name]; ok {
			*ref.ft = schema.FieldType{Kind: schema.KindMessage, MessageType: name}
			if ref.field != nil && ref.field.Label != schema.LabelRepeated {
				ref.field.Presence = true
			}
			continue
		}
		*ref.ft = schema.FieldType{Kind: schema.KindEnum, EnumType: name}
		if ref.field != nil && ref.field.Label == schema.LabelRepeated {
			ref.field.Packed = ref.proto3
			if ref.packed != nil {
				ref.field.Packed = *ref.packed
			}
		}
	}
	return nil
}
