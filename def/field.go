/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package def

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FieldDef describes one field of a message, or an extension field.
//
// A FieldDef is never shared: it is owned by the single MessageDef it was
// added to, and it is frozen together with that message.
type FieldDef struct {
	base

	number      protoreflect.FieldNumber
	kind        protoreflect.Kind
	cardinality protoreflect.Cardinality
	jsonName    string
	packed      bool
	weak        bool

	extension bool
	extendee  protoreflect.FullName

	hasDefault   bool
	defaultValue protoreflect.Value

	subDef     Def
	subDefName protoreflect.FullName

	containing *MessageDef
	oneof      *OneofDef
}

var _ Def = &FieldDef{}

// NewFieldDef returns a new, mutable field definition. Cardinality defaults
// to optional.
func NewFieldDef(name protoreflect.FullName) *FieldDef {
	return &FieldDef{
		base:        base{name: name},
		cardinality: protoreflect.Optional,
	}
}

// Name returns the short name of the field.
func (f *FieldDef) Name() protoreflect.Name {
	return f.name.Name()
}

// SetNumber sets the field number.
func (f *FieldDef) SetNumber(num protoreflect.FieldNumber) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	if f.containing != nil {
		return invalidf(f.name, "cannot renumber a field owned by %s", f.containing.name)
	}
	f.number = num
	return nil
}

// SetKind sets the field's value kind. Changing the kind drops any
// sub-definition that no longer fits it.
func (f *FieldDef) SetKind(kind protoreflect.Kind) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.kind = kind
	switch f.subDef.(type) {
	case *MessageDef:
		if !f.IsSubMessage() {
			f.subDef = nil
		}
	case *EnumDef:
		if kind != protoreflect.EnumKind {
			f.subDef = nil
		}
	}
	return nil
}

// SetCardinality sets whether the field is optional, required or repeated.
func (f *FieldDef) SetCardinality(c protoreflect.Cardinality) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.cardinality = c
	return nil
}

// SetJSONName sets the JSON name of the field.
func (f *FieldDef) SetJSONName(name string) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.jsonName = name
	return nil
}

// SetPacked marks a repeated scalar field as packed on the wire.
func (f *FieldDef) SetPacked(packed bool) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.packed = packed
	return nil
}

// SetWeak marks the field as weak: statically it is opaque bytes, its real
// type is only known from a live message.
func (f *FieldDef) SetWeak(weak bool) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.weak = weak
	return nil
}

// SetExtension marks the field as an extension of the message extendee.
func (f *FieldDef) SetExtension(extendee protoreflect.FullName) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.extension = true
	f.extendee = extendee
	return nil
}

// SetDefault sets the explicit default value of a singular scalar field.
func (f *FieldDef) SetDefault(v protoreflect.Value) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.hasDefault = true
	f.defaultValue = v
	return nil
}

// SetMessageSubDef sets the message type of a message or group field.
func (f *FieldDef) SetMessageSubDef(md *MessageDef) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	if !f.IsSubMessage() {
		return invalidf(f.name, "%v field cannot have a message sub-definition", f.kind)
	}
	f.subDef = md
	f.subDefName = md.FullName()
	return nil
}

// SetEnumSubDef sets the enum type of an enum field.
func (f *FieldDef) SetEnumSubDef(ed *EnumDef) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	if f.kind != protoreflect.EnumKind {
		return invalidf(f.name, "%v field cannot have an enum sub-definition", f.kind)
	}
	f.subDef = ed
	f.subDefName = ed.FullName()
	return nil
}

// SetSubDefName records the name of the sub-definition before the
// definition itself is available.
func (f *FieldDef) SetSubDefName(name protoreflect.FullName) error {
	if err := f.checkMutable(); err != nil {
		return err
	}
	if f.subDef != nil && f.subDef.FullName() != name {
		f.subDef = nil
	}
	f.subDefName = name
	return nil
}

// Number returns the field number.
func (f *FieldDef) Number() protoreflect.FieldNumber { return f.number }

// Kind returns the value kind.
func (f *FieldDef) Kind() protoreflect.Kind { return f.kind }

// Cardinality returns the cardinality.
func (f *FieldDef) Cardinality() protoreflect.Cardinality { return f.cardinality }

// IsRepeated reports whether the field is repeated (this includes maps).
func (f *FieldDef) IsRepeated() bool { return f.cardinality == protoreflect.Repeated }

// JSONName returns the JSON name.
func (f *FieldDef) JSONName() string { return f.jsonName }

// IsPacked reports whether the field is packed.
func (f *FieldDef) IsPacked() bool { return f.packed }

// IsWeak reports whether the field is a resolved weak field.
func (f *FieldDef) IsWeak() bool { return f.weak }

// IsExtension reports whether the field is an extension.
func (f *FieldDef) IsExtension() bool { return f.extension }

// Extendee returns the name of the extended message for extensions.
func (f *FieldDef) Extendee() protoreflect.FullName { return f.extendee }

// Default returns the explicit default value, if any.
func (f *FieldDef) Default() (protoreflect.Value, bool) {
	return f.defaultValue, f.hasDefault
}

// IsSubMessage reports whether values of the field are messages.
func (f *FieldDef) IsSubMessage() bool {
	return f.kind == protoreflect.MessageKind || f.kind == protoreflect.GroupKind
}

// IsMap reports whether the field is a map, i.e. a repeated field of map
// entries.
func (f *FieldDef) IsMap() bool {
	md := f.MessageSubDef()
	return f.IsRepeated() && md != nil && md.IsMapEntry()
}

// SubDef returns the message or enum definition of the field, if any.
func (f *FieldDef) SubDef() Def { return f.subDef }

// SubDefName returns the full name of the message or enum type.
func (f *FieldDef) SubDefName() protoreflect.FullName { return f.subDefName }

// MessageSubDef returns the message type, or nil.
func (f *FieldDef) MessageSubDef() *MessageDef {
	md, _ := f.subDef.(*MessageDef)
	return md
}

// EnumSubDef returns the enum type, or nil.
func (f *FieldDef) EnumSubDef() *EnumDef {
	ed, _ := f.subDef.(*EnumDef)
	return ed
}

// ContainingType returns the message the field was added to.
func (f *FieldDef) ContainingType() *MessageDef { return f.containing }

// ContainingOneof returns the oneof the field belongs to, if any.
func (f *FieldDef) ContainingOneof() *OneofDef { return f.oneof }

func (f *FieldDef) validate(batch map[Def]struct{}) error {
	if !f.number.IsValid() {
		return invalidf(f.name, "invalid field number %d", f.number)
	}
	if !f.kind.IsValid() {
		return invalidf(f.name, "field has no valid kind")
	}
	switch {
	case f.IsSubMessage():
		md := f.MessageSubDef()
		if md == nil {
			return invalidf(f.name, "message field %s has no resolved type", f.subDefName)
		}
		if !reachable(md, batch) {
			return invalidf(f.name, "message type %s is neither frozen nor being frozen", md.name)
		}
	case f.kind == protoreflect.EnumKind:
		ed := f.EnumSubDef()
		if ed == nil {
			return invalidf(f.name, "enum field %s has no resolved type", f.subDefName)
		}
		if !reachable(ed, batch) {
			return invalidf(f.name, "enum type %s is neither frozen nor being frozen", ed.name)
		}
	}
	if f.packed && (!f.IsRepeated() || !packable(f.kind)) {
		return invalidf(f.name, "only repeated scalar numeric fields can be packed")
	}
	if f.weak && (f.IsRepeated() || !f.IsSubMessage()) {
		return invalidf(f.name, "weak fields must be singular messages")
	}
	return nil
}

// WireType returns the wire type a single, non-packed value of kind uses.
func WireType(kind protoreflect.Kind) protowire.Type {
	switch kind {
	case protoreflect.BoolKind, protoreflect.EnumKind,
		protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Uint32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Uint64Kind:
		return protowire.VarintType
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return protowire.Fixed32Type
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return protowire.Fixed64Type
	case protoreflect.GroupKind:
		return protowire.StartGroupType
	default:
		return protowire.BytesType
	}
}

func packable(kind protoreflect.Kind) bool {
	return WireType(kind) != protowire.BytesType && kind != protoreflect.GroupKind
}
