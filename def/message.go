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
	"google.golang.org/protobuf/reflect/protoreflect"
)

// MessageDef describes a message type: its fields (extensions included)
// and its oneofs.
type MessageDef struct {
	base

	fields   []*FieldDef
	byNumber map[protoreflect.FieldNumber]*FieldDef
	byName   map[protoreflect.Name]*FieldDef

	oneofs      []*OneofDef
	oneofByName map[protoreflect.Name]*OneofDef

	mapEntry bool
	syntax   protoreflect.Syntax
}

var _ Def = &MessageDef{}

// NewMessageDef returns a new, mutable message definition.
func NewMessageDef(name protoreflect.FullName) *MessageDef {
	return &MessageDef{
		base:        base{name: name},
		byNumber:    make(map[protoreflect.FieldNumber]*FieldDef),
		byName:      make(map[protoreflect.Name]*FieldDef),
		oneofByName: make(map[protoreflect.Name]*OneofDef),
	}
}

// SetMapEntry marks the message as the synthetic entry type of a map field.
func (m *MessageDef) SetMapEntry(mapEntry bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.mapEntry = mapEntry
	return nil
}

// SetSyntax records the syntax of the file that declares the message.
func (m *MessageDef) SetSyntax(s protoreflect.Syntax) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.syntax = s
	return nil
}

// AddField takes ownership of f. Field numbers must be unique within the
// message, and so must the names of regular fields.
func (m *MessageDef) AddField(f *FieldDef) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if f.containing != nil {
		return invalidf(f.name, "field is already owned by %s", f.containing.name)
	}
	if f.IsFrozen() {
		return invalidf(f.name, "cannot add a frozen field")
	}
	if other, dup := m.byNumber[f.number]; dup {
		return invalidf(m.name, "fields %s and %s share number %d", other.Name(), f.Name(), f.number)
	}
	if _, dup := m.byName[f.Name()]; dup && !f.extension {
		return invalidf(m.name, "duplicate field name %q", f.Name())
	}

	f.containing = m
	m.fields = append(m.fields, f)
	m.byNumber[f.number] = f
	// extensions live in their own scope and are looked up by number
	if !f.extension {
		m.byName[f.Name()] = f
	}
	return nil
}

// AddOneof takes ownership of o.
func (m *MessageDef) AddOneof(o *OneofDef) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if o.containing != nil {
		return invalidf(o.name, "oneof is already owned by %s", o.containing.name)
	}
	if _, dup := m.oneofByName[o.Name()]; dup {
		return invalidf(m.name, "duplicate oneof name %q", o.Name())
	}
	for _, f := range o.fields {
		if f.containing != m {
			return invalidf(o.name, "oneof member %s does not belong to %s", f.Name(), m.name)
		}
	}

	o.containing = m
	m.oneofs = append(m.oneofs, o)
	m.oneofByName[o.Name()] = o
	return nil
}

// FieldCount returns the number of fields, extensions included.
func (m *MessageDef) FieldCount() int { return len(m.fields) }

// Field returns the i-th field in declaration order.
func (m *MessageDef) Field(i int) *FieldDef { return m.fields[i] }

// FindFieldByNumber looks a field up by number.
func (m *MessageDef) FindFieldByNumber(num protoreflect.FieldNumber) *FieldDef {
	return m.byNumber[num]
}

// FindFieldByName looks a regular field up by its short name.
func (m *MessageDef) FindFieldByName(name protoreflect.Name) *FieldDef {
	return m.byName[name]
}

// OneofCount returns the number of oneofs.
func (m *MessageDef) OneofCount() int { return len(m.oneofs) }

// Oneof returns the i-th oneof.
func (m *MessageDef) Oneof(i int) *OneofDef { return m.oneofs[i] }

// FindOneofByName looks a oneof up by name.
func (m *MessageDef) FindOneofByName(name protoreflect.Name) *OneofDef {
	return m.oneofByName[name]
}

// IsMapEntry reports whether this is a map entry type.
func (m *MessageDef) IsMapEntry() bool { return m.mapEntry }

// Syntax returns the syntax of the declaring file.
func (m *MessageDef) Syntax() protoreflect.Syntax { return m.syntax }

func (m *MessageDef) validate(batch map[Def]struct{}) error {
	for _, f := range m.fields {
		if err := f.validate(batch); err != nil {
			return err
		}
		if f.IsExtension() && f.extendee != m.name {
			return invalidf(f.name, "extension of %s added to %s", f.extendee, m.name)
		}
	}
	for _, o := range m.oneofs {
		if err := o.validate(batch); err != nil {
			return err
		}
	}
	if m.mapEntry {
		key, val := m.byNumber[1], m.byNumber[2]
		if len(m.fields) != 2 || key == nil || val == nil {
			return invalidf(m.name, "map entry must have exactly a key (1) and a value (2) field")
		}
		if key.IsRepeated() || val.IsRepeated() {
			return invalidf(m.name, "map entry fields cannot be repeated")
		}
	}
	return nil
}

func (m *MessageDef) freeze() {
	m.base.freeze()
	for _, f := range m.fields {
		f.freeze()
	}
	for _, o := range m.oneofs {
		o.freeze()
	}
}
