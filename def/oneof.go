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

// OneofDef groups fields of which at most one is set at a time.
type OneofDef struct {
	base

	fields     []*FieldDef
	containing *MessageDef
}

var _ Def = &OneofDef{}

// NewOneofDef returns a new, mutable oneof definition.
func NewOneofDef(name protoreflect.FullName) *OneofDef {
	return &OneofDef{base: base{name: name}}
}

// Name returns the short name of the oneof.
func (o *OneofDef) Name() protoreflect.Name {
	return o.name.Name()
}

// AddField adds f as a member. The field must already belong to the same
// message as the oneof (or both must still be unowned).
func (o *OneofDef) AddField(f *FieldDef) error {
	if err := o.checkMutable(); err != nil {
		return err
	}
	if f.oneof != nil {
		return invalidf(f.name, "field already belongs to oneof %s", f.oneof.name)
	}
	if o.containing != nil && f.containing != o.containing {
		return invalidf(f.name, "field does not belong to %s", o.containing.name)
	}
	if f.IsRepeated() {
		return invalidf(f.name, "repeated fields cannot be oneof members")
	}
	f.oneof = o
	o.fields = append(o.fields, f)
	return nil
}

// FieldCount returns the number of members.
func (o *OneofDef) FieldCount() int { return len(o.fields) }

// Field returns the i-th member.
func (o *OneofDef) Field(i int) *FieldDef { return o.fields[i] }

// ContainingType returns the owning message.
func (o *OneofDef) ContainingType() *MessageDef { return o.containing }

func (o *OneofDef) validate(map[Def]struct{}) error {
	if len(o.fields) == 0 {
		return invalidf(o.name, "oneof has no fields")
	}
	for _, f := range o.fields {
		if f.containing != o.containing {
			return invalidf(o.name, "member %s belongs to another message", f.Name())
		}
	}
	return nil
}
