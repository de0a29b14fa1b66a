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

// EnumValue is a single named value of an enum.
type EnumValue struct {
	Name   protoreflect.Name
	Number protoreflect.EnumNumber
}

// EnumDef describes an enum type.
type EnumDef struct {
	base

	values   []EnumValue
	byName   map[protoreflect.Name]int
	byNumber map[protoreflect.EnumNumber]int
	closed   bool
}

var _ Def = &EnumDef{}

// NewEnumDef returns a new, mutable enum definition.
func NewEnumDef(name protoreflect.FullName) *EnumDef {
	return &EnumDef{
		base:     base{name: name},
		byName:   make(map[protoreflect.Name]int),
		byNumber: make(map[protoreflect.EnumNumber]int),
	}
}

// SetClosed marks the enum as closed: values outside of the declared set
// are not accepted when parsing.
func (e *EnumDef) SetClosed(closed bool) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	e.closed = closed
	return nil
}

// AddValue appends a value. Names must be unique, numbers may repeat
// (aliases); lookups by number return the first value declared.
func (e *EnumDef) AddValue(name protoreflect.Name, num protoreflect.EnumNumber) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	if _, dup := e.byName[name]; dup {
		return invalidf(e.name, "duplicate enum value name %q", name)
	}
	e.byName[name] = len(e.values)
	if _, dup := e.byNumber[num]; !dup {
		e.byNumber[num] = len(e.values)
	}
	e.values = append(e.values, EnumValue{Name: name, Number: num})
	return nil
}

// IsClosed reports whether unknown numbers are rejected.
func (e *EnumDef) IsClosed() bool {
	return e.closed
}

// Len returns the number of declared values.
func (e *EnumDef) Len() int {
	return len(e.values)
}

// Value returns the i-th declared value.
func (e *EnumDef) Value(i int) EnumValue {
	return e.values[i]
}

// FindValueByName looks a value up by its name.
func (e *EnumDef) FindValueByName(name protoreflect.Name) (EnumValue, bool) {
	i, ok := e.byName[name]
	if !ok {
		return EnumValue{}, false
	}
	return e.values[i], true
}

// FindValueByNumber looks a value up by its number.
func (e *EnumDef) FindValueByNumber(num protoreflect.EnumNumber) (EnumValue, bool) {
	i, ok := e.byNumber[num]
	if !ok {
		return EnumValue{}, false
	}
	return e.values[i], true
}

// Default returns the number of the first declared value.
func (e *EnumDef) Default() protoreflect.EnumNumber {
	if len(e.values) == 0 {
		return 0
	}
	return e.values[0].Number
}

func (e *EnumDef) validate(map[Def]struct{}) error {
	if len(e.values) == 0 {
		return invalidf(e.name, "enum has no values")
	}
	return nil
}
