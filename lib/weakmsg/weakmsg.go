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

// Package weakmsg provides a dynamic message whose bytes fields can be
// declared weak: each such field holds a sub-message of a type that the
// schema does not name, known only to the live instance.
//
// It implements bridge.WeakMessage, so definitions and handlers built from
// a Message see the weak fields as fields of their concrete message type.
package weakmsg

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrNotWeakable is returned by Declare for fields that cannot hold a weak
// message.
var ErrNotWeakable = errors.New("field cannot be declared weak")

type weakField struct {
	typ   protoreflect.MessageType
	value proto.Message
}

// Message is a dynamic message with weak fields.
//
// Weak values live next to the message, not in it: call Sync to store them
// into their bytes fields before marshaling the message.
type Message struct {
	*dynamicpb.Message

	weak map[protoreflect.FieldNumber]*weakField
}

// New returns an empty message of type md, with no weak fields yet.
func New(md protoreflect.MessageDescriptor) *Message {
	return &Message{
		Message: dynamicpb.NewMessage(md),
		weak:    make(map[protoreflect.FieldNumber]*weakField),
	}
}

// Declare makes the field name hold messages of type mt. The field must be
// a singular bytes field outside any oneof.
func (m *Message) Declare(name protoreflect.Name, mt protoreflect.MessageType) error {
	md := m.Descriptor()
	fd := md.Fields().ByName(name)
	switch {
	case fd == nil:
		return fmt.Errorf("%w: %s has no field %q", ErrNotWeakable, md.FullName(), name)
	case mt == nil:
		return fmt.Errorf("%w: no message type given for %s", ErrNotWeakable, fd.FullName())
	case fd.Kind() != protoreflect.BytesKind, fd.IsList(), fd.ContainingOneof() != nil:
		return fmt.Errorf("%w: %s must be a singular bytes field outside a oneof", ErrNotWeakable, fd.FullName())
	}
	m.weak[fd.Number()] = &weakField{typ: mt}
	return nil
}

func (m *Message) lookup(fd protoreflect.FieldDescriptor) *weakField {
	if fd == nil || fd.ContainingMessage().FullName() != m.Descriptor().FullName() {
		return nil
	}
	return m.weak[fd.Number()]
}

// WeakFieldType returns the type declared for fd, or nil when fd is not
// weak.
func (m *Message) WeakFieldType(fd protoreflect.FieldDescriptor) protoreflect.MessageType {
	if w := m.lookup(fd); w != nil {
		return w.typ
	}
	return nil
}

// MutableWeakField returns the value of the weak field fd, allocating an
// empty one first. It returns nil when fd is not weak.
func (m *Message) MutableWeakField(fd protoreflect.FieldDescriptor) proto.Message {
	w := m.lookup(fd)
	if w == nil {
		return nil
	}
	if w.value == nil {
		w.value = w.typ.New().Interface()
	}
	return w.value
}

// WeakField returns the value of the weak field name, if it has one.
func (m *Message) WeakField(name protoreflect.Name) (proto.Message, bool) {
	w := m.lookup(m.Descriptor().Fields().ByName(name))
	if w == nil || w.value == nil {
		return nil, false
	}
	return w.value, true
}

// Sync marshals every weak value into its bytes field.
func (m *Message) Sync() error {
	fields := m.Descriptor().Fields()
	for num, w := range m.weak {
		if w.value == nil {
			continue
		}
		b, err := proto.Marshal(w.value)
		if err != nil {
			return fmt.Errorf("marshaling weak field %d: %w", num, err)
		}
		m.Set(fields.ByNumber(num), protoreflect.ValueOfBytes(b))
	}
	return nil
}
