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

//go:build !protobridge_noreflect

package bridge

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/handlers"
)

func fieldPrototype(m proto.Message, fd protoreflect.FieldDescriptor) (proto.Message, error) {
	mt, err := weakFieldType(m, fd)
	if err != nil {
		return nil, err
	}
	if mt != nil {
		return mt.Zero().Interface(), nil
	}
	if fd.Message() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSubmessage, fd.FullName())
	}

	fd = extensionTypeDescriptor(fd)
	rm := m.ProtoReflect()
	switch {
	case fd.IsMap():
		// Map entries have no Go type of their own.
		return dynamicpb.NewMessage(fd.Message()), nil
	case fd.IsList():
		return rm.NewField(fd).List().NewElement().Message().Interface(), nil
	case rm.Has(fd):
		return rm.Get(fd).Message().Interface(), nil
	default:
		return rm.NewField(fd).Message().Interface(), nil
	}
}

// setWriteHandlers registers the callbacks that store values of fd, whose
// definition is f, into messages of m's type.
func setWriteHandlers(m proto.Message, fd protoreflect.FieldDescriptor, f *def.FieldDef, h *handlers.Handlers) error {
	if h.MessageDef().IsMapEntry() {
		return setMapEntryHandlers(fd, f, h)
	}

	fd = extensionTypeDescriptor(fd)
	switch {
	case f.IsWeak():
		return h.SetStartSubMessageHandler(f, func(closure any) (any, error) {
			wm, ok := closure.(WeakMessage)
			if !ok {
				return nil, fmt.Errorf("%T does not carry weak fields", closure)
			}
			sub := wm.MutableWeakField(fd)
			if sub == nil {
				return nil, fmt.Errorf("%T has no weak value for %s", closure, fd.FullName())
			}
			return sub, nil
		})
	case fd.IsMap():
		return firstErr(
			h.SetStartSubMessageHandler(f, startMapEntry(fd)),
			h.SetEndSubMessageHandler(f, endMapEntry),
		)
	case f.IsSubMessage() && fd.IsList():
		return h.SetStartSubMessageHandler(f, func(closure any) (any, error) {
			rm, err := reflectOf(closure)
			if err != nil {
				return nil, err
			}
			l := rm.Mutable(fd).List()
			v := l.NewElement()
			l.Append(v)
			return v.Message().Interface(), nil
		})
	case f.IsSubMessage():
		return h.SetStartSubMessageHandler(f, func(closure any) (any, error) {
			rm, err := reflectOf(closure)
			if err != nil {
				return nil, err
			}
			return rm.Mutable(fd).Message().Interface(), nil
		})
	case fd.IsList():
		return h.SetValueHandler(f, func(closure any, v protoreflect.Value) error {
			rm, err := reflectOf(closure)
			if err != nil {
				return err
			}
			rm.Mutable(fd).List().Append(v)
			return nil
		})
	default:
		return h.SetValueHandler(f, func(closure any, v protoreflect.Value) error {
			rm, err := reflectOf(closure)
			if err != nil {
				return err
			}
			rm.Set(fd, v)
			return nil
		})
	}
}

// mapEntry is the closure used while a map entry is being parsed.
type mapEntry struct {
	field  protoreflect.FieldDescriptor
	parent protoreflect.Map

	key    protoreflect.MapKey
	hasKey bool
	val    protoreflect.Value
	hasVal bool
}

func startMapEntry(fd protoreflect.FieldDescriptor) handlers.StartFunc {
	return func(closure any) (any, error) {
		rm, err := reflectOf(closure)
		if err != nil {
			return nil, err
		}
		return &mapEntry{field: fd, parent: rm.Mutable(fd).Map()}, nil
	}
}

func endMapEntry(_, sub any) error {
	e, ok := sub.(*mapEntry)
	if !ok {
		return fmt.Errorf("unexpected map entry closure %T", sub)
	}
	if !e.hasKey {
		e.key = e.field.MapKey().Default().MapKey()
	}
	if !e.hasVal {
		if e.field.MapValue().Message() != nil {
			e.val = e.parent.NewValue()
		} else {
			e.val = e.field.MapValue().Default()
		}
	}
	e.parent.Set(e.key, e.val)
	return nil
}

func setMapEntryHandlers(fd protoreflect.FieldDescriptor, f *def.FieldDef, h *handlers.Handlers) error {
	switch {
	case fd.Number() == 1:
		return h.SetValueHandler(f, func(closure any, v protoreflect.Value) error {
			e, err := entryOf(closure)
			if err != nil {
				return err
			}
			e.key, e.hasKey = v.MapKey(), true
			return nil
		})
	case f.IsSubMessage():
		return h.SetStartSubMessageHandler(f, func(closure any) (any, error) {
			e, err := entryOf(closure)
			if err != nil {
				return nil, err
			}
			if !e.hasVal {
				e.val, e.hasVal = e.parent.NewValue(), true
			}
			return e.val.Message().Interface(), nil
		})
	default:
		return h.SetValueHandler(f, func(closure any, v protoreflect.Value) error {
			e, err := entryOf(closure)
			if err != nil {
				return err
			}
			e.val, e.hasVal = v, true
			return nil
		})
	}
}

func entryOf(closure any) (*mapEntry, error) {
	e, ok := closure.(*mapEntry)
	if !ok {
		return nil, fmt.Errorf("map entry handlers called with %T", closure)
	}
	return e, nil
}

func reflectOf(closure any) (protoreflect.Message, error) {
	m, ok := closure.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("message handlers called with %T", closure)
	}
	return m.ProtoReflect(), nil
}

// extensionTypeDescriptor returns a descriptor that messages accept for
// fd. Extensions must be set through their type descriptor; bare extension
// descriptors get a dynamic type.
func extensionTypeDescriptor(fd protoreflect.FieldDescriptor) protoreflect.FieldDescriptor {
	if !fd.IsExtension() {
		return fd
	}
	if xtd, ok := fd.(protoreflect.ExtensionTypeDescriptor); ok {
		return xtd
	}
	return dynamicpb.NewExtensionType(fd).TypeDescriptor()
}
