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

package bridge

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// WeakMessage is implemented by live messages that carry weak fields.
//
// A weak field is declared as opaque bytes (or, in legacy descriptors, as a
// message whose type may be unresolvable); its real message type is only
// known to the live instance.
type WeakMessage interface {
	proto.Message

	// WeakFieldType returns the concrete message type held by the weak
	// field fd, or nil when fd is not a weak field.
	WeakFieldType(fd protoreflect.FieldDescriptor) protoreflect.MessageType

	// MutableWeakField returns the sub-message stored in the weak field fd,
	// allocating it first if needed. It returns nil when fd is not weak.
	MutableWeakField(fd protoreflect.FieldDescriptor) proto.Message
}

// weakFieldType resolves the concrete sub-message type of fd as seen through
// the live instance m, which may be nil. It returns nil for fields that are
// not weak.
func weakFieldType(m proto.Message, fd protoreflect.FieldDescriptor) (protoreflect.MessageType, error) {
	if m == nil {
		return nil, nil
	}
	var mt protoreflect.MessageType
	if wm, ok := m.(WeakMessage); ok {
		mt = wm.WeakFieldType(fd)
	}
	if mt == nil {
		if fd.IsWeak() && fd.Message() != nil && fd.Message().IsPlaceholder() {
			return nil, schemaErrorf(fd.FullName(),
				"weak field of unresolved type %s and the message does not provide it", fd.Message().FullName())
		}
		return nil, nil
	}

	if mt.Descriptor() == nil {
		return nil, schemaErrorf(fd.FullName(), "weak field type has no descriptor")
	}
	if fd.IsExtension() || fd.Cardinality() == protoreflect.Repeated || fd.ContainingOneof() != nil {
		return nil, schemaErrorf(fd.FullName(), "only singular, non-oneof fields can be weak")
	}
	switch fd.Kind() {
	case protoreflect.BytesKind, protoreflect.MessageKind:
	default:
		return nil, schemaErrorf(fd.FullName(), "%v field cannot hold weak message %s", fd.Kind(), mt.Descriptor().FullName())
	}
	return mt, nil
}
