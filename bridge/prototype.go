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
	"errors"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// The functions below are only needed to build handlers by hand, field by
// field, with AddFieldHandler.

// GetFieldPrototype returns a prototype of the sub-message stored in field
// fd of m. The field must be a message, group or weak field; for any other
// field ErrNotSubmessage is returned.
//
// For repeated and map fields the prototype is a new element (for maps, a
// map entry).
func GetFieldPrototype(m proto.Message, fd protoreflect.FieldDescriptor) (proto.Message, error) {
	return fieldPrototype(m, fd)
}

// TryGetFieldPrototype is like GetFieldPrototype, but returns nil without
// an error when fd is neither a message field nor a weak field. A non-nil
// result for a field whose declared kind is not a message means that fd is
// a weak field.
func TryGetFieldPrototype(m proto.Message, fd protoreflect.FieldDescriptor) (proto.Message, error) {
	p, err := fieldPrototype(m, fd)
	if errors.Is(err, ErrNotSubmessage) {
		return nil, nil
	}
	return p, err
}
