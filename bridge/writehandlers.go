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
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/liuxd6825/protobridge/handlers"
)

// BuildAll returns frozen handlers that populate every field of messages
// of m's type, extensions from protoregistry.GlobalTypes included. For
// control over caching and reuse use a CodeCache instead.
func BuildAll(m proto.Message) (*handlers.Handlers, error) {
	return NewCodeCache(nil).GetWriteHandlers(m)
}

// AddFieldHandler registers in h the handlers that parse field fd into
// messages of m's type. To only populate some fields of a message, call it
// ONLY for those fields: the parser skips every field without handlers.
//
// fd may be a regular field or an extension, as long as its containing
// message is m's type. h must not be frozen yet and must be bound to the
// definition of m's type. Handlers of message fields still need their
// sub-handlers (h.SetSubHandlers) before h can be frozen.
func AddFieldHandler(m proto.Message, fd protoreflect.FieldDescriptor, h *handlers.Handlers) error {
	if h.IsFrozen() {
		return fmt.Errorf("%w: %s", handlers.ErrFrozen, h.MessageDef().FullName())
	}
	md := m.ProtoReflect().Descriptor()
	if fd.ContainingMessage().FullName() != md.FullName() {
		return fmt.Errorf("%w: %s is declared on %s, not %s",
			ErrFieldNotInMessage, fd.FullName(), fd.ContainingMessage().FullName(), md.FullName())
	}
	if h.MessageDef().FullName() != md.FullName() {
		return fmt.Errorf("%w: handlers are bound to %s, not %s",
			ErrFieldNotInMessage, h.MessageDef().FullName(), md.FullName())
	}
	f := h.MessageDef().FindFieldByNumber(fd.Number())
	if f == nil || f.Name() != fd.Name() {
		return fmt.Errorf("%w: %s has no definition in %s",
			ErrFieldNotInMessage, fd.FullName(), h.MessageDef().FullName())
	}
	return setWriteHandlers(m, fd, f, h)
}
