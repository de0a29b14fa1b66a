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

// Package handlers contains the handler object model: sets of per-field
// callbacks, bound to one frozen message definition, that a parsing engine
// invokes to populate a message while it walks the wire format.
//
// Like definitions, handlers are mutable while they are being wired and
// are then frozen in batches, because handler sets for self-referential
// message types reference each other.
package handlers

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/liuxd6825/protobridge/def"
)

var (
	// ErrFrozen is returned by every mutator called on frozen handlers.
	ErrFrozen = errors.New("handlers are frozen")
	// ErrInvalid is returned when a handler does not fit its field, or when
	// a set of handlers fails validation at freeze time.
	ErrInvalid = errors.New("invalid handlers")
)

// ValueFunc receives one scalar, string, bytes or enum value of a field.
// The closure is the object being populated.
type ValueFunc func(closure any, v protoreflect.Value) error

// StartFunc is called when a sub-message starts. It returns the closure for
// the sub-message.
type StartFunc func(closure any) (any, error)

// EndFunc is called when a sub-message ends, with the parent closure and the
// closure that the matching StartFunc returned.
type EndFunc func(closure, sub any) error

// FieldHandlers are the callbacks registered for one field.
type FieldHandlers struct {
	Value           ValueFunc
	StartSubMessage StartFunc
	EndSubMessage   EndFunc
	Sub             *Handlers
}

// Handlers is the set of callbacks for one message type.
type Handlers struct {
	md     *def.MessageDef
	fields map[protoreflect.FieldNumber]*FieldHandlers
	frozen bool
}

// New returns empty, mutable handlers for md, which must be frozen.
func New(md *def.MessageDef) (*Handlers, error) {
	if md == nil || !md.IsFrozen() {
		return nil, fmt.Errorf("%w: handlers need a frozen message definition", ErrInvalid)
	}
	return &Handlers{
		md:     md,
		fields: make(map[protoreflect.FieldNumber]*FieldHandlers),
	}, nil
}

// MessageDef returns the message definition the handlers are bound to.
func (h *Handlers) MessageDef() *def.MessageDef {
	return h.md
}

// IsFrozen reports whether the handlers were frozen.
func (h *Handlers) IsFrozen() bool {
	return h.frozen
}

func (h *Handlers) entry(f *def.FieldDef) (*FieldHandlers, error) {
	if h.frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozen, h.md.FullName())
	}
	if f == nil || f.ContainingType() != h.md {
		return nil, fmt.Errorf("%w: field does not belong to %s", ErrInvalid, h.md.FullName())
	}
	fh, ok := h.fields[f.Number()]
	if !ok {
		fh = &FieldHandlers{}
		h.fields[f.Number()] = fh
	}
	return fh, nil
}

// SetValueHandler registers fn for every value of the non-message field f.
func (h *Handlers) SetValueHandler(f *def.FieldDef, fn ValueFunc) error {
	fh, err := h.entry(f)
	if err != nil {
		return err
	}
	if f.IsSubMessage() {
		return fmt.Errorf("%w: %s is a message field", ErrInvalid, f.FullName())
	}
	fh.Value = fn
	return nil
}

// SetStartSubMessageHandler registers fn for the start of every sub-message
// of the message or group field f.
func (h *Handlers) SetStartSubMessageHandler(f *def.FieldDef, fn StartFunc) error {
	fh, err := h.entry(f)
	if err != nil {
		return err
	}
	if !f.IsSubMessage() {
		return fmt.Errorf("%w: %s is not a message field", ErrInvalid, f.FullName())
	}
	fh.StartSubMessage = fn
	return nil
}

// SetEndSubMessageHandler registers fn for the end of every sub-message of
// the message or group field f.
func (h *Handlers) SetEndSubMessageHandler(f *def.FieldDef, fn EndFunc) error {
	fh, err := h.entry(f)
	if err != nil {
		return err
	}
	if !f.IsSubMessage() {
		return fmt.Errorf("%w: %s is not a message field", ErrInvalid, f.FullName())
	}
	fh.EndSubMessage = fn
	return nil
}

// SetSubHandlers registers the handlers used for sub-messages of f. They
// must be bound to f's message type.
func (h *Handlers) SetSubHandlers(f *def.FieldDef, sub *Handlers) error {
	fh, err := h.entry(f)
	if err != nil {
		return err
	}
	if sub == nil || sub.md != f.MessageSubDef() {
		return fmt.Errorf("%w: sub-handlers of %s must be bound to %s",
			ErrInvalid, f.FullName(), f.SubDefName())
	}
	fh.Sub = sub
	return nil
}

// Field returns the field with number num together with its handlers. It
// reports false when the message has no such field or when nothing was
// registered for it; the parser skips those fields.
func (h *Handlers) Field(num protoreflect.FieldNumber) (*def.FieldDef, FieldHandlers, bool) {
	fh, ok := h.fields[num]
	if !ok {
		return nil, FieldHandlers{}, false
	}
	return h.md.FindFieldByNumber(num), *fh, true
}

// Len returns the number of fields that have at least one handler.
func (h *Handlers) Len() int {
	return len(h.fields)
}

func (h *Handlers) validate(batch map[*Handlers]struct{}) error {
	for num, fh := range h.fields {
		f := h.md.FindFieldByNumber(num)
		if fh.StartSubMessage == nil && fh.Value == nil {
			return fmt.Errorf("%w: %s has neither a value nor a start handler", ErrInvalid, f.FullName())
		}
		if fh.StartSubMessage == nil {
			continue
		}
		if fh.Sub == nil {
			return fmt.Errorf("%w: %s has no sub-handlers", ErrInvalid, f.FullName())
		}
		if _, ok := batch[fh.Sub]; !ok && !fh.Sub.frozen {
			return fmt.Errorf("%w: sub-handlers of %s are neither frozen nor being frozen",
				ErrInvalid, f.FullName())
		}
	}
	return nil
}

// Freeze validates hs as one set and freezes all of them, or none on error.
// Sub-handlers referenced from the set must be frozen already or be part of
// it.
func Freeze(hs ...*Handlers) error {
	batch := make(map[*Handlers]struct{}, len(hs))
	for _, h := range hs {
		if h == nil {
			return fmt.Errorf("%w: nil handlers in freeze set", ErrInvalid)
		}
		batch[h] = struct{}{}
	}
	for _, h := range hs {
		if h.frozen {
			continue
		}
		if err := h.validate(batch); err != nil {
			return err
		}
	}
	for _, h := range hs {
		h.frozen = true
	}
	return nil
}
