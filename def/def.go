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

// Package def contains the definition object model that the bridge builds
// from protobuf descriptors: enums, messages, fields and oneofs.
//
// Every definition starts out mutable. Graphs of definitions may be cyclic
// (a message can reference itself through its fields), so no single
// definition can be declared complete on its own. Instead, a set of
// definitions is frozen together with Freeze, which validates the whole set
// before flipping any member. Frozen definitions never change again and are
// safe for concurrent reads.
package def

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	// ErrFrozen is returned by every mutator called on a frozen definition.
	ErrFrozen = errors.New("definition is frozen")
	// ErrInvalid is returned when a definition or a set of definitions fails
	// validation.
	ErrInvalid = errors.New("invalid definition")
)

// Def is implemented by the four definition kinds: *EnumDef, *MessageDef,
// *FieldDef and *OneofDef.
type Def interface {
	FullName() protoreflect.FullName
	IsFrozen() bool

	validate(batch map[Def]struct{}) error
	freeze()
}

type base struct {
	name   protoreflect.FullName
	frozen bool
}

// FullName returns the fully-qualified name of the definition.
func (b *base) FullName() protoreflect.FullName {
	return b.name
}

// IsFrozen reports whether the definition was frozen.
func (b *base) IsFrozen() bool {
	return b.frozen
}

func (b *base) checkMutable() error {
	if b.frozen {
		return fmt.Errorf("%w: %s", ErrFrozen, b.name)
	}
	return nil
}

func (b *base) freeze() {
	b.frozen = true
}

func invalidf(name protoreflect.FullName, format string, args ...interface{}) error {
	return fmt.Errorf("%w %s: %s", ErrInvalid, name, fmt.Sprintf(format, args...))
}

// Freeze validates defs as one set and, only when every member is valid,
// freezes all of them. References between members of the set are allowed
// while they are still mutable; references leaving the set must point at
// already frozen definitions. On error nothing is frozen.
//
// Members that are already frozen are accepted and left untouched.
func Freeze(defs ...Def) error {
	batch := make(map[Def]struct{}, len(defs))
	for _, d := range defs {
		if d == nil {
			return fmt.Errorf("%w: nil definition in freeze set", ErrInvalid)
		}
		batch[d] = struct{}{}
	}

	for _, d := range defs {
		if d.IsFrozen() {
			continue
		}
		if err := d.validate(batch); err != nil {
			return err
		}
	}

	for _, d := range defs {
		d.freeze()
	}
	return nil
}

// reachable reports whether d can be referenced from a member of batch: it
// is either frozen already or becomes frozen together with the batch.
func reachable(d Def, batch map[Def]struct{}) bool {
	if d.IsFrozen() {
		return true
	}
	_, ok := batch[d]
	return ok
}
