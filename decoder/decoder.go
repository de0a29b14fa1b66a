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

// Package decoder is a protobuf wire-format parser driven by frozen
// handlers. It walks the input, and for every field that has handlers it
// calls them with the decoded values; all other fields are skipped.
package decoder

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/handlers"
)

// DefaultRecursionLimit is the maximum message nesting depth used when
// UnmarshalOptions.RecursionLimit is zero.
const DefaultRecursionLimit = 100

var (
	// ErrUnsupported is returned when the options ask for a per-input
	// extension resolver.
	ErrUnsupported = errors.New("per-input extension resolution is not supported")
	// ErrNotFrozen is returned for handlers that were not frozen yet.
	ErrNotFrozen = errors.New("handlers must be frozen before parsing")
	// ErrRecursionLimit is returned when sub-messages nest too deeply.
	ErrRecursionLimit = errors.New("exceeded maximum recursion depth")
	// ErrInvalidUTF8 is returned for proto3 strings that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("string field contains invalid UTF-8")
)

// UnmarshalOptions configures the parser.
type UnmarshalOptions struct {
	// Resolver would pick the extension pool per input. Handlers are built
	// ahead of time for a fixed pool, so setting it is an error.
	Resolver protoregistry.ExtensionTypeResolver

	// RecursionLimit limits message nesting, DefaultRecursionLimit if 0.
	// The top-level message counts as one level, as in proto.UnmarshalOptions.
	RecursionLimit int
}

// Unmarshal parses b with the default options.
func Unmarshal(b []byte, h *handlers.Handlers, closure any) error {
	return UnmarshalOptions{}.Unmarshal(b, h, closure)
}

// Unmarshal parses b, invoking h with closure as the top-level object.
func (o UnmarshalOptions) Unmarshal(b []byte, h *handlers.Handlers, closure any) error {
	if o.Resolver != nil {
		return errext.WithExitCodeIfNone(errext.WithHint(ErrUnsupported,
			"build the handlers from a DefBuilder configured with the extension types instead"),
			exitcodes.UnsupportedFeature)
	}
	if h == nil || !h.IsFrozen() {
		return ErrNotFrozen
	}
	limit := o.RecursionLimit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}
	d := decoder{depthLeft: limit}
	if err := d.message(b, h, closure); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidInput)
	}
	return nil
}

type decoder struct {
	depthLeft int
	// set when a closed enum value of the map entry being parsed was dropped
	droppedEntry bool
}

func (d *decoder) message(b []byte, h *handlers.Handlers, closure any) error {
	d.depthLeft--
	if d.depthLeft < 0 {
		return fmt.Errorf("%w in %s", ErrRecursionLimit, h.MessageDef().FullName())
	}
	defer func() { d.depthLeft++ }()

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(h, 0, n)
		}
		b = b[n:]
		if typ == protowire.EndGroupType {
			return fmt.Errorf("%s: unexpected end group marker for field %d", h.MessageDef().FullName(), num)
		}

		consumed := -1
		if f, fh, ok := h.Field(num); ok {
			var err error
			consumed, err = d.field(b, typ, f, fh, closure)
			if err != nil {
				return err
			}
		}
		if consumed < 0 {
			consumed = protowire.ConsumeFieldValue(num, typ, b)
			if consumed < 0 {
				return parseError(h, num, consumed)
			}
		}
		b = b[consumed:]
	}
	return nil
}

// field decodes one occurrence of f. It returns -1 when the occurrence is
// not handled, so the caller skips it.
func (d *decoder) field(
	b []byte, typ protowire.Type, f *def.FieldDef, fh handlers.FieldHandlers, closure any,
) (int, error) {
	if f.IsSubMessage() {
		return d.subMessage(b, typ, f, fh, closure)
	}
	if fh.Value == nil {
		return -1, nil
	}

	if typ == protowire.BytesType && f.IsRepeated() && def.WireType(f.Kind()) != protowire.BytesType {
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseError(f.ContainingType(), f.Number(), n)
		}
		for len(v) > 0 {
			m, err := d.scalar(v, f, fh, closure)
			if err != nil {
				return 0, err
			}
			v = v[m:]
		}
		return n, nil
	}
	if typ != def.WireType(f.Kind()) {
		return -1, nil
	}
	return d.scalar(b, f, fh, closure)
}

func (d *decoder) subMessage(
	b []byte, typ protowire.Type, f *def.FieldDef, fh handlers.FieldHandlers, closure any,
) (int, error) {
	if fh.StartSubMessage == nil || typ != def.WireType(f.Kind()) {
		return -1, nil
	}

	var (
		v []byte
		n int
	)
	if typ == protowire.StartGroupType {
		v, n = protowire.ConsumeGroup(f.Number(), b)
	} else {
		v, n = protowire.ConsumeBytes(b)
	}
	if n < 0 {
		return 0, parseError(f.ContainingType(), f.Number(), n)
	}

	sub, err := fh.StartSubMessage(closure)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.FullName(), err)
	}
	d.droppedEntry = false
	if err = d.message(v, fh.Sub, sub); err != nil {
		return 0, err
	}
	if fh.Sub.MessageDef().IsMapEntry() && d.droppedEntry {
		// the entry is left out of the map as a whole
		d.droppedEntry = false
		return n, nil
	}
	if fh.EndSubMessage != nil {
		if err = fh.EndSubMessage(closure, sub); err != nil {
			return 0, fmt.Errorf("%s: %w", f.FullName(), err)
		}
	}
	return n, nil
}

// scalar decodes exactly one value of f from b and returns the bytes used.
//
//nolint:cyclop
func (d *decoder) scalar(b []byte, f *def.FieldDef, fh handlers.FieldHandlers, closure any) (int, error) {
	var (
		v protoreflect.Value
		n int
	)
	switch f.Kind() {
	case protoreflect.BoolKind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfBool(protowire.DecodeBool(x))
	case protoreflect.EnumKind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		num := protoreflect.EnumNumber(int32(x))
		if n >= 0 && !enumAccepts(f, num) {
			if f.ContainingType().IsMapEntry() {
				d.droppedEntry = true
			}
			return n, nil
		}
		v = protoreflect.ValueOfEnum(num)
	case protoreflect.Int32Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfInt32(int32(x))
	case protoreflect.Sint32Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfInt32(int32(protowire.DecodeZigZag(x & math.MaxUint32)))
	case protoreflect.Uint32Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfUint32(uint32(x))
	case protoreflect.Int64Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfInt64(int64(x))
	case protoreflect.Sint64Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfInt64(protowire.DecodeZigZag(x))
	case protoreflect.Uint64Kind:
		var x uint64
		x, n = protowire.ConsumeVarint(b)
		v = protoreflect.ValueOfUint64(x)
	case protoreflect.Fixed32Kind:
		var x uint32
		x, n = protowire.ConsumeFixed32(b)
		v = protoreflect.ValueOfUint32(x)
	case protoreflect.Sfixed32Kind:
		var x uint32
		x, n = protowire.ConsumeFixed32(b)
		v = protoreflect.ValueOfInt32(int32(x))
	case protoreflect.FloatKind:
		var x uint32
		x, n = protowire.ConsumeFixed32(b)
		v = protoreflect.ValueOfFloat32(math.Float32frombits(x))
	case protoreflect.Fixed64Kind:
		var x uint64
		x, n = protowire.ConsumeFixed64(b)
		v = protoreflect.ValueOfUint64(x)
	case protoreflect.Sfixed64Kind:
		var x uint64
		x, n = protowire.ConsumeFixed64(b)
		v = protoreflect.ValueOfInt64(int64(x))
	case protoreflect.DoubleKind:
		var x uint64
		x, n = protowire.ConsumeFixed64(b)
		v = protoreflect.ValueOfFloat64(math.Float64frombits(x))
	case protoreflect.StringKind:
		var x []byte
		x, n = protowire.ConsumeBytes(b)
		if n >= 0 && f.ContainingType().Syntax() == protoreflect.Proto3 && !utf8.Valid(x) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidUTF8, f.FullName())
		}
		v = protoreflect.ValueOfString(string(x))
	case protoreflect.BytesKind:
		var x []byte
		x, n = protowire.ConsumeBytes(b)
		v = protoreflect.ValueOfBytes(append([]byte(nil), x...))
	default:
		return 0, fmt.Errorf("%s: unsupported kind %v", f.FullName(), f.Kind())
	}
	if n < 0 {
		return 0, parseError(f.ContainingType(), f.Number(), n)
	}
	if err := fh.Value(closure, v); err != nil {
		return 0, fmt.Errorf("%s: %w", f.FullName(), err)
	}
	return n, nil
}

// enumAccepts reports whether num may be stored in the enum field f. Closed
// enums drop numbers they do not declare: the value is discarded rather
// than kept as an unknown field, and a map entry holding such a value is
// not stored at all.
func enumAccepts(f *def.FieldDef, num protoreflect.EnumNumber) bool {
	ed := f.EnumSubDef()
	if ed == nil || !ed.IsClosed() {
		return true
	}
	_, ok := ed.FindValueByNumber(num)
	return ok
}

type fullNamer interface {
	FullName() protoreflect.FullName
}

func parseError(where any, num protoreflect.FieldNumber, n int) error {
	var name protoreflect.FullName
	switch w := where.(type) {
	case *handlers.Handlers:
		name = w.MessageDef().FullName()
	case fullNamer:
		name = w.FullName()
	}
	if num == 0 {
		return fmt.Errorf("%s: %w", name, protowire.ParseError(n))
	}
	return fmt.Errorf("%s field %d: %w", name, num, protowire.ParseError(n))
}
