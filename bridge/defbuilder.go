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
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/liuxd6825/protobridge/def"
)

// DefBuilder builds definitions from protobuf descriptors and caches them
// for reuse, keyed by descriptor identity. CodeCache uses one internally;
// there is no need to use a DefBuilder directly unless only definitions
// (and no handlers) are needed.
//
// Every definition returned by a DefBuilder is frozen. The builder keeps a
// reference to everything it built for its whole lifetime.
//
// A DefBuilder is NOT safe for concurrent use.
type DefBuilder struct {
	logger     logrus.FieldLogger
	extensions *protoregistry.Types

	cache    map[protoreflect.Descriptor]def.Def
	toFreeze []pendingDef
}

type pendingDef struct {
	key protoreflect.Descriptor
	def def.Def
}

// DefBuilderOption configures a DefBuilder.
type DefBuilderOption func(*DefBuilder)

// WithExtensionTypes selects the pool that extensions of a message are
// looked up in. It defaults to protoregistry.GlobalTypes.
func WithExtensionTypes(types *protoregistry.Types) DefBuilderOption {
	return func(b *DefBuilder) {
		b.extensions = types
	}
}

// NewDefBuilder returns an empty builder. A nil logger discards all output.
func NewDefBuilder(logger logrus.FieldLogger, opts ...DefBuilderOption) *DefBuilder {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	b := &DefBuilder{
		logger:     logger.WithField("component", "defbuilder"),
		extensions: protoregistry.GlobalTypes,
		cache:      make(map[protoreflect.Descriptor]def.Def),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewMessageDef converts a single descriptor without keeping a builder
// around.
func NewMessageDef(md protoreflect.MessageDescriptor) (*def.MessageDef, error) {
	return NewDefBuilder(nil).GetMessageDef(md)
}

// GetEnumDef returns the frozen definition of ed, building it on first use.
func (b *DefBuilder) GetEnumDef(ed protoreflect.EnumDescriptor) (*def.EnumDef, error) {
	e, err := b.getMaybeUnfrozenEnumDef(ed)
	if err = b.freeze(err); err != nil {
		return nil, err
	}
	return e, nil
}

// GetMessageDef returns the frozen definition of md, building it and
// everything it references on first use.
func (b *DefBuilder) GetMessageDef(md protoreflect.MessageDescriptor) (*def.MessageDef, error) {
	m, err := b.getMaybeUnfrozenMessageDef(md, nil)
	if err = b.freeze(err); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessageDefExpandWeak is like GetMessageDef for m's type, but weak
// fields are expanded: their concrete message type is taken from m, and
// from the sub-messages of m for nested messages.
//
// Definitions are cached per descriptor: when the type of m was already
// built by an earlier request, that definition is returned as is.
func (b *DefBuilder) GetMessageDefExpandWeak(m proto.Message) (*def.MessageDef, error) {
	md, err := b.getMaybeUnfrozenMessageDef(m.ProtoReflect().Descriptor(), m)
	if err = b.freeze(err); err != nil {
		return nil, err
	}
	return md, nil
}

// Len returns the number of cached enum and message definitions.
func (b *DefBuilder) Len() int {
	return len(b.cache)
}

// freeze finishes a top-level request. Everything built by the request is
// frozen together; when the request failed, or the set does not validate,
// it is all dropped from the cache instead.
func (b *DefBuilder) freeze(err error) error {
	pending := b.toFreeze
	b.toFreeze = nil
	if len(pending) == 0 && err == nil {
		return nil
	}

	if err == nil {
		defs := make([]def.Def, len(pending))
		for i, p := range pending {
			defs[i] = p.def
		}
		err = def.Freeze(defs...)
	}
	if err != nil {
		for _, p := range pending {
			delete(b.cache, p.key)
		}
		b.logger.WithError(err).Debugf("Dropped %d definitions of a failed build", len(pending))
		return err
	}

	b.logger.Debugf("Froze %d definitions", len(pending))
	return nil
}

func (b *DefBuilder) getMaybeUnfrozenEnumDef(ed protoreflect.EnumDescriptor) (*def.EnumDef, error) {
	if e, ok := findInCache[*def.EnumDef](b, ed); ok {
		return e, nil
	}

	e := def.NewEnumDef(ed.FullName())
	if err := e.SetClosed(ed.Syntax() != protoreflect.Proto3); err != nil {
		return nil, err
	}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		if err := e.AddValue(v.Name(), v.Number()); err != nil {
			return nil, err
		}
	}
	b.addToCache(ed, e)
	return e, nil
}

// getMaybeUnfrozenMessageDef is like GetMessageDef, except that the result
// may not be frozen yet: cyclic graphs are built unfrozen and then frozen
// all together. When m is not nil, weak fields are expanded.
func (b *DefBuilder) getMaybeUnfrozenMessageDef(
	md protoreflect.MessageDescriptor, m proto.Message,
) (*def.MessageDef, error) {
	if d, ok := findInCache[*def.MessageDef](b, md); ok {
		return d, nil
	}

	d := def.NewMessageDef(md.FullName())
	if err := d.SetMapEntry(md.IsMapEntry()); err != nil {
		return nil, err
	}
	if err := d.SetSyntax(md.Syntax()); err != nil {
		return nil, err
	}
	// Cached before the fields are built, so that fields referring back to
	// this message find it instead of recursing forever.
	b.addToCache(md, d)

	for _, fd := range b.fieldDescriptors(md) {
		f, err := b.newFieldDef(fd, m)
		if err != nil {
			return nil, err
		}
		if err = d.AddField(f); err != nil {
			return nil, err
		}
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		o, err := newOneofDef(od, d)
		if err != nil {
			return nil, err
		}
		if err = d.AddOneof(o); err != nil {
			return nil, err
		}
	}

	b.logger.WithField("message", md.FullName()).Debugf("Built message definition with %d fields", d.FieldCount())
	return d, nil
}

// newFieldDef returns a new, unfrozen field definition for fd. It is never
// cached: the containing message definition becomes its only owner.
//
// When m is not nil, a weak fd is expanded to the message type m reports
// for it, and sub-message prototypes are taken from m.
func (b *DefBuilder) newFieldDef(fd protoreflect.FieldDescriptor, m proto.Message) (*def.FieldDef, error) {
	f := def.NewFieldDef(fd.FullName())
	err := firstErr(
		f.SetNumber(fd.Number()),
		f.SetKind(fd.Kind()),
		f.SetCardinality(fd.Cardinality()),
		f.SetJSONName(fd.JSONName()),
		f.SetPacked(fd.IsPacked()),
	)
	if err != nil {
		return nil, err
	}
	if fd.IsExtension() {
		if err = f.SetExtension(fd.ContainingMessage().FullName()); err != nil {
			return nil, err
		}
	}
	if fd.HasDefault() {
		if err = f.SetDefault(fd.Default()); err != nil {
			return nil, err
		}
	}

	weakType, err := weakFieldType(m, fd)
	if err != nil {
		return nil, err
	}

	switch {
	case weakType != nil:
		if err = firstErr(f.SetKind(protoreflect.MessageKind), f.SetWeak(true)); err != nil {
			return nil, err
		}
		sub, err := b.getMaybeUnfrozenMessageDef(weakType.Descriptor(), weakType.Zero().Interface())
		if err != nil {
			return nil, err
		}
		return f, f.SetMessageSubDef(sub)
	case fd.Message() != nil:
		var subm proto.Message
		if m != nil {
			if subm, err = fieldPrototype(m, fd); err != nil {
				return nil, err
			}
		}
		sub, err := b.getMaybeUnfrozenMessageDef(fd.Message(), subm)
		if err != nil {
			return nil, err
		}
		return f, f.SetMessageSubDef(sub)
	case fd.Enum() != nil:
		sub, err := b.getMaybeUnfrozenEnumDef(fd.Enum())
		if err != nil {
			return nil, err
		}
		return f, f.SetEnumSubDef(sub)
	default:
		return f, nil
	}
}

// newOneofDef returns a new oneof definition for od whose members are the
// already built fields of d.
func newOneofDef(od protoreflect.OneofDescriptor, d *def.MessageDef) (*def.OneofDef, error) {
	o := def.NewOneofDef(od.FullName())
	fields := od.Fields()
	for i := 0; i < fields.Len(); i++ {
		f := d.FindFieldByNumber(fields.Get(i).Number())
		if f == nil {
			return nil, schemaErrorf(od.FullName(), "oneof member %s is missing", fields.Get(i).Name())
		}
		if err := o.AddField(f); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// fieldDescriptors returns the declared fields of md followed by the
// extensions of md known to the builder's pool, ordered by number.
func (b *DefBuilder) fieldDescriptors(md protoreflect.MessageDescriptor) []protoreflect.FieldDescriptor {
	fields := md.Fields()
	fds := make([]protoreflect.FieldDescriptor, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fds = append(fds, fields.Get(i))
	}
	if md.ExtensionRanges().Len() == 0 || b.extensions == nil {
		return fds
	}

	var exts []protoreflect.FieldDescriptor
	b.extensions.RangeExtensionsByMessage(md.FullName(), func(xt protoreflect.ExtensionType) bool {
		exts = append(exts, xt.TypeDescriptor())
		return true
	})
	sort.Slice(exts, func(i, j int) bool {
		return exts[i].Number() < exts[j].Number()
	})
	return append(fds, exts...)
}

func (b *DefBuilder) addToCache(key protoreflect.Descriptor, d def.Def) {
	if _, ok := b.cache[key]; ok {
		panic(fmt.Sprintf("protobridge: definition of %s is already cached", key.FullName()))
	}
	b.cache[key] = d
	b.toFreeze = append(b.toFreeze, pendingDef{key: key, def: d})
}

func findInCache[T def.Def](b *DefBuilder, key protoreflect.Descriptor) (T, bool) {
	var zero T
	d, ok := b.cache[key]
	if !ok {
		return zero, false
	}
	t, ok := d.(T)
	if !ok {
		panic(fmt.Sprintf("protobridge: %s is cached as %T", key.FullName(), d))
	}
	return t, true
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
