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

package bridge_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/liuxd6825/protobridge/bridge"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/lib/protoload"
	"github.com/liuxd6825/protobridge/lib/testutils"
	"github.com/liuxd6825/protobridge/lib/weakmsg"
)

// parseSchema compiles a single inline .proto source.
func parseSchema(t *testing.T, name, src string) *protoregistry.Files {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, []byte(src), 0o644))
	files, err := protoload.Parse(fs, nil, name)
	require.NoError(t, err)
	return files
}

func TestGetMessageDef(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	shapeMD := testutils.MessageDescriptor(t, files, "Shape")
	logger, hook := testutils.NewLogger(t)
	b := bridge.NewDefBuilder(logger)

	shape, err := b.GetMessageDef(shapeMD)
	require.NoError(t, err)
	assert.True(t, shape.IsFrozen())
	assert.Equal(t, 3, shape.FieldCount())
	assert.Equal(t, 3, b.Len())
	assert.True(t, testutils.LogContains(hook.Drain(), logrus.DebugLevel, "Froze 3 definitions"))

	again, err := b.GetMessageDef(shapeMD)
	require.NoError(t, err)
	assert.Same(t, shape, again)
	assert.Equal(t, 3, b.Len())

	assert.Same(t, shape, shape.FindFieldByName("self_ref").MessageSubDef())

	point, err := b.GetMessageDef(testutils.MessageDescriptor(t, files, "Point"))
	require.NoError(t, err)
	assert.Same(t, point, shape.FindFieldByName("center").MessageSubDef())

	color := shape.FindFieldByName("color").EnumSubDef()
	require.NotNil(t, color)
	assert.True(t, color.IsFrozen())
	assert.True(t, color.IsClosed())
	colorAgain, err := b.GetEnumDef(shapeMD.Fields().ByName("color").Enum())
	require.NoError(t, err)
	assert.Same(t, color, colorAgain)
	assert.Equal(t, 3, b.Len())
}

func TestGetMessageDefMutualRecursion(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	b := bridge.NewDefBuilder(nil)

	a, err := b.GetMessageDef(testutils.MessageDescriptor(t, files, "A"))
	require.NoError(t, err)
	bdef := a.FindFieldByName("b").MessageSubDef()
	require.NotNil(t, bdef)
	assert.True(t, bdef.IsFrozen())
	assert.Same(t, a, bdef.FindFieldByName("a").MessageSubDef())
	assert.Equal(t, 2, b.Len())
}

func TestGetMessageDefShapes(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	allMD := testutils.MessageDescriptor(t, files, "AllKinds")

	t.Run("Extensions", func(t *testing.T) {
		t.Parallel()
		b := bridge.NewDefBuilder(nil, bridge.WithExtensionTypes(testutils.ProtoExtensions(t, files)))
		all, err := b.GetMessageDef(allMD)
		require.NoError(t, err)
		assert.Equal(t, 26, all.FieldCount())

		pin := all.FindFieldByNumber(101)
		require.NotNil(t, pin)
		assert.True(t, pin.IsExtension())
		assert.Equal(t, allMD.FullName(), pin.Extendee())
		assert.Equal(t, protoreflect.FullName("protobridge.test.Point"), pin.SubDefName())
		assert.Nil(t, all.FindFieldByName("pin"))
	})

	t.Run("NoExtensions", func(t *testing.T) {
		t.Parallel()
		b := bridge.NewDefBuilder(nil, bridge.WithExtensionTypes(new(protoregistry.Types)))
		all, err := b.GetMessageDef(allMD)
		require.NoError(t, err)
		assert.Equal(t, 24, all.FieldCount())
	})

	t.Run("Fields", func(t *testing.T) {
		t.Parallel()
		all, err := bridge.NewMessageDef(allMD)
		require.NoError(t, err)

		packed := all.FindFieldByName("packed")
		assert.True(t, packed.IsPacked())
		assert.True(t, packed.IsRepeated())

		points := all.FindFieldByName("points")
		assert.True(t, points.IsMap())
		assert.True(t, points.MessageSubDef().IsMapEntry())

		inner := all.FindFieldByName("inner")
		assert.Equal(t, protoreflect.GroupKind, inner.Kind())
		assert.True(t, inner.IsSubMessage())

		choice := all.FindOneofByName("choice")
		require.NotNil(t, choice)
		require.Equal(t, 2, choice.FieldCount())
		assert.Same(t, all.FindFieldByName("label"), choice.Field(0))
		assert.Same(t, choice, all.FindFieldByName("origin").ContainingOneof())
	})

	t.Run("Proto3", func(t *testing.T) {
		t.Parallel()
		event, err := bridge.NewMessageDef(testutils.MessageDescriptor(t, files, "protobridge.test3.Event"))
		require.NoError(t, err)
		assert.Equal(t, protoreflect.Proto3, event.Syntax())
		// the oneof of a proto3 optional field is synthetic
		assert.Equal(t, 0, event.OneofCount())
		assert.False(t, event.FindFieldByName("level").EnumSubDef().IsClosed())
		assert.True(t, event.FindFieldByName("ids").IsPacked())
	})
}

func TestGetMessageDefExpandWeak(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	holderMD := testutils.MessageDescriptor(t, files, "Holder")
	pointMD := testutils.MessageDescriptor(t, files, "Point")

	holder := weakmsg.New(holderMD)
	require.NoError(t, holder.Declare("payload", dynamicpb.NewMessageType(pointMD)))

	b := bridge.NewDefBuilder(nil)
	md, err := b.GetMessageDefExpandWeak(holder)
	require.NoError(t, err)

	payload := md.FindFieldByName("payload")
	assert.True(t, payload.IsWeak())
	assert.Equal(t, protoreflect.MessageKind, payload.Kind())
	point, err := b.GetMessageDef(pointMD)
	require.NoError(t, err)
	assert.Same(t, point, payload.MessageSubDef())
	assert.False(t, md.FindFieldByName("chunks").IsWeak())

	// the first definition built for a descriptor is the one that is kept
	plain, err := b.GetMessageDef(holderMD)
	require.NoError(t, err)
	assert.Same(t, md, plain)

	other := bridge.NewDefBuilder(nil)
	plain, err = other.GetMessageDef(holderMD)
	require.NoError(t, err)
	assert.Equal(t, protoreflect.BytesKind, plain.FindFieldByName("payload").Kind())
	expanded, err := other.GetMessageDefExpandWeak(holder)
	require.NoError(t, err)
	assert.Same(t, plain, expanded)
}

// badWeak reports every bytes field as weak, repeated ones included.
type badWeak struct {
	*dynamicpb.Message
	typ protoreflect.MessageType
}

func (m badWeak) WeakFieldType(fd protoreflect.FieldDescriptor) protoreflect.MessageType {
	if fd.Kind() == protoreflect.BytesKind {
		return m.typ
	}
	return nil
}

func (m badWeak) MutableWeakField(protoreflect.FieldDescriptor) proto.Message {
	return m.typ.New().Interface()
}

func TestGetMessageDefRollback(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	holderMD := testutils.MessageDescriptor(t, files, "Holder")
	pointMD := testutils.MessageDescriptor(t, files, "Point")
	logger, hook := testutils.NewLogger(t)
	b := bridge.NewDefBuilder(logger)

	bad := badWeak{Message: dynamicpb.NewMessage(holderMD), typ: dynamicpb.NewMessageType(pointMD)}
	_, err := b.GetMessageDefExpandWeak(bad)
	require.Error(t, err)

	var schemaErr *bridge.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, protoreflect.FullName("protobridge.test.Holder.chunks"), schemaErr.Name)
	assert.Equal(t, exitcodes.InvalidSchema, errext.ExitCodeOf(err))

	// Point was built through the valid weak field before the failure, and
	// dropped with the rest of the request.
	assert.Equal(t, 0, b.Len())
	assert.True(t, testutils.LogContains(hook.Drain(), logrus.DebugLevel, "Dropped 2 definitions"))

	md, err := b.GetMessageDef(holderMD)
	require.NoError(t, err)
	assert.False(t, md.FindFieldByName("payload").IsWeak())
	assert.Equal(t, 1, b.Len())
}

const boxProto = `syntax = "proto2";

package protobridge.test.box;

message Pin {
  optional int32 n = 1;
}

message Blob {
  optional bytes payload = 1;
}

message Box {
  optional Blob blob = 1;
}
`

// box hands out its weak child through reflection, the way generated
// messages hand out their own sub-message types.
type box struct {
	*dynamicpb.Message
	blob *weakmsg.Message
}

func (b *box) ProtoReflect() protoreflect.Message {
	return boxReflect{Message: b.Message.ProtoReflect(), box: b}
}

type boxReflect struct {
	protoreflect.Message
	box *box
}

func (r boxReflect) Interface() protoreflect.ProtoMessage { return r.box }

func (r boxReflect) Has(fd protoreflect.FieldDescriptor) bool {
	return fd.Name() == "blob" || r.Message.Has(fd)
}

func (r boxReflect) Get(fd protoreflect.FieldDescriptor) protoreflect.Value {
	if fd.Name() == "blob" {
		return protoreflect.ValueOfMessage(blobReflect{Message: r.box.blob.Message.ProtoReflect(), blob: r.box.blob})
	}
	return r.Message.Get(fd)
}

type blobReflect struct {
	protoreflect.Message
	blob *weakmsg.Message
}

func (r blobReflect) Interface() protoreflect.ProtoMessage { return r.blob }

func TestGetMessageDefExpandNestedWeak(t *testing.T) {
	t.Parallel()

	files := parseSchema(t, "box.proto", boxProto)
	boxMD := testutils.MessageDescriptor(t, files, "protobridge.test.box.Box")
	blobMD := testutils.MessageDescriptor(t, files, "protobridge.test.box.Blob")
	pinMD := testutils.MessageDescriptor(t, files, "protobridge.test.box.Pin")

	blob := weakmsg.New(blobMD)
	require.NoError(t, blob.Declare("payload", dynamicpb.NewMessageType(pinMD)))

	t.Run("ThroughReflection", func(t *testing.T) {
		t.Parallel()
		b := bridge.NewDefBuilder(nil)
		md, err := b.GetMessageDefExpandWeak(&box{Message: dynamicpb.NewMessage(boxMD), blob: blob})
		require.NoError(t, err)

		payload := md.FindFieldByName("blob").MessageSubDef().FindFieldByName("payload")
		require.NotNil(t, payload)
		assert.True(t, payload.IsWeak())
		assert.Equal(t, protoreflect.FullName("protobridge.test.box.Pin"), payload.MessageSubDef().FullName())
		assert.Equal(t, 3, b.Len())
	})

	t.Run("DynamicParent", func(t *testing.T) {
		t.Parallel()
		// a dynamicpb parent only holds plain dynamic sub-messages
		b := bridge.NewDefBuilder(nil)
		parent := dynamicpb.NewMessage(boxMD)
		parent.Set(testutils.Field(t, boxMD, "blob"), protoreflect.ValueOfMessage(blob.ProtoReflect()))
		md, err := b.GetMessageDefExpandWeak(parent)
		require.NoError(t, err)

		payload := md.FindFieldByName("blob").MessageSubDef().FindFieldByName("payload")
		assert.False(t, payload.IsWeak())
		assert.Equal(t, protoreflect.BytesKind, payload.Kind())
	})
}
