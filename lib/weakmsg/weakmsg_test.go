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

package weakmsg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/liuxd6825/protobridge/bridge"
	"github.com/liuxd6825/protobridge/lib/testutils"
	"github.com/liuxd6825/protobridge/lib/weakmsg"
)

var _ bridge.WeakMessage = (*weakmsg.Message)(nil)

func TestDeclare(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	holderMD := testutils.MessageDescriptor(t, files, "Holder")
	pointType := dynamicpb.NewMessageType(testutils.MessageDescriptor(t, files, "Point"))

	m := weakmsg.New(holderMD)
	require.ErrorIs(t, m.Declare("missing", pointType), weakmsg.ErrNotWeakable)
	require.ErrorIs(t, m.Declare("name", pointType), weakmsg.ErrNotWeakable)
	require.ErrorIs(t, m.Declare("chunks", pointType), weakmsg.ErrNotWeakable)
	require.ErrorIs(t, m.Declare("payload", nil), weakmsg.ErrNotWeakable)
	require.NoError(t, m.Declare("payload", pointType))

	payload := testutils.Field(t, holderMD, "payload")
	assert.Equal(t, pointType, m.WeakFieldType(payload))
	assert.Nil(t, m.WeakFieldType(testutils.Field(t, holderMD, "name")))

	// a field of another message with the same number is not weak
	shapeMD := testutils.MessageDescriptor(t, files, "Shape")
	assert.Nil(t, m.WeakFieldType(testutils.Field(t, shapeMD, "center")))
	assert.Nil(t, m.MutableWeakField(testutils.Field(t, shapeMD, "center")))
}

func TestMutableWeakFieldAndSync(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	holderMD := testutils.MessageDescriptor(t, files, "Holder")
	pointMD := testutils.MessageDescriptor(t, files, "Point")

	m := weakmsg.New(holderMD)
	require.NoError(t, m.Declare("payload", dynamicpb.NewMessageType(pointMD)))
	_, ok := m.WeakField("payload")
	assert.False(t, ok)

	payload := testutils.Field(t, holderMD, "payload")
	sub := m.MutableWeakField(payload)
	require.NotNil(t, sub)
	assert.Same(t, sub, m.MutableWeakField(payload))
	sub.ProtoReflect().Set(testutils.Field(t, pointMD, "x"), protoreflect.ValueOfInt32(4))

	got, ok := m.WeakField("payload")
	require.True(t, ok)
	assert.Same(t, sub, got)

	// nothing reaches the bytes field before Sync
	assert.False(t, m.Has(payload))
	require.NoError(t, m.Sync())

	want, err := proto.Marshal(sub)
	require.NoError(t, err)
	assert.Equal(t, want, m.Get(payload).Bytes())
}
