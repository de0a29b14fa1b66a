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
	"testing"

	protoV1 "github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/protoc-gen-go/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"

	"github.com/liuxd6825/protobridge/bridge"
	"github.com/liuxd6825/protobridge/decoder"
	"github.com/liuxd6825/protobridge/lib/testutils"
)

func TestV1Adapters(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	src := protodesc.ToFileDescriptorProto(testutils.MessageDescriptor(t, files, "AllKinds").ParentFile())
	raw, err := protoV1.Marshal(src)
	require.NoError(t, err)

	h, err := bridge.BuildAllV1(&descriptor.FileDescriptorProto{})
	require.NoError(t, err)
	dst := &descriptor.FileDescriptorProto{}
	require.NoError(t, decoder.Unmarshal(raw, h, protoV1.MessageV2(dst)))
	assert.True(t, proto.Equal(src, dst))
	assert.Equal(t, "protos/shapes.proto", dst.GetName())

	cache := bridge.NewCodeCache(nil)
	h1, err := cache.GetWriteHandlersV1(&descriptor.FileDescriptorProto{})
	require.NoError(t, err)
	h2, err := cache.GetWriteHandlers(&descriptor.FileDescriptorProto{})
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	md, err := cache.DefBuilder().GetMessageDefExpandWeakV1(&descriptor.DescriptorProto{})
	require.NoError(t, err)
	assert.Same(t, md, md.FindFieldByName("nested_type").MessageSubDef())
}
