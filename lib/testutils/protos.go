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

package testutils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/liuxd6825/protobridge/lib/protoload"
)

// ShapesProto is a proto2 schema covering every field shape: scalars of all
// kinds, a closed enum, self and mutual recursion, packed and unpacked
// repeated fields, a map, a oneof, a group and extensions.
const ShapesProto = `syntax = "proto2";

package protobridge.test;

enum Color {
  RED = 0;
  GREEN = 1;
  BLUE = 2;
}

message Point {
  optional int32 x = 1;
  optional int32 y = 2;
}

message Shape {
  optional Color color = 1;
  optional Point center = 2;
  optional Shape self_ref = 3;
}

message A {
  optional B b = 1;
  optional int32 n = 2;
}

message B {
  optional A a = 1;
  optional string s = 2;
}

message Holder {
  optional string name = 1;
  optional bytes payload = 2;
  repeated bytes chunks = 3;
}

message AllKinds {
  optional double d = 1;
  optional float f = 2;
  optional int64 i64 = 3;
  optional uint64 u64 = 4;
  optional int32 i32 = 5;
  optional fixed64 f64 = 6;
  optional fixed32 f32 = 7;
  optional bool b = 8;
  optional string s = 9;
  optional bytes by = 10;
  optional uint32 u32 = 11;
  optional Color color = 12;
  optional sfixed32 sf32 = 13;
  optional sfixed64 sf64 = 14;
  optional sint32 si32 = 15;
  optional sint64 si64 = 16;
  repeated int32 packed = 17 [packed = true];
  repeated string names = 18;
  map<string, Point> points = 19;
  oneof choice {
    string label = 20;
    Point origin = 21;
  }
  optional group Inner = 22 {
    optional int32 depth = 1;
  }
  repeated Point path = 23;
  map<int32, string> tags = 24;

  extensions 100 to 199;
}

extend AllKinds {
  optional string note = 100;
  optional Point pin = 101;
}
`

// EventsProto is a proto3 schema, with an open enum.
const EventsProto = `syntax = "proto3";

package protobridge.test3;

enum Level {
  LEVEL_UNSPECIFIED = 0;
  LOW = 1;
  HIGH = 2;
}

message Event {
  string title = 1;
  Level level = 2;
  repeated int64 ids = 3;
  optional int32 retries = 4;
}
`

// Names of the fixture files inside ProtoFS.
const (
	ShapesFile = "protos/shapes.proto"
	EventsFile = "protos/events.proto"
)

// ProtoFS returns an in-memory filesystem with the fixture schemas.
func ProtoFS(t testing.TB) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ShapesFile, []byte(ShapesProto), 0o644))
	require.NoError(t, afero.WriteFile(fs, EventsFile, []byte(EventsProto), 0o644))
	return fs
}

// ProtoFiles parses the fixture schemas.
func ProtoFiles(t testing.TB) *protoregistry.Files {
	t.Helper()
	files, err := protoload.Parse(ProtoFS(t), nil, ShapesFile, EventsFile)
	require.NoError(t, err)
	return files
}

// ProtoExtensions returns the extension types declared by files.
func ProtoExtensions(t testing.TB, files *protoregistry.Files) *protoregistry.Types {
	t.Helper()
	types, err := protoload.ExtensionTypes(files)
	require.NoError(t, err)
	return types
}

// MessageDescriptor looks up the fixture message name, which is relative to
// the protobridge.test package unless it is fully qualified.
func MessageDescriptor(t testing.TB, files *protoregistry.Files, name string) protoreflect.MessageDescriptor {
	t.Helper()
	full := protoreflect.FullName(name)
	if _, err := files.FindDescriptorByName(full); err != nil {
		full = "protobridge.test." + full
	}
	md, err := protoload.FindMessage(files, full)
	require.NoError(t, err)
	return md
}

// NewMessage returns an empty dynamic message of the fixture type name.
func NewMessage(t testing.TB, files *protoregistry.Files, name string) *dynamicpb.Message {
	t.Helper()
	return dynamicpb.NewMessage(MessageDescriptor(t, files, name))
}

// Field returns the field name of md, failing the test when there is none.
func Field(t testing.TB, md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	t.Helper()
	fd := md.Fields().ByName(name)
	require.NotNilf(t, fd, "%s has no field %s", md.FullName(), name)
	return fd
}
