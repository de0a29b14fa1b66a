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

package protoload_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/lib/protoload"
	"github.com/liuxd6825/protobridge/lib/testutils"
)

func TestParse(t *testing.T) {
	t.Parallel()

	files, err := protoload.Parse(testutils.ProtoFS(t), nil, testutils.ShapesFile)
	require.NoError(t, err)

	md, err := protoload.FindMessage(files, "protobridge.test.Shape")
	require.NoError(t, err)
	assert.Equal(t, 3, md.Fields().Len())
	assert.Equal(t, protoreflect.Proto2, md.Syntax())

	_, err = protoload.FindMessage(files, "protobridge.test.Color")
	require.Error(t, err)
	assert.Equal(t, exitcodes.InvalidInput, errext.ExitCodeOf(err))

	_, err = protoload.FindMessage(files, "protobridge.test.Nope")
	require.Error(t, err)
}

func TestParseImportPaths(t *testing.T) {
	t.Parallel()

	fs := testutils.ProtoFS(t)
	require.NoError(t, afero.WriteFile(fs, "protos/uses.proto", []byte(`syntax = "proto3";
package protobridge.uses;
import "shapes.proto";
message Canvas { repeated protobridge.test.Shape shapes = 1; }
`), 0o644))

	files, err := protoload.Parse(fs, []string{"protos"}, "uses.proto")
	require.NoError(t, err)
	assert.Equal(t, 2, files.NumFiles())

	md, err := protoload.FindMessage(files, "protobridge.uses.Canvas")
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("protobridge.test.Shape"), md.Fields().Get(0).Message().FullName())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := protoload.Parse(afero.NewMemMapFs(), nil)
	require.ErrorIs(t, err, protoload.ErrNoFiles)

	_, err = protoload.Parse(afero.NewMemMapFs(), nil, "missing.proto")
	require.Error(t, err)
	assert.Equal(t, exitcodes.LoaderFailure, errext.ExitCodeOf(err))

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "broken.proto", []byte(`syntax = "proto3"; message {`), 0o644))
	_, err = protoload.Parse(fs, nil, "broken.proto")
	require.Error(t, err)
	assert.Equal(t, exitcodes.LoaderFailure, errext.ExitCodeOf(err))
}

func TestExtensionTypes(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	types, err := protoload.ExtensionTypes(files)
	require.NoError(t, err)
	assert.Equal(t, 2, types.NumExtensionsByMessage("protobridge.test.AllKinds"))

	xt, err := types.FindExtensionByNumber("protobridge.test.AllKinds", 101)
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("protobridge.test.pin"), xt.TypeDescriptor().FullName())
}
