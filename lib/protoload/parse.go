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

// Package protoload turns protobuf schemas into descriptor registries:
// from .proto sources on a filesystem, or from a running gRPC server through
// the server reflection API.
package protoload

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

// ErrNoFiles is returned by Parse when it is given no file names.
var ErrNoFiles = errors.New("no proto files given")

// Parse parses filenames, and everything they import, from fs. Imports are
// resolved against importPaths, or against the working directory when
// there are none.
func Parse(fs afero.Fs, importPaths []string, filenames ...string) (*protoregistry.Files, error) {
	if len(filenames) == 0 {
		return nil, ErrNoFiles
	}
	if len(importPaths) == 0 {
		importPaths = []string{"."}
	}

	parser := protoparse.Parser{
		ImportPaths:      importPaths,
		InferImportPaths: false,
		Accessor: protoparse.FileAccessor(func(filename string) (io.ReadCloser, error) {
			return fs.Open(filepath.Clean(filename))
		}),
	}
	fds, err := parser.ParseFiles(filenames...)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.LoaderFailure)
	}

	fdset := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]struct{})
	for _, fd := range fds {
		fdset.File = append(fdset.File, walkFileDescriptors(seen, fd)...)
	}
	return newFiles(fdset)
}

func walkFileDescriptors(seen map[string]struct{}, fd *desc.FileDescriptor) []*descriptorpb.FileDescriptorProto {
	if _, ok := seen[fd.GetName()]; ok {
		return nil
	}
	seen[fd.GetName()] = struct{}{}

	fds := []*descriptorpb.FileDescriptorProto{fd.AsFileDescriptorProto()}
	for _, dep := range fd.GetDependencies() {
		fds = append(fds, walkFileDescriptors(seen, dep)...)
	}
	return fds
}

func newFiles(fdset *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	files, err := protodesc.NewFiles(fdset)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("can't link file descriptors: %w", err), exitcodes.LoaderFailure)
	}
	return files, nil
}

// FindMessage looks up the message type name in files.
func FindMessage(files *protoregistry.Files, name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	d, err := files.FindDescriptorByName(name)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("can't find message %q: %w", name, err), exitcodes.InvalidInput)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("%q is not a message", name), exitcodes.InvalidInput)
	}
	return md, nil
}
