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

package protoload

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ExtensionTypes returns a pool with a dynamic type for every extension
// declared in files, at file level or nested in messages.
func ExtensionTypes(files *protoregistry.Files) (*protoregistry.Types, error) {
	types := new(protoregistry.Types)
	var err error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		err = registerExtensions(types, fd.Extensions(), fd.Messages())
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return types, nil
}

func registerExtensions(
	types *protoregistry.Types, xds protoreflect.ExtensionDescriptors, mds protoreflect.MessageDescriptors,
) error {
	for i := 0; i < xds.Len(); i++ {
		xd := xds.Get(i)
		if err := types.RegisterExtension(dynamicpb.NewExtensionType(xd)); err != nil {
			return fmt.Errorf("can't register extension %s: %w", xd.FullName(), err)
		}
	}
	for i := 0; i < mds.Len(); i++ {
		md := mds.Get(i)
		if err := registerExtensions(types, md.Extensions(), md.Messages()); err != nil {
			return err
		}
	}
	return nil
}
