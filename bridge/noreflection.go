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

//go:build protobridge_noreflect

package bridge

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/handlers"
)

const noReflectHint = "rebuild without the protobridge_noreflect tag"

func fieldPrototype(_ proto.Message, fd protoreflect.FieldDescriptor) (proto.Message, error) {
	return nil, unsupportedBuild("resolving the prototype of %s", fd.FullName())
}

func setWriteHandlers(_ proto.Message, fd protoreflect.FieldDescriptor, _ *def.FieldDef, _ *handlers.Handlers) error {
	return unsupportedBuild("wiring write handlers for %s", fd.FullName())
}

func unsupportedBuild(format string, args ...interface{}) error {
	err := fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnsupportedBuild)
	return errext.WithExitCodeIfNone(errext.WithHint(err, noReflectHint), exitcodes.UnsupportedFeature)
}
