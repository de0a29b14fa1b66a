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
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

var (
	// ErrUnsupportedBuild is returned by every operation that needs
	// protobuf reflection when the module is built with the
	// protobridge_noreflect tag.
	ErrUnsupportedBuild = errors.New("operation unsupported in this build configuration")
	// ErrNotSubmessage is returned by GetFieldPrototype for fields that are
	// neither message fields nor weak fields.
	ErrNotSubmessage = errors.New("field is neither a submessage nor a weak field")
	// ErrFieldNotInMessage is returned when a field, or an extension, does
	// not belong to the message the handlers are built for.
	ErrFieldNotInMessage = errors.New("field does not belong to the message")
)

// SchemaError reports descriptor input that cannot be turned into a
// definition graph, such as a weak field whose concrete type cannot be
// resolved from the live message.
type SchemaError struct {
	Name   protoreflect.FullName
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed schema for %s: %s", e.Name, e.Reason)
}

// ExitCode implements errext.HasExitCode.
func (e *SchemaError) ExitCode() exitcodes.ExitCode {
	return exitcodes.InvalidSchema
}

func schemaErrorf(name protoreflect.FullName, format string, args ...interface{}) error {
	return &SchemaError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
