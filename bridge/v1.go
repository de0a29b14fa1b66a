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
	protoV1 "github.com/golang/protobuf/proto"

	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/handlers"
)

// Messages generated by the old github.com/golang/protobuf API are accepted
// through the adapters below; they are wrapped into the current API first.

// BuildAllV1 is BuildAll for a message of the old API.
func BuildAllV1(m protoV1.Message) (*handlers.Handlers, error) {
	return BuildAll(protoV1.MessageV2(m))
}

// GetWriteHandlersV1 is GetWriteHandlers for a message of the old API.
func (c *CodeCache) GetWriteHandlersV1(m protoV1.Message) (*handlers.Handlers, error) {
	return c.GetWriteHandlers(protoV1.MessageV2(m))
}

// GetMessageDefExpandWeakV1 is GetMessageDefExpandWeak for a message of the
// old API.
func (b *DefBuilder) GetMessageDefExpandWeakV1(m protoV1.Message) (*def.MessageDef, error) {
	return b.GetMessageDefExpandWeak(protoV1.MessageV2(m))
}
