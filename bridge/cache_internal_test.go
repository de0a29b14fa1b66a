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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/protobridge/handlers"
	"github.com/liuxd6825/protobridge/lib/testutils"
)

func TestDuplicateCacheEntriesPanic(t *testing.T) {
	t.Parallel()

	files := testutils.ProtoFiles(t)
	pointMD := testutils.MessageDescriptor(t, files, "Point")

	t.Run("Definitions", func(t *testing.T) {
		t.Parallel()
		b := NewDefBuilder(nil)
		md, err := b.GetMessageDef(pointMD)
		require.NoError(t, err)
		assert.PanicsWithValue(t, "protobridge: definition of protobridge.test.Point is already cached", func() {
			b.addToCache(pointMD, md)
		})
		assert.Equal(t, 1, b.Len())
	})

	t.Run("Handlers", func(t *testing.T) {
		t.Parallel()
		c := NewCodeCache(nil)
		md, err := c.DefBuilder().GetMessageDef(pointMD)
		require.NoError(t, err)
		h, err := handlers.New(md)
		require.NoError(t, err)
		c.addToCache(md, h)
		assert.PanicsWithValue(t, "protobridge: handlers of protobridge.test.Point are already cached", func() {
			c.addToCache(md, h)
		})
		assert.Equal(t, 1, c.Len())
	})
}
