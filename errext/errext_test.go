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

package errext

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

func TestWithExitCodeIfNone(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WithExitCodeIfNone(nil, exitcodes.InvalidInput))

	base := errors.New("boom")
	err := WithExitCodeIfNone(base, exitcodes.InvalidInput)
	require.ErrorIs(t, err, base)
	assert.Equal(t, exitcodes.InvalidInput, ExitCodeOf(err))

	// the first attached code wins
	wrapped := WithExitCodeIfNone(fmt.Errorf("outer: %w", err), exitcodes.InvalidSchema)
	assert.Equal(t, exitcodes.InvalidInput, ExitCodeOf(wrapped))

	assert.Equal(t, exitcodes.GenericError, ExitCodeOf(base))
}

func TestWithHint(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WithHint(nil, "nope"))

	err := WithHint(WithHint(errors.New("boom"), "inner"), "outer")
	var herr HasHint
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "outer (inner)", herr.Hint())
	assert.Equal(t, "boom", err.Error())
}

func TestFormat(t *testing.T) {
	t.Parallel()

	msg, fields := Format(nil)
	assert.Empty(t, msg)
	assert.Nil(t, fields)

	err := WithExitCodeIfNone(WithHint(errors.New("boom"), "try again"), exitcodes.LoaderFailure)
	msg, fields = Format(err)
	assert.Equal(t, "boom", msg)
	assert.Equal(t, map[string]interface{}{
		"hint":      "try again",
		"exit_code": exitcodes.LoaderFailure,
	}, fields)
}
