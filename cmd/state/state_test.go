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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnvMap(t *testing.T) {
	t.Parallel()

	env := BuildEnvMap([]string{"A=1", "B=x=y", "EMPTY=", "BARE"})
	assert.Equal(t, map[string]string{
		"A":     "1",
		"B":     "x=y",
		"EMPTY": "",
		"BARE":  "",
	}, env)
}

func TestConsolidateFlags(t *testing.T) {
	t.Parallel()

	defaults := GetDefaultFlags()
	testCases := []struct {
		name string
		env  map[string]string
		exp  GlobalFlags
	}{
		{name: "Defaults", env: nil, exp: defaults},
		{
			name: "Overrides",
			env: map[string]string{
				"PROTOBRIDGE_CONFIG":     "/etc/protobridge.yaml",
				"PROTOBRIDGE_LOG_OUTPUT": "none",
				"PROTOBRIDGE_LOG_FORMAT": "json",
			},
			exp: GlobalFlags{ConfigFilePath: "/etc/protobridge.yaml", LogOutput: "none", LogFormat: "json"},
		},
		{
			name: "NoColorEmpty",
			env:  map[string]string{"NO_COLOR": ""},
			exp:  GlobalFlags{LogOutput: "stderr", LogFormat: "text", NoColor: true},
		},
		{
			name: "OwnNoColorWins",
			env:  map[string]string{"NO_COLOR": "1", "PROTOBRIDGE_NO_COLOR": "false"},
			exp:  defaults,
		},
		{
			name: "OwnNoColor",
			env:  map[string]string{"PROTOBRIDGE_NO_COLOR": "true"},
			exp:  GlobalFlags{LogOutput: "stderr", LogFormat: "text", NoColor: true},
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.exp, consolidateFlags(defaults, tc.env))
		})
	}
}
