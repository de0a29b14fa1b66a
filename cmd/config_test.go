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

package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/protobridge/cmd/tests"
	"github.com/liuxd6825/protobridge/decoder"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

func decodeLikeFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := configFlagSet()
	flags.Int64("recursion-limit", decoder.DefaultRecursionLimit, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := Config{LogLevel: null.StringFrom("info"), RecursionLimit: null.IntFrom(5)}
	got := base.Apply(Config{LogLevel: null.StringFrom(""), RecursionLimit: null.IntFrom(6)})
	assert.Equal(t, "info", got.LogLevel.String)
	assert.Equal(t, int64(6), got.RecursionLimit.Int64)
	assert.False(t, got.ImportPath.Valid)

	got = got.Apply(Config{})
	assert.Equal(t, int64(6), got.RecursionLimit.Int64)
}

func TestConfigConsolidation(t *testing.T) {
	t.Parallel()

	list := func(paths ...string) string { return strings.Join(paths, string(filepath.ListSeparator)) }
	const fileConf = "importPath: from-file\nlogLevel: warn\nrecursionLimit: 7\n"

	testCases := []struct {
		name   string
		file   string
		env    map[string]string
		args   []string
		expect func(t *testing.T, c Config)
	}{
		{
			name: "Defaults",
			expect: func(t *testing.T, c Config) {
				assert.Equal(t, "info", c.LogLevel.String)
				assert.Equal(t, int64(decoder.DefaultRecursionLimit), c.RecursionLimit.Int64)
				assert.Nil(t, c.ImportPaths())
			},
		},
		{
			name: "File",
			file: fileConf,
			expect: func(t *testing.T, c Config) {
				assert.Equal(t, "warn", c.LogLevel.String)
				assert.Equal(t, int64(7), c.RecursionLimit.Int64)
				assert.Equal(t, []string{"from-file"}, c.ImportPaths())
			},
		},
		{
			name: "EnvOverFile",
			file: fileConf,
			env: map[string]string{
				"PROTOBRIDGE_IMPORT_PATH":     list("a", "b"),
				"PROTOBRIDGE_RECURSION_LIMIT": "9",
			},
			expect: func(t *testing.T, c Config) {
				assert.Equal(t, "warn", c.LogLevel.String)
				assert.Equal(t, int64(9), c.RecursionLimit.Int64)
				assert.Equal(t, []string{"a", "b"}, c.ImportPaths())
			},
		},
		{
			name: "FlagsOverEnv",
			file: fileConf,
			env: map[string]string{
				"PROTOBRIDGE_LOG_LEVEL":       "error",
				"PROTOBRIDGE_RECURSION_LIMIT": "9",
			},
			args: []string{"--recursion-limit", "11", "-I", "x", "-I", "y", "--log-level", "debug"},
			expect: func(t *testing.T, c Config) {
				assert.Equal(t, "debug", c.LogLevel.String)
				assert.Equal(t, int64(11), c.RecursionLimit.Int64)
				assert.Equal(t, []string{"x", "y"}, c.ImportPaths())
			},
		},
		{
			name: "UnchangedFlagsKeepEnv",
			env:  map[string]string{"PROTOBRIDGE_LOG_LEVEL": "error"},
			args: []string{"-I", "x"},
			expect: func(t *testing.T, c Config) {
				assert.Equal(t, "error", c.LogLevel.String)
				assert.Equal(t, int64(decoder.DefaultRecursionLimit), c.RecursionLimit.Int64)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := tests.NewGlobalTestState(t)
			if tc.file != "" {
				ts.WriteFile(t, "protobridge.yaml", []byte(tc.file))
				ts.Flags.ConfigFilePath = filepath.Join(ts.Cwd, "protobridge.yaml")
			}
			if tc.env != nil {
				ts.Env = tc.env
			}
			conf, err := getConsolidatedConfig(ts.GlobalState, decodeLikeFlags(t, tc.args...))
			require.NoError(t, err)
			tc.expect(t, conf)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		file string
		env  map[string]string
		args []string
	}{
		{name: "MissingFile", file: "-"},
		{name: "BadYAML", file: "recursionLimit: [1, 2"},
		{name: "BadEnv", env: map[string]string{"PROTOBRIDGE_RECURSION_LIMIT": "deep"}},
		{name: "ZeroLimit", args: []string{"--recursion-limit", "0"}},
		{name: "NegativeLimitInFile", file: "recursionLimit: -3\n"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := tests.NewGlobalTestState(t)
			switch tc.file {
			case "":
			case "-":
				ts.Flags.ConfigFilePath = "/nowhere/protobridge.yaml"
			default:
				ts.WriteFile(t, "protobridge.yaml", []byte(tc.file))
				ts.Flags.ConfigFilePath = filepath.Join(ts.Cwd, "protobridge.yaml")
			}
			if tc.env != nil {
				ts.Env = tc.env
			}
			_, err := getConsolidatedConfig(ts.GlobalState, decodeLikeFlags(t, tc.args...))
			require.Error(t, err)
			assert.Equal(t, exitcodes.InvalidConfig, errext.ExitCodeOf(err))
		})
	}
}
