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

// Package tests contains helpers to run the CLI in tests, against
// in-memory streams and filesystems.
package tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/protobridge/cmd/state"
	"github.com/liuxd6825/protobridge/lib/testutils"
)

// GlobalTestState wraps a GlobalState whose streams are buffers and whose
// filesystem lives in memory.
type GlobalTestState struct {
	*state.GlobalState

	Stdin          *bytes.Buffer
	Stdout, Stderr *safeBuffer
	LoggerHook     *testutils.LogHook

	// ExpectedExitCode is checked when the command calls OSExit.
	ExpectedExitCode int
	Cwd              string
}

// safeBuffer is a bytes.Buffer that the file log hook goroutine and the
// test can share.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Bytes returns a copy of the buffered data.
func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// NewGlobalTestState returns a state for running a command in a test. The
// command line is only the binary name, set CmdArgs before running it.
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := afero.NewMemMapFs()
	cwd := "/test/"
	if runtime.GOOS == "windows" {
		cwd = "c:\\test\\"
	}
	require.NoError(tb, fs.MkdirAll(cwd, 0o755))

	logger, hook := testutils.NewLogger(tb)
	logger.SetLevel(logrus.InfoLevel)

	ts := &GlobalTestState{
		Stdin:      new(bytes.Buffer),
		Stdout:     new(safeBuffer),
		Stderr:     new(safeBuffer),
		LoggerHook: hook,
		Cwd:        cwd,
	}

	defaultFlags := state.GetDefaultFlags()
	// the logs go to the hook and to Stderr
	defaultFlags.LogOutput = "stderr"
	defaultFlags.NoColor = true

	fallbackLogger, _ := testutils.NewLogger(tb)
	ts.GlobalState = &state.GlobalState{
		Ctx:        ctx,
		FS:         fs,
		Getwd:      func() (string, error) { return ts.Cwd, nil },
		BinaryName: "protobridge",
		CmdArgs:    []string{},
		Env:        map[string]string{},
		Stdout:     &state.Writer{Writer: ts.Stdout},
		Stderr:     &state.Writer{Writer: ts.Stderr},
		Stdin:      ts.Stdin,
		OSExit: func(code int) {
			// only the assert, a require would call runtime.Goexit
			assert.Equal(tb, ts.ExpectedExitCode, code)
			cancel()
		},
		Logger:         logger,
		FallbackLogger: fallbackLogger,
		Flags:          defaultFlags,
		DefaultFlags:   defaultFlags,
	}
	return ts
}

// WriteFile stores data at path, relative to Cwd, in the test filesystem.
func (ts *GlobalTestState) WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if !filepath.IsAbs(path) {
		path = filepath.Join(ts.Cwd, path)
	}
	require.NoError(tb, ts.FS.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tb, afero.WriteFile(ts.FS, path, data, os.FileMode(0o644)))
}
