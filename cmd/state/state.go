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

// Package state contains the process-wide state the CLI commands share,
// so that tests can run them against fake streams and filesystems.
package state

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/protobridge/log"
)

// Writer is an output stream of the process.
type Writer struct {
	io.Writer
	IsTTY bool
}

// GlobalState holds everything the commands touch outside of their own
// arguments. NewGlobalState fills it from the real process.
type GlobalState struct {
	Ctx context.Context

	FS         afero.Fs
	Getwd      func() (string, error)
	BinaryName string
	CmdArgs    []string
	Env        map[string]string

	Stdout, Stderr *Writer
	Stdin          io.Reader

	OSExit func(int)

	// Logger is reconfigured by the root command from the flags.
	Logger *logrus.Logger
	// FallbackLogger is used when Logger itself fails, e.g. when its file
	// can't be written.
	FallbackLogger logrus.FieldLogger

	Flags        GlobalFlags
	DefaultFlags GlobalFlags
}

// GlobalFlags are the flags that apply to every command.
type GlobalFlags struct {
	ConfigFilePath string
	LogOutput      string
	LogFormat      string
	Verbose        bool
	NoColor        bool
}

// GetDefaultFlags returns the default global flags.
func GetDefaultFlags() GlobalFlags {
	return GlobalFlags{
		LogOutput: "stderr",
		LogFormat: "text",
	}
}

func consolidateFlags(defaults GlobalFlags, env map[string]string) GlobalFlags {
	result := defaults
	if val, ok := env["PROTOBRIDGE_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["PROTOBRIDGE_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["PROTOBRIDGE_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	// https://no-color.org/: any value, even an empty one, disables colors
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if val, ok := env["PROTOBRIDGE_NO_COLOR"]; ok {
		result.NoColor = val != "" && val != "false" && val != "0"
	}
	return result
}

// NewGlobalState returns the state of the running process.
func NewGlobalState(ctx context.Context) *GlobalState {
	stdout := &Writer{Writer: colorable.NewColorable(os.Stdout), IsTTY: isTTY(os.Stdout)}
	stderr := &Writer{Writer: colorable.NewColorable(os.Stderr), IsTTY: isTTY(os.Stderr)}

	env := BuildEnvMap(os.Environ())
	defaultFlags := GetDefaultFlags()

	logger := &logrus.Logger{
		Out:       stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	fallbackLogger, err := log.New(log.Options{Output: stderr, Colors: stderr.IsTTY})
	if err != nil {
		panic(err)
	}

	return &GlobalState{
		Ctx:            ctx,
		FS:             afero.NewOsFs(),
		Getwd:          os.Getwd,
		BinaryName:     "protobridge",
		CmdArgs:        os.Args,
		Env:            env,
		Stdout:         stdout,
		Stderr:         stderr,
		Stdin:          os.Stdin,
		OSExit:         os.Exit,
		Logger:         logger,
		FallbackLogger: fallbackLogger,
		Flags:          consolidateFlags(defaultFlags, env),
		DefaultFlags:   defaultFlags,
	}
}

// BuildEnvMap turns KEY=value pairs into a map.
func BuildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

func isTTY(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
