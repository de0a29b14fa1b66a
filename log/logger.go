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

// Package log builds the logrus loggers of the CLI, and the hooks that send
// their output to files.
package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Options configure a logger built by New.
type Options struct {
	// Output receives the formatted entries.
	Output io.Writer
	// Level is a logrus level name; the default is info.
	Level string
	// Verbose forces the debug level.
	Verbose bool
	// Format is one of "text", "json" or "raw".
	Format string
	// Colors selects colored text output.
	Colors bool
}

// New returns a logger configured with opts.
func New(opts Options) (*logrus.Logger, error) {
	l := logrus.New()
	if err := Configure(l, opts); err != nil {
		return nil, err
	}
	return l, nil
}

// Configure applies opts to an existing logger, keeping its hooks.
func Configure(l *logrus.Logger, opts Options) error {
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}

	switch {
	case opts.Verbose:
		l.SetLevel(logrus.DebugLevel)
	case opts.Level != "":
		lvl, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("unknown log level %s", opts.Level)
		}
		l.SetLevel(lvl)
	}

	switch opts.Format {
	case "raw":
		l.SetFormatter(RawFormatter{})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{ForceColors: opts.Colors, DisableColors: !opts.Colors})
	default:
		return fmt.Errorf("unsupported log format '%s'", opts.Format)
	}
	return nil
}

// RawFormatter prints only the message of an entry.
type RawFormatter struct{}

// Format implements logrus.Formatter.
func (RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}
