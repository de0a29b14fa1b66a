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
	"context"
	"errors"
	"fmt"
	"time"

	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/liuxd6825/protobridge/cmd/state"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/lib/protoload"
)

const defaultReflectTimeout = 10 * time.Second

// schemaSource is where a command gets its descriptors from: the .proto
// files named as arguments, or a gRPC server with reflection enabled.
type schemaSource struct {
	reflectAddr    string
	reflectTimeout time.Duration
}

func (s *schemaSource) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVar(&s.reflectAddr, "reflect", "",
		"load the schemas from the gRPC server reflection service at this address instead of files")
	flags.DurationVar(&s.reflectTimeout, "reflect-timeout", defaultReflectTimeout,
		"how long to wait for the reflection service")
	return flags
}

// load returns the file registry and the extension pool of the schemas.
func (s *schemaSource) load(
	gs *state.GlobalState, conf Config, filenames []string,
) (*protoregistry.Files, *protoregistry.Types, error) {
	var (
		files *protoregistry.Files
		err   error
	)
	switch {
	case s.reflectAddr != "" && len(filenames) > 0:
		return nil, nil, errext.WithExitCodeIfNone(
			errors.New("schema files can't be combined with --reflect"), exitcodes.InvalidConfig)
	case s.reflectAddr != "":
		files, err = s.reflect(gs)
	default:
		gs.Logger.WithField("import_paths", conf.ImportPaths()).Debugf("Parsing %d schema files", len(filenames))
		files, err = protoload.Parse(gs.FS, conf.ImportPaths(), filenames...)
	}
	if err != nil {
		return nil, nil, err
	}

	types, err := protoload.ExtensionTypes(files)
	if err != nil {
		return nil, nil, err
	}
	gs.Logger.Debugf("Loaded %d files with %d extensions", files.NumFiles(), types.NumExtensions())
	return files, types, nil
}

func (s *schemaSource) reflect(gs *state.GlobalState) (*protoregistry.Files, error) {
	ctx, cancel := context.WithTimeout(gs.Ctx, s.reflectTimeout)
	defer cancel()

	gs.Logger.WithField("address", s.reflectAddr).Debug("Loading schemas through server reflection")
	conn, err := grpc.DialContext(ctx, s.reflectAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStreamInterceptor(grpc_logrus.StreamClientInterceptor(logrus.NewEntry(gs.Logger))),
	)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(
			fmt.Errorf("can't connect to %s: %w", s.reflectAddr, err), exitcodes.LoaderFailure)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			gs.Logger.WithError(cerr).Warn("Couldn't close the reflection connection")
		}
	}()

	return protoload.Reflect(ctx, conn)
}

func findMessage(files *protoregistry.Files, name string) (protoreflect.MessageDescriptor, error) {
	if name == "" {
		return nil, errext.WithExitCodeIfNone(errors.New("a message type is required, use --message"),
			exitcodes.InvalidConfig)
	}
	return protoload.FindMessage(files, protoreflect.FullName(name))
}
