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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/liuxd6825/protobridge/bridge"
	"github.com/liuxd6825/protobridge/cmd/state"
	"github.com/liuxd6825/protobridge/decoder"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
	"github.com/liuxd6825/protobridge/handlers"
	"github.com/liuxd6825/protobridge/lib/weakmsg"
)

type cmdDecode struct {
	gs          *state.GlobalState
	source      schemaSource
	message     string
	fields      []string
	weak        []string
	input       string
	compression string
	format      string
}

// weakDecl is a --weak value: field=package.Type.
type weakDecl struct {
	field protoreflect.Name
	typ   protoreflect.FullName
}

func parseWeakDecl(s string) (weakDecl, error) {
	field, typ, ok := strings.Cut(s, "=")
	if !ok || field == "" || typ == "" {
		return weakDecl{}, fmt.Errorf("weak field declaration should be in the form `field=package.Type` but is `%s`", s)
	}
	return weakDecl{field: protoreflect.Name(field), typ: protoreflect.FullName(typ)}, nil
}

func (c *cmdDecode) run(cmd *cobra.Command, args []string) error {
	conf, err := getConsolidatedConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	switch c.format {
	case "json", "text":
	default:
		return errext.WithExitCodeIfNone(fmt.Errorf("unsupported output format '%s'", c.format), exitcodes.InvalidConfig)
	}
	if err = validateCompression(c.compression); err != nil {
		return err
	}
	decls := make([]weakDecl, 0, len(c.weak))
	for _, s := range c.weak {
		d, err := parseWeakDecl(s)
		if err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		decls = append(decls, d)
	}

	files, types, err := c.source.load(c.gs, conf, args)
	if err != nil {
		return err
	}
	md, err := findMessage(files, c.message)
	if err != nil {
		return err
	}
	msg, wm, err := newDecodeTarget(files, md, decls)
	if err != nil {
		return err
	}

	cache := bridge.NewCodeCache(c.gs.Logger, bridge.WithExtensionTypes(types))
	var h *handlers.Handlers
	if len(c.fields) == 0 {
		h, err = cache.GetWriteHandlers(msg)
	} else {
		h, err = subsetHandlers(cache, types, msg, c.fields)
	}
	if err != nil {
		return err
	}
	c.gs.Logger.Debugf("Decoding with %d cached handler sets", cache.Len())

	data, err := c.readInput()
	if err != nil {
		return err
	}
	opts := decoder.UnmarshalOptions{RecursionLimit: int(conf.RecursionLimit.Int64)}
	if err = opts.Unmarshal(data, h, msg); err != nil {
		return err
	}

	out, err := c.render(files, md, msg, wm)
	if err != nil {
		return err
	}
	printToStdout(c.gs, out)
	return nil
}

// newDecodeTarget returns the message the input is decoded into. With weak
// declarations it is a weakmsg.Message, which is returned as well.
func newDecodeTarget(
	files *protoregistry.Files, md protoreflect.MessageDescriptor, decls []weakDecl,
) (proto.Message, *weakmsg.Message, error) {
	if len(decls) == 0 {
		return dynamicpb.NewMessage(md), nil, nil
	}
	wm := weakmsg.New(md)
	for _, d := range decls {
		typ, err := findMessage(files, string(d.typ))
		if err != nil {
			return nil, nil, err
		}
		if err = wm.Declare(d.field, dynamicpb.NewMessageType(typ)); err != nil {
			return nil, nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
	}
	return wm, wm, nil
}

// subsetHandlers builds handlers that only populate the named fields of
// msg. Names that contain a dot are looked up as extensions. Sub-messages
// of the selected fields are populated completely, with cached handlers.
func subsetHandlers(
	cache *bridge.CodeCache, types *protoregistry.Types, msg proto.Message, names []string,
) (*handlers.Handlers, error) {
	mdef, err := cache.DefBuilder().GetMessageDefExpandWeak(msg)
	if err != nil {
		return nil, err
	}
	h, err := handlers.New(mdef)
	if err != nil {
		return nil, err
	}

	md := msg.ProtoReflect().Descriptor()
	for _, name := range names {
		fd, err := lookupField(types, md, name)
		if err != nil {
			return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		if err = bridge.AddFieldHandler(msg, fd, h); err != nil {
			return nil, err
		}

		prototype, err := bridge.TryGetFieldPrototype(msg, fd)
		if err != nil {
			return nil, err
		}
		if prototype == nil {
			continue
		}
		sub, err := cache.GetWriteHandlers(prototype)
		if err != nil {
			return nil, err
		}
		if err = h.SetSubHandlers(mdef.FindFieldByNumber(fd.Number()), sub); err != nil {
			return nil, err
		}
	}

	if err = handlers.Freeze(h); err != nil {
		return nil, err
	}
	return h, nil
}

func lookupField(
	types *protoregistry.Types, md protoreflect.MessageDescriptor, name string,
) (protoreflect.FieldDescriptor, error) {
	if strings.Contains(name, ".") {
		xt, err := types.FindExtensionByName(protoreflect.FullName(name))
		if err != nil {
			return nil, fmt.Errorf("unknown extension %q: %w", name, err)
		}
		return xt.TypeDescriptor(), nil
	}
	fd := md.Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return nil, fmt.Errorf("%s has no field %q", md.FullName(), name)
	}
	return fd, nil
}

func (c *cmdDecode) readInput() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if c.input == "" || c.input == "-" {
		data, err = io.ReadAll(c.gs.Stdin)
	} else {
		data, err = afero.ReadFile(c.gs.FS, c.input)
	}
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("couldn't read the input: %w", err), exitcodes.InvalidInput)
	}
	return decompress(data, c.compression)
}

func (c *cmdDecode) render(
	files *protoregistry.Files, md protoreflect.MessageDescriptor, msg proto.Message, wm *weakmsg.Message,
) (string, error) {
	resolver := dynamicpb.NewTypes(files)
	marshal := func(m proto.Message) ([]byte, error) {
		if c.format == "text" {
			return prototext.MarshalOptions{Multiline: true, Resolver: resolver}.Marshal(m)
		}
		return protojson.MarshalOptions{Multiline: true, Resolver: resolver}.Marshal(m)
	}

	body, err := marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to print %s: %w", md.FullName(), err)
	}
	if wm == nil {
		return string(body) + "\n", nil
	}

	weak := make(map[string]json.RawMessage)
	var text strings.Builder
	text.Write(body)
	for _, d := range c.weak {
		decl, _ := parseWeakDecl(d)
		v, ok := wm.WeakField(decl.field)
		if !ok {
			continue
		}
		b, err := marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to print weak field %s: %w", decl.field, err)
		}
		weak[string(decl.field)] = b
		fmt.Fprintf(&text, "# weak %s (%s)\n%s", decl.field, decl.typ, b)
	}
	if c.format == "text" {
		return text.String(), nil
	}

	wrapped, err := json.MarshalIndent(struct {
		Message json.RawMessage            `json:"message"`
		Weak    map[string]json.RawMessage `json:"weak"`
	}{Message: body, Weak: weak}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to produce the JSON output: %w", err)
	}
	return string(wrapped) + "\n", nil
}

func getCmdDecode(gs *state.GlobalState) *cobra.Command {
	c := &cmdDecode{gs: gs}

	decodeCmd := &cobra.Command{
		Use:   "decode [file.proto...]",
		Short: "Decode a binary protobuf message",
		Long: `Decode a binary protobuf message with handlers built from its schema,
optionally only populating some of its fields, and print it.`,
		Example: `
  # Decode a Shape read from stdin
  protobridge decode -I protos shapes.proto --message protobridge.test.Shape < shape.bin

  # Only populate two fields, one of them an extension
  protobridge decode -I protos shapes.proto -m protobridge.test.AllKinds --fields s,protobridge.test.pin -i all.bin

  # Decode the bytes field payload as a Point
  protobridge decode -I protos shapes.proto -m protobridge.test.Holder --weak payload=protobridge.test.Point -i holder.bin

  # Decode a zstd compressed payload
  protobridge decode -I protos shapes.proto -m protobridge.test.Shape --compression zstd -i shape.bin.zst`[1:],
		RunE: c.run,
	}

	flags := decodeCmd.Flags()
	flags.AddFlagSet(c.source.flagSet())
	flags.StringVarP(&c.message, "message", "m", "", "fully qualified name of the message to decode")
	flags.StringSliceVar(&c.fields, "fields", nil,
		"only populate these fields; extensions are given by their full name")
	flags.StringArrayVar(&c.weak, "weak", nil,
		"decode the bytes field as a message of the given type, in the form field=package.Type; can be repeated")
	flags.StringVarP(&c.input, "input", "i", "-", "file with the binary message, - for stdin")
	flags.StringVar(&c.compression, "compression", "none",
		"compression of the input: "+strings.Join(compressionTypes, ", "))
	flags.StringVarP(&c.format, "format", "f", "json", "output format: json or text")
	flags.Int64("recursion-limit", decoder.DefaultRecursionLimit, "maximum nesting depth of sub-messages")
	return decodeCmd
}
