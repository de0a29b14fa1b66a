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
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/protobridge/bridge"
	"github.com/liuxd6825/protobridge/cmd/state"
	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

// inspectReport is what `inspect` prints.
type inspectReport struct {
	Root        string           `json:"root,omitempty" yaml:"root,omitempty"`
	Definitions int              `json:"definitions" yaml:"definitions"`
	Messages    []messageSummary `json:"messages" yaml:"messages"`
}

type messageSummary struct {
	Name     string         `json:"name" yaml:"name"`
	Syntax   string         `json:"syntax" yaml:"syntax"`
	MapEntry bool           `json:"mapEntry,omitempty" yaml:"mapEntry,omitempty"`
	Fields   []fieldSummary `json:"fields" yaml:"fields"`
	Oneofs   []string       `json:"oneofs,omitempty" yaml:"oneofs,omitempty"`
}

type fieldSummary struct {
	Number    int32  `json:"number" yaml:"number"`
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	Repeated  bool   `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Packed    bool   `json:"packed,omitempty" yaml:"packed,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Closed    bool   `json:"closedEnum,omitempty" yaml:"closedEnum,omitempty"`
	Oneof     string `json:"oneof,omitempty" yaml:"oneof,omitempty"`
	Extension bool   `json:"extension,omitempty" yaml:"extension,omitempty"`
	Weak      bool   `json:"weak,omitempty" yaml:"weak,omitempty"`
}

type cmdInspect struct {
	gs      *state.GlobalState
	source  schemaSource
	message string
	format  string
}

func (c *cmdInspect) run(cmd *cobra.Command, args []string) error {
	conf, err := getConsolidatedConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	switch c.format {
	case "text", "json", "yaml":
	default:
		return errext.WithExitCodeIfNone(fmt.Errorf("unsupported output format '%s'", c.format), exitcodes.InvalidConfig)
	}

	files, types, err := c.source.load(c.gs, conf, args)
	if err != nil {
		return err
	}

	builder := bridge.NewDefBuilder(c.gs.Logger, bridge.WithExtensionTypes(types))
	report := inspectReport{}
	var defs []*def.MessageDef
	if c.message != "" {
		md, err := findMessage(files, c.message)
		if err != nil {
			return err
		}
		root, err := builder.GetMessageDef(md)
		if err != nil {
			return err
		}
		report.Root = string(root.FullName())
		defs = reachableMessages(root)
	} else {
		for _, md := range allMessages(files) {
			d, err := builder.GetMessageDef(md)
			if err != nil {
				return err
			}
			defs = append(defs, d)
		}
	}

	report.Definitions = builder.Len()
	for _, d := range defs {
		report.Messages = append(report.Messages, summarize(d))
	}
	sort.Slice(report.Messages, func(i, j int) bool {
		return report.Messages[i].Name < report.Messages[j].Name
	})

	return c.print(report)
}

func (c *cmdInspect) print(report inspectReport) error {
	switch c.format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to produce the JSON report: %w", err)
		}
		printToStdout(c.gs, string(data)+"\n")
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to produce the YAML report: %w", err)
		}
		printToStdout(c.gs, string(data))
	default:
		printToStdout(c.gs, c.text(report))
	}
	return nil
}

func (c *cmdInspect) text(report inspectReport) string {
	noColor := c.gs.Flags.NoColor || !c.gs.Stdout.IsTTY
	nameColor := getColor(noColor, color.Bold, color.FgCyan)
	typeColor := getColor(noColor, color.FgMagenta)
	faint := getColor(noColor, color.Faint)

	var sb strings.Builder
	for _, m := range report.Messages {
		header := nameColor.Sprint(m.Name) + " " + faint.Sprintf("(%s)", m.Syntax)
		if m.MapEntry {
			header += faint.Sprint(" map entry")
		}
		sb.WriteString(header + "\n")

		for _, f := range m.Fields {
			kind := f.Kind
			if f.Repeated {
				kind = "repeated " + kind
			}
			line := fmt.Sprintf("  %4d  %-16s %s", f.Number, f.Name, kind)
			if f.Type != "" {
				line += " " + typeColor.Sprint(f.Type)
			}
			var attrs []string
			if f.Packed {
				attrs = append(attrs, "packed")
			}
			if f.Closed {
				attrs = append(attrs, "closed")
			}
			if f.Oneof != "" {
				attrs = append(attrs, "oneof "+f.Oneof)
			}
			if f.Extension {
				attrs = append(attrs, "extension")
			}
			if f.Weak {
				attrs = append(attrs, "weak")
			}
			if len(attrs) > 0 {
				line += " " + faint.Sprintf("[%s]", strings.Join(attrs, ", "))
			}
			sb.WriteString(line + "\n")
		}
	}
	sb.WriteString(faint.Sprintf("%d definitions\n", report.Definitions))
	return sb.String()
}

func summarize(d *def.MessageDef) messageSummary {
	s := messageSummary{
		Name:     string(d.FullName()),
		Syntax:   d.Syntax().String(),
		MapEntry: d.IsMapEntry(),
	}
	for i := 0; i < d.FieldCount(); i++ {
		f := d.Field(i)
		fs := fieldSummary{
			Number:    int32(f.Number()),
			Name:      string(f.Name()),
			Kind:      f.Kind().String(),
			Repeated:  f.IsRepeated(),
			Packed:    f.IsPacked(),
			Extension: f.IsExtension(),
			Weak:      f.IsWeak(),
		}
		if f.IsExtension() {
			fs.Name = string(f.FullName())
		}
		if sub := f.SubDef(); sub != nil {
			fs.Type = string(sub.FullName())
		}
		if e := f.EnumSubDef(); e != nil {
			fs.Closed = e.IsClosed()
		}
		if o := f.ContainingOneof(); o != nil {
			fs.Oneof = string(o.Name())
		}
		s.Fields = append(s.Fields, fs)
	}
	sort.Slice(s.Fields, func(i, j int) bool { return s.Fields[i].Number < s.Fields[j].Number })
	for i := 0; i < d.OneofCount(); i++ {
		s.Oneofs = append(s.Oneofs, string(d.Oneof(i).Name()))
	}
	return s
}

// reachableMessages returns root and every message definition reachable
// from it, each once.
func reachableMessages(root *def.MessageDef) []*def.MessageDef {
	seen := map[*def.MessageDef]struct{}{root: {}}
	queue := []*def.MessageDef{root}
	for i := 0; i < len(queue); i++ {
		m := queue[i]
		for j := 0; j < m.FieldCount(); j++ {
			sub := m.Field(j).MessageSubDef()
			if sub == nil {
				continue
			}
			if _, ok := seen[sub]; !ok {
				seen[sub] = struct{}{}
				queue = append(queue, sub)
			}
		}
	}
	return queue
}

// allMessages returns every message declared in files, nested ones
// included, except map entries.
func allMessages(files *protoregistry.Files) []protoreflect.MessageDescriptor {
	var result []protoreflect.MessageDescriptor
	var walk func(protoreflect.MessageDescriptors)
	walk = func(mds protoreflect.MessageDescriptors) {
		for i := 0; i < mds.Len(); i++ {
			md := mds.Get(i)
			if md.IsMapEntry() {
				continue
			}
			result = append(result, md)
			walk(md.Messages())
		}
	}
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		walk(fd.Messages())
		return true
	})
	return result
}

func getCmdInspect(gs *state.GlobalState) *cobra.Command {
	c := &cmdInspect{gs: gs}

	inspectCmd := &cobra.Command{
		Use:   "inspect [file.proto...]",
		Short: "Print the definitions built from protobuf schemas",
		Long: `Build the definition graph of a message, or of every message in the
given schemas, and print a summary of it.`,
		Example: `
  # Summarize every message of a schema
  protobridge inspect -I protos shapes.proto

  # Show the definitions reachable from one message, as JSON
  protobridge inspect -I protos shapes.proto --message protobridge.test.Shape --format json

  # Load the schemas from a running gRPC server
  protobridge inspect --reflect localhost:50051`[1:],
		RunE: c.run,
	}

	flags := inspectCmd.Flags()
	flags.AddFlagSet(c.source.flagSet())
	flags.StringVarP(&c.message, "message", "m", "", "fully qualified name of the message to inspect")
	flags.StringVarP(&c.format, "format", "f", "text", "output format: text, json or yaml")
	return inspectCmd
}
