package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/anirudhraja/protocodec/protofile"
	"github.com/anirudhraja/protocodec/wire"
)

// rawCommand prints payloads field by field without a schema.
type rawCommand struct {
	g        *globalFlags
	files    *[]string
	maxDepth *int
}

func (cmd *rawCommand) run(*kingpin.ParseContext) error {
	cfg := cmd.g.config()
	codec := protofile.RawCodec{MaxLength: cfg.MaxLength}
	bold := color.New(color.Bold)
	for _, name := range *cmd.files {
		cmd.g.forEachPayload(context.Background(), name, cfg, func(i int, payload []byte) error {
			fields, err := codec.Decode(payload)
			if err != nil {
				return err
			}
			bold.Printf("%s message %d:\n", name, i)
			printRaw(fields, 1, *cmd.maxDepth)
			return nil
		})
	}
	return nil
}

func printRaw(fields []protofile.RawField, depth, maxDepth int) {
	indent := strings.Repeat("  ", depth)
	faint := color.New(color.Faint)
	for _, f := range fields {
		fmt.Printf("%s%d ", indent, f.Number)
		faint.Printf("(%s)", f.WireType)
		switch v := f.Value.(type) {
		case []byte:
			in, ok := f.Interpret()
			switch {
			case ok && in.Fields != nil && depth < maxDepth:
				fmt.Printf(" {\n")
				printRaw(in.Fields, depth+1, maxDepth)
				fmt.Printf("%s}\n", indent)
			case ok && in.IsText:
				fmt.Printf(": %q\n", in.Text)
			default:
				fmt.Printf(": % x\n", v)
			}
		case uint64:
			if f.WireType == wire.WireVarint {
				fmt.Printf(": %d (sint %d)\n", v, wire.DecodeZigZag64(v))
			} else {
				fmt.Printf(": %d\n", v)
			}
		default:
			fmt.Printf(": %v\n", v)
		}
	}
}

func addRawCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &rawCommand{g: g}
	raw := app.Command("raw", "Print payloads field by field without a schema.").Action(cmd.run)
	cmd.maxDepth = raw.Flag("max-depth", "How deep to guess nested messages.").Default("8").Int()
	cmd.files = raw.Arg("file", "Files to print, - for standard input.").Required().Strings()
}
