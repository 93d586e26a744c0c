package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec/protofile"
)

// decodeCommand decodes payloads with a .proto schema and prints JSON.
type decodeCommand struct {
	g           *globalFlags
	importPaths *[]string
	protoFile   *string
	messageType *string
	indent      *bool
	files       *[]string
}

func (cmd *decodeCommand) run(*kingpin.ParseContext) error {
	cfg := cmd.g.config()
	opts := []protofile.Option{
		protofile.WithImportPaths(*cmd.importPaths...),
		protofile.WithLogger(logger),
		protofile.WithMaxLength(cfg.MaxLength),
	}
	if cfg.RejectReservedNumbers {
		opts = append(opts, protofile.WithRejectReserved())
	}
	reg := protofile.NewRegistry(opts...)
	if err := reg.LoadFile(*cmd.protoFile); err != nil {
		exitWithErr(errors.Wrap(err, "load schema"))
	}
	codec, err := reg.Codec(*cmd.messageType)
	if err != nil {
		exitWithErr(err)
	}
	level.Debug(logger).Log("msg", "decoding", "message", codec.Descriptor().FullName)

	json := jsoniter.ConfigCompatibleWithStandardLibrary
	enc := json.NewEncoder(os.Stdout)
	if *cmd.indent {
		enc.SetIndent("", "  ")
	}
	for _, name := range *cmd.files {
		cmd.g.forEachPayload(context.Background(), name, cfg, func(_ int, payload []byte) error {
			msg, err := codec.Decode(payload)
			if err != nil {
				return err
			}
			return enc.Encode(jsonable(msg.AsMap()))
		})
	}
	return nil
}

// jsonable rewrites values JSON cannot carry as they are: map keys become
// strings, durations and timestamps their text forms.
func jsonable(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonable(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = jsonable(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonable(e)
		}
		return out
	case time.Duration:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func addDecodeCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &decodeCommand{g: g}
	decode := app.Command("decode", "Decode payloads with a .proto schema and print them as JSON.").Action(cmd.run)
	cmd.importPaths = decode.Flag("proto_path", "Directory searched for .proto files and imports. Repeatable.").Short('I').Default(".").Strings()
	cmd.protoFile = decode.Flag("proto", "The .proto file defining the message, relative to an import path.").Required().String()
	cmd.messageType = decode.Flag("type", "Message type, fully qualified or by unique suffix.").Required().String()
	cmd.indent = decode.Flag("indent", "Indent the JSON output.").Bool()
	cmd.files = decode.Arg("file", "Files to decode, - for standard input.").Required().Strings()
}
