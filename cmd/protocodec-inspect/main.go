// Command protocodec-inspect prints protobuf payloads, with or without the
// .proto schema that describes them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/anirudhraja/protocodec"
	"github.com/anirudhraja/protocodec/wire"
)

var logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel    *string
	configFile  *string
	compression *string
	delimited   *bool
}

func (g *globalFlags) config() protocodec.Config {
	if *g.configFile == "" {
		cfg, err := protocodec.ConfigFromEnv()
		if err != nil {
			exitWithErr(err)
		}
		return cfg
	}
	cfg, err := protocodec.LoadConfig(*g.configFile)
	if err != nil {
		exitWithErr(errors.Wrapf(err, "load %s", *g.configFile))
	}
	return cfg
}

func (g *globalFlags) setupLogger() {
	var opt level.Option
	switch strings.ToLower(*g.logLevel) {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	logger = level.NewFilter(logger, opt)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
}

// open returns the decompressed content of name; "-" is standard input.
func (g *globalFlags) open(name string) (io.ReadCloser, error) {
	var f io.ReadCloser = os.Stdin
	if name != "-" {
		var err error
		if f, err = os.Open(name); err != nil {
			return nil, errors.Wrap(err, "failed to open file")
		}
	}
	r, err := decompress(f, *g.compression)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

func decompress(f io.ReadCloser, compression string) (io.ReadCloser, error) {
	switch compression {
	case "", "none":
		return f, nil
	case "gzip":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		return readCloser{zr, func() error { _ = zr.Close(); return f.Close() }}, nil
	case "zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open zstd stream")
		}
		return readCloser{zr, func() error { zr.Close(); return f.Close() }}, nil
	case "snappy":
		return readCloser{snappy.NewReader(f), f.Close}, nil
	default:
		return nil, errors.Errorf("unknown compression %q", compression)
	}
}

// forEachPayload calls fn with every message payload in name: the whole
// input, or each varint-delimited message when --delimited is set.
func (g *globalFlags) forEachPayload(ctx context.Context, name string, cfg protocodec.Config, fn func(i int, payload []byte) error) {
	f, err := g.open(name)
	if err != nil {
		exitWithErr(err)
	}
	defer func() { _ = f.Close() }()

	if !*g.delimited {
		payload, err := protocodec.DecodeFrom(ctx, f, bytesCodec{}, cfg)
		if err != nil {
			exitWithErr(errors.Wrapf(err, "read %s", name))
		}
		if err := fn(0, payload); err != nil {
			exitWithErr(errors.Wrapf(err, "%s", name))
		}
		return
	}

	r := protocodec.NewDelimitedReader(f, bytesCodec{}, cfg)
	for i := 0; ; i++ {
		payload, err := r.Next(ctx)
		if err == io.EOF {
			level.Debug(logger).Log("msg", "end of stream", "file", name, "messages", i)
			return
		}
		if err != nil {
			exitWithErr(errors.Wrapf(err, "read message %d of %s", i, name))
		}
		if err := fn(i, payload); err != nil {
			exitWithErr(errors.Wrapf(err, "message %d of %s", i, name))
		}
	}
}

func exitWithErr(err error) {
	level.Error(logger).Log("err", err)
	os.Exit(1)
}

func main() {
	app := kingpin.New("protocodec-inspect", "A command-line tool to inspect protobuf payloads.")
	g := &globalFlags{
		logLevel:    app.Flag("log.level", "Only log messages with the given severity or above. One of: [debug, info, warn, error]").Default("info").String(),
		configFile:  app.Flag("config", "YAML file with decoding limits.").String(),
		compression: app.Flag("compression", "Compression of the input.").Default("none").Enum("none", "gzip", "zstd", "snappy"),
		delimited:   app.Flag("delimited", "Input is a stream of varint-delimited messages.").Bool(),
	}
	app.PreAction(func(*kingpin.ParseContext) error {
		g.setupLogger()
		return nil
	})

	addRawCommand(app, g)
	addDecodeCommand(app, g)
	addStatsCommand(app, g)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bytesCodec reads a whole payload without interpreting it, so commands can
// share the stream drivers and then decode with the codec they need.
type bytesCodec struct{}

func (bytesCodec) EncodedSize(b []byte) int { return len(b) }

func (bytesCodec) NewEncoder(b []byte) wire.Encoder { return wire.NewRawEncoder(b) }

func (bytesCodec) NewDecoder() wire.ValueDecoder[[]byte] { return &collector{} }

type collector struct {
	buf  []byte
	done bool
}

func (c *collector) Decode(buf []byte, eos bool) (int, error) {
	c.buf = append(c.buf, buf...)
	c.done = eos
	return len(buf), nil
}

func (c *collector) Done() bool { return c.done }

func (c *collector) Value() []byte { return c.buf }
