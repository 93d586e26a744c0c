package protocodec

import (
	"bytes"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
)

// Config controls the stream drivers and the codecs built from .proto files.
// The zero value is usable; unset sizes fall back to DefaultConfig.
type Config struct {
	// ChunkSize is the read and write buffer size of the stream drivers.
	ChunkSize int `yaml:"chunk_size"`

	// MaxMessageSize bounds the bytes DecodeFrom and DelimitedReader accept
	// for one message. Zero means unlimited.
	MaxMessageSize int `yaml:"max_message_size"`

	// RejectReservedNumbers fails decodes that meet field numbers in the
	// implementation-reserved range 19000..19999 instead of skipping them.
	RejectReservedNumbers bool `yaml:"reject_reserved_numbers"`

	// MaxLength caps length prefixes read while decoding. MessageOptions
	// applies it to skipped unknown fields and to the embedded message frame,
	// FieldOptions to string, bytes, packed and map payloads of declared
	// fields. Zero means unlimited.
	MaxLength int `yaml:"max_length"`
}

const (
	defaultChunkSize      = 4 << 10
	defaultMaxMessageSize = 64 << 20
)

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      defaultChunkSize,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	return c
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize < 0:
		return errors.Errorf("chunk_size must not be negative, got %d", c.ChunkSize)
	case c.MaxMessageSize < 0:
		return errors.Errorf("max_message_size must not be negative, got %d", c.MaxMessageSize)
	case c.MaxLength < 0:
		return errors.Errorf("max_length must not be negative, got %d", c.MaxLength)
	}
	return nil
}

// MessageOptions translates the config into options for message.New.
func (c Config) MessageOptions() []message.Option {
	var opts []message.Option
	if c.RejectReservedNumbers {
		opts = append(opts, message.RejectReserved())
	}
	if c.MaxLength > 0 {
		opts = append(opts, message.MaxLength(c.MaxLength))
	}
	return opts
}

// FieldOptions translates the config into options shared by the fields of
// a message.
func (c Config) FieldOptions() []field.Option {
	if c.MaxLength <= 0 {
		return nil
	}
	return []field.Option{field.MaxLength(c.MaxLength)}
}

// Environment variables read by ConfigFromEnv.
const (
	EnvChunkSize      = "PROTOCODEC_CHUNK_SIZE"
	EnvMaxMessageSize = "PROTOCODEC_MAX_MESSAGE_SIZE"
	EnvRejectReserved = "PROTOCODEC_REJECT_RESERVED"
	EnvMaxLength      = "PROTOCODEC_MAX_LENGTH"
)

// ConfigFromEnv returns DefaultConfig overridden by PROTOCODEC_* variables.
func ConfigFromEnv() (Config, error) {
	return applyEnv(DefaultConfig(), os.LookupEnv)
}

func applyEnv(c Config, lookup func(string) (string, bool)) (Config, error) {
	ints := []struct {
		name string
		dst  *int
	}{
		{EnvChunkSize, &c.ChunkSize},
		{EnvMaxMessageSize, &c.MaxMessageSize},
		{EnvMaxLength, &c.MaxLength},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrapf(err, "parse %s", e.name)
		}
		*e.dst = n
	}
	if v, ok := lookup(EnvRejectReserved); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, errors.Wrapf(err, "parse %s", EnvRejectReserved)
		}
		c.RejectReservedNumbers = b
	}
	return c, c.Validate()
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	return ParseConfig(buf)
}

// ParseConfig decodes YAML config on top of DefaultConfig. Unknown keys are
// rejected.
func ParseConfig(buf []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, cfg.Validate()
}
