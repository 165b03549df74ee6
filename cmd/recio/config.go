package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/recio"
	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/format"
	"github.com/hupe1980/recio/resource"
)

// Config is the CLI configuration. Every field can be set by flag, by
// environment variable (RECIO_ prefix, dashes as underscores, e.g.
// RECIO_BUFFER_SIZE) or by a config file.
type Config struct {
	BufferSize  int    `mapstructure:"buffer-size"`
	Format      string `mapstructure:"format"`
	Delimiter   string `mapstructure:"delimiter"`
	Fixed       int    `mapstructure:"fixed"`
	Compression string `mapstructure:"compression"`

	AllowPartial    bool `mapstructure:"allow-partial"`
	AbortOnPartial  bool `mapstructure:"abort-on-partial"`
	AbortOnError    bool `mapstructure:"abort-on-error"`
	AbortOnNotFound bool `mapstructure:"abort-on-not-found"`
	AbortOnEmpty    bool `mapstructure:"abort-on-empty"`

	Unique    bool `mapstructure:"unique"`
	KeepFirst bool `mapstructure:"keep-first"`
	Group     bool `mapstructure:"group"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	MemoryLimit int64 `mapstructure:"memory-limit"`
	IOLimit     int64 `mapstructure:"io-limit"`
	MaxOpens    int64 `mapstructure:"max-opens"`

	S3Endpoint string `mapstructure:"s3-endpoint"`
	S3Region   string `mapstructure:"s3-region"`

	MinioEndpoint  string `mapstructure:"minio-endpoint"`
	MinioAccessKey string `mapstructure:"minio-access-key"`
	MinioSecretKey string `mapstructure:"minio-secret-key"`
	MinioSecure    bool   `mapstructure:"minio-secure"`
}

func addFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")

	fs.Int("buffer-size", recio.DefaultBufferSize, "reader buffer size in bytes")
	fs.String("format", "delimiter", "framing: prefix, delimiter or fixed")
	fs.String("delimiter", `\n`, `record delimiter: a byte, an escape such as \t or \0, or 0xNN`)
	fs.Int("fixed", 0, "record length for fixed framing")
	fs.String("compression", "", "codec: none, gzip, lz4 or zstd (default: from file suffix)")

	fs.Bool("allow-partial", false, "yield an incomplete trailing record")
	fs.Bool("abort-on-partial", false, "fail on an incomplete trailing record")
	fs.Bool("abort-on-error", false, "fail on corrupt compressed input")
	fs.Bool("abort-on-not-found", false, "fail on a missing input")
	fs.Bool("abort-on-empty", false, "fail on an empty input")

	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")

	fs.Int64("memory-limit", 0, "memory budget for buffers in bytes (0: unlimited)")
	fs.Int64("io-limit", 0, "read throughput limit in bytes per second (0: unlimited)")
	fs.Int64("max-opens", 8, "inputs opened concurrently when expanding a prefix")

	fs.String("s3-endpoint", "", "custom S3 endpoint URL")
	fs.String("s3-region", "", "S3 region (default: from the AWS environment)")

	fs.String("minio-endpoint", "localhost:9000", "MinIO endpoint host:port")
	fs.String("minio-access-key", "", "MinIO access key")
	fs.String("minio-secret-key", "", "MinIO secret key")
	fs.Bool("minio-secure", false, "use TLS for MinIO")
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("RECIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (*Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	modes := 0
	for _, on := range []bool{cfg.Unique, cfg.KeepFirst, cfg.Group} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return nil, fmt.Errorf("--unique, --keep-first and --group are mutually exclusive")
	}
	return cfg, nil
}

// parseDelimiter accepts a literal byte, a Go escape or a 0xNN value.
func parseDelimiter(s string) (byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid delimiter %q: %w", s, err)
		}
		return byte(n), nil
	}
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return 0, fmt.Errorf("invalid delimiter %q: %w", s, err)
	}
	if len(unquoted) != 1 {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single byte", s)
	}
	return unquoted[0], nil
}

func (c *Config) logger(w io.Writer) (*recio.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json":
		return recio.NewJSONLogger(w, level), nil
	case "text", "":
		return recio.NewTextLogger(w, level), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}

func (c *Config) resources() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   c.MemoryLimit,
		MaxConcurrentOpens: c.MaxOpens,
		IOLimitBytesPerSec: c.IOLimit,
	})
}

// readerOptions translates the configuration into leaf options.
func (c *Config) readerOptions() ([]recio.Option, error) {
	delim, err := parseDelimiter(c.Delimiter)
	if err != nil {
		return nil, err
	}
	f, err := format.Parse(c.Format, delim, c.Fixed)
	if err != nil {
		return nil, err
	}
	opts := []recio.Option{
		recio.WithBufferSize(c.BufferSize),
		recio.WithFormat(f),
	}

	if c.Compression != "" {
		kind, ok := codec.ByName(c.Compression)
		if !ok {
			return nil, fmt.Errorf("unknown compression %q", c.Compression)
		}
		opts = append(opts, recio.WithCompression(kind, 0))
	}

	flags := []struct {
		on  bool
		opt recio.Option
	}{
		{c.AllowPartial, recio.WithAllowPartial()},
		{c.AbortOnPartial, recio.WithAbortOnPartial()},
		{c.AbortOnError, recio.WithAbortOnError()},
		{c.AbortOnNotFound, recio.WithAbortOnNotFound()},
		{c.AbortOnEmpty, recio.WithAbortOnEmpty()},
	}
	for _, f := range flags {
		if f.on {
			opts = append(opts, f.opt)
		}
	}
	return opts, nil
}
