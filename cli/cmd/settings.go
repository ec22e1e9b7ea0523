package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/adapter"
	"github.com/pithecene-io/mwi/adapter/redis"
	"github.com/pithecene-io/mwi/adapter/webhook"
	"github.com/pithecene-io/mwi/archive"
	"github.com/pithecene-io/mwi/cli/config"
	"github.com/pithecene-io/mwi/log"
	"github.com/pithecene-io/mwi/transport"
	"github.com/pithecene-io/mwi/types"
)

// DefaultEndpoint is the service base URL when neither flag, env nor config sets one.
const DefaultEndpoint = "http://localhost:5000"

// defaultLogLevel keeps CLI output readable; --log-level debug shows the stream.
const defaultLogLevel = "warn"

// loadSettings resolves configuration in precedence order:
// .env file < mwi.yaml < MWI_* env < flags.
func loadSettings(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("timeout") {
		cfg.Timeout.Duration = c.Duration("timeout")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if headers := c.StringSlice("header"); len(headers) > 0 {
		parsed, err := parsePairs(headers, "--header")
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(parsed))
		}
		for k, v := range parsed {
			cfg.Headers[k] = v
		}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePairs parses repeated name=value flag values.
func parsePairs(values []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid %s %q: expected name=value", flag, kv)
		}
		out[name] = value
	}
	return out, nil
}

// newLogger builds the CLI logger on the app's error writer.
func newLogger(c *cli.Context, cfg *config.Config) (*log.Logger, error) {
	lvl, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(log.Context{Endpoint: cfg.Endpoint}).
		WithOutput(errWriter(c)).
		WithLevel(lvl), nil
}

// newClient builds the transport client from resolved settings.
func newClient(cfg *config.Config, logger *log.Logger) (*transport.Client, error) {
	return transport.New(transport.Config{
		BaseURL:               cfg.Endpoint,
		SubmitPath:            cfg.SubmitPath,
		AttachmentField:       cfg.AttachmentField,
		Headers:               cfg.Headers,
		UserAgent:             "mwi/" + types.Version,
		ResponseHeaderTimeout: cfg.Timeout.Duration,
		Logger:                logger,
	})
}

// newAdapter builds the configured completion adapter, or nil when none is set.
func newAdapter(cfg *config.Config) (adapter.Adapter, error) {
	ac := cfg.Adapter
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.Type)
	}
}

// newSink resolves an archive destination. dest overrides the config's output
// section; it is either a directory or "s3://bucket[/prefix]". Returns nil
// when no destination is configured.
func newSink(ctx context.Context, dest string, cfg *config.Config) (archive.Sink, error) {
	out := cfg.Output
	switch {
	case dest != "" && archive.IsS3Destination(dest):
		bucket, prefix := archive.ParseS3Path(dest)
		return archive.NewS3Sink(ctx, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       out.S3.Region,
			Endpoint:     out.S3.Endpoint,
			UsePathStyle: out.S3.PathStyle,
		})
	case dest != "":
		return archive.NewFileSink(dest)
	case out.S3.Enabled():
		return archive.NewS3Sink(ctx, archive.S3Config{
			Bucket:       out.S3.Bucket,
			Prefix:       out.S3.Prefix,
			Region:       out.S3.Region,
			Endpoint:     out.S3.Endpoint,
			UsePathStyle: out.S3.PathStyle,
		})
	case out.Dir != "":
		return archive.NewFileSink(out.Dir)
	default:
		return nil, nil
	}
}

// errWriter is where progress, warnings and logs go.
func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
