package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pithecene-io/mwi/log"
	"github.com/pithecene-io/mwi/submit"
)

// Config represents an mwi.yaml configuration file.
// All values are optional and act as defaults for mwi flags.
// MWI_* environment variables override file values; CLI flags override both.
type Config struct {
	Endpoint        string            `yaml:"endpoint" env:"MWI_ENDPOINT"`
	SubmitPath      string            `yaml:"submit_path" env:"MWI_SUBMIT_PATH"`
	AttachmentField string            `yaml:"attachment_field" env:"MWI_ATTACHMENT_FIELD"`
	Headers         map[string]string `yaml:"headers"`
	Timeout         Duration          `yaml:"timeout" env:"MWI_TIMEOUT"`
	Validation      ValidationConfig  `yaml:"validation"`
	Stream          StreamConfig      `yaml:"stream"`
	Journal         string            `yaml:"journal" env:"MWI_JOURNAL"`
	Output          OutputConfig      `yaml:"output"`
	Adapter         AdapterConfig     `yaml:"adapter"`
	Log             LogConfig         `yaml:"log"`
}

// ValidationConfig overrides the submission constraints.
type ValidationConfig struct {
	MaxBytes     int64         `yaml:"max_bytes" env:"MWI_VALIDATION_MAX_BYTES"`
	AllowedTypes []string      `yaml:"allowed_types" env:"MWI_VALIDATION_ALLOWED_TYPES" envSeparator:","`
	VerifyImage  bool          `yaml:"verify_image" env:"MWI_VALIDATION_VERIFY_IMAGE"`
	Fields       []FieldConfig `yaml:"fields" env:"-"`
}

// FieldConfig constrains one auxiliary form field.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Pattern  string `yaml:"pattern"`
	Required bool   `yaml:"required"`
}

// StreamConfig holds progress stream limits.
type StreamConfig struct {
	MaxFrameBytes int `yaml:"max_frame_bytes" env:"MWI_STREAM_MAX_FRAME_BYTES"`
}

// OutputConfig selects where a completed job's archive is saved.
// At most one of Dir and S3.Bucket may be set.
type OutputConfig struct {
	Dir string         `yaml:"dir" env:"MWI_OUTPUT_DIR"`
	S3  S3OutputConfig `yaml:"s3"`
}

// S3OutputConfig holds S3 archive destination settings.
type S3OutputConfig struct {
	Bucket    string `yaml:"bucket" env:"MWI_OUTPUT_S3_BUCKET"`
	Prefix    string `yaml:"prefix" env:"MWI_OUTPUT_S3_PREFIX"`
	Region    string `yaml:"region" env:"MWI_OUTPUT_S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"MWI_OUTPUT_S3_ENDPOINT"`
	PathStyle bool   `yaml:"path_style" env:"MWI_OUTPUT_S3_PATH_STYLE"`
}

// Enabled reports whether an S3 destination is configured.
func (s S3OutputConfig) Enabled() bool {
	return s.Bucket != ""
}

// AdapterConfig holds completion adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type" env:"MWI_ADAPTER_TYPE"`
	URL     string            `yaml:"url" env:"MWI_ADAPTER_URL"`
	Channel string            `yaml:"channel,omitempty" env:"MWI_ADAPTER_CHANNEL"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" env:"MWI_ADAPTER_TIMEOUT"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level" env:"MWI_LOG_LEVEL"`
}

// Duration wraps time.Duration for YAML and env string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses a duration string. Empty leaves the zero value.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the config for values no flag can repair.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("endpoint %q must be an http or https URL", c.Endpoint))
		}
	}
	if c.Timeout.Duration < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.Validation.MaxBytes < 0 {
		errs = append(errs, errors.New("validation.max_bytes must not be negative"))
	}
	if c.Stream.MaxFrameBytes < 0 {
		errs = append(errs, errors.New("stream.max_frame_bytes must not be negative"))
	}
	if _, err := c.Constraints(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.Dir != "" && c.Output.S3.Enabled() {
		errs = append(errs, errors.New("output.dir and output.s3 are mutually exclusive"))
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for adapter type %q", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q (want webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, errors.New("adapter.retries must not be negative"))
	}

	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Constraints converts the validation section into submission constraints.
// Unset values keep the defaults; a non-empty field list replaces the default
// Drive link rule.
func (c *Config) Constraints() (submit.Constraints, error) {
	cons := submit.DefaultConstraints()
	v := c.Validation

	if v.MaxBytes > 0 {
		cons.MaxBytes = v.MaxBytes
	}
	if len(v.AllowedTypes) > 0 {
		cons.AllowedTypePrefixes = append([]string(nil), v.AllowedTypes...)
	}
	cons.VerifyImage = v.VerifyImage

	if len(v.Fields) == 0 {
		return cons, nil
	}
	rules := make([]submit.FieldRule, 0, len(v.Fields))
	for i, f := range v.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return submit.Constraints{}, fmt.Errorf("validation.fields[%d]: name is required", i)
		}
		rule := submit.FieldRule{Name: name, Label: f.Label, Required: f.Required}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return submit.Constraints{}, fmt.Errorf("validation.fields[%d]: invalid pattern %q: %w", i, f.Pattern, err)
			}
			rule.Pattern = re
		}
		rules = append(rules, rule)
	}
	cons.Fields = rules
	return cons, nil
}
