// Package config loads the sshkex YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/destination"
	"github.com/pzverkov/sshkex/pkg/handshake"
	"github.com/pzverkov/sshkex/pkg/probe"
)

// Version is the only configuration file version understood.
const Version = "1"

// Tracing backends.
const (
	TracingNone   = "none"
	TracingSimple = "simple"
	TracingOTel   = "otel"
)

// File is the on-disk configuration. Zero values mean "use the default".
type File struct {
	Version       string        `yaml:"version"`
	Banner        string        `yaml:"banner,omitempty"`
	Timeouts      Timeouts      `yaml:"timeouts,omitempty"`
	Limits        Limits        `yaml:"limits,omitempty"`
	ProxyProtocol byte          `yaml:"proxy_protocol,omitempty"`
	Rate          Rate          `yaml:"rate,omitempty"`
	Concurrency   int           `yaml:"concurrency,omitempty"`
	Ban           Ban           `yaml:"ban,omitempty"`
	ResultTTL     time.Duration `yaml:"result_ttl,omitempty"`
	Log           Log           `yaml:"log,omitempty"`
	Tracing       string        `yaml:"tracing,omitempty"`
	OTLPEndpoint  string        `yaml:"otlp_endpoint,omitempty"`
	Metrics       Metrics       `yaml:"metrics,omitempty"`
	Destinations  listOrString  `yaml:"destinations,omitempty"`
}

type Timeouts struct {
	Connect time.Duration `yaml:"connect,omitempty"`
	Read    time.Duration `yaml:"read,omitempty"`
	Write   time.Duration `yaml:"write,omitempty"`
}

type Limits struct {
	MaxBannerLength int    `yaml:"max_banner_length,omitempty"`
	MaxPacketLength uint32 `yaml:"max_packet_length,omitempty"`
	LengthSlack     int    `yaml:"length_slack,omitempty"`
}

type Rate struct {
	PerSecond float64 `yaml:"per_second,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

type Ban struct {
	MaxFailures int           `yaml:"max_failures,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
}

type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type Metrics struct {
	// Listen is the address of the observability server. Empty disables it.
	Listen string `yaml:"listen,omitempty"`
}

// listOrString accepts either a single scalar or a sequence of scalars.
type listOrString struct {
	List []string
	Str  string
}

func (l *listOrString) Combine() []string {
	if l.Str != "" {
		return append(l.List, l.Str)
	}
	return l.List
}

func (l *listOrString) UnmarshalYAML(value *yaml.Node) error {
	var list []string
	if err := value.Decode(&list); err == nil {
		l.List = list
		return nil
	}
	var str string
	if err := value.Decode(&str); err == nil {
		l.Str = str
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Version: Version,
		Log:     Log{Level: "info", Format: "text"},
		Tracing: TracingNone,
	}
}

// Load reads and validates the file at path. An empty path returns Default.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidConfig, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks values that cannot be caught by the decoder.
func (f *File) Validate() error {
	if f.Version != Version {
		return fmt.Errorf("%w: unsupported version %q", qerrors.ErrInvalidConfig, f.Version)
	}
	switch f.Tracing {
	case "", TracingNone, TracingSimple, TracingOTel:
	default:
		return fmt.Errorf("%w: unknown tracing backend %q", qerrors.ErrInvalidConfig, f.Tracing)
	}
	if f.Concurrency < 0 || f.Rate.Burst < 0 {
		return fmt.Errorf("%w: negative concurrency or burst", qerrors.ErrInvalidConfig)
	}
	if _, err := f.DestinationList(); err != nil {
		return err
	}
	return f.HandshakeConfig().Validate()
}

// DestinationList parses the configured destinations.
func (f *File) DestinationList() ([]destination.Destination, error) {
	return destination.ParseAll(f.Destinations.Combine())
}

// HandshakeConfig returns the handshake settings merged over the defaults.
func (f *File) HandshakeConfig() handshake.Config {
	cfg := handshake.DefaultConfig()
	if f.Banner != "" {
		cfg.LocalBanner = f.Banner
	}
	if f.Timeouts.Connect != 0 {
		cfg.ConnectTimeout = f.Timeouts.Connect
	}
	if f.Timeouts.Read != 0 {
		cfg.ReadTimeout = f.Timeouts.Read
	}
	if f.Timeouts.Write != 0 {
		cfg.WriteTimeout = f.Timeouts.Write
	}
	if f.Limits.MaxBannerLength != 0 {
		cfg.MaxBannerLength = f.Limits.MaxBannerLength
	}
	if f.Limits.MaxPacketLength != 0 {
		cfg.MaxPacketLength = f.Limits.MaxPacketLength
	}
	if f.Limits.LengthSlack != 0 {
		cfg.LengthSlack = f.Limits.LengthSlack
	}
	cfg.ProxyProtocol = f.ProxyProtocol
	return cfg
}

// ProbeConfig returns the prober settings. Logging, metrics and tracing
// are left for the caller to wire.
func (f *File) ProbeConfig() probe.Config {
	cfg := probe.DefaultConfig()
	cfg.Handshake = f.HandshakeConfig()
	cfg.Rate = f.Rate.PerSecond
	if f.Rate.Burst != 0 {
		cfg.Burst = f.Rate.Burst
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}
	cfg.MaxFailures = f.Ban.MaxFailures
	if f.Ban.Duration != 0 {
		cfg.BanDuration = f.Ban.Duration
	}
	if f.ResultTTL != 0 {
		cfg.ResultTTL = f.ResultTTL
	}
	return cfg
}
