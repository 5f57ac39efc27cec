package reactor

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/panduza/panduza-go/pkg/cert"
	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/router"
	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Default configuration values.
const (
	DefaultPort             = 1883
	DefaultStructureTimeout = 15 * time.Second
	DefaultPrimeTimeout     = 5 * time.Second
	DefaultConfirmTimeout   = 5 * time.Second
)

// Config configures a Reactor.
type Config struct {
	// Address is the broker host. With the memory backend it names the
	// in-process bus.
	Address string `yaml:"address"`
	Port    uint16 `yaml:"port"`

	// Credential paths, required unless SecurityDisabled.
	CACertificatePath     string `yaml:"ca_certificate_path"`
	ClientCertificatePath string `yaml:"client_certificate_path"`
	ClientPrivateKeyPath  string `yaml:"client_private_key_path"`

	// Namespace prefixes every topic: "<namespace>/pza/...".
	Namespace string `yaml:"namespace,omitempty"`

	// SecurityDisabled connects over plain TCP.
	SecurityDisabled bool `yaml:"security_disabled"`

	// Backend is "mqtt" (default), "nats" or "memory".
	Backend string `yaml:"backend,omitempty"`

	// NATSLastValueStream names the JetStream stream answering last-value
	// queries (nats backend only).
	NATSLastValueStream string `yaml:"nats_last_value_stream,omitempty"`

	// StructureTimeout bounds the wait for the first structure frame.
	StructureTimeout time.Duration `yaml:"structure_timeout,omitempty"`

	// PrimeTimeout bounds the initial last-value query of each attribute.
	PrimeTimeout time.Duration `yaml:"prime_timeout,omitempty"`

	// ConfirmTimeout bounds the confirmation wait of Set.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout,omitempty"`

	// ChannelCapacity is the inbound mailbox capacity per attribute.
	ChannelCapacity int `yaml:"channel_capacity,omitempty"`

	// SourceID is stamped on published headers. Zero picks a random id.
	SourceID uint16 `yaml:"source_id,omitempty"`

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// Trace receives protocol trace events. May be nil.
	Trace log.Logger `yaml:"-"`

	// Registerer receives the metrics collectors. Nil disables metrics.
	Registerer prometheus.Registerer `yaml:"-"`

	// Frames encodes and decodes bus frames. Nil uses wire.CBORFrames.
	Frames wire.FrameCodec `yaml:"-"`
}

// DefaultConfig returns a configuration for a local broker with the
// default timeouts. Credentials are left empty.
func DefaultConfig() Config {
	return Config{
		Address:          "127.0.0.1",
		Port:             DefaultPort,
		StructureTimeout: DefaultStructureTimeout,
		PrimeTimeout:     DefaultPrimeTimeout,
		ConfirmTimeout:   DefaultConfirmTimeout,
		ChannelCapacity:  router.DefaultCapacity,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, pzaerrors.New(pzaerrors.ErrConfig, "load config", "", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, pzaerrors.New(pzaerrors.ErrConfig, "parse config", "", err)
	}
	return cfg, nil
}

// withDefaults fills zero durations and capacities.
func (c Config) withDefaults() Config {
	if c.StructureTimeout <= 0 {
		c.StructureTimeout = DefaultStructureTimeout
	}
	if c.PrimeTimeout <= 0 {
		c.PrimeTimeout = DefaultPrimeTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = router.DefaultCapacity
	}
	return c
}

func (c Config) memory() bool {
	return c.Backend == transport.BackendMemory
}

// Paths returns the credential paths.
func (c Config) Paths() cert.Paths {
	return cert.Paths{
		RootCA:      c.CACertificatePath,
		Certificate: c.ClientCertificatePath,
		PrivateKey:  c.ClientPrivateKeyPath,
	}
}

// Validate reports the first missing or malformed field as ErrConfig.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return pzaerrors.New(pzaerrors.ErrConfig, "validate", "", fmt.Errorf(format, args...))
	}
	if c.Address == "" {
		return fail("address is required")
	}
	switch c.Backend {
	case "", transport.BackendMQTT, transport.BackendNATS, transport.BackendMemory:
	default:
		return fail("unknown backend %q", c.Backend)
	}
	if c.memory() {
		return nil
	}
	if c.Port == 0 {
		return fail("port is required")
	}
	if c.SecurityDisabled {
		return nil
	}
	if err := c.Paths().Validate(); err != nil {
		return pzaerrors.New(pzaerrors.ErrConfig, "validate", "", err)
	}
	return nil
}

// SessionConfig renders the transport session configuration.
func (c Config) SessionConfig() transport.SessionConfig {
	var sc transport.SessionConfig
	switch {
	case c.memory():
		sc = transport.SessionConfig{
			Mode:    "client",
			Connect: transport.ConnectConfig{Endpoints: []string{transport.SchemeMemory + "/" + c.Address}},
		}
	case c.SecurityDisabled:
		sc = transport.NewPlainConfig(c.Address, c.Port)
	default:
		sc = transport.NewMTLSConfig(c.Address, c.Port, transport.TLSFilesFromPaths(c.Paths()))
	}
	sc.Backend = c.Backend
	sc.LastValueStream = c.NATSLastValueStream
	sc.Logger = c.Logger
	return sc
}
