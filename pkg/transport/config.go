package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Backend names.
const (
	BackendMQTT   = "mqtt"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Endpoint schemes.
const (
	SchemeTCP    = "tcp"
	SchemeTLS    = "tls"
	SchemeMemory = "mem"
)

// Defaults.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRetainWindow   = 500 * time.Millisecond
)

// SessionConfig is the configuration handed to Open. Its JSON encoding is
// the session configuration shape understood by the bus tooling.
type SessionConfig struct {
	// Mode is always "client" for this framework.
	Mode string `json:"mode"`

	// Backend selects the broker client. Empty means mqtt, unless every
	// endpoint uses the mem scheme.
	Backend string `json:"backend,omitempty"`

	Connect   ConnectConfig    `json:"connect"`
	Transport *TransportConfig `json:"transport,omitempty"`

	// ClientID identifies the session to the broker. A random id is used
	// when empty.
	ClientID string `json:"client_id,omitempty"`

	// LastValueStream names a JetStream stream holding the last value of
	// every attribute subject (nats backend only).
	LastValueStream string `json:"last_value_stream,omitempty"`

	// ConnectTimeout bounds the initial connection (default 10s).
	ConnectTimeout time.Duration `json:"-"`

	// RetainWindow bounds how long a one-shot query waits for a retained
	// message (mqtt backend, default 500ms).
	RetainWindow time.Duration `json:"-"`

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger `json:"-"`
}

// ConnectConfig lists the endpoints to connect to.
type ConnectConfig struct {
	Endpoints []string `json:"endpoints"`
}

// TransportConfig holds link-level settings.
type TransportConfig struct {
	Link LinkConfig `json:"link"`
}

// LinkConfig holds the TLS settings of the link.
type LinkConfig struct {
	TLS *TLSFiles `json:"tls,omitempty"`
}

// TLSFiles holds filesystem paths to the PEM credentials.
type TLSFiles struct {
	RootCACertificate  string `json:"root_ca_certificate"`
	EnableMTLS         bool   `json:"enable_mtls"`
	ConnectPrivateKey  string `json:"connect_private_key"`
	ConnectCertificate string `json:"connect_certificate"`
}

// NewPlainConfig returns a configuration for an unsecured TCP link.
func NewPlainConfig(address string, port uint16) SessionConfig {
	return SessionConfig{
		Mode:    "client",
		Connect: ConnectConfig{Endpoints: []string{FormatEndpoint(SchemeTCP, address, port)}},
	}
}

// NewMTLSConfig returns a configuration for a mutually authenticated link.
func NewMTLSConfig(address string, port uint16, files TLSFiles) SessionConfig {
	files.EnableMTLS = true
	return SessionConfig{
		Mode:      "client",
		Connect:   ConnectConfig{Endpoints: []string{FormatEndpoint(SchemeTLS, address, port)}},
		Transport: &TransportConfig{Link: LinkConfig{TLS: &files}},
	}
}

// ParseConfig parses the JSON form of a SessionConfig.
func ParseConfig(data []byte) (SessionConfig, error) {
	var cfg SessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("failed to parse session config: %w", err)
	}
	return cfg, cfg.Validate()
}

// JSON returns the JSON form of the configuration.
func (c SessionConfig) JSON() ([]byte, error) {
	return json.Marshal(c)
}

// TLS returns the TLS files when mutual TLS is enabled, or nil.
func (c SessionConfig) TLS() *TLSFiles {
	if c.Transport == nil || c.Transport.Link.TLS == nil || !c.Transport.Link.TLS.EnableMTLS {
		return nil
	}
	return c.Transport.Link.TLS
}

// ResolvedBackend returns the backend Open will use.
func (c SessionConfig) ResolvedBackend() string {
	if c.Backend != "" {
		return c.Backend
	}
	if len(c.Connect.Endpoints) > 0 {
		allMem := true
		for _, e := range c.Connect.Endpoints {
			if !strings.HasPrefix(e, SchemeMemory+"/") {
				allMem = false
				break
			}
		}
		if allMem {
			return BackendMemory
		}
	}
	return BackendMQTT
}

// Validate checks the configuration.
func (c SessionConfig) Validate() error {
	if c.Mode != "" && c.Mode != "client" {
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	if len(c.Connect.Endpoints) == 0 {
		return ErrNoEndpoint
	}
	switch c.ResolvedBackend() {
	case BackendMQTT, BackendNATS, BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	for _, raw := range c.Connect.Endpoints {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return err
		}
		if ep.Scheme == SchemeTLS && c.TLS() == nil {
			return fmt.Errorf("endpoint %q requires transport.link.tls with enable_mtls", raw)
		}
	}
	if files := c.TLS(); files != nil {
		if files.RootCACertificate == "" || files.ConnectCertificate == "" || files.ConnectPrivateKey == "" {
			return fmt.Errorf("mtls requires root_ca_certificate, connect_certificate and connect_private_key")
		}
	}
	return nil
}

func (c SessionConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c SessionConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (c SessionConfig) retainWindow() time.Duration {
	if c.RetainWindow > 0 {
		return c.RetainWindow
	}
	return DefaultRetainWindow
}

// Endpoint is a parsed "<scheme>/<address>" locator.
type Endpoint struct {
	Scheme  string
	Address string
}

// String returns the endpoint in locator form.
func (e Endpoint) String() string {
	return e.Scheme + "/" + e.Address
}

// FormatEndpoint builds a locator from its parts.
func FormatEndpoint(scheme, address string, port uint16) string {
	return scheme + "/" + net.JoinHostPort(address, fmt.Sprint(port))
}

// ParseEndpoint parses a locator such as "tcp/127.0.0.1:1883".
func ParseEndpoint(s string) (Endpoint, error) {
	scheme, address, ok := strings.Cut(s, "/")
	if !ok || address == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: want <scheme>/<address>", s)
	}
	switch scheme {
	case SchemeTCP, SchemeTLS:
		if _, _, err := net.SplitHostPort(address); err != nil {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
		}
	case SchemeMemory:
	default:
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", s, scheme)
	}
	return Endpoint{Scheme: scheme, Address: address}, nil
}
