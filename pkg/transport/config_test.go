package transport

import (
	"errors"
	"strings"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		scheme  string
		address string
		wantErr bool
	}{
		{"tcp/127.0.0.1:1883", SchemeTCP, "127.0.0.1:1883", false},
		{"tls/broker.local:8883", SchemeTLS, "broker.local:8883", false},
		{"tls/[::1]:7447", SchemeTLS, "[::1]:7447", false},
		{"mem/bench", SchemeMemory, "bench", false},
		{"tcp/127.0.0.1", "", "", true},
		{"quic/127.0.0.1:7447", "", "", true},
		{"tcp", "", "", true},
		{"mem/", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEndpoint(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q): %v", tt.in, err)
			}
			if ep.Scheme != tt.scheme || ep.Address != tt.address {
				t.Errorf("ParseEndpoint(%q) = %+v", tt.in, ep)
			}
			if ep.String() != tt.in {
				t.Errorf("String() = %q, want %q", ep.String(), tt.in)
			}
		})
	}
}

func TestFormatEndpoint(t *testing.T) {
	if got := FormatEndpoint(SchemeTCP, "127.0.0.1", 1883); got != "tcp/127.0.0.1:1883" {
		t.Errorf("got %q", got)
	}
	if got := FormatEndpoint(SchemeTLS, "::1", 7447); got != "tls/[::1]:7447" {
		t.Errorf("got %q", got)
	}
}

func TestMTLSConfigJSON(t *testing.T) {
	cfg := NewMTLSConfig("127.0.0.1", 7447, TLSFiles{
		RootCACertificate:  "/ca.pem",
		ConnectPrivateKey:  "/key.pem",
		ConnectCertificate: "/cert.pem",
	})
	data, err := cfg.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	for _, want := range []string{
		`"mode":"client"`,
		`"endpoints":["tls/127.0.0.1:7447"]`,
		`"root_ca_certificate":"/ca.pem"`,
		`"enable_mtls":true`,
		`"connect_private_key":"/key.pem"`,
		`"connect_certificate":"/cert.pem"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}

	parsed, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if parsed.TLS() == nil || parsed.TLS().ConnectCertificate != "/cert.pem" {
		t.Errorf("TLS section lost: %+v", parsed.Transport)
	}
}

func TestPlainConfigHasNoTransportSection(t *testing.T) {
	data, err := NewPlainConfig("127.0.0.1", 1883).JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if strings.Contains(string(data), "transport") {
		t.Errorf("plain config carries transport section: %s", data)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("no endpoint", func(t *testing.T) {
		err := SessionConfig{Mode: "client"}.Validate()
		if !errors.Is(err, ErrNoEndpoint) {
			t.Errorf("err = %v, want ErrNoEndpoint", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := NewPlainConfig("127.0.0.1", 1883)
		cfg.Backend = "zenoh"
		if err := cfg.Validate(); !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("err = %v, want ErrUnknownBackend", err)
		}
	})

	t.Run("tls endpoint without credentials", func(t *testing.T) {
		cfg := SessionConfig{Connect: ConnectConfig{Endpoints: []string{"tls/127.0.0.1:8883"}}}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("incomplete credentials", func(t *testing.T) {
		cfg := NewMTLSConfig("127.0.0.1", 8883, TLSFiles{RootCACertificate: "/ca.pem"})
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("server mode", func(t *testing.T) {
		cfg := NewPlainConfig("127.0.0.1", 1883)
		cfg.Mode = "router"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestResolvedBackend(t *testing.T) {
	if got := NewPlainConfig("127.0.0.1", 1883).ResolvedBackend(); got != BackendMQTT {
		t.Errorf("default backend = %q", got)
	}
	mem := SessionConfig{Connect: ConnectConfig{Endpoints: []string{"mem/a"}}}
	if got := mem.ResolvedBackend(); got != BackendMemory {
		t.Errorf("mem backend = %q", got)
	}
	nats := NewPlainConfig("127.0.0.1", 4222)
	nats.Backend = BackendNATS
	if got := nats.ResolvedBackend(); got != BackendNATS {
		t.Errorf("explicit backend = %q", got)
	}
}

func TestSubject(t *testing.T) {
	tests := map[string]string{
		"pza/psu/channel/voltage/att": "pza.psu.channel.voltage.att",
		"pza/_/structure/att":         "pza._.structure.att",
		"pza/v1.2/x y/att":            "pza.v1_2.x_y.att",
		"pza/*/>":                     "pza._._",
	}
	for in, want := range tests {
		if got := Subject(in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}
