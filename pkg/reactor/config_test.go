package reactor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panduza/panduza-go/internal/testcert"
	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/transport"
)

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	paths := testcert.WriteClientPKI(t, dir)

	secure := DefaultConfig()
	secure.CACertificatePath = paths.RootCA
	secure.ClientCertificatePath = paths.Certificate
	secure.ClientPrivateKeyPath = paths.PrivateKey

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"secure", func(*Config) {}, false},
		{"plain", func(c *Config) { *c = DefaultConfig(); c.SecurityDisabled = true }, false},
		{"memory ignores port and credentials", func(c *Config) { *c = Config{Address: "bus", Backend: transport.BackendMemory} }, false},
		{"missing address", func(c *Config) { c.Address = "" }, true},
		{"missing port", func(c *Config) { c.Port = 0 }, true},
		{"missing ca", func(c *Config) { c.CACertificatePath = "" }, true},
		{"key does not exist", func(c *Config) { c.ClientPrivateKeyPath = filepath.Join(dir, "nope.pem") }, true},
		{"unknown backend", func(c *Config) { c.Backend = "zenoh" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := secure
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, pzaerrors.ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigSessionConfig(t *testing.T) {
	plain := DefaultConfig()
	plain.SecurityDisabled = true
	sc := plain.SessionConfig()
	assert.Equal(t, []string{"tcp/127.0.0.1:1883"}, sc.Connect.Endpoints)
	assert.Nil(t, sc.TLS())

	secure := DefaultConfig()
	secure.Address = "broker.lab"
	secure.Port = 8883
	secure.CACertificatePath = "/pki/ca.pem"
	secure.ClientCertificatePath = "/pki/client.pem"
	secure.ClientPrivateKeyPath = "/pki/client.key"
	secure.Backend = transport.BackendNATS
	secure.NATSLastValueStream = "PZA"
	sc = secure.SessionConfig()
	assert.Equal(t, []string{"tls/broker.lab:8883"}, sc.Connect.Endpoints)
	require.NotNil(t, sc.TLS())
	assert.Equal(t, "/pki/ca.pem", sc.TLS().RootCACertificate)
	assert.Equal(t, "/pki/client.key", sc.TLS().ConnectPrivateKey)
	assert.Equal(t, transport.BackendNATS, sc.Backend)
	assert.Equal(t, "PZA", sc.LastValueStream)

	mem := Config{Address: "bench", Backend: transport.BackendMemory}
	sc = mem.SessionConfig()
	assert.Equal(t, []string{"mem/bench"}, sc.Connect.Endpoints)
	assert.Equal(t, transport.BackendMemory, sc.ResolvedBackend())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pza.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: 10.0.0.5
port: 7447
namespace: lab
security_disabled: true
backend: nats
confirm_timeout: 2s
channel_capacity: 64
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Address)
	assert.Equal(t, uint16(7447), cfg.Port)
	assert.Equal(t, "lab", cfg.Namespace)
	assert.True(t, cfg.SecurityDisabled)
	assert.Equal(t, 2*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, DefaultStructureTimeout, cfg.StructureTimeout, "unset fields keep defaults")
	assert.Equal(t, 64, cfg.ChannelCapacity)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, pzaerrors.ErrConfig)

	_, err = ParseConfig([]byte("port: [1, 2]"))
	assert.ErrorIs(t, err, pzaerrors.ErrConfig)
}
