package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/panduza/panduza-go/pkg/cert"
)

// TLSConfig holds the material for a mutually authenticated client link.
type TLSConfig struct {
	// Certificate is the client certificate presented to the broker.
	Certificate tls.Certificate

	// RootCAs is the pool of trusted CA certificates.
	RootCAs *x509.CertPool

	// ServerName is the expected broker name. Derived from the endpoint
	// address when empty.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// NewClientTLSConfig creates a TLS configuration for a client link.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, fmt.Errorf("client certificate is required")
	}
	if cfg.RootCAs == nil && !cfg.InsecureSkipVerify {
		return nil, fmt.Errorf("root CA pool is required")
	}

	return &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cfg.Certificate},
		RootCAs:      cfg.RootCAs,
		ServerName:   cfg.ServerName,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, nil
}

// LoadTLSConfig reads the PEM files named in files and builds the client
// TLS configuration for serverName.
func LoadTLSConfig(files *TLSFiles, serverName string) (*tls.Config, error) {
	if files == nil {
		return nil, fmt.Errorf("TLS files are required")
	}
	pool, err := cert.ReadCertPool(files.RootCACertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to load root CA: %w", err)
	}
	pair, err := cert.ReadKeyPair(files.ConnectCertificate, files.ConnectPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key pair: %w", err)
	}
	return NewClientTLSConfig(&TLSConfig{
		Certificate: pair,
		RootCAs:     pool,
		ServerName:  serverName,
	})
}

// TLSFilesFromPaths maps certificate paths onto the session TLS section.
func TLSFilesFromPaths(p cert.Paths) TLSFiles {
	return TLSFiles{
		RootCACertificate:  p.RootCA,
		EnableMTLS:         true,
		ConnectPrivateKey:  p.PrivateKey,
		ConnectCertificate: p.Certificate,
	}
}
