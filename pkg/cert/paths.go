package cert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Directory layout of the credentials tree, relative to its root.
const (
	DirName        = ".panduza"
	KeysDir        = "keys"
	CertificateDir = "certificate"
	RootCAFile     = "root_ca_certificate.pem"
)

// Default role used by client programs.
const DefaultRole = "client"

// Paths locates the three PEM files needed for a mutually authenticated
// session. Files are provisioned by an external tool; this package only
// reads them.
type Paths struct {
	RootCA      string `yaml:"ca_certificate_path"`
	Certificate string `yaml:"client_certificate_path"`
	PrivateKey  string `yaml:"client_private_key_path"`
}

// DefaultPaths returns the conventional locations under <home>/.panduza for
// the given role:
//
//	.panduza/keys/<role>_private_key.pem
//	.panduza/certificate/<role>_certificate.pem
//	.panduza/certificate/root_ca_certificate.pem
func DefaultPaths(home, role string) Paths {
	if role == "" {
		role = DefaultRole
	}
	root := filepath.Join(home, DirName)
	return Paths{
		RootCA:      filepath.Join(root, CertificateDir, RootCAFile),
		Certificate: filepath.Join(root, CertificateDir, role+"_certificate.pem"),
		PrivateKey:  filepath.Join(root, KeysDir, role+"_private_key.pem"),
	}
}

// CSRPath returns the conventional certificate signing request location.
func CSRPath(home, role string) string {
	if role == "" {
		role = DefaultRole
	}
	return filepath.Join(home, DirName, CertificateDir, role+"_csr.pem")
}

// UserDefaultPaths resolves DefaultPaths against the current user's home
// directory.
func UserDefaultPaths(role string) (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return DefaultPaths(home, role), nil
}

// ErrMissingPath is returned by Validate when a path is empty.
var ErrMissingPath = errors.New("missing credential path")

// Validate checks that all three paths are set and point to regular files.
func (p Paths) Validate() error {
	for _, f := range []struct {
		name, path string
	}{
		{"ca_certificate_path", p.RootCA},
		{"client_certificate_path", p.Certificate},
		{"client_private_key_path", p.PrivateKey},
	} {
		if f.path == "" {
			return fmt.Errorf("%w: %s", ErrMissingPath, f.name)
		}
		info, err := os.Stat(f.path)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s: %s is a directory", f.name, f.path)
		}
	}
	return nil
}
