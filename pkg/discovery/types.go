package discovery

import (
	"errors"
	"net"
	"strconv"

	"github.com/panduza/panduza-go/pkg/version"
)

const (
	// ServiceType is the DNS-SD service type advertised by platforms.
	ServiceType = "_panduza._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is assumed when a service advertises port 0.
	DefaultPort = 1883

	// MaxInstanceNameLen is the DNS-SD instance label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyNamespace = "ns"
	TXTKeyBackend   = "be"
	TXTKeySecurity  = "sec"
	TXTKeyVersion   = "ver"
)

// Security values of the sec key.
const (
	SecurityMTLS  = "mtls"
	SecurityPlain = "plain"
)

// Errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record value")
	ErrInstanceNameTooLong = errors.New("instance name too long")
)

// PlatformInfo is the information a platform advertises.
type PlatformInfo struct {
	Name             string
	Port             uint16
	Namespace        string
	Backend          string
	SecurityDisabled bool
	Version          string
}

// PlatformService is a discovered platform.
type PlatformService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Namespace        string
	Backend          string
	SecurityDisabled bool
	Version          string
}

// Address returns the preferred address to connect to: the first IPv4
// address, else the first address, else the host name.
func (s *PlatformService) Address() string {
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return s.Host
}

// Endpoint returns "address:port".
func (s *PlatformService) Endpoint() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.Address(), strconv.Itoa(int(port)))
}

// Compatible returns nil when the advertised protocol version can be used
// by this client.
func (s *PlatformService) Compatible() error {
	return version.Check(s.Version)
}
