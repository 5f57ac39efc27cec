package discovery

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// DefaultBrowseTimeout bounds FindAll.
const DefaultBrowseTimeout = 3 * time.Second

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Timeout bounds FindAll (default 3s).
	Timeout time.Duration

	Logger *slog.Logger
}

// browseFunc runs one DNS-SD browse, feeding entries and removals.
type browseFunc func(ctx context.Context, entries, removed chan *zeroconf.ServiceEntry) error

// Browser finds platforms using zeroconf.
type Browser struct {
	config BrowserConfig
	logger *slog.Logger
	browse browseFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Browser{config: config, logger: logger}
	b.browse = func(ctx context.Context, entries, removed chan *zeroconf.ServiceEntry) error {
		return zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}
	return b
}

// Browse streams discovered platforms until ctx is done. Services are
// aggregated by instance name: addresses seen on several interfaces are
// merged into one entry, emitted once.
func (b *Browser) Browse(ctx context.Context) (<-chan *PlatformService, error) {
	out := make(chan *PlatformService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		services := make(map[string]*PlatformService)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := b.entryToPlatform(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, entries, removed); err != nil {
			b.logger.Warn("mdns browse failed", "error", err)
		}
	}()
	return out, nil
}

// FindAll browses for the configured timeout and returns every platform
// seen.
func (b *Browser) FindAll(ctx context.Context) ([]*PlatformService, error) {
	timeout := b.config.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*PlatformService
	for svc := range found {
		out = append(out, svc)
	}
	return out, nil
}

func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func (b *Browser) entryToPlatform(entry *zeroconf.ServiceEntry) *PlatformService {
	info, err := DecodePlatformTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		b.logger.Debug("ignoring platform", "instance", entry.Instance, "error", err)
		return nil
	}
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &PlatformService{
		InstanceName:     entry.Instance,
		Host:             entry.HostName,
		Port:             uint16(entry.Port),
		Addresses:        addrs,
		Namespace:        info.Namespace,
		Backend:          info.Backend,
		SecurityDisabled: info.SecurityDisabled,
		Version:          info.Version,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
