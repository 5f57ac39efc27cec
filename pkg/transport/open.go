package transport

import (
	"context"
	"fmt"
)

// Open validates cfg and opens a session on the selected backend.
func Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.ResolvedBackend() {
	case BackendMQTT:
		return DialMQTT(ctx, cfg)
	case BackendNATS:
		return DialNATS(ctx, cfg)
	case BackendMemory:
		ep, err := ParseEndpoint(cfg.Connect.Endpoints[0])
		if err != nil {
			return nil, err
		}
		if ep.Scheme != SchemeMemory {
			return nil, fmt.Errorf("memory backend cannot use endpoint %q", ep)
		}
		return NewMemorySession(SharedBus(ep.Address), cfg.logger()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
