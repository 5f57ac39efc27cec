package attribute

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
)

// String is a text attribute.
type String struct {
	*Handle[string]
	enforce   atomic.Bool
	whitelist atomic.Pointer[[]string]
}

// NewString wraps a handle.
func NewString(h *Handle[string]) *String {
	return &String{Handle: h}
}

// EnforceWhitelist turns on rejection of writes outside whitelist.
// An empty whitelist accepts everything.
func (s *String) EnforceWhitelist(on bool, whitelist ...string) {
	s.whitelist.Store(&whitelist)
	s.enforce.Store(on)
}

func (s *String) check(op, v string) error {
	if !s.enforce.Load() {
		return nil
	}
	wl := s.whitelist.Load()
	if wl == nil || len(*wl) == 0 {
		return nil
	}
	for _, w := range *wl {
		if w == v {
			return nil
		}
	}
	return pzaerrors.New(pzaerrors.ErrRejected, op, s.Topic(), fmt.Errorf("%q is not whitelisted", v))
}

// Set writes v and waits for its echo.
func (s *String) Set(ctx context.Context, v string) error {
	if err := s.check("set", v); err != nil {
		return err
	}
	return s.Handle.Set(ctx, v)
}

// Shoot writes v without confirmation.
func (s *String) Shoot(ctx context.Context, v string) error {
	if err := s.check("shoot", v); err != nil {
		return err
	}
	return s.Handle.Shoot(ctx, v)
}

// WaitForValue waits until the attribute reads want.
func (s *String) WaitForValue(ctx context.Context, want string, timeout time.Duration) error {
	_, err := s.WaitFor(ctx, func(v string) bool { return v == want }, timeout)
	return err
}
