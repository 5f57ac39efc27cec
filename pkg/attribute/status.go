package attribute

import (
	"context"
	"time"

	"github.com/panduza/panduza-go/pkg/wire"
)

// Status is the read-only platform status: the state of every instance.
type Status struct {
	*Handle[[]wire.InstanceStatus]
}

// NewStatus wraps a handle.
func NewStatus(h *Handle[[]wire.InstanceStatus]) *Status {
	return &Status{Handle: h}
}

// Instances returns the last received instance list.
func (s *Status) Instances() []wire.InstanceStatus {
	v, _ := s.Get()
	return v
}

// Instance returns the last received state of one instance.
func (s *Status) Instance(name string) (wire.InstanceStatus, bool) {
	for _, st := range s.Instances() {
		if st.Instance == name {
			return st, true
		}
	}
	return wire.InstanceStatus{}, false
}

// WaitForAllInstancesToBeRunning waits until the platform reports at least
// one instance and all of them Running.
func (s *Status) WaitForAllInstancesToBeRunning(ctx context.Context, timeout time.Duration) error {
	_, err := s.WaitFor(ctx, wire.AllRunning, timeout)
	return err
}

// WaitForAtLeastOneInstanceToBeNotRunning waits until some instance leaves
// the Running state and returns the list that showed it.
func (s *Status) WaitForAtLeastOneInstanceToBeNotRunning(ctx context.Context, timeout time.Duration) ([]wire.InstanceStatus, error) {
	return s.WaitFor(ctx, wire.AnyNotRunning, timeout)
}
