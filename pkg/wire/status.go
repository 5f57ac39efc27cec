package wire

import "fmt"

// InstanceState is the lifecycle state of an instance.
//
// The canonical progression is Undefined → Booting → Connecting →
// Initializing → Running. Warning and Error are faults reachable from any
// operational state; Cleaning → Stopping is the teardown path. Clients only
// observe end states and must not assume any particular transition.
type InstanceState uint8

const (
	StateUndefined    InstanceState = 0
	StateBooting      InstanceState = 1
	StateConnecting   InstanceState = 2
	StateInitializing InstanceState = 3
	StateRunning      InstanceState = 4
	StateWarning      InstanceState = 5
	StateError        InstanceState = 6
	StateCleaning     InstanceState = 7
	StateStopping     InstanceState = 8
)

// String returns the state name.
func (s InstanceState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateBooting:
		return "Booting"
	case StateConnecting:
		return "Connecting"
	case StateInitializing:
		return "Initializing"
	case StateRunning:
		return "Running"
	case StateWarning:
		return "Warning"
	case StateError:
		return "Error"
	case StateCleaning:
		return "Cleaning"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the state is one of the known states.
func (s InstanceState) IsValid() bool {
	return s <= StateStopping
}

// IsFault returns true for the Warning and Error states.
func (s InstanceState) IsFault() bool {
	return s == StateWarning || s == StateError
}

// InstanceStatus is the state of one instance.
//
// CBOR encoding:
//
//	{
//	  1: instance,  // text string
//	  2: state,     // uint8
//	  3: error      // text string (optional)
//	}
type InstanceStatus struct {
	Instance    string        `cbor:"1,keyasint"`
	State       InstanceState `cbor:"2,keyasint"`
	ErrorString string        `cbor:"3,keyasint,omitempty"`
}

// StatusPayload carries the state of every instance on the platform.
//
// CBOR encoding:
//
//	{1: [instanceStatus, ...]}
type StatusPayload struct {
	Instances []InstanceStatus `cbor:"1,keyasint"`
}

// Kind implements Payload.
func (*StatusPayload) Kind() PayloadKind { return KindStatus }

// Validate implements Payload.
func (p *StatusPayload) Validate() error {
	for _, st := range p.Instances {
		if !st.State.IsValid() {
			return fmt.Errorf("instance %q has invalid state %d", st.Instance, st.State)
		}
	}
	return nil
}

// AllRunning reports whether the list is non-empty and every instance is
// in the Running state.
func AllRunning(instances []InstanceStatus) bool {
	if len(instances) == 0 {
		return false
	}
	for _, st := range instances {
		if st.State != StateRunning {
			return false
		}
	}
	return true
}

// AnyNotRunning reports whether at least one instance is not Running.
func AnyNotRunning(instances []InstanceStatus) bool {
	for _, st := range instances {
		if st.State != StateRunning {
			return true
		}
	}
	return false
}
