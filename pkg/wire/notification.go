package wire

import "fmt"

// NotificationType classifies a notification.
type NotificationType uint8

const (
	// NotificationAlert is a handled warning.
	NotificationAlert NotificationType = 1

	// NotificationError is a fatal instance failure.
	NotificationError NotificationType = 2
)

// String returns the notification type name.
func (t NotificationType) String() string {
	switch t {
	case NotificationAlert:
		return "Alert"
	case NotificationError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the type is Alert or Error.
func (t NotificationType) IsValid() bool {
	return t == NotificationAlert || t == NotificationError
}

// NotificationPayload carries one notification raised by an instance.
//
// CBOR encoding:
//
//	{
//	  1: type,     // uint8: 1=Alert, 2=Error
//	  2: source,   // text string: originating instance or attribute
//	  3: message   // text string
//	}
type NotificationPayload struct {
	Type    NotificationType `cbor:"1,keyasint"`
	Source  string           `cbor:"2,keyasint"`
	Message string           `cbor:"3,keyasint"`
}

// Kind implements Payload.
func (*NotificationPayload) Kind() PayloadKind { return KindNotification }

// Validate implements Payload. Unknown notification types are rejected.
func (p *NotificationPayload) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("invalid notification type: %d", p.Type)
	}
	return nil
}
