package callcore

import "fmt"

// CoreErrorKind classifies a CoreError per the error taxonomy of spec §7.
type CoreErrorKind int

const (
	// ApiFailure is misuse by the application: wrong callId, wrong state.
	// It is returned synchronously and never terminates a call by itself.
	ApiFailure CoreErrorKind = iota
	// ErrSignalingFailure means the transport could not send an essential
	// message; it terminates the affected call.
	ErrSignalingFailure
	// ErrConnectionFailure means ICE/DTLS could not establish or
	// reconnect within budget; it terminates the call.
	ErrConnectionFailure
	// ErrInternalFailure is an invariant violation detected inside the
	// core; it terminates the affected call and is logged, never panics.
	ErrInternalFailure
	// ErrTimeout means the setup budget was exhausted.
	ErrTimeout
	// ErrExpired means an inbound offer was older than offerExpiry.
	ErrExpired
)

func (k CoreErrorKind) String() string {
	switch k {
	case ApiFailure:
		return "ApiFailure"
	case ErrSignalingFailure:
		return "SignalingFailure"
	case ErrConnectionFailure:
		return "ConnectionFailure"
	case ErrInternalFailure:
		return "InternalFailure"
	case ErrTimeout:
		return "Timeout"
	case ErrExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// CoreError is the error type every façade operation returns. It never
// surfaces transport or media errors — those flow through the event
// stream as Ended* events instead (spec §7).
type CoreError struct {
	Kind        CoreErrorKind
	Description string
	Cause       error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("callcore: %s: %s: %v", e.Kind, e.Description, e.Cause)
	}
	return fmt.Sprintf("callcore: %s: %s", e.Kind, e.Description)
}

func (e *CoreError) Unwrap() error { return e.Cause }

func apiFailure(format string, args ...any) *CoreError {
	return &CoreError{Kind: ApiFailure, Description: fmt.Sprintf(format, args...)}
}
