// Package callcore implements the call-signaling core of a 1:1 real-time
// call engine: call identifiers, the per-call state machine, signaling
// dispatch, glare resolution and peer-connection orchestration. It is
// designed to be maximally standalone — it imports no transport, UI or
// platform package. Coupling to the rest of an application happens
// through the Delegate callback bundle and the PeerConnectionFactory
// and MediaFactory interfaces only.
package callcore

import "time"

// CallId is a process-globally unique, 64-bit call identifier. The core
// assigns one when placing an outbound call; inbound signaling carries
// it verbatim. Zero is never assigned — it means "no call".
type CallId uint64

// DeviceId identifies one of the remote party's devices participating
// in offer fan-out and ICE exchange.
type DeviceId uint32

// RemoteHandle is an opaque, application-owned reference to a remote
// party. The core never inspects it; it is only ever handed back to the
// application (Delegate.ShouldCompareCalls) or released via refcounting.
type RemoteHandle any

// Direction distinguishes locally-placed calls from inbound ones.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// IceCandidate is an immutable ICE candidate record, semantic only —
// wire framing is the transport's concern.
type IceCandidate struct {
	SDPMid        string
	SDPMLineIndex int32
	SDP           string
}

// TerminateReason names why a call reached Terminated.
type TerminateReason int

const (
	ReasonNone TerminateReason = iota
	LocalHangup
	RemoteHangup
	RemoteBusy
	RemoteGlare
	Timeout
	InternalFailure
	SignalingFailure
	ConnectionFailure
	Dropped
	ReceivedOfferExpired
	ReceivedOfferWhileActive
)

func (r TerminateReason) String() string {
	switch r {
	case LocalHangup:
		return "LocalHangup"
	case RemoteHangup:
		return "RemoteHangup"
	case RemoteBusy:
		return "RemoteBusy"
	case RemoteGlare:
		return "RemoteGlare"
	case Timeout:
		return "Timeout"
	case InternalFailure:
		return "InternalFailure"
	case SignalingFailure:
		return "SignalingFailure"
	case ConnectionFailure:
		return "ConnectionFailure"
	case Dropped:
		return "Dropped"
	case ReceivedOfferExpired:
		return "ReceivedOfferExpired"
	case ReceivedOfferWhileActive:
		return "ReceivedOfferWhileActive"
	default:
		return "None"
	}
}

// offerExpiry is the wall-clock age beyond which an inbound offer is
// rejected without ringing (spec §4.3).
const offerExpiry = 60 * time.Second

// setupBudget is the wall-clock window a call has to reach Connected
// before it is terminated with Timeout (spec §5).
const setupBudget = 60 * time.Second

// reconnectBudget is how long a Connected call may spend Reconnecting
// before it is terminated with ConnectionFailure (spec §4.3, §9 — the
// source's own budget is undocumented; 30s is the shipped default).
const reconnectBudget = 30 * time.Second
