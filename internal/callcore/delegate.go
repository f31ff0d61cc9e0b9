package callcore

// Event is the application-visible call status, numbered 0..18 and
// stable on the wire-to-UI boundary (spec §6).
type Event int

const (
	RingingLocal Event = iota
	RingingRemote
	ConnectedLocal
	ConnectedRemote
	EndedLocalHangup
	EndedRemoteHangup
	EndedRemoteBusy
	EndedRemoteGlare
	EndedTimeout
	EndedInternalFailure
	EndedSignalingFailure
	EndedConnectionFailure
	EndedDropped
	RemoteVideoEnable
	RemoteVideoDisable
	EventReconnecting
	EventReconnected
	EndedReceivedOfferExpired
	EndedReceivedOfferWhileActive
)

func (e Event) String() string {
	names := [...]string{
		"RingingLocal", "RingingRemote", "ConnectedLocal", "ConnectedRemote",
		"EndedLocalHangup", "EndedRemoteHangup", "EndedRemoteBusy", "EndedRemoteGlare",
		"EndedTimeout", "EndedInternalFailure", "EndedSignalingFailure", "EndedConnectionFailure",
		"EndedDropped", "RemoteVideoEnable", "RemoteVideoDisable", "Reconnecting", "Reconnected",
		"EndedReceivedOfferExpired", "EndedReceivedOfferWhileActive",
	}
	if int(e) < 0 || int(e) >= len(names) {
		return "Unknown"
	}
	return names[e]
}

// reasonToEvent maps a terminal reason to the Ended* event that
// reports it (spec §4.3).
func reasonToEvent(r TerminateReason) Event {
	switch r {
	case LocalHangup:
		return EndedLocalHangup
	case RemoteHangup:
		return EndedRemoteHangup
	case RemoteBusy:
		return EndedRemoteBusy
	case RemoteGlare:
		return EndedRemoteGlare
	case Timeout:
		return EndedTimeout
	case InternalFailure:
		return EndedInternalFailure
	case SignalingFailure:
		return EndedSignalingFailure
	case ConnectionFailure:
		return EndedConnectionFailure
	case Dropped:
		return EndedDropped
	case ReceivedOfferExpired:
		return EndedReceivedOfferExpired
	case ReceivedOfferWhileActive:
		return EndedReceivedOfferWhileActive
	default:
		return EndedInternalFailure
	}
}

// Delegate is the capability bundle the embedding application installs
// once at construction. It replaces a dozens-of-methods protocol (spec
// §9) with a fixed set of callback slots the state machine can range
// over and validate at construction time. Every slot is invoked
// synchronously from inside CallManager.mu, so no slot may call back
// into the CallManager on the calling goroutine; a slot that needs to
// (e.g. a transport reporting MessageSent) must do so from another
// goroutine. ShouldCompareCalls is the one slot whose result the core
// uses.
type Delegate struct {
	ShouldStartCall func(id CallId, remote RemoteHandle, outbound bool)
	OnEvent         func(remote RemoteHandle, event Event)

	ShouldSendOffer         func(id CallId, remote RemoteHandle, dest *DeviceId, sdp string)
	ShouldSendAnswer        func(id CallId, remote RemoteHandle, dest *DeviceId, sdp string)
	ShouldSendIceCandidates func(id CallId, remote RemoteHandle, dest *DeviceId, candidates []IceCandidate)
	ShouldSendHangup        func(id CallId, remote RemoteHandle, dest *DeviceId)
	ShouldSendBusy          func(id CallId, remote RemoteHandle, dest *DeviceId)

	// ShouldCompareCalls is the synchronous remote-identity oracle used
	// by the glare arbiter (spec §4.4). It may block the caller briefly
	// and must never call back into the CallManager.
	ShouldCompareCalls func(remote1, remote2 RemoteHandle) bool

	OnUpdateLocalVideoSession func(remote RemoteHandle, sessionActive bool)
	OnAddRemoteVideoTrack     func(remote RemoteHandle, track RemoteVideoTrack)
}

// validate panics at construction time if a required slot is missing,
// per the §9 redesign note: delegate mistakes should fail loudly before
// any call is placed, not silently mid-call.
func (d *Delegate) validate() {
	missing := func(name string, present bool) {
		if !present {
			panic("callcore: Delegate." + name + " must be set")
		}
	}
	missing("ShouldStartCall", d.ShouldStartCall != nil)
	missing("OnEvent", d.OnEvent != nil)
	missing("ShouldSendOffer", d.ShouldSendOffer != nil)
	missing("ShouldSendAnswer", d.ShouldSendAnswer != nil)
	missing("ShouldSendIceCandidates", d.ShouldSendIceCandidates != nil)
	missing("ShouldSendHangup", d.ShouldSendHangup != nil)
	missing("ShouldSendBusy", d.ShouldSendBusy != nil)
	missing("ShouldCompareCalls", d.ShouldCompareCalls != nil)
	missing("OnUpdateLocalVideoSession", d.OnUpdateLocalVideoSession != nil)
	missing("OnAddRemoteVideoTrack", d.OnAddRemoteVideoTrack != nil)
}
