package callcore

import "time"

// directiveKind names the outbound signaling directive a dispatcher
// entry carries (spec §4.5).
type directiveKind int

const (
	dirOffer directiveKind = iota
	dirAnswer
	dirIce
	dirBusy
)

// directive is one outbound signaling send, queued per-call so that at
// most one is ever in flight at a time (invariant I3).
type directive struct {
	kind      directiveKind
	dest      *DeviceId
	sdp       string
	candidates []IceCandidate
	essential bool
}

// callRecord is one live CallId's worth of state (spec §3).
type callRecord struct {
	id        CallId
	remote    RemoteHandle
	direction Direction
	state     CallState
	reason    TerminateReason

	createdAt   time.Time
	connectedAt time.Time

	// offerTimestamp is wall time; only meaningful for inbound calls,
	// used for the 60s expiry check (spec §4.3).
	offerTimestamp time.Time

	context        *CallContext
	pc             PeerConnection
	selectedDevice *DeviceId

	// deviceList is the outbound fan-out target set (spec §4.3:
	// "ShouldSendOffer is emitted once with the full device list").
	deviceList []DeviceId
	// contacted records every device a message was ever sent to, so
	// hangup can fan out a ShouldSendHangup to each of them.
	contacted map[DeviceId]bool

	pendingICEIn  []IceCandidate // buffered until pc is built and the remote description is set (I5)
	remoteDescSet bool
	// pendingOfferSDP holds an inbound offer's SDP between ReceiveOffer
	// (which cannot touch the peer connection — it doesn't exist yet)
	// and Proceed (which builds it and applies the offer).
	pendingOfferSDP string

	messageInFlight   bool
	lastSentEssential bool
	outbound          []directive

	setupTimer     *time.Timer
	reconnectTimer *time.Timer
}

// remoteRef is a reference-counted, non-owning grip on an application
// handle, held from registration until OnCallConcluded (spec §5).
type remoteRef struct {
	handle RemoteHandle
	refs   int
}

// registry owns every live call record. All access happens under
// CallManager.mu — see SPEC_FULL.md §5.
type registry struct {
	calls      map[CallId]*callRecord
	remoteRefs map[RemoteHandle]*remoteRef
	activeID   CallId // 0 if no call is active (invariant I2)
	nextID     uint64
}

func newRegistry(seed uint64) *registry {
	return &registry{
		calls:      make(map[CallId]*callRecord),
		remoteRefs: make(map[RemoteHandle]*remoteRef),
		nextID:     seed,
	}
}

func (r *registry) allocID() CallId {
	r.nextID++
	if r.nextID == 0 { // wrapped: zero is reserved for "no call"
		r.nextID++
	}
	return CallId(r.nextID)
}

// insert adds a record and takes (or grows) the remote handle's ref.
func (r *registry) insert(rec *callRecord) {
	r.calls[rec.id] = rec
	if ref, ok := r.remoteRefs[rec.remote]; ok {
		ref.refs++
	} else {
		r.remoteRefs[rec.remote] = &remoteRef{handle: rec.remote, refs: 1}
	}
	if rec.state.active() {
		r.activeID = rec.id
	}
}

// remove drops a record and releases its remote handle ref exactly
// once, per spec §5's "decremented exactly once in OnCallConcluded".
func (r *registry) remove(id CallId) {
	rec, ok := r.calls[id]
	if !ok {
		return
	}
	delete(r.calls, id)
	if ref, ok := r.remoteRefs[rec.remote]; ok {
		ref.refs--
		if ref.refs <= 0 {
			delete(r.remoteRefs, rec.remote)
		}
	}
	if r.activeID == id {
		r.activeID = 0
	}
}

// active returns the unique active record, if any (invariant I2).
func (r *registry) active() (*callRecord, bool) {
	if r.activeID == 0 {
		return nil, false
	}
	rec, ok := r.calls[r.activeID]
	if !ok || !rec.state.active() {
		return nil, false
	}
	return rec, true
}

// setState transitions rec to s, keeping activeID in sync.
func (r *registry) setState(rec *callRecord, s CallState) {
	rec.state = s
	if s.active() {
		r.activeID = rec.id
	} else if r.activeID == rec.id {
		r.activeID = 0
	}
}

// pendingInboundFrom finds a Pending inbound call from the same remote,
// used by the duplicate-inbound policy (spec §4.3). Identity is decided
// solely by the caller-supplied oracle (Delegate.ShouldCompareCalls) —
// RemoteHandle is opaque and app-owned, so no native comparison belongs
// here.
func (r *registry) pendingInboundFrom(remote RemoteHandle, same func(a, b RemoteHandle) bool) (*callRecord, bool) {
	for _, rec := range r.calls {
		if rec.direction == Inbound && rec.state == Pending && same(rec.remote, remote) {
			return rec, true
		}
	}
	return nil, false
}
