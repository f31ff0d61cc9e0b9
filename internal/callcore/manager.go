package callcore

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"sync"
	"time"
)

// Options configures a CallManager.
type Options struct {
	// SetupBudget bounds how long a call may take to reach Connected
	// before Timeout fires. Zero uses the spec default (60s).
	SetupBudget time.Duration
	// ReconnectBudget bounds how long a Connected call may spend
	// Reconnecting before ConnectionFailure fires. Zero uses the spec
	// default (30s).
	ReconnectBudget time.Duration
}

// CallManager is the façade described in spec §4.1: the single entry
// point an embedding application uses to place, accept, and tear down
// 1:1 calls, and the sink for inbound signaling. Grounded in
// call.Manager, generalized from one Signaler-shaped transport coupling
// to the full state machine, dispatcher and glare arbiter of the spec.
type CallManager struct {
	mu sync.Mutex

	delegate     *Delegate
	pcFactory    PeerConnectionFactory
	mediaFactory MediaFactory
	opts         Options

	reg *registry

	nowFn       func() time.Time
	afterFuncFn func(time.Duration, func()) *time.Timer
}

// New constructs a CallManager. delegate must have every slot
// populated (validated at construction, per the §9 redesign note).
func New(delegate *Delegate, pcFactory PeerConnectionFactory, mediaFactory MediaFactory, opts Options) *CallManager {
	delegate.validate()
	if opts.SetupBudget <= 0 {
		opts.SetupBudget = setupBudget
	}
	if opts.ReconnectBudget <= 0 {
		opts.ReconnectBudget = reconnectBudget
	}
	return &CallManager{
		delegate:     delegate,
		pcFactory:    pcFactory,
		mediaFactory: mediaFactory,
		opts:         opts,
		reg:          newRegistry(randSeed()),
		nowFn:        time.Now,
		afterFuncFn:  time.AfterFunc,
	}
}

func randSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	v := binary.BigEndian.Uint64(b[:])
	if v == 0 {
		return 1
	}
	return v
}

func (m *CallManager) now() time.Time { return m.nowFn() }

func (m *CallManager) afterFunc(d time.Duration, f func()) *time.Timer {
	return m.afterFuncFn(d, f)
}

// ── Outbound façade ─────────────────────────────────────────────────────

// Place creates an outbound call to remote and schedules
// ShouldStartCall back to the application (spec §4.1).
func (m *CallManager) Place(remote RemoteHandle) (CallId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.reg.allocID()
	rec := &callRecord{
		id:        id,
		remote:    remote,
		direction: Outbound,
		state:     Starting,
		createdAt: m.now(),
		contacted: make(map[DeviceId]bool),
	}
	m.reg.insert(rec)
	rec.setupTimer = m.afterFunc(m.opts.SetupBudget, func() { m.onSetupTimeout(id) })

	log.Printf("callcore[%d]: place -> %v", id, remote)
	m.delegate.ShouldStartCall(id, remote, true)
	return id, nil
}

func (m *CallManager) onSetupTimeout(id CallId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.reg.calls[id]
	if !ok || rec.state == Connected || rec.state == Terminated {
		return
	}
	m.terminate(rec, Timeout)
}

// Proceed supplies configuration so the core can build a peer
// connection (spec §4.1). Valid only in Starting (outbound) or Pending
// (inbound, immediately after ShouldStartCall).
func (m *CallManager) Proceed(id CallId, iceServers []IceServer, hideIP bool, devices []DeviceId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("proceed: unknown call %d", id)
	}
	if !rec.state.canProceed() {
		return apiFailure("proceed: call %d in state %s cannot proceed", id, rec.state)
	}

	// Open question resolved per spec.md §9: an inbound offer that
	// expired between ReceiveOffer and Proceed terminates the same way
	// an offer that was already stale on arrival does, and suppresses
	// any peer-connection work — ShouldStartCall was already emitted by
	// this point, but no further signaling directive is produced.
	if rec.direction == Inbound && m.now().Sub(rec.offerTimestamp) > offerExpiry {
		m.terminate(rec, ReceivedOfferExpired)
		return apiFailure("proceed: call %d's offer expired before proceed", id)
	}

	ctx, err := buildContext(m.mediaFactory, iceServers, hideIP)
	if err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("proceed: build media context: %v", err)
	}
	rec.context = ctx
	rec.deviceList = devices
	m.reg.setState(rec, Proceeding)

	if err := m.createConnection(rec); err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("proceed: create peer connection: %v", err)
	}

	if rec.direction == Outbound {
		return m.createAndQueueOffer(rec)
	}

	if err := rec.pc.SetRemoteOffer(rec.pendingOfferSDP); err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("proceed: set remote offer: %v", err)
	}
	rec.remoteDescSet = true
	flushPendingICE(rec)
	return m.createAndQueueAnswer(rec)
}

// createAndQueueOffer negotiates a local offer and fans it out to every
// device in rec.deviceList as a single ShouldSendOffer directive
// (spec §4.3's "emitted once with the full device list").
func (m *CallManager) createAndQueueOffer(rec *callRecord) error {
	sdp, err := rec.pc.CreateOffer()
	if err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("create offer: %v", err)
	}
	if err := rec.pc.SetLocalOffer(sdp); err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("set local offer: %v", err)
	}
	for _, d := range rec.deviceList {
		rec.contacted[d] = true
	}
	m.enqueue(rec, directive{kind: dirOffer, sdp: sdp, essential: true})
	return nil
}

func (m *CallManager) createAndQueueAnswer(rec *callRecord) error {
	sdp, err := rec.pc.CreateAnswer()
	if err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("create answer: %v", err)
	}
	if err := rec.pc.SetLocalAnswer(sdp); err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("set local answer: %v", err)
	}
	dest := rec.selectedDevice
	rec.contacted[*dest] = true
	m.reg.setState(rec, Ringing)
	m.enqueue(rec, directive{kind: dirAnswer, dest: dest, sdp: sdp, essential: true})
	m.emit(rec, RingingLocal)
	return nil
}

// Accept transitions an inbound call from Ringing to Accepting; causes
// media enable + final answer send if not yet sent (spec §4.1).
func (m *CallManager) Accept(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("accept: unknown call %d", id)
	}
	if rec.direction != Inbound || !rec.state.canAccept() {
		return apiFailure("accept: %s call %d in state %s cannot be accepted", rec.direction, id, rec.state)
	}
	m.reg.setState(rec, Accepting)
	rec.setupTimer = m.afterFunc(m.opts.SetupBudget, func() { m.onSetupTimeout(id) })
	if rec.context != nil {
		if rec.context.AudioTrack != nil {
			rec.context.AudioTrack.SetEnabled(true)
		}
		if rec.context.VideoTrack != nil {
			rec.context.VideoTrack.SetEnabled(true)
		}
	}
	// The answer is always sent as soon as proceed() produces a local
	// description (spec §4.3) — by the time a call reaches Ringing the
	// answer has already been queued, so accept() only needs to enable
	// local media, never to re-negotiate.
	log.Printf("callcore[%d]: accepted", id)
	return nil
}

// Hangup ends the currently active call, transitions it to
// Terminated(LocalHangup) and emits ShouldSendHangup to every
// previously contacted device (spec §4.1).
func (m *CallManager) Hangup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.active()
	if !ok {
		return apiFailure("hangup: no active call")
	}
	// Hangup notifies every contacted device at once, bypassing the
	// one-in-flight dispatch queue: the call record is about to be
	// removed by terminate() below, so nothing would ever drain a
	// queued second directive (invariant I3 only matters while the
	// call is still live).
	if len(rec.contacted) == 0 {
		m.delegate.ShouldSendHangup(rec.id, rec.remote, nil)
	}
	for d := range rec.contacted {
		dd := d
		m.delegate.ShouldSendHangup(rec.id, rec.remote, &dd)
	}
	m.terminate(rec, LocalHangup)
	return nil
}

// Drop silently tears down a specific inbound call the application
// chose not to surface; no user-visible event (spec §4.1).
func (m *CallManager) Drop(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("drop: unknown call %d", id)
	}
	rec.reason = Dropped
	m.reg.setState(rec, Terminated)
	stopTimer(rec.setupTimer)
	stopTimer(rec.reconnectTimer)
	if rec.pc != nil {
		_ = rec.pc.Close()
	}
	rec.context.close()
	m.reg.remove(id)
	log.Printf("callcore[%d]: dropped silently", id)
	return nil
}

// Reset hard-tears-down all records; used after catastrophic UI
// errors (spec §4.1).
func (m *CallManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]CallId, 0, len(m.reg.calls))
	for id := range m.reg.calls {
		ids = append(ids, id)
	}
	for _, id := range ids {
		rec := m.reg.calls[id]
		stopTimer(rec.setupTimer)
		stopTimer(rec.reconnectTimer)
		if rec.pc != nil {
			_ = rec.pc.Close()
		}
		rec.context.close()
		delete(m.reg.calls, id)
	}
	m.reg.remoteRefs = make(map[RemoteHandle]*remoteRef)
	m.reg.activeID = 0
	log.Printf("callcore: reset — all calls torn down")
}

// ── Media controls ──────────────────────────────────────────────────────

// SetLocalAudioEnabled routes to the active CallContext (spec §4.1).
func (m *CallManager) SetLocalAudioEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.active()
	if !ok || rec.context == nil || rec.context.AudioTrack == nil {
		return apiFailure("set_local_audio_enabled: no active call context")
	}
	rec.context.AudioTrack.SetEnabled(enabled)
	return nil
}

// SetLocalVideoEnabled routes to the CallContext of call id and emits
// OnUpdateLocalVideoSession (spec §4.1).
func (m *CallManager) SetLocalVideoEnabled(enabled bool, id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok || rec.context == nil || rec.context.VideoTrack == nil {
		return apiFailure("set_local_video_enabled: call %d has no video context", id)
	}
	rec.context.VideoTrack.SetEnabled(enabled)
	m.delegate.OnUpdateLocalVideoSession(rec.remote, enabled)
	return nil
}

// SetCameraSource switches the active call's capturer between front and
// back cameras (spec §4.1).
func (m *CallManager) SetCameraSource(front bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.active()
	if !ok || rec.context == nil || rec.context.Capture == nil {
		return apiFailure("set_camera_source: no active call capturer")
	}
	src := CameraFront
	if !front {
		src = CameraBack
	}
	if err := rec.context.Capture.SetSource(src); err != nil {
		return apiFailure("set_camera_source: %v", err)
	}
	return nil
}
