package callcore

import (
	"log"
	"time"
)

// ReceiveOffer handles an inbound Offer message (spec §4.3, §4.4).
// callId and srcDevice identify the offering device; timestamp is the
// wall-clock time the offer was sent, used for the 60s expiry check.
func (m *CallManager) ReceiveOffer(id CallId, remote RemoteHandle, srcDevice DeviceId, sdp string, timestamp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reg.calls[id]; exists {
		// Duplicate inbound with the same CallId is idempotent (spec §4.3).
		return nil
	}

	// Duplicate inbound from the same remote while a previous inbound is
	// still Pending: drop the older one (spec §4.3).
	if old, ok := m.reg.pendingInboundFrom(remote, m.delegate.ShouldCompareCalls); ok {
		log.Printf("callcore[%d]: superseded by newer offer %d from same remote, dropping", old.id, id)
		m.reg.remove(old.id)
	}

	rec := &callRecord{
		id:              id,
		remote:          remote,
		direction:       Inbound,
		state:           Pending,
		createdAt:       m.now(),
		offerTimestamp:  timestamp,
		selectedDevice:  &srcDevice,
		contacted:       map[DeviceId]bool{srcDevice: true},
		pendingOfferSDP: sdp,
	}

	// Offer expiry (spec §4.3, property P4): terminate without ringing
	// and without ShouldStartCall.
	if m.now().Sub(timestamp) > offerExpiry {
		m.reg.insert(rec)
		m.terminate(rec, ReceivedOfferExpired)
		return nil
	}

	// Glare (spec §4.4): an outbound/settling call to the same remote
	// already exists, and the oracle confirms it is the same party.
	if active, ok := m.reg.active(); ok && glareEligible(active.state) &&
		m.delegate.ShouldCompareCalls(active.remote, remote) {

		_, existingLost := resolveGlare(active.id, id)
		if existingLost {
			// Bypass the dispatch queue, same as Hangup: active is about
			// to be removed by terminate() and nothing would drain a
			// second queued directive.
			for d := range active.contacted {
				dd := d
				m.delegate.ShouldSendHangup(active.id, active.remote, &dd)
			}
			m.terminate(active, RemoteGlare)
			// falls through: the active slot is now free, so the new
			// inbound call proceeds to registration below.
		} else {
			m.reg.insert(rec)
			m.terminate(rec, RemoteGlare)
			return nil
		}
	}

	// Offer while active (spec §4.3, property P5): a different active
	// call exists (glare above did not apply or did not free the slot)
	// — refuse with Busy; the active call is unaffected.
	if _, ok := m.reg.active(); ok {
		m.reg.insert(rec)
		m.enqueue(rec, directive{kind: dirBusy, dest: &srcDevice})
		m.terminate(rec, ReceivedOfferWhileActive)
		return nil
	}

	m.reg.insert(rec)
	log.Printf("callcore[%d]: inbound offer from %v device=%d", id, remote, srcDevice)
	m.delegate.ShouldStartCall(id, remote, false)
	return nil
}

// ReceiveAnswer handles an inbound Answer (spec §4.3): only the first
// valid answer's srcDevice is latched; later answers are ignored.
func (m *CallManager) ReceiveAnswer(id CallId, srcDevice DeviceId, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("receive_answer: unknown call %d", id)
	}
	if rec.selectedDevice != nil {
		log.Printf("callcore[%d]: ignoring answer from device %d, already latched to %d", id, srcDevice, *rec.selectedDevice)
		return nil
	}
	if rec.pc == nil {
		return apiFailure("receive_answer: call %d has no peer connection yet", id)
	}
	d := srcDevice
	rec.selectedDevice = &d
	rec.contacted[d] = true
	if err := rec.pc.SetRemoteAnswer(sdp); err != nil {
		m.terminate(rec, InternalFailure)
		return apiFailure("receive_answer: set remote description: %v", err)
	}
	rec.remoteDescSet = true
	flushPendingICE(rec)
	m.reg.setState(rec, Ringing)
	m.emit(rec, RingingRemote)
	return nil
}

// ReceiveIceCandidates buffers or forwards inbound ICE candidates,
// preserving arrival order (invariant I5, property P6).
func (m *CallManager) ReceiveIceCandidates(id CallId, srcDevice DeviceId, candidates []IceCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("receive_ice_candidates: unknown call %d", id)
	}
	if rec.selectedDevice != nil && *rec.selectedDevice != srcDevice {
		return nil // from a non-selected device — ignore
	}
	if rec.pc == nil || !rec.remoteDescSet {
		rec.pendingICEIn = append(rec.pendingICEIn, candidates...)
		return nil
	}
	for _, c := range candidates {
		if err := rec.pc.AddICECandidate(c); err != nil {
			log.Printf("callcore[%d]: AddICECandidate error: %v", id, err)
		}
	}
	return nil
}

// ReceiveHangup ends the addressed call as RemoteHangup (spec §4.3).
func (m *CallManager) ReceiveHangup(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return nil // already concluded locally — idempotent
	}
	m.terminate(rec, RemoteHangup)
	return nil
}

// ReceiveBusy ends the addressed call as RemoteBusy (spec §4.4).
func (m *CallManager) ReceiveBusy(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return nil
	}
	m.terminate(rec, RemoteBusy)
	return nil
}
