package callcore

import "log"

// enqueue appends a directive to rec's outbound FIFO and, if nothing is
// currently in flight, sends it immediately. At most one directive is
// ever in flight per call (invariant I3, spec §4.5).
func (m *CallManager) enqueue(rec *callRecord, d directive) {
	rec.outbound = append(rec.outbound, d)
	if !rec.messageInFlight {
		m.sendNext(rec)
	}
}

// sendNext pops the front of rec's FIFO, if any, and invokes the
// matching Delegate.ShouldSend* slot.
func (m *CallManager) sendNext(rec *callRecord) {
	if rec.messageInFlight || len(rec.outbound) == 0 {
		return
	}
	d := rec.outbound[0]
	rec.outbound = rec.outbound[1:]
	rec.messageInFlight = true
	rec.lastSentEssential = d.essential

	switch d.kind {
	case dirOffer:
		log.Printf("callcore[%d]: ShouldSendOffer dest=%v", rec.id, d.dest)
		m.delegate.ShouldSendOffer(rec.id, rec.remote, d.dest, d.sdp)
	case dirAnswer:
		log.Printf("callcore[%d]: ShouldSendAnswer dest=%v", rec.id, d.dest)
		m.delegate.ShouldSendAnswer(rec.id, rec.remote, d.dest, d.sdp)
	case dirIce:
		log.Printf("callcore[%d]: ShouldSendIceCandidates dest=%v n=%d", rec.id, d.dest, len(d.candidates))
		m.delegate.ShouldSendIceCandidates(rec.id, rec.remote, d.dest, d.candidates)
	case dirBusy:
		log.Printf("callcore[%d]: ShouldSendBusy dest=%v", rec.id, d.dest)
		m.delegate.ShouldSendBusy(rec.id, rec.remote, d.dest)
	}
}

// MessageSent clears message_in_flight and releases the next queued
// directive, per spec §4.1/§4.5.
func (m *CallManager) MessageSent(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("message_sent: unknown call %d", id)
	}
	rec.messageInFlight = false
	m.sendNext(rec)
	return nil
}

// MessageSendFailure clears message_in_flight; if the failed message
// was essential it terminates the call as SignalingFailure, otherwise
// it logs and continues the queue (spec §4.1/§4.5/§7).
func (m *CallManager) MessageSendFailure(id CallId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reg.calls[id]
	if !ok {
		return apiFailure("message_send_failure: unknown call %d", id)
	}
	rec.messageInFlight = false

	// The directive that just failed was already popped by sendNext;
	// its essentiality was decided when it was enqueued, so essential
	// directives carry essential=true through the queue.
	wasEssential := rec.lastSentEssential
	if wasEssential {
		m.terminate(rec, SignalingFailure)
		return nil
	}
	log.Printf("callcore[%d]: optional message send failure, continuing", rec.id)
	m.sendNext(rec)
	return nil
}
