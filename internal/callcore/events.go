package callcore

import (
	"log"
	"time"
)

// emit delivers one domain event to the application delegate. Every
// call into Delegate.OnEvent happens from inside CallManager.mu, which
// is what gives "all outward application callbacks occur on the event
// thread" (spec §2) its ordering guarantee — see SPEC_FULL.md §5.
func (m *CallManager) emit(rec *callRecord, event Event) {
	log.Printf("callcore[%d]: event %s (remote=%v)", rec.id, event, rec.remote)
	m.delegate.OnEvent(rec.remote, event)
}

// terminate moves rec to Terminated with reason, emits exactly one
// Ended* event (invariant P1: "ends with exactly one Ended* event; no
// events follow the terminal event"), tears down media/PC resources and
// drops the record from the registry.
func (m *CallManager) terminate(rec *callRecord, reason TerminateReason) {
	if rec.state == Terminated {
		return // idempotent: I4 — no events after Terminated
	}
	rec.reason = reason
	m.reg.setState(rec, Terminated)
	stopTimer(rec.setupTimer)
	stopTimer(rec.reconnectTimer)

	if rec.pc != nil {
		_ = rec.pc.Close()
		rec.pc = nil
	}
	rec.context.close()

	log.Printf("callcore[%d]: terminated reason=%s", rec.id, reason)
	m.emit(rec, reasonToEvent(reason))
	m.reg.remove(rec.id)
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
