package callcore

import (
	"testing"
	"time"
)

func TestOutboundHappyPath(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, _ := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("alice")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if len(delegate.started) != 1 || !delegate.started[0].outbound {
		t.Fatalf("ShouldStartCall not invoked as outbound: %+v", delegate.started)
	}

	if err := mgr.Proceed(id, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if delegate.sentOffers != 1 {
		t.Fatalf("sentOffers = %d, want 1", delegate.sentOffers)
	}
	if err := mgr.MessageSent(id); err != nil {
		t.Fatalf("MessageSent: %v", err)
	}

	if err := mgr.ReceiveAnswer(id, DeviceId(1), "answer-sdp"); err != nil {
		t.Fatalf("ReceiveAnswer: %v", err)
	}
	if got := delegate.lastEvent(); got != RingingRemote {
		t.Fatalf("lastEvent() = %s, want RingingRemote", got)
	}

	pc := pcFactory.built[0]
	pc.onStateChange(PCConnected) // ICE/DTLS completes before media arrives
	if got := delegate.lastEvent(); got == ConnectedRemote {
		t.Fatalf("lastEvent() = %s, Connected must wait for OnConnectMedia", got)
	}
	pc.onConnectMedia(nil, TrackVideo)
	if got := delegate.lastEvent(); got != ConnectedRemote {
		t.Fatalf("lastEvent() = %s, want ConnectedRemote", got)
	}
	if got := delegate.events[len(delegate.events)-2].event; got != RemoteVideoEnable {
		t.Fatalf("second-to-last event = %s, want RemoteVideoEnable", got)
	}
}

func TestInboundHappyPath(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id := CallId(100)
	if err := mgr.ReceiveOffer(id, "bob", DeviceId(2), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}
	if len(delegate.started) != 1 || delegate.started[0].outbound {
		t.Fatalf("ShouldStartCall not invoked as inbound: %+v", delegate.started)
	}

	if err := mgr.Proceed(id, nil, false, nil); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if delegate.sentAnswers != 1 {
		t.Fatalf("sentAnswers = %d, want 1", delegate.sentAnswers)
	}
	if got := delegate.lastEvent(); got != RingingLocal {
		t.Fatalf("lastEvent() = %s, want RingingLocal", got)
	}

	if err := mgr.Accept(id); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	pc := pcFactory.built[0]
	// Audio-only remote stream: OnConnectMedia still drives Connected even
	// though no video track ever arrives.
	pc.onConnectMedia(nil, TrackAudio)
	if got := delegate.lastEvent(); got != ConnectedLocal {
		t.Fatalf("lastEvent() = %s, want ConnectedLocal", got)
	}
}

func TestGlareHigherIncomingIdWinsOverExistingOutbound(t *testing.T) {
	delegate := newFakeDelegate()
	delegate.compareCallsResult = true
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	existingID, err := mgr.Place("carol")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(existingID, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}

	// "carol-device2" is a distinct RemoteHandle value from "carol"; only
	// the oracle (compareCallsResult, stubbed true) says they're the same
	// party. Native == would miss this and skip glare detection.
	incomingID := existingID + 1 // numerically greater: incoming wins
	if err := mgr.ReceiveOffer(incomingID, "carol-device2", DeviceId(5), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}

	if delegate.sentHangups != 1 {
		t.Fatalf("sentHangups = %d, want 1 (existing call torn down)", delegate.sentHangups)
	}
	if got := delegate.lastEvent(); got != EndedRemoteGlare {
		t.Fatalf("lastEvent() = %s, want EndedRemoteGlare", got)
	}
	if _, ok := mgr.reg.calls[existingID]; ok {
		t.Error("losing call record still present")
	}
	if _, ok := mgr.reg.calls[incomingID]; !ok {
		t.Error("winning inbound call record missing")
	}
	if len(delegate.started) != 2 {
		t.Fatalf("ShouldStartCall invocations = %d, want 2 (outbound place + winning inbound)", len(delegate.started))
	}
}

func TestGlareLowerIncomingIdLosesToExistingOutbound(t *testing.T) {
	delegate := newFakeDelegate()
	delegate.compareCallsResult = true
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	existingID, err := mgr.Place("dina")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(existingID, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}

	if existingID <= 1 {
		t.Skip("allocated id too small to construct a numerically-smaller incoming id")
	}
	incomingID := existingID - 1 // numerically smaller: existing wins

	// Distinct RemoteHandle value from "dina"; only the oracle says they
	// match, exercising the same oracle-only path as the case above.
	if err := mgr.ReceiveOffer(incomingID, "dina-device2", DeviceId(5), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}

	if delegate.sentHangups != 0 {
		t.Fatalf("sentHangups = %d, want 0 (existing call survives)", delegate.sentHangups)
	}
	if got := delegate.lastEvent(); got != EndedRemoteGlare {
		t.Fatalf("lastEvent() = %s, want EndedRemoteGlare (the losing incoming call)", got)
	}
	if _, ok := mgr.reg.calls[existingID]; !ok {
		t.Error("surviving existing call record missing")
	}
	if _, ok := mgr.reg.calls[incomingID]; ok {
		t.Error("losing incoming call record still present")
	}
}

func TestOfferWhileActiveRefusesWithBusy(t *testing.T) {
	delegate := newFakeDelegate()
	delegate.compareCallsResult = false
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	activeID, err := mgr.Place("dave")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(activeID, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}

	newID := activeID + 100
	if err := mgr.ReceiveOffer(newID, "erin", DeviceId(9), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}

	if delegate.sentBusy != 1 {
		t.Fatalf("sentBusy = %d, want 1", delegate.sentBusy)
	}
	if got := delegate.lastEvent(); got != EndedReceivedOfferWhileActive {
		t.Fatalf("lastEvent() = %s, want EndedReceivedOfferWhileActive", got)
	}
	if _, ok := mgr.reg.calls[activeID]; !ok {
		t.Error("active call was torn down by an unrelated offer, want it unaffected")
	}
}

func TestIceCandidatesBufferUntilRemoteDescriptionSet(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, _ := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("frank")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(id, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}

	c1 := IceCandidate{SDP: "c1"}
	c2 := IceCandidate{SDP: "c2"}
	if err := mgr.ReceiveIceCandidates(id, DeviceId(1), []IceCandidate{c1}); err != nil {
		t.Fatalf("ReceiveIceCandidates c1: %v", err)
	}
	if err := mgr.ReceiveIceCandidates(id, DeviceId(1), []IceCandidate{c2}); err != nil {
		t.Fatalf("ReceiveIceCandidates c2: %v", err)
	}

	pc := pcFactory.built[0]
	if len(pc.addedCandidates) != 0 {
		t.Fatalf("addedCandidates = %d before remote description is set, want 0", len(pc.addedCandidates))
	}

	if err := mgr.ReceiveAnswer(id, DeviceId(1), "answer-sdp"); err != nil {
		t.Fatalf("ReceiveAnswer: %v", err)
	}

	if len(pc.addedCandidates) != 2 {
		t.Fatalf("addedCandidates = %d after flush, want 2", len(pc.addedCandidates))
	}
	if pc.addedCandidates[0] != c1 || pc.addedCandidates[1] != c2 {
		t.Fatalf("addedCandidates = %+v, want [c1, c2] in arrival order", pc.addedCandidates)
	}
}

func TestSetupTimeoutTerminatesCall(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("gina")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	clock.Advance(mgr.opts.SetupBudget)

	if got := delegate.lastEvent(); got != EndedTimeout {
		t.Fatalf("lastEvent() = %s, want EndedTimeout", got)
	}
	if _, ok := mgr.reg.calls[id]; ok {
		t.Error("call record still present after setup timeout")
	}
}

func TestReconnectTimeoutTerminatesCall(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("hank")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(id, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if err := mgr.ReceiveAnswer(id, DeviceId(1), "answer-sdp"); err != nil {
		t.Fatalf("ReceiveAnswer: %v", err)
	}

	pc := pcFactory.built[0]
	pc.onConnectMedia(nil, TrackAudio)
	if got := delegate.lastEvent(); got != ConnectedRemote {
		t.Fatalf("lastEvent() = %s, want ConnectedRemote", got)
	}

	pc.onStateChange(PCDisconnected)
	if got := delegate.lastEvent(); got != EventReconnecting {
		t.Fatalf("lastEvent() = %s, want EventReconnecting", got)
	}

	clock.Advance(mgr.opts.ReconnectBudget)
	if got := delegate.lastEvent(); got != EndedConnectionFailure {
		t.Fatalf("lastEvent() = %s, want EndedConnectionFailure", got)
	}
}

func TestReconnectRecoversBeforeBudgetExpires(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("iris")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(id, nil, false, []DeviceId{1}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if err := mgr.ReceiveAnswer(id, DeviceId(1), "answer-sdp"); err != nil {
		t.Fatalf("ReceiveAnswer: %v", err)
	}

	pc := pcFactory.built[0]
	pc.onConnectMedia(nil, TrackAudio)
	pc.onStateChange(PCDisconnected)

	clock.Advance(mgr.opts.ReconnectBudget / 2)
	pc.onStateChange(PCConnected)
	if got := delegate.lastEvent(); got != EventReconnected {
		t.Fatalf("lastEvent() = %s, want EventReconnected", got)
	}

	// The reconnect timer must not still be armed: advancing past the
	// original budget must not terminate the now-healthy call.
	clock.Advance(mgr.opts.ReconnectBudget)
	if got := delegate.lastEvent(); got != EventReconnected {
		t.Fatalf("lastEvent() = %s, want EventReconnected (stale reconnect timer fired)", got)
	}
	if _, ok := mgr.reg.calls[id]; !ok {
		t.Error("call record removed after recovering from a disconnect")
	}
}

func TestOfferExpiryRejectsWithoutRinging(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id := CallId(7)
	staleTimestamp := clock.Now().Add(-61 * time.Second)
	if err := mgr.ReceiveOffer(id, "ivan", DeviceId(1), "offer-sdp", staleTimestamp); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}

	if len(delegate.started) != 0 {
		t.Fatalf("ShouldStartCall invoked for an expired offer: %+v", delegate.started)
	}
	if got := delegate.lastEvent(); got != EndedReceivedOfferExpired {
		t.Fatalf("lastEvent() = %s, want EndedReceivedOfferExpired", got)
	}
	if _, ok := mgr.reg.calls[id]; ok {
		t.Error("expired offer's call record still present")
	}
}

func TestProceedAfterOfferExpiresTerminates(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id := CallId(8)
	if err := mgr.ReceiveOffer(id, "jack", DeviceId(1), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}

	clock.now = clock.now.Add(61 * time.Second)
	if err := mgr.Proceed(id, nil, false, nil); err == nil {
		t.Fatal("Proceed succeeded on an offer that expired before proceed, want an error")
	}
	if got := delegate.lastEvent(); got != EndedReceivedOfferExpired {
		t.Fatalf("lastEvent() = %s, want EndedReceivedOfferExpired", got)
	}
}

func TestHangupNotifiesEveryContactedDevice(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, _ := newTestManager(delegate, pcFactory)

	id, err := mgr.Place("liam")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := mgr.Proceed(id, nil, false, []DeviceId{1, 2, 3}); err != nil {
		t.Fatalf("Proceed: %v", err)
	}

	if err := mgr.Hangup(); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if delegate.sentHangups != 3 {
		t.Fatalf("sentHangups = %d, want 3 (one per contacted device)", delegate.sentHangups)
	}
	if got := delegate.lastEvent(); got != EndedLocalHangup {
		t.Fatalf("lastEvent() = %s, want EndedLocalHangup", got)
	}
	if _, ok := mgr.reg.calls[id]; ok {
		t.Error("call record still present after hangup")
	}
}

func TestRemoteHangupIsIdempotentForUnknownCall(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, _ := newTestManager(delegate, pcFactory)

	if err := mgr.ReceiveHangup(CallId(9999)); err != nil {
		t.Fatalf("ReceiveHangup on unknown call returned error: %v", err)
	}
	if len(delegate.events) != 0 {
		t.Fatalf("events = %+v, want none", delegate.events)
	}
}

func TestDropIsSilent(t *testing.T) {
	delegate := newFakeDelegate()
	pcFactory := &fakePCFactory{}
	mgr, clock := newTestManager(delegate, pcFactory)

	id := CallId(42)
	if err := mgr.ReceiveOffer(id, "kate", DeviceId(1), "offer-sdp", clock.Now()); err != nil {
		t.Fatalf("ReceiveOffer: %v", err)
	}
	if err := mgr.Drop(id); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if len(delegate.events) != 0 {
		t.Fatalf("events = %+v, want none — Drop must not be user-visible", delegate.events)
	}
	if _, ok := mgr.reg.calls[id]; ok {
		t.Error("dropped call record still present")
	}
}
