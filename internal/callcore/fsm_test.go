package callcore

import "testing"

func TestCallStateActive(t *testing.T) {
	cases := []struct {
		state CallState
		want  bool
	}{
		{Idle, false},
		{Pending, false},
		{Starting, true},
		{Proceeding, true},
		{Ringing, true},
		{Accepting, true},
		{Connected, true},
		{Reconnecting, true},
		{Terminated, false},
	}
	for _, c := range cases {
		if got := c.state.active(); got != c.want {
			t.Errorf("%s.active() = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestCallStateCanProceed(t *testing.T) {
	for _, s := range []CallState{Starting, Pending} {
		if !s.canProceed() {
			t.Errorf("%s.canProceed() = false, want true", s)
		}
	}
	for _, s := range []CallState{Idle, Proceeding, Ringing, Accepting, Connected, Reconnecting, Terminated} {
		if s.canProceed() {
			t.Errorf("%s.canProceed() = true, want false", s)
		}
	}
}

func TestCallStateCanAccept(t *testing.T) {
	if !Ringing.canAccept() {
		t.Error("Ringing.canAccept() = false, want true")
	}
	for _, s := range []CallState{Idle, Pending, Starting, Proceeding, Accepting, Connected, Reconnecting, Terminated} {
		if s.canAccept() {
			t.Errorf("%s.canAccept() = true, want false", s)
		}
	}
}

func TestTerminateReasonToEvent(t *testing.T) {
	cases := []struct {
		reason TerminateReason
		want   Event
	}{
		{LocalHangup, EndedLocalHangup},
		{RemoteHangup, EndedRemoteHangup},
		{RemoteBusy, EndedRemoteBusy},
		{RemoteGlare, EndedRemoteGlare},
		{Timeout, EndedTimeout},
		{InternalFailure, EndedInternalFailure},
		{SignalingFailure, EndedSignalingFailure},
		{ConnectionFailure, EndedConnectionFailure},
		{Dropped, EndedDropped},
		{ReceivedOfferExpired, EndedReceivedOfferExpired},
		{ReceivedOfferWhileActive, EndedReceivedOfferWhileActive},
	}
	for _, c := range cases {
		if got := reasonToEvent(c.reason); got != c.want {
			t.Errorf("reasonToEvent(%s) = %s, want %s", c.reason, got, c.want)
		}
	}
}
