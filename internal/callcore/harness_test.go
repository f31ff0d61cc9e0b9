package callcore

import "time"

// fakePC is an in-memory PeerConnection used by every test in this
// package. It never touches real networking; SDP is an opaque label.
type fakePC struct {
	id     int
	closed bool

	localOffer, localAnswer   string
	remoteOffer, remoteAnswer string
	addedCandidates           []IceCandidate

	onICECandidate func(IceCandidate)
	onStateChange  func(PeerConnectionState)
	onConnectMedia func(RemoteTrack, TrackKind)

	createOfferErr  error
	createAnswerErr error
}

func (p *fakePC) CreateOffer() (string, error) {
	if p.createOfferErr != nil {
		return "", p.createOfferErr
	}
	return "offer-sdp", nil
}

func (p *fakePC) CreateAnswer() (string, error) {
	if p.createAnswerErr != nil {
		return "", p.createAnswerErr
	}
	return "answer-sdp", nil
}

func (p *fakePC) SetLocalOffer(sdp string) error  { p.localOffer = sdp; return nil }
func (p *fakePC) SetLocalAnswer(sdp string) error { p.localAnswer = sdp; return nil }
func (p *fakePC) SetRemoteOffer(sdp string) error  { p.remoteOffer = sdp; return nil }
func (p *fakePC) SetRemoteAnswer(sdp string) error { p.remoteAnswer = sdp; return nil }

func (p *fakePC) AddICECandidate(c IceCandidate) error {
	p.addedCandidates = append(p.addedCandidates, c)
	return nil
}

func (p *fakePC) AddAudioTrack(t AudioTrack) error { return nil }
func (p *fakePC) AddVideoTrack(t VideoTrack) error { return nil }

func (p *fakePC) OnICECandidate(fn func(IceCandidate))                 { p.onICECandidate = fn }
func (p *fakePC) OnConnectionStateChange(fn func(PeerConnectionState)) { p.onStateChange = fn }
func (p *fakePC) OnConnectMedia(fn func(RemoteTrack, TrackKind))       { p.onConnectMedia = fn }

func (p *fakePC) Close() error { p.closed = true; return nil }

// fakePCFactory hands out fakePCs and remembers every one it built.
type fakePCFactory struct {
	built   []*fakePC
	nextErr error
}

func (f *fakePCFactory) CreatePeerConnection(ctx *CallContext) (PeerConnection, error) {
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	pc := &fakePC{id: len(f.built) + 1}
	f.built = append(f.built, pc)
	return pc, nil
}

// fakeMediaFactory produces no tracks; CallContext ends up audio/video-less,
// which is enough to exercise the signaling and state-machine logic this
// package tests.
type fakeMediaFactory struct{}

func (fakeMediaFactory) CreateAudioTrack() (AudioTrack, error) { return nil, nil }
func (fakeMediaFactory) CreateVideoTrack() (VideoTrack, error) { return nil, nil }
func (fakeMediaFactory) CreateCapturer() (Capturer, error)     { return nil, nil }

// fakeDelegate records every callback invocation for assertion.
type fakeDelegate struct {
	started []struct {
		id       CallId
		remote   RemoteHandle
		outbound bool
	}
	events []struct {
		remote RemoteHandle
		event  Event
	}
	sentOffers, sentAnswers, sentHangups, sentBusy int
	sentCandidates                                 int
	compareCallsResult                             bool
	localVideoUpdates                               []bool
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{}
}

func (d *fakeDelegate) install() *Delegate {
	return &Delegate{
		ShouldStartCall: func(id CallId, remote RemoteHandle, outbound bool) {
			d.started = append(d.started, struct {
				id       CallId
				remote   RemoteHandle
				outbound bool
			}{id, remote, outbound})
		},
		OnEvent: func(remote RemoteHandle, event Event) {
			d.events = append(d.events, struct {
				remote RemoteHandle
				event  Event
			}{remote, event})
		},
		ShouldSendOffer: func(id CallId, remote RemoteHandle, dest *DeviceId, sdp string) {
			d.sentOffers++
		},
		ShouldSendAnswer: func(id CallId, remote RemoteHandle, dest *DeviceId, sdp string) {
			d.sentAnswers++
		},
		ShouldSendIceCandidates: func(id CallId, remote RemoteHandle, dest *DeviceId, candidates []IceCandidate) {
			d.sentCandidates += len(candidates)
		},
		ShouldSendHangup: func(id CallId, remote RemoteHandle, dest *DeviceId) {
			d.sentHangups++
		},
		ShouldSendBusy: func(id CallId, remote RemoteHandle, dest *DeviceId) {
			d.sentBusy++
		},
		ShouldCompareCalls: func(remote1, remote2 RemoteHandle) bool {
			return d.compareCallsResult
		},
		OnUpdateLocalVideoSession: func(remote RemoteHandle, active bool) {
			d.localVideoUpdates = append(d.localVideoUpdates, active)
		},
		OnAddRemoteVideoTrack: func(remote RemoteHandle, track RemoteVideoTrack) {},
	}
}

func (d *fakeDelegate) lastEvent() Event {
	if len(d.events) == 0 {
		return -1
	}
	return d.events[len(d.events)-1].event
}

// testClock lets tests advance time and fire timers deterministically,
// standing in for time.Now/time.AfterFunc.
type testClock struct {
	now    time.Time
	timers []*testTimer
}

type testTimer struct {
	at  time.Time
	fn  func()
	hit bool
	t   *time.Timer
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) AfterFunc(d time.Duration, f func()) *time.Timer {
	tt := &testTimer{at: c.now.Add(d), fn: f, t: time.NewTimer(time.Hour)}
	tt.t.Stop()
	c.timers = append(c.timers, tt)
	return tt.t
}

// Advance moves the clock forward and fires any timer whose deadline
// has passed, in deadline order.
func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for {
		var due *testTimer
		for _, t := range c.timers {
			if t.hit || t.t == nil {
				continue
			}
			if !t.at.After(c.now) {
				if due == nil || t.at.Before(due.at) {
					due = t
				}
			}
		}
		if due == nil {
			return
		}
		due.hit = true
		due.fn()
	}
}

func newTestManager(delegate *fakeDelegate, pcFactory *fakePCFactory) (*CallManager, *testClock) {
	clock := newTestClock()
	mgr := New(delegate.install(), pcFactory, fakeMediaFactory{}, Options{})
	mgr.nowFn = clock.Now
	mgr.afterFuncFn = clock.AfterFunc
	return mgr, clock
}
