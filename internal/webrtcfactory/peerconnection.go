// Package webrtcfactory is the concrete PeerConnectionFactory and
// MediaFactory implementation backing callcore.CallManager, built on
// pion/webrtc and pion/mediadevices. It is the only package in this
// module that imports a WebRTC library directly; callcore only ever
// sees the interfaces in internal/callcore/factory.go.
package webrtcfactory

import (
	"log"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/petervdpas/callcore/internal/callcore"
)

// pc adapts a *webrtc.PeerConnection to callcore.PeerConnection.
type pc struct {
	id   uint64
	conn *webrtc.PeerConnection
}

// Factory builds pion PeerConnections configured with generous ICE
// timeouts so a brief relay hiccup does not tear the call down.
type Factory struct{}

var nextID uint64

func (f *Factory) CreatePeerConnection(ctx *callcore.CallContext) (callcore.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{}
	se.SetICETimeouts(disconnectedTimeout, failedTimeout, keepaliveInterval)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	policy := webrtc.ICETransportPolicyAll
	if ctx.HideIP {
		policy = webrtc.ICETransportPolicyRelay
	}
	conn, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         toPionServers(ctx.ICEServers),
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	nextID++
	return &pc{id: nextID, conn: conn}, nil
}

func toPionServers(servers []callcore.IceServer) []webrtc.ICEServer {
	if len(servers) == 0 {
		return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, s := range servers {
		out[i] = webrtc.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential}
	}
	return out
}

func (p *pc) CreateOffer() (string, error) {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *pc) CreateAnswer() (string, error) {
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (p *pc) SetLocalOffer(sdp string) error {
	return p.conn.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func (p *pc) SetLocalAnswer(sdp string) error {
	return p.conn.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *pc) SetRemoteOffer(sdp string) error {
	return p.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func (p *pc) SetRemoteAnswer(sdp string) error {
	return p.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *pc) AddICECandidate(c callcore.IceCandidate) error {
	init := webrtc.ICECandidateInit{Candidate: c.SDP}
	if c.SDPMid != "" {
		mid := c.SDPMid
		init.SDPMid = &mid
	}
	if c.SDPMLineIndex >= 0 {
		idx := uint16(c.SDPMLineIndex)
		init.SDPMLineIndex = &idx
	}
	return p.conn.AddICECandidate(init)
}

func (p *pc) AddAudioTrack(t callcore.AudioTrack) error {
	at, ok := t.(*audioTrack)
	if !ok {
		return nil
	}
	sender, err := p.conn.AddTrack(at.track)
	if err != nil {
		return err
	}
	at.sender = sender
	return nil
}

func (p *pc) AddVideoTrack(t callcore.VideoTrack) error {
	vt, ok := t.(*videoTrack)
	if !ok {
		return nil
	}
	sender, err := p.conn.AddTrack(vt.track)
	if err != nil {
		return err
	}
	vt.sender = sender
	return nil
}

func (p *pc) OnICECandidate(fn func(callcore.IceCandidate)) {
	p.conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // ICE gathering complete
		}
		init := c.ToJSON()
		sdpMid := ""
		if init.SDPMid != nil {
			sdpMid = *init.SDPMid
		}
		idx := int32(-1)
		if init.SDPMLineIndex != nil {
			idx = int32(*init.SDPMLineIndex)
		}
		fn(callcore.IceCandidate{SDPMid: sdpMid, SDPMLineIndex: idx, SDP: init.Candidate})
	})
}

func (p *pc) OnConnectionStateChange(fn func(callcore.PeerConnectionState)) {
	p.conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(toCoreState(s))
	})
}

func (p *pc) OnConnectMedia(fn func(callcore.RemoteTrack, callcore.TrackKind)) {
	p.conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := callcore.TrackAudio
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			kind = callcore.TrackVideo
		}
		log.Printf("webrtcfactory[%d]: remote track kind=%s codec=%s", p.id, track.Kind(), track.Codec().MimeType)
		fn(track, kind)
	})
}

func (p *pc) Close() error { return p.conn.Close() }

func toCoreState(s webrtc.PeerConnectionState) callcore.PeerConnectionState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return callcore.PCNew
	case webrtc.PeerConnectionStateConnecting:
		return callcore.PCConnecting
	case webrtc.PeerConnectionStateConnected:
		return callcore.PCConnected
	case webrtc.PeerConnectionStateDisconnected:
		return callcore.PCDisconnected
	case webrtc.PeerConnectionStateFailed:
		return callcore.PCFailed
	default:
		return callcore.PCClosed
	}
}

// Pion's default disconnectedTimeout is 5s — too short for a relay path
// with a brief outage during re-keying or failover.
const (
	disconnectedTimeout = 30 * time.Second
	failedTimeout       = 120 * time.Second
	keepaliveInterval   = 2 * time.Second
)
