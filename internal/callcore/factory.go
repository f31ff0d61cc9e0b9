package callcore

// This file defines the boundary to the external collaborators named in
// spec §1 as out of scope for the core: the WebRTC peer-connection
// factory and the platform camera capture pipeline. The core never
// imports a WebRTC library directly — it only calls these interfaces,
// the same way internal/call/types.go keeps call.Manager's only
// coupling to the outside world behind the Signaler interface.

// PeerConnectionState mirrors the subset of ICE/DTLS connection states
// the coordinator needs to drive the state machine.
type PeerConnectionState int

const (
	PCNew PeerConnectionState = iota
	PCConnecting
	PCConnected
	PCDisconnected
	PCFailed
	PCClosed
)

// RemoteTrack is an opaque handle to an inbound remote media track,
// passed to the coordinator without it inspecting the track itself.
type RemoteTrack any

// RemoteVideoTrack is the RemoteTrack subset known to carry video,
// passed to Delegate.OnAddRemoteVideoTrack.
type RemoteVideoTrack = RemoteTrack

// TrackKind distinguishes the media carried by a RemoteTrack.
type TrackKind int

const (
	TrackAudio TrackKind = iota
	TrackVideo
)

// PeerConnection is the generic shape the coordinator drives. A
// concrete implementation (internal/webrtcfactory) wraps a real
// *webrtc.PeerConnection.
type PeerConnection interface {
	CreateOffer() (sdp string, err error)
	CreateAnswer() (sdp string, err error)
	SetLocalOffer(sdp string) error
	SetLocalAnswer(sdp string) error
	SetRemoteOffer(sdp string) error
	SetRemoteAnswer(sdp string) error
	AddICECandidate(c IceCandidate) error
	AddAudioTrack(t AudioTrack) error
	AddVideoTrack(t VideoTrack) error
	OnICECandidate(func(IceCandidate))
	OnConnectionStateChange(func(PeerConnectionState))
	// OnConnectMedia fires once per inbound remote track, independent of
	// the ICE/DTLS state reported via OnConnectionStateChange (spec
	// §4.2/§4.3): a peer connection can finish ICE/DTLS before any
	// media actually arrives.
	OnConnectMedia(func(track RemoteTrack, kind TrackKind))
	Close() error
}

// PeerConnectionFactory builds a PeerConnection configured per spec
// §4.2 from a CallContext's negotiated policy.
type PeerConnectionFactory interface {
	CreatePeerConnection(ctx *CallContext) (PeerConnection, error)
}

// AudioTrack, VideoTrack and Capturer are opaque media handles owned by
// CallContext. The core never reads their contents; it only asks the
// MediaFactory to create them and hands them to the PeerConnection.
type AudioTrack interface {
	SetEnabled(bool)
	Close() error
}

type VideoTrack interface {
	SetEnabled(bool)
	Close() error
}

// CameraSource identifies which physical camera a Capturer should use.
type CameraSource int

const (
	CameraFront CameraSource = iota
	CameraBack
)

type Capturer interface {
	SetSource(CameraSource) error
	Close() error
}

// MediaFactory produces local media handles. It is injected so tests
// can substitute a fake that never touches real hardware.
type MediaFactory interface {
	CreateAudioTrack() (AudioTrack, error)
	CreateVideoTrack() (VideoTrack, error)
	CreateCapturer() (Capturer, error)
}
