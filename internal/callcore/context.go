package callcore

// IceServer is the semantic equivalent of a STUN/TURN server entry,
// independent of any WebRTC library's own type.
type IceServer struct {
	URLs       []string
	Username   string
	Credential string
}

// CallContext is the per-call bag of media handles and negotiated
// policy, created at Proceed and owned by the call record (spec §3).
type CallContext struct {
	ICEServers []IceServer
	HideIP     bool

	AudioTrack AudioTrack
	VideoTrack VideoTrack
	Capture    Capturer
}

// close releases every media handle the context owns. Called exactly
// once, from the event thread, when the call record is removed.
func (c *CallContext) close() {
	if c == nil {
		return
	}
	if c.AudioTrack != nil {
		_ = c.AudioTrack.Close()
	}
	if c.VideoTrack != nil {
		_ = c.VideoTrack.Close()
	}
	if c.Capture != nil {
		_ = c.Capture.Close()
	}
}

// buildContext asks the MediaFactory for the tracks and capturer a new
// call needs and assembles a CallContext from the application-supplied
// policy. Grounded in Session.initExternalPC's capture-then-wire
// sequence, generalized behind MediaFactory instead of calling
// pion/mediadevices directly.
func buildContext(mf MediaFactory, iceServers []IceServer, hideIP bool) (*CallContext, error) {
	audio, err := mf.CreateAudioTrack()
	if err != nil {
		return nil, err
	}
	video, err := mf.CreateVideoTrack()
	if err != nil {
		return nil, err
	}
	capture, err := mf.CreateCapturer()
	if err != nil {
		return nil, err
	}
	return &CallContext{
		ICEServers: iceServers,
		HideIP:     hideIP,
		AudioTrack: audio,
		VideoTrack: video,
		Capture:    capture,
	}, nil
}
