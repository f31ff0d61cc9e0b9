package webrtcfactory

import (
	"log"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
)

// audioTrack and videoTrack adapt a pion/mediadevices track to the
// callcore.AudioTrack / callcore.VideoTrack interfaces. SetEnabled
// governs whether the track forwards captured media without
// renegotiating the peer connection: it replaces the RTP sender's
// outgoing track with nil (mute) or the real track (unmute). sender is
// nil until AddAudioTrack/AddVideoTrack binds the track to a peer
// connection, matching the teacher's TODO at Session.ToggleAudio/
// ToggleVideo ("mute the Pion track in-place") actually carried out.
type audioTrack struct {
	track   mediadevices.Track
	sender  *webrtc.RTPSender
	enabled bool
}

func (t *audioTrack) SetEnabled(on bool) {
	t.enabled = on
	if t.sender == nil {
		return
	}
	if on {
		if err := t.sender.ReplaceTrack(t.track); err != nil {
			log.Printf("webrtcfactory: audio track replace (enable) error: %v", err)
		}
		return
	}
	if err := t.sender.ReplaceTrack(nil); err != nil {
		log.Printf("webrtcfactory: audio track replace (mute) error: %v", err)
	}
}

func (t *audioTrack) Close() error { return t.track.Close() }

type videoTrack struct {
	track   mediadevices.Track
	sender  *webrtc.RTPSender
	enabled bool
}

func (t *videoTrack) SetEnabled(on bool) {
	t.enabled = on
	if t.sender == nil {
		return
	}
	if on {
		if err := t.sender.ReplaceTrack(t.track); err != nil {
			log.Printf("webrtcfactory: video track replace (enable) error: %v", err)
		}
		return
	}
	if err := t.sender.ReplaceTrack(nil); err != nil {
		log.Printf("webrtcfactory: video track replace (mute) error: %v", err)
	}
}

func (t *videoTrack) Close() error { return t.track.Close() }
