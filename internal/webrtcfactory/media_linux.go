//go:build linux

package webrtcfactory

import (
	"log"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/petervdpas/callcore/internal/callcore"
)

// MediaFactory captures local camera/mic via pion/mediadevices (V4L2 +
// malgo on Linux) and serves the resulting tracks to the three
// callcore.MediaFactory methods. Grounded in call.initMediaPC's
// capture-with-fallback sequence, generalized from a single combined
// call into the CreateAudioTrack / CreateVideoTrack / CreateCapturer
// split the core expects.
type MediaFactory struct {
	preferredSource callcore.CameraSource

	captured   bool
	audio      mediadevices.Track
	video      mediadevices.Track
	streamDone func()
}

// capture runs the video+audio → video-only → audio-only fallback chain
// once per CallContext build and caches the result.
func (f *MediaFactory) capture() {
	if f.captured {
		return
	}
	f.captured = true

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		log.Printf("webrtcfactory: VP8 params error: %v", err)
		return
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		log.Printf("webrtcfactory: Opus params error: %v", err)
		return
	}

	codecSelector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	type attempt struct {
		video bool
		audio bool
		label string
	}
	for _, a := range []attempt{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	} {
		constraints := mediadevices.MediaStreamConstraints{Codec: codecSelector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV, frame.FormatI420, frame.FormatI444, frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			log.Printf("webrtcfactory: GetUserMedia (%s) failed: %v", a.label, err)
			continue
		}

		for _, track := range stream.GetTracks() {
			track.OnEnded(func(err error) {
				if err != nil {
					log.Printf("webrtcfactory: local track ended: %v", err)
				}
			})
			if track.Kind() == webrtc.RTPCodecTypeVideo {
				f.video = track
			} else {
				f.audio = track
			}
		}
		f.streamDone = func() {
			for _, t := range stream.GetTracks() {
				t.Close()
			}
		}
		log.Printf("webrtcfactory: local media captured (%s)", a.label)
		return
	}

	log.Printf("webrtcfactory: all media capture attempts failed — proceeding receive-only")
}

func (f *MediaFactory) CreateAudioTrack() (callcore.AudioTrack, error) {
	f.capture()
	if f.audio == nil {
		return nil, nil
	}
	return &audioTrack{track: f.audio, enabled: true}, nil
}

func (f *MediaFactory) CreateVideoTrack() (callcore.VideoTrack, error) {
	f.capture()
	if f.video == nil {
		return nil, nil
	}
	return &videoTrack{track: f.video, enabled: true}, nil
}

// CreateCapturer always returns a capturer, even receive-only, rather
// than failing when the current call has no video.
func (f *MediaFactory) CreateCapturer() (callcore.Capturer, error) {
	f.capture()
	return &capturer{factory: f}, nil
}

// capturer records the application's camera preference in the factory.
// It does not switch the active video track, and capture() does not read
// the recorded preference, so the camera in use does not change.
type capturer struct {
	factory *MediaFactory
}

func (c *capturer) SetSource(src callcore.CameraSource) error {
	c.factory.preferredSource = src
	log.Printf("webrtcfactory: camera source preference recorded as %v", src)
	return nil
}

// Close releases the captured stream and resets the factory so the next
// call's buildContext triggers a fresh capture rather than reusing a
// closed track.
func (c *capturer) Close() error {
	f := c.factory
	if f.streamDone != nil {
		f.streamDone()
	}
	f.captured = false
	f.audio = nil
	f.video = nil
	f.streamDone = nil
	return nil
}
