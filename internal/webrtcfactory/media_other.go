//go:build !linux

package webrtcfactory

import (
	"log"

	"github.com/petervdpas/callcore/internal/callcore"
)

// MediaFactory is the non-Linux stand-in: camera/mic capture via
// pion/mediadevices requires platform-specific drivers (V4L2/malgo on
// Linux); on other platforms calls proceed receive-only. Grounded in
// call.initMediaPC's !linux build (media_other.go).
type MediaFactory struct{}

func (f *MediaFactory) CreateAudioTrack() (callcore.AudioTrack, error) {
	log.Printf("webrtcfactory: no local audio capture on this platform, proceeding receive-only")
	return nil, nil
}

func (f *MediaFactory) CreateVideoTrack() (callcore.VideoTrack, error) {
	log.Printf("webrtcfactory: no local video capture on this platform, proceeding receive-only")
	return nil, nil
}

// CreateCapturer returns (nil, nil): no capturer, not a failure — the
// call still proceeds receive-only.
func (f *MediaFactory) CreateCapturer() (callcore.Capturer, error) {
	return nil, nil
}
