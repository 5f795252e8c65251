package peer

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// TrackKind distinguishes the two media kinds a stream can carry.
type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// Track is one local capture track. Enabled mirrors the browser model:
// a disabled track stays attached to the connection and keeps its sender,
// it just transmits silence/black. Muting never renegotiates.
type Track interface {
	Kind() TrackKind
	SetEnabled(enabled bool)
	Enabled() bool
	Local() webrtc.TrackLocal
	Stop()
	// OnEnded fires when the capture source ends on its own, e.g. the user
	// stops a screen share from the OS picker.
	OnEnded(fn func())
}

// Stream is a set of capture tracks from one source.
type Stream interface {
	Tracks() []Track
}

// MediaSource acquires capture streams. UserMedia always returns both an
// audio and a video track regardless of which the call wants enabled:
// acquiring up front means toggles are instant and never renegotiate.
type MediaSource interface {
	UserMedia(ctx context.Context) (Stream, error)
	DisplayMedia(ctx context.Context) (Stream, error)
}

// RemoteTrack is one inbound track surfaced to the application.
type RemoteTrack struct {
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}

// trackOfKind returns the stream's track of the given kind, nil if absent.
func trackOfKind(s Stream, kind TrackKind) Track {
	if s == nil {
		return nil
	}
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}
