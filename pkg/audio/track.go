// Package audio holds the celebration track library and the trigger that
// plays tracks.
//
// Tracks are decoded and converted to one uniform [beep.Format] when they are
// imported, so firing a celebration does no file I/O and no decoding. The
// actual output device lives in the mixer subpackage.
package audio

import (
	"time"

	"github.com/faiface/beep"
)

// DefaultFormat is the uniform playable format every library track is
// converted to on import: 44.1 kHz stereo, 16-bit.
var DefaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// Track is a preloaded, decoded audio clip. A Track is immutable once loaded;
// each playback takes a fresh streamer from Buffer.
type Track struct {
	// ID is the stable identifier used in playlists and configuration.
	ID string

	// Name is the human-readable label shown on the control surface.
	Name string

	// Path is the source file the track was imported from.
	Path string

	// Buffer holds the decoded samples in the library format.
	Buffer *beep.Buffer
}

// Duration returns the playing time of the track.
func (t *Track) Duration() time.Duration {
	if t == nil || t.Buffer == nil {
		return 0
	}
	return t.Buffer.Format().SampleRate.D(t.Buffer.Len())
}

// TrackSpec describes a track to import into a [Library].
type TrackSpec struct {
	// ID is optional; a random UUID is assigned when empty.
	ID   string
	Name string
	Path string
}
