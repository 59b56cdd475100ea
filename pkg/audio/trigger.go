package audio

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
)

var (
	// ErrTrackNotLoaded is returned by [Trigger.Trigger] when the primary
	// track id is not in the library.
	ErrTrackNotLoaded = errors.New("audio: track not loaded")

	// ErrNoDevice is returned by [Trigger.Trigger] when no audio output is
	// available.
	ErrNoDevice = errors.New("audio: no output device")
)

// Volume bounds for [Request]. 100 is unity gain, 0 is silent.
const (
	MinVolume = 0
	MaxVolume = 100
)

// Player accepts streamers for immediate playback without blocking. It is
// implemented by *mixer.Mixer.
type Player interface {
	Play(streamers ...beep.Streamer) error
}

// Request describes one celebration.
type Request struct {
	// Primary is the id of the celebration track. Required.
	Primary string

	// Ambiance is the id of a second track played alongside. Optional.
	Ambiance string

	// PrimaryVolume and AmbianceVolume are in [MinVolume, MaxVolume].
	PrimaryVolume  int
	AmbianceVolume int
}

// Trigger fires celebrations. It does no I/O and no decoding: tracks come
// preloaded from the [Library] and playback is handed to the [Player].
// Trigger is safe for concurrent use.
type Trigger struct {
	lib    *Library
	player Player
}

// NewTrigger returns a Trigger reading from lib and playing through player.
// A nil player is allowed; every call then fails with [ErrNoDevice].
func NewTrigger(lib *Library, player Player) *Trigger {
	return &Trigger{lib: lib, player: player}
}

// Trigger starts playback of req and returns without waiting for it.
// Overlapping calls mix. A configured but missing ambiance track is logged and
// skipped; the primary still plays.
func (t *Trigger) Trigger(req Request) error {
	if t.player == nil {
		return ErrNoDevice
	}
	primary, ok := t.lib.Get(req.Primary)
	if !ok || primary.Buffer == nil {
		return fmt.Errorf("audio: trigger %q: %w", req.Primary, ErrTrackNotLoaded)
	}

	streamers := []beep.Streamer{Gain(primary.Buffer.Streamer(0, primary.Buffer.Len()), req.PrimaryVolume)}
	if req.Ambiance != "" {
		if amb, ok := t.lib.Get(req.Ambiance); ok && amb.Buffer != nil {
			streamers = append(streamers, Gain(amb.Buffer.Streamer(0, amb.Buffer.Len()), req.AmbianceVolume))
		} else {
			slog.Warn("audio: ambiance track not loaded, playing primary only", "id", req.Ambiance)
		}
	}

	if err := t.player.Play(streamers...); err != nil {
		return fmt.Errorf("audio: trigger %q: %w", req.Primary, err)
	}
	return nil
}

// Gain wraps s with a logarithmic volume control. volume is clamped to
// [MinVolume, MaxVolume]; 100 leaves the signal unchanged, 0 silences it, and
// every ~16.7 points below 100 halves the amplitude (about -6 dB).
func Gain(s beep.Streamer, volume int) beep.Streamer {
	volume = max(MinVolume, min(MaxVolume, volume))
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   float64(volume-MaxVolume) / MaxVolume * 6,
		Silent:   volume == MinVolume,
	}
}
