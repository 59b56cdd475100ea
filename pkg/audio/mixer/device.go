package mixer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// ErrNoDevice is returned by [Speaker.Start] when the system audio output
// cannot be opened.
var ErrNoDevice = errors.New("mixer: no audio output device")

// Compile-time interface assertions.
var (
	_ Device = (*Speaker)(nil)
	_ Device = (*Memory)(nil)
)

// DefaultSpeakerBuffer is the output buffer length used by [Speaker]. Shorter
// buffers lower trigger-to-sound latency at the cost of underrun risk.
const DefaultSpeakerBuffer = 30 * time.Millisecond

// Speaker is a [Device] backed by the process-wide beep speaker. Only one
// Speaker may be started per process.
type Speaker struct {
	rate   beep.SampleRate
	buffer time.Duration
}

// NewSpeaker returns a Speaker for the given sample rate. A non-positive
// buffer selects [DefaultSpeakerBuffer].
func NewSpeaker(rate beep.SampleRate, buffer time.Duration) *Speaker {
	if buffer <= 0 {
		buffer = DefaultSpeakerBuffer
	}
	return &Speaker{rate: rate, buffer: buffer}
}

// Start initialises the speaker and starts playing s.
func (s *Speaker) Start(st beep.Streamer) error {
	if err := speaker.Init(s.rate, s.rate.N(s.buffer)); err != nil {
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	speaker.Play(st)
	return nil
}

// Lock implements [Device].
func (s *Speaker) Lock() { speaker.Lock() }

// Unlock implements [Device].
func (s *Speaker) Unlock() { speaker.Unlock() }

// Close implements [Device].
func (s *Speaker) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// Memory is an in-process [Device] that produces samples only when [Memory.Pull]
// is called. It lets tests drive the output clock deterministically.
type Memory struct {
	mu       sync.Mutex
	streamer beep.Streamer
	closed   bool

	// StartErr, when set, is returned by Start.
	StartErr error
}

// Start implements [Device].
func (d *Memory) Start(s beep.Streamer) error {
	if d.StartErr != nil {
		return d.StartErr
	}
	d.mu.Lock()
	d.streamer = s
	d.mu.Unlock()
	return nil
}

// Lock implements [Device].
func (d *Memory) Lock() { d.mu.Lock() }

// Unlock implements [Device].
func (d *Memory) Unlock() { d.mu.Unlock() }

// Close implements [Device].
func (d *Memory) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *Memory) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Pull streams n samples from the started streamer and returns them. It
// returns nil before Start or after Close.
func (d *Memory) Pull(n int) [][2]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil || d.closed || n <= 0 {
		return nil
	}
	buf := make([][2]float64, n)
	got, _ := d.streamer.Stream(buf)
	return buf[:got]
}
