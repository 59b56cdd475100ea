// Package mock provides in-memory mock implementations of [audio.Player] and
// the celebration trigger used by the detection loop, for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	trig := &mock.Trigger{}
//	engine, err := detect.New(src, rec, trig, cfg)
//	// ... run a cycle ...
//	if n := len(trig.Calls()); n != 1 { ... }
package mock

import (
	"sync"

	"github.com/faiface/beep"

	"github.com/MrWong99/goalhorn/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayErr is returned by every Play call.
	PlayErr error

	// PlayCalls records the streamers passed to each Play call.
	PlayCalls [][]beep.Streamer
}

// Play implements [audio.Player]. Records the call and returns PlayErr.
func (p *Player) Play(streamers ...beep.Streamer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, streamers)
	return p.PlayErr
}

// CallCount returns the number of Play calls.
func (p *Player) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlayCalls)
}

// ─── Trigger ──────────────────────────────────────────────────────────────────

// Trigger is a mock celebration trigger. It matches the method set of
// *audio.Trigger.
type Trigger struct {
	mu sync.Mutex

	// Err is returned by every Trigger call.
	Err error

	calls []audio.Request
}

// Trigger records req and returns Err.
func (t *Trigger) Trigger(req audio.Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, req)
	return t.Err
}

// SetErr replaces the error returned by subsequent calls.
func (t *Trigger) SetErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Err = err
}

// Calls returns a copy of the recorded requests.
func (t *Trigger) Calls() []audio.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]audio.Request, len(t.calls))
	copy(out, t.calls)
	return out
}
