// Package mixer implements the playback worker: a single goroutine that owns
// a [beep.Mixer] feeding the output device and accepts clips from any
// goroutine without blocking the caller.
//
// Submission goes through a bounded channel. When the channel is full,
// [Mixer.Play] fails fast with [ErrBusy] instead of waiting, so a detection
// cycle never stalls on audio. Clips added to the mixer play concurrently;
// overlapping celebrations are summed, not queued.
package mixer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
)

const (
	// DefaultQueueCapacity is the number of pending submissions the worker
	// buffers before [Mixer.Play] reports [ErrBusy].
	DefaultQueueCapacity = 16
)

var (
	// ErrBusy is returned by [Mixer.Play] when the submission queue is full.
	ErrBusy = errors.New("mixer: submission queue full")

	// ErrClosed is returned by [Mixer.Play] after [Mixer.Close].
	ErrClosed = errors.New("mixer: closed")
)

// Device is an audio output that continuously pulls samples from a streamer.
//
// Lock and Unlock guard the streamer against concurrent modification while
// the device is pulling from it. The default implementation is [Speaker];
// tests use [Memory].
type Device interface {
	// Start begins pulling from s. It is called exactly once.
	Start(s beep.Streamer) error
	Lock()
	Unlock()
	Close() error
}

// Option configures a [Mixer] during construction.
type Option func(*Mixer)

// WithQueueCapacity sets the submission queue capacity. Values below 1 are
// ignored.
func WithQueueCapacity(n int) Option {
	return func(m *Mixer) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// Mixer is the playback worker. All exported methods are safe for concurrent
// use.
type Mixer struct {
	dev      Device
	mix      *beep.Mixer // guarded by dev.Lock
	capacity int

	submit chan []beep.Streamer
	done   chan struct{} // closed by Close to stop the dispatch goroutine
	exited chan struct{} // closed when the dispatch goroutine returns

	active atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New starts dev pulling from a fresh mixer and launches the dispatch
// goroutine. Call [Mixer.Close] to stop the goroutine and close dev.
func New(dev Device, opts ...Option) (*Mixer, error) {
	if dev == nil {
		return nil, errors.New("mixer: device must not be nil")
	}
	m := &Mixer{
		dev:      dev,
		mix:      &beep.Mixer{},
		capacity: DefaultQueueCapacity,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	m.submit = make(chan []beep.Streamer, m.capacity)

	// beep.Mixer streams silence while empty, so the device can pull from it
	// for the whole lifetime of the worker.
	if err := dev.Start(m.mix); err != nil {
		return nil, fmt.Errorf("mixer: start device: %w", err)
	}
	go m.dispatch()
	return m, nil
}

// Play submits streamers for immediate, concurrent playback. It never blocks:
// it returns [ErrBusy] when the queue is full and [ErrClosed] after Close.
func (m *Mixer) Play(streamers ...beep.Streamer) error {
	if len(streamers) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	select {
	case m.submit <- streamers:
		return nil
	default:
		return ErrBusy
	}
}

// Active returns the number of clips currently being mixed.
func (m *Mixer) Active() int {
	return int(m.active.Load())
}

// Close stops the dispatch goroutine, drops pending and playing clips, and
// closes the device. Close is idempotent; subsequent calls return nil.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.done)
	<-m.exited

	m.dev.Lock()
	m.mix.Clear()
	m.dev.Unlock()
	m.active.Store(0)

	if err := m.dev.Close(); err != nil {
		return fmt.Errorf("mixer: close device: %w", err)
	}
	return nil
}

// dispatch moves submitted clips into the mixer until Close is called.
func (m *Mixer) dispatch() {
	defer close(m.exited)
	for {
		select {
		case <-m.done:
			return
		case batch := <-m.submit:
			m.add(batch)
		}
	}
}

func (m *Mixer) add(batch []beep.Streamer) {
	wrapped := make([]beep.Streamer, 0, len(batch))
	for _, s := range batch {
		if s == nil {
			continue
		}
		// The callback runs on the device goroutine once s is exhausted.
		wrapped = append(wrapped, beep.Seq(s, beep.Callback(func() {
			m.active.Add(-1)
		})))
	}
	if len(wrapped) == 0 {
		return
	}
	m.dev.Lock()
	m.mix.Add(wrapped...)
	m.active.Add(int64(len(wrapped)))
	m.dev.Unlock()
}
