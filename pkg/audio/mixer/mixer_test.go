package mixer_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/faiface/beep"

	"github.com/MrWong99/goalhorn/pkg/audio/mixer"
)

// constant returns a streamer of n samples with value v on both channels.
func constant(v float64, n int) beep.Streamer {
	return beep.Take(n, beep.StreamerFunc(func(s [][2]float64) (int, bool) {
		for i := range s {
			s[i] = [2]float64{v, v}
		}
		return len(s), true
	}))
}

// waitActive polls until m.Active() reaches want or the deadline passes.
func waitActive(t *testing.T, m *mixer.Mixer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.Active() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Active() = %d, want %d", m.Active(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPlay_ReachesDevice(t *testing.T) {
	t.Parallel()

	dev := &mixer.Memory{}
	m, err := mixer.New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if err := m.Play(constant(0.5, 100)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitActive(t, m, 1)

	out := dev.Pull(150)
	if len(out) != 150 {
		t.Fatalf("Pull returned %d samples, want 150", len(out))
	}
	for i := 0; i < 100; i++ {
		if !near(out[i][0], 0.5) || !near(out[i][1], 0.5) {
			t.Fatalf("sample %d = %v, want 0.5", i, out[i])
		}
	}
	for i := 100; i < 150; i++ {
		if out[i] != [2]float64{} {
			t.Fatalf("sample %d = %v, want silence", i, out[i])
		}
	}
	if got := m.Active(); got != 0 {
		t.Errorf("Active() after clip end = %d, want 0", got)
	}
}

func TestPlay_OverlappingClipsMix(t *testing.T) {
	t.Parallel()

	dev := &mixer.Memory{}
	m, err := mixer.New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if err := m.Play(constant(0.25, 64), constant(0.125, 64)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitActive(t, m, 2)

	out := dev.Pull(64)
	for i, s := range out {
		if !near(s[0], 0.375) {
			t.Fatalf("sample %d = %v, want 0.375", i, s)
		}
	}
}

func TestPlay_SilenceWhenIdle(t *testing.T) {
	t.Parallel()

	dev := &mixer.Memory{}
	m, err := mixer.New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	out := dev.Pull(32)
	if len(out) != 32 {
		t.Fatalf("Pull returned %d samples, want 32", len(out))
	}
	for i, s := range out {
		if s != [2]float64{} {
			t.Fatalf("sample %d = %v, want silence", i, s)
		}
	}
}

func TestPlay_BusyWhenQueueFull(t *testing.T) {
	t.Parallel()

	dev := &mixer.Memory{}
	m, err := mixer.New(dev, mixer.WithQueueCapacity(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	// Holding the device lock stalls the dispatch goroutine inside add, so
	// submissions pile up in the queue.
	dev.Lock()
	var busy bool
	for range 4 {
		if err := m.Play(constant(0.1, 10)); errors.Is(err, mixer.ErrBusy) {
			busy = true
			break
		}
	}
	dev.Unlock()

	if !busy {
		t.Error("expected ErrBusy once the queue is full")
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	dev := &mixer.Memory{}
	m, err := mixer.New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Play(constant(0.5, 1000)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitActive(t, m, 1)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !dev.Closed() {
		t.Error("device not closed")
	}
	if got := m.Active(); got != 0 {
		t.Errorf("Active() after Close = %d, want 0", got)
	}
	if err := m.Play(constant(0.5, 10)); !errors.Is(err, mixer.ErrClosed) {
		t.Errorf("Play after Close = %v, want ErrClosed", err)
	}
}

func TestNew_DeviceStartError(t *testing.T) {
	t.Parallel()

	startErr := errors.New("no sound card")
	_, err := mixer.New(&mixer.Memory{StartErr: startErr})
	if !errors.Is(err, startErr) {
		t.Errorf("New error = %v, want wrapping %v", err, startErr)
	}
}

func TestNew_NilDevice(t *testing.T) {
	t.Parallel()

	if _, err := mixer.New(nil); err == nil {
		t.Error("expected error for nil device")
	}
}

func TestPlay_NoStreamers(t *testing.T) {
	t.Parallel()

	m, err := mixer.New(&mixer.Memory{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if err := m.Play(); err != nil {
		t.Errorf("Play() = %v, want nil", err)
	}
}
