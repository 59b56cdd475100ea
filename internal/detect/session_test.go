package detect

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/goalhorn/internal/observe"
	audiomock "github.com/MrWong99/goalhorn/pkg/audio/mock"
	"github.com/MrWong99/goalhorn/pkg/capture"
	capturemock "github.com/MrWong99/goalhorn/pkg/capture/mock"
	recognizemock "github.com/MrWong99/goalhorn/pkg/recognize/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// newSteppedEngine returns an engine in the Running state whose cycles are
// driven by the test through iterate. No goroutine is started.
func newSteppedEngine(t *testing.T, text string) (*Engine, *session, *fakeClock, *capturemock.Source, *audiomock.Trigger) {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	clk := &fakeClock{}
	src := &capturemock.Source{Image: image.NewGray(image.Rect(0, 0, 4, 4))}
	trig := &audiomock.Trigger{}
	cfg := Config{
		Region:   capture.Region{Width: 4, Height: 4},
		Debounce: 8 * time.Second,
		Playlist: []string{"horn"},
	}
	e, err := New(src, &recognizemock.Recognizer{Text: text}, trig, cfg,
		WithClock(clk.Now), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess := e.newSession()
	e.state.begin()
	return e, sess, clk, src, trig
}

func TestPauseResumeKeepsDebounce(t *testing.T) {
	t.Parallel()

	e, sess, clk, src, trig := newSteppedEngine(t, "GOAL FOR Arsenal")
	base := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	at := func(ms int64) { clk.Set(base.Add(time.Duration(ms) * time.Millisecond)) }

	at(0)
	if _, ok := e.iterate(sess); !ok {
		t.Fatal("iterate reported stopped")
	}
	if n := len(trig.Calls()); n != 1 {
		t.Fatalf("t=0: playback calls = %d, want 1", n)
	}

	at(1000)
	if !e.Pause() {
		t.Fatal("Pause returned false")
	}

	at(5000)
	captures := src.CallCount()
	wait, _ := e.iterate(sess)
	if wait != DefaultPauseInterval {
		t.Errorf("paused wait = %s, want %s", wait, DefaultPauseInterval)
	}
	if src.CallCount() != captures {
		t.Error("paused iteration captured a frame")
	}

	at(9500)
	if !e.Resume() {
		t.Fatal("Resume returned false")
	}

	at(9600)
	e.iterate(sess)
	if n := len(trig.Calls()); n != 2 {
		t.Fatalf("t=9600: playback calls = %d, want 2", n)
	}
	if got := e.Status().Triggers; got != 2 {
		t.Errorf("Triggers = %d, want 2", got)
	}
}

func TestDebounceWithinSession(t *testing.T) {
	t.Parallel()

	e, sess, clk, _, trig := newSteppedEngine(t, "GOAL FOR Arsenal")
	base := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

	for _, ms := range []int64{0, 3000, 7999, 8000, 8001} {
		clk.Set(base.Add(time.Duration(ms) * time.Millisecond))
		e.iterate(sess)
	}
	if n := len(trig.Calls()); n != 2 {
		t.Errorf("playback calls = %d, want 2 (t=0 and t=8000)", n)
	}
}

func TestIterateStopped(t *testing.T) {
	t.Parallel()

	e, sess, _, src, _ := newSteppedEngine(t, "")
	e.state.end()
	if _, ok := e.iterate(sess); ok {
		t.Error("iterate should report stopped")
	}
	if src.CallCount() != 0 {
		t.Error("stopped iteration captured a frame")
	}
}

func TestIterateOverrunStartsImmediately(t *testing.T) {
	t.Parallel()

	e, sess, clk, src, _ := newSteppedEngine(t, "")
	start := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	clk.Set(start)
	src.CaptureFunc = func(_ context.Context, _ capture.Region) (image.Image, error) {
		clk.Set(start.Add(time.Second))
		return image.NewGray(image.Rect(0, 0, 4, 4)), nil
	}

	wait, ok := e.iterate(sess)
	if !ok {
		t.Fatal("iterate reported stopped")
	}
	if wait > 0 {
		t.Errorf("wait after overrun = %s, want <= 0", wait)
	}
}

func TestPlaylistChangeResetsHistory(t *testing.T) {
	t.Parallel()

	e, sess, _, _, _ := newSteppedEngine(t, "")
	snap := e.state.snapshot()
	sess.syncPlaylist(snap.playlist)
	if _, err := sess.selector.Select(snap.playlist); err != nil {
		t.Fatalf("Select: %v", err)
	}

	cfg := snap.cfg
	cfg.Playlist = []string{"a", "b"}
	if err := e.ReplaceConfig(cfg); err != nil {
		t.Fatalf("ReplaceConfig: %v", err)
	}
	sess.syncPlaylist(e.state.snapshot().playlist)
	if _, ok := sess.selector.Last(); ok {
		t.Error("selection history should reset when the playlist changes")
	}
}

func TestPercentiles(t *testing.T) {
	t.Parallel()

	lb := newLatencyBuffer(4)
	if got := lb.percentiles(); got != (Percentiles{}) {
		t.Errorf("empty percentiles = %+v, want zero", got)
	}
	for _, ms := range []int{10, 20, 30, 40, 50, 60} {
		lb.add(time.Duration(ms) * time.Millisecond)
	}
	// Window holds 30, 40, 50, 60.
	got := lb.percentiles()
	if got.P50 != 40*time.Millisecond {
		t.Errorf("P50 = %s, want 40ms", got.P50)
	}
	if got.P95 != 60*time.Millisecond {
		t.Errorf("P95 = %s, want 60ms", got.P95)
	}
}

func TestStatusLeavesSamplesUntouched(t *testing.T) {
	t.Parallel()

	snap, err := compile(Config{Region: capture.Region{Width: 1, Height: 1}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := newState(snap, 4)
	for _, ms := range []int{40, 10, 30, 20} {
		s.recordCycle(time.Duration(ms) * time.Millisecond)
	}

	st := s.status()
	if st.CycleLatency.P50 != 20*time.Millisecond || st.CycleLatency.P95 != 40*time.Millisecond {
		t.Errorf("CycleLatency = %+v, want p50 20ms, p95 40ms", st.CycleLatency)
	}
	if st.Cycles != 4 {
		t.Errorf("Cycles = %d, want 4", st.Cycles)
	}

	// Summaries are computed on a copy; the ring keeps insertion order.
	want := []time.Duration{40 * time.Millisecond, 10 * time.Millisecond, 30 * time.Millisecond, 20 * time.Millisecond}
	s.mu.Lock()
	got := s.stats.cycle.samples()
	s.mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ring after status = %v, want %v", got, want)
		}
	}
}
