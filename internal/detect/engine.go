// Package detect runs the detection loop: capture a screen region, recognize
// its text, look for the trigger phrase and target identifier, and play a
// celebration.
//
// The loop is a state machine with three states ([Stopped], [Running],
// [Paused]) driven from the control surface through [Engine.Start],
// [Engine.Pause], [Engine.Resume] and [Engine.Stop]. A single background
// goroutine performs the cycles while the engine is not stopped. The only
// data it shares with the control surface is the [State], guarded by one
// mutex; debounce and playlist history are owned by the goroutine and reset
// on every Start.
package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/goalhorn/internal/debounce"
	"github.com/MrWong99/goalhorn/internal/observe"
	"github.com/MrWong99/goalhorn/internal/playlist"
	"github.com/MrWong99/goalhorn/internal/resilience"
	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/audio"
	"github.com/MrWong99/goalhorn/pkg/capture"
	"github.com/MrWong99/goalhorn/pkg/recognize"
	"github.com/MrWong99/goalhorn/pkg/vision"
)

// ErrNothingToPlay is recorded as the last error when a trigger is accepted
// but the playlist is empty.
var ErrNothingToPlay = errors.New("detect: nothing to play")

// ErrNoText is recorded as the last error when the recognizer returns no
// text for a frame.
var ErrNoText = errors.New("detect: recognizer returned no text")

// Player fires celebrations without blocking. It is implemented by
// *audio.Trigger.
type Player interface {
	Trigger(req audio.Request) error
}

// Compile-time interface assertion.
var _ Player = (*audio.Trigger)(nil)

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithClock overrides the clock used for debounce timestamps and latency
// measurements.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBreaker sets the circuit breaker that guards the frame source.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Engine) {
		e.breaker = cb
	}
}

// WithRand sets the random source used for playlist selection.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithStageTimeout bounds each capture and recognition call. By default no
// deadline is imposed; the collaborators own that policy.
func WithStageTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stageTimeout = d
	}
}

// WithStatsWindow sets how many latency samples [Status] summarises.
func WithStatsWindow(n int) Option {
	return func(e *Engine) {
		e.statsWindow = n
	}
}

// Engine owns the detection goroutine. All exported methods are safe for
// concurrent use.
type Engine struct {
	src    capture.Source
	rec    recognize.Recognizer
	player Player

	breaker      *resilience.CircuitBreaker
	metrics      *observe.Metrics
	now          func() time.Time
	rng          *rand.Rand
	stageTimeout time.Duration
	statsWindow  int

	state *State

	// wake interrupts pacing sleeps after Resume and ReplaceConfig.
	wake chan struct{}

	// lifeMu serializes Start and Stop. The detection goroutine never takes
	// it.
	lifeMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// New creates a stopped Engine. cfg is validated and compiled immediately.
func New(src capture.Source, rec recognize.Recognizer, player Player, cfg Config, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New("detect: frame source is required")
	}
	if rec == nil {
		return nil, errors.New("detect: recognizer is required")
	}
	if player == nil {
		return nil, errors.New("detect: player is required")
	}

	e := &Engine{
		src:          src,
		rec:          rec,
		player:       player,
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	if e.breaker == nil {
		e.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "capture", Now: e.now})
	}

	snap, err := compile(cfg)
	if err != nil {
		return nil, fmt.Errorf("detect: new: %w", err)
	}
	e.state = newState(snap, e.statsWindow)
	return e, nil
}

// Start moves Stopped to Running: it resets the session counters, debounce
// and playlist history and launches the detection goroutine. It returns false
// when the engine is not stopped.
func (e *Engine) Start() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.state.runState() != Stopped {
		return false
	}

	sess := e.newSession()
	e.state.begin()
	e.breaker.Reset()
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	e.metrics.ActiveDetectors.Add(context.Background(), 1)
	go e.run(e.stop, e.done, sess)

	slog.Info("detect: started")
	return true
}

// Pause moves Running to Paused. The goroutine keeps polling at the pause
// interval but does no capture work. It returns false in any other state.
func (e *Engine) Pause() bool {
	if !e.state.transition(Running, Paused) {
		return false
	}
	slog.Info("detect: paused")
	return true
}

// Resume moves Paused to Running without resetting debounce or playlist
// history. It returns false in any other state.
func (e *Engine) Resume() bool {
	if !e.state.transition(Paused, Running) {
		return false
	}
	e.nudge()
	slog.Info("detect: resumed")
	return true
}

// Stop moves Running or Paused to Stopped and waits for the detection
// goroutine to exit. A capture or recognition call in flight is allowed to
// finish. It returns false when the engine is already stopped.
func (e *Engine) Stop() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.state.end() {
		return false
	}
	close(e.stop)
	<-e.done

	e.metrics.ActiveDetectors.Add(context.Background(), -1)
	slog.Info("detect: stopped")
	return true
}

// Status returns a copy of the shared state.
func (e *Engine) Status() Status {
	return e.state.status()
}

// Config returns the active configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.state.snapshot().cfg
}

// ReplaceConfig validates and compiles cfg and swaps it in for the next
// cycle. On error the previous configuration stays active. Debounce history
// survives; playlist history is reset when the playlist changes.
func (e *Engine) ReplaceConfig(cfg Config) error {
	snap, err := compile(cfg)
	if err != nil {
		return fmt.Errorf("detect: replace config: %w", err)
	}
	e.state.setSnapshot(snap)
	e.nudge()
	slog.Info("detect: configuration replaced",
		"region", snap.cfg.Region.String(),
		"playlist", len(snap.playlist.Tracks))
	return nil
}

func (e *Engine) nudge() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// session holds the state owned by the detection goroutine for one
// Start/Stop period.
type session struct {
	debounce debounce.Debouncer
	selector *playlist.Selector
	playlist playlist.Playlist

	// lastWarn is the text of the last logged error; repeats are not logged.
	lastWarn string
}

func (e *Engine) newSession() *session {
	var opts []playlist.Option
	if e.rng != nil {
		opts = append(opts, playlist.WithRand(e.rng))
	}
	return &session{selector: playlist.NewSelector(opts...)}
}

// syncPlaylist resets the selection history when the active playlist
// changed.
func (s *session) syncPlaylist(p playlist.Playlist) {
	if s.playlist.Equal(p) {
		return
	}
	s.playlist = p
	s.selector.Reset()
}

func (e *Engine) run(stop <-chan struct{}, done chan<- struct{}, sess *session) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		wait, ok := e.iterate(sess)
		if !ok {
			return
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-e.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// iterate performs one loop iteration and returns how long to wait before
// the next. ok is false once the engine is stopped.
func (e *Engine) iterate(sess *session) (wait time.Duration, ok bool) {
	run, snap := e.state.load()
	switch run {
	case Stopped:
		return 0, false
	case Paused:
		return snap.cfg.PauseInterval, true
	}

	start := e.now()
	e.cycle(context.Background(), sess, snap, start)
	elapsed := e.now().Sub(start)

	e.state.recordCycle(elapsed)
	e.metrics.Cycles.Add(context.Background(), 1)
	e.metrics.CycleDuration.Record(context.Background(), elapsed.Seconds())

	// An overrunning cycle starts the next one immediately.
	return snap.cfg.Interval - elapsed, true
}

// cycle runs capture, recognition and the decision chain once. Panics in
// collaborators are recorded as errors.
func (e *Engine) cycle(ctx context.Context, sess *session, snap *snapshot, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, sess, observe.StagePanic, fmt.Errorf("detect: cycle panic: %v", r))
		}
	}()

	sess.syncPlaylist(snap.playlist)

	img, err := e.capture(ctx, snap.cfg.Region)
	if err != nil {
		e.fail(ctx, sess, observe.StageCapture, err)
		return
	}

	raw, err := e.recognize(ctx, img, snap.cfg.Recognition)
	if err != nil {
		e.fail(ctx, sess, observe.StageRecognize, err)
		return
	}
	if strings.TrimSpace(raw) == "" {
		e.fail(ctx, sess, observe.StageRecognize, ErrNoText)
		return
	}
	e.recovered(sess)

	ev, found := snap.detector.Detect(raw)
	if !found {
		return
	}
	if !snap.matcher.Match(ev.Identifier) {
		slog.Debug("detect: identifier does not match target",
			"identifier", ev.Identifier,
			"target", snap.matcher.Target().Key)
		return
	}
	if !sess.debounce.Allow(start, snap.cfg.Debounce) {
		slog.Debug("detect: trigger debounced", "identifier", ev.Identifier)
		return
	}

	e.fire(ctx, sess, snap, ev, start)
}

// stageContext applies the optional per-stage deadline.
func (e *Engine) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.stageTimeout)
}

func (e *Engine) capture(ctx context.Context, region capture.Region) (image.Image, error) {
	ctx, cancel := e.stageContext(ctx)
	defer cancel()

	t0 := e.now()
	var img image.Image
	err := e.breaker.Execute(func() error {
		var err error
		img, err = e.src.Capture(ctx, region)
		return err
	})
	e.metrics.CaptureDuration.Record(ctx, e.now().Sub(t0).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect: capture: %w", err)
	}
	return img, nil
}

func (e *Engine) recognize(ctx context.Context, img image.Image, settings vision.Settings) (string, error) {
	ctx, cancel := e.stageContext(ctx)
	defer cancel()

	t0 := e.now()
	text, err := e.rec.Recognize(ctx, vision.Preprocess(img, settings))
	e.metrics.RecognizeDuration.Record(ctx, e.now().Sub(t0).Seconds())
	if err != nil {
		return "", fmt.Errorf("detect: recognize: %w", err)
	}
	return text, nil
}

// fire selects a track and hands it to the player.
func (e *Engine) fire(ctx context.Context, sess *session, snap *snapshot, ev trigger.Event, start time.Time) {
	ctx, span := observe.StartSpan(ctx, "detect.trigger")
	defer span.End()
	span.SetAttributes(attribute.String("identifier", ev.Identifier))

	id, err := sess.selector.Select(snap.playlist)
	if err != nil {
		e.unplayed(ctx, "empty_playlist", ErrNothingToPlay)
		span.SetStatus(codes.Error, ErrNothingToPlay.Error())
		return
	}
	span.SetAttributes(attribute.String("track", id))

	err = e.player.Trigger(audio.Request{
		Primary:        id,
		Ambiance:       snap.cfg.Ambiance,
		PrimaryVolume:  snap.cfg.PrimaryVolume,
		AmbianceVolume: snap.cfg.AmbianceVolume,
	})
	if err != nil {
		err = fmt.Errorf("detect: play %q: %w", id, err)
		e.metrics.RecordCycleError(ctx, observe.StagePlayback)
		e.unplayed(ctx, "playback", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	latency := e.now().Sub(start)
	e.state.recordTrigger(latency)
	e.metrics.RecordTrigger(ctx, id)
	e.metrics.TriggerLatency.Record(ctx, latency.Seconds())

	observe.Logger(ctx).Info("detect: trigger",
		"identifier", ev.Identifier,
		"track", id,
		"latency", latency)
}

func (e *Engine) unplayed(ctx context.Context, reason string, err error) {
	e.state.recordUnplayed(err, e.now())
	e.metrics.RecordUnplayed(ctx, reason)
	observe.Logger(ctx).Warn("detect: trigger accepted but not played", "reason", reason, "err", err)
}

// fail records a failed stage. Consecutive identical errors are logged once.
func (e *Engine) fail(ctx context.Context, sess *session, stage string, err error) {
	e.state.recordError(err, e.now())
	e.metrics.RecordCycleError(ctx, stage)

	if msg := err.Error(); msg != sess.lastWarn {
		sess.lastWarn = msg
		level := slog.LevelWarn
		if errors.Is(err, ErrNoText) {
			// Blank frames are the normal case between goals.
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "detect: cycle failed", "stage", stage, "err", err)
	}
}

// recovered logs once when sensing works again after a failure.
func (e *Engine) recovered(sess *session) {
	last := sess.lastWarn
	if last == "" {
		return
	}
	sess.lastWarn = ""
	if last != ErrNoText.Error() {
		slog.Info("detect: sensing recovered")
	}
}
