// Package app wires all goalhorn subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run starts the control surface and background services, and
// Shutdown tears everything down in order. Apply handles configuration
// reloads from the file watcher.
//
// For testing, inject test doubles via functional options (WithDevice,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"

	"github.com/MrWong99/goalhorn/internal/config"
	"github.com/MrWong99/goalhorn/internal/console"
	"github.com/MrWong99/goalhorn/internal/detect"
	"github.com/MrWong99/goalhorn/internal/health"
	"github.com/MrWong99/goalhorn/internal/match"
	"github.com/MrWong99/goalhorn/internal/observe"
	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/audio"
	"github.com/MrWong99/goalhorn/pkg/audio/cache"
	"github.com/MrWong99/goalhorn/pkg/audio/mixer"
	"github.com/MrWong99/goalhorn/pkg/capture"
	"github.com/MrWong99/goalhorn/pkg/recognize"
	"github.com/MrWong99/goalhorn/pkg/vision"
)

// Backends holds the sensing collaborators. Populated by main.go via the
// config registry.
type Backends struct {
	Capture    capture.Source
	Recognizer recognize.Recognizer
}

// App owns all subsystem lifetimes.
type App struct {
	cfgMu sync.Mutex
	cfg   *config.Config

	backends *Backends

	// Injected or defaulted via options.
	device      mixer.Device
	metrics     *observe.Metrics
	level       *slog.LevelVar
	configPath  string
	in          io.Reader
	out         io.Writer
	autostart   bool
	engineOpts  []detect.Option
	watchPeriod time.Duration

	// Subsystems, initialised in New and torn down in Shutdown.
	cache   *cache.Cache
	library *audio.Library
	mixer   *mixer.Mixer
	trigger *audio.Trigger
	engine  *detect.Engine
	watcher *config.Watcher
	server  *http.Server

	// diagAddr is the bound diagnostics address, guarded by cfgMu.
	diagAddr string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDevice injects the audio output device instead of opening the
// speaker.
func WithDevice(d mixer.Device) Option {
	return func(a *App) { a.device = d }
}

// WithMetrics injects the metrics sink instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets configuration reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigPath enables hot reload of the configuration file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithWatchInterval overrides the configuration polling period.
func WithWatchInterval(d time.Duration) Option {
	return func(a *App) { a.watchPeriod = d }
}

// WithConsole attaches the interactive control surface to in and out.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithAutostart starts detection as soon as Run is called.
func WithAutostart(on bool) Option {
	return func(a *App) { a.autostart = on }
}

// WithEngineOptions passes extra options to the detection engine.
func WithEngineOptions(opts ...detect.Option) Option {
	return func(a *App) { a.engineOpts = append(a.engineOpts, opts...) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The backends struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: cache, track import, audio
// output, trigger and detection engine. A missing audio device is not fatal;
// triggers then fail with [audio.ErrNoDevice] and are counted as unplayed.
func New(ctx context.Context, cfg *config.Config, backends *Backends, opts ...Option) (*App, error) {
	if backends == nil || backends.Capture == nil || backends.Recognizer == nil {
		return nil, errors.New("app: capture and recognition backends are required")
	}
	a := &App{
		cfg:      cfg,
		backends: backends,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Decoded-buffer cache ──────────────────────────────────────────
	a.initCache()

	// ── 2. Track library ─────────────────────────────────────────────────
	a.initLibrary(ctx)

	// ── 3. Audio output ──────────────────────────────────────────────────
	a.initMixer()

	// ── 4. Trigger ───────────────────────────────────────────────────────
	var player audio.Player
	if a.mixer != nil {
		player = a.mixer
	}
	a.trigger = audio.NewTrigger(a.library, player)

	// ── 5. Detection engine ──────────────────────────────────────────────
	engineOpts := append([]detect.Option{detect.WithMetrics(a.metrics)}, a.engineOpts...)
	if cfg.Recognition.Timeout > 0 {
		engineOpts = append(engineOpts, detect.WithStageTimeout(cfg.Recognition.Timeout))
	}
	eng, err := detect.New(backends.Capture, backends.Recognizer, a.trigger, DetectConfig(cfg), engineOpts...)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.engine = eng

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCache opens the decoded-buffer cache. Failure only costs decode time,
// so it is logged and ignored.
func (a *App) initCache() {
	dir := a.cfg.Audio.CacheDir
	if dir == "" {
		return
	}
	c, err := cache.Open(cache.Options{Dir: dir})
	if err != nil {
		slog.Warn("app: track cache unavailable, decoding every start", "dir", dir, "err", err)
		return
	}
	a.cache = c
	a.closers = append(a.closers, c.Close)
}

// initLibrary imports the configured tracks. Tracks that fail to import are
// logged; the playlist can still use the others.
func (a *App) initLibrary(ctx context.Context) {
	format := audio.DefaultFormat
	format.SampleRate = beep.SampleRate(a.cfg.Audio.SampleRate)

	var opts []audio.LibraryOption
	if a.cache != nil {
		opts = append(opts, audio.WithCache(a.cache))
	}
	a.library = audio.NewLibrary(format, opts...)

	added, err := a.library.Load(ctx, trackSpecs(a.cfg.Audio.Library)...)
	if err != nil {
		slog.Warn("app: some tracks failed to load", "err", err)
	}
	slog.Info("app: library loaded", "tracks", len(added), "configured", len(a.cfg.Audio.Library))
}

// initMixer opens the audio device and starts the playback worker.
func (a *App) initMixer() {
	dev := a.device
	if dev == nil {
		dev = mixer.NewSpeaker(a.library.Format().SampleRate, mixer.DefaultSpeakerBuffer)
	}
	m, err := mixer.New(dev)
	if err != nil {
		slog.Warn("app: no audio output, celebrations will not play", "err", err)
		return
	}
	a.mixer = m
	a.closers = append(a.closers, m.Close)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the config watcher, the diagnostics server and the console, and
// blocks until ctx is cancelled or the console quit command is read. It
// returns nil after quit and ctx.Err() after cancellation.
func (a *App) Run(ctx context.Context) error {
	// ── Config hot reload ────────────────────────────────────────────────
	if a.configPath != "" {
		var wopts []config.WatcherOption
		if a.watchPeriod > 0 {
			wopts = append(wopts, config.WithInterval(a.watchPeriod))
		}
		w, err := config.NewWatcher(a.configPath, func(old, new *config.Config) {
			if err := a.Apply(ctx, old, new); err != nil {
				slog.Warn("app: configuration reload rejected", "err", err)
			}
		}, wopts...)
		if err != nil {
			return fmt.Errorf("app: start config watcher: %w", err)
		}
		a.watcher = w
	}

	// ── Diagnostics endpoint ─────────────────────────────────────────────
	if addr := a.config().Diagnostics.ListenAddr; addr != "" {
		if err := a.startDiagnostics(addr); err != nil {
			return err
		}
	}

	if a.autostart {
		a.engine.Start()
	}

	// ── Control surface ──────────────────────────────────────────────────
	if a.in != nil {
		err := console.New(a.engine, a.library, a.in, a.out).Run(ctx)
		switch {
		case errors.Is(err, console.ErrQuit):
			return nil
		case err != nil && ctx.Err() == nil:
			slog.Warn("app: console stopped", "err", err)
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

// startDiagnostics serves /healthz, /readyz and /metrics on addr.
func (a *App) startDiagnostics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: diagnostics listen: %w", err)
	}

	hh := health.New(
		func() string { return a.engine.Status().State.String() },
		health.Detector(a.engine.Status, health.DefaultErrorWindow),
		health.Audio(func() bool { return a.mixer != nil }),
	)
	mux := http.NewServeMux()
	hh.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("app: diagnostics server failed", "err", err)
		}
	}()
	a.cfgMu.Lock()
	a.diagAddr = ln.Addr().String()
	a.cfgMu.Unlock()
	slog.Info("app: diagnostics listening", "addr", ln.Addr().String())
	return nil
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Apply moves the running application from old to new. New tracks are
// imported before the detection snapshot is swapped, so a playlist never
// references a track that is still decoding. If the new detection settings
// are rejected, the imported tracks are rolled back and the library matches
// old again. Settings that need a restart are logged and otherwise ignored.
func (a *App) Apply(ctx context.Context, old, new *config.Config) error {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}

	var (
		added    []*audio.Track
		replaced = make(map[string]*audio.Track)
	)
	if len(d.AddedTracks) > 0 {
		for _, t := range d.AddedTracks {
			if prev, ok := a.library.Get(t.ID); ok {
				replaced[t.ID] = prev
			}
		}
		var err error
		added, err = a.library.Load(ctx, trackSpecs(d.AddedTracks)...)
		if err != nil {
			slog.Warn("app: some new tracks failed to load", "err", err)
		}
		slog.Info("app: tracks imported", "count", len(added))
	}

	if d.DetectionChanged {
		if err := a.engine.ReplaceConfig(DetectConfig(new)); err != nil {
			a.rollbackTracks(added, replaced)
			return fmt.Errorf("app: apply: %w", err)
		}
	}

	// Removed tracks go last so the old playlist stays playable until the
	// new snapshot is active.
	for _, id := range d.RemovedTracks {
		a.library.Remove(id)
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("app: some changes take effect after restart", "settings", d.RestartRequired)
	}

	a.cfgMu.Lock()
	a.cfg = new
	a.cfgMu.Unlock()
	return nil
}

// rollbackTracks undoes a library import: replaced tracks are restored and
// new ones removed.
func (a *App) rollbackTracks(added []*audio.Track, replaced map[string]*audio.Track) {
	for _, t := range added {
		if prev, ok := replaced[t.ID]; ok {
			a.library.Put(prev)
			continue
		}
		a.library.Remove(t.ID)
	}
	if len(added) > 0 {
		slog.Info("app: tracks rolled back", "count", len(added))
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Engine returns the detection engine.
func (a *App) Engine() *detect.Engine { return a.engine }

// Library returns the track library.
func (a *App) Library() *audio.Library { return a.library }

// DiagnosticsAddr returns the address the diagnostics endpoint is bound to,
// or "" when it is not running.
func (a *App) DiagnosticsAddr() string {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.diagAddr
}

// AudioAvailable reports whether an output device is open.
func (a *App) AudioAvailable() bool { return a.mixer != nil }

func (a *App) config() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order: watcher, detection, the
// diagnostics server, then the closers. It respects the context deadline:
// if ctx expires before all closers finish, remaining closers are skipped
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		if a.watcher != nil {
			a.watcher.Stop()
		}
		a.engine.Stop()

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("app: diagnostics shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("app: closer error", "err", err)
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// DetectConfig converts the file configuration into the detection engine's
// configuration.
func DetectConfig(cfg *config.Config) detect.Config {
	kind, _ := trigger.ParseKind(cfg.Trigger.Kind)

	dc := detect.Config{
		Region:  cfg.Capture.Region,
		Display: cfg.DisplayPoint(),
		Recognition: vision.Settings{
			Threshold: uint8(min(max(cfg.Recognition.Threshold, 0), 255)),
			Opening:   cfg.Recognition.Opening,
			Invert:    cfg.Recognition.Invert,
		},
		Detector:      trigger.Spec{Kind: kind, Phrase: cfg.Trigger.Phrase},
		Debounce:      cfg.Trigger.Debounce,
		Playlist:      cfg.Audio.Playlist,
		SelectedTrack: cfg.Audio.SelectedTrack,
		Ambiance:      cfg.Audio.AmbianceTrack,
		Interval:      cfg.Interval(),
		PauseInterval: cfg.Loop.PauseInterval,
	}
	if v := cfg.Audio.PrimaryVolume; v != nil {
		dc.PrimaryVolume = *v
	}
	if v := cfg.Audio.AmbianceVolume; v != nil {
		dc.AmbianceVolume = *v
	}
	if t := cfg.Target; t != nil {
		dc.Target = &match.Target{Key: t.Key, DisplayName: t.DisplayName, Variants: t.Variants}
		dc.FuzzyThreshold = t.FuzzyThreshold
	}
	return dc
}

// ParseLevel maps a configured log level onto slog. Unknown values select
// info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func trackSpecs(tracks []config.TrackConfig) []audio.TrackSpec {
	specs := make([]audio.TrackSpec, len(tracks))
	for i, t := range tracks {
		specs[i] = audio.TrackSpec{ID: t.ID, Name: t.Name, Path: t.Path}
	}
	return specs
}
