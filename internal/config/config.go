// Package config provides the configuration schema, loader, file watcher and
// backend registry for goalhorn.
package config

import (
	"image"
	"time"

	"github.com/MrWong99/goalhorn/pkg/capture"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Config.WithDefaults].
const (
	DefaultCaptureSource  = "command"
	DefaultRecognizer     = "tesseract"
	DefaultDebounce       = 8 * time.Second
	DefaultTargetFPS      = 60
	DefaultPauseInterval  = 100 * time.Millisecond
	DefaultSampleRate     = 44100
	DefaultPrimaryVolume  = 100
	DefaultAmbianceVolume = 60
)

// Config is the root configuration structure for goalhorn.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel    LogLevel          `yaml:"log_level"`
	Capture     CaptureConfig     `yaml:"capture"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Trigger     TriggerConfig     `yaml:"trigger"`

	// Target restricts celebrations to one team. When nil every trigger is
	// celebrated.
	Target *TargetConfig `yaml:"target"`

	Audio       AudioConfig       `yaml:"audio"`
	Loop        LoopConfig        `yaml:"loop"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// CaptureConfig selects the frame source and the region it reads.
type CaptureConfig struct {
	// Source selects the registered frame source ("command", "file").
	Source string `yaml:"source"`

	// Command is the screenshot tool run by the "command" source. It must
	// write a PNG to stdout.
	Command string `yaml:"command"`

	// Args are passed to Command. The placeholders {x}, {y}, {w} and {h} are
	// replaced with the region geometry.
	Args []string `yaml:"args"`

	// File is the still image read by the "file" source.
	File string `yaml:"file"`

	// Region is the screen area to watch.
	Region capture.Region `yaml:"region"`

	// Display is the screen size used to bounds-check Region. Optional.
	Display DisplaySize `yaml:"display"`
}

// DisplaySize is the size of the captured screen in pixels.
type DisplaySize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RecognitionConfig selects the text recognizer and the preprocessing
// applied to each frame.
type RecognitionConfig struct {
	// Engine selects the registered recognizer ("tesseract", "static").
	Engine string `yaml:"engine"`

	// Command overrides the recognizer binary.
	Command string `yaml:"command"`

	// Language is the recognizer language (e.g., "eng").
	Language string `yaml:"language"`

	// PageSegMode is the tesseract page segmentation mode.
	PageSegMode int `yaml:"page_seg_mode"`

	// Text is returned on every frame by the "static" engine.
	Text string `yaml:"text"`

	// Threshold is the binarization cut-off; 0 selects Otsu's method.
	Threshold int `yaml:"threshold"`

	// Opening enables speck removal.
	Opening bool `yaml:"opening"`

	// Invert produces dark text on a light background.
	Invert bool `yaml:"invert"`

	// Timeout bounds one capture or recognition call. 0 imposes no deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// TriggerConfig describes what counts as a trigger.
type TriggerConfig struct {
	// Kind selects the detector. Only "phrase" exists.
	Kind string `yaml:"kind"`

	// Phrase is the trigger phrase. Defaults to "goal for".
	Phrase string `yaml:"phrase"`

	// Debounce is the minimum time between two celebrations.
	Debounce time.Duration `yaml:"debounce"`
}

// TargetConfig is the team to celebrate.
type TargetConfig struct {
	Key         string   `yaml:"key"`
	DisplayName string   `yaml:"display_name"`
	Variants    []string `yaml:"variants"`

	// FuzzyThreshold enables fuzzy matching of recognized names when in
	// (0, 1]. 0 disables it.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// AudioConfig holds the track library and playback settings.
type AudioConfig struct {
	// SampleRate is the output sample rate every track is converted to.
	SampleRate int `yaml:"sample_rate"`

	// CacheDir stores decoded tracks between runs. Empty disables the cache.
	CacheDir string `yaml:"cache_dir"`

	// Library lists the tracks to load.
	Library []TrackConfig `yaml:"library"`

	// Playlist lists the track ids celebrations choose from.
	Playlist []string `yaml:"playlist"`

	// SelectedTrack is used as a single-track playlist when Playlist is
	// empty.
	SelectedTrack string `yaml:"selected_track"`

	// AmbianceTrack is played alongside every celebration. Optional.
	AmbianceTrack string `yaml:"ambiance_track"`

	// PrimaryVolume and AmbianceVolume are in [0, 100].
	PrimaryVolume  *int `yaml:"primary_volume"`
	AmbianceVolume *int `yaml:"ambiance_volume"`
}

// TrackConfig describes one library track.
type TrackConfig struct {
	// ID is referenced by the playlist. Required.
	ID string `yaml:"id"`

	// Name is shown on the control surface. Defaults to the file name.
	Name string `yaml:"name"`

	// Path is the audio file (wav, mp3, flac or ogg).
	Path string `yaml:"path"`
}

// LoopConfig paces the detection loop.
type LoopConfig struct {
	// TargetFPS is the number of cycles per second.
	TargetFPS int `yaml:"target_fps"`

	// PauseInterval is the polling period while paused.
	PauseInterval time.Duration `yaml:"pause_interval"`
}

// DiagnosticsConfig configures the optional local diagnostics endpoint.
type DiagnosticsConfig struct {
	// ListenAddr enables /healthz, /readyz and /metrics when set. It must be
	// a loopback address (e.g., "127.0.0.1:9464").
	ListenAddr string `yaml:"listen_addr"`
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.Capture.Source == "" {
		c.Capture.Source = DefaultCaptureSource
	}
	if c.Recognition.Engine == "" {
		c.Recognition.Engine = DefaultRecognizer
	}
	if c.Trigger.Debounce == 0 {
		c.Trigger.Debounce = DefaultDebounce
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Audio.PrimaryVolume == nil {
		c.Audio.PrimaryVolume = intPtr(DefaultPrimaryVolume)
	}
	if c.Audio.AmbianceVolume == nil {
		c.Audio.AmbianceVolume = intPtr(DefaultAmbianceVolume)
	}
	if c.Loop.TargetFPS == 0 {
		c.Loop.TargetFPS = DefaultTargetFPS
	}
	if c.Loop.PauseInterval == 0 {
		c.Loop.PauseInterval = DefaultPauseInterval
	}
	return c
}

// Interval returns the cycle period implied by Loop.TargetFPS.
func (c Config) Interval() time.Duration {
	fps := c.Loop.TargetFPS
	if fps <= 0 {
		fps = DefaultTargetFPS
	}
	return time.Second / time.Duration(fps)
}

func intPtr(v int) *int { return &v }

// DisplayPoint returns the configured display size, or the zero point when
// either dimension is unset.
func (c Config) DisplayPoint() image.Point {
	d := c.Capture.Display
	if d.Width <= 0 || d.Height <= 0 {
		return image.Point{}
	}
	return image.Pt(d.Width, d.Height)
}
