package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/audio"
	"github.com/MrWong99/goalhorn/pkg/text"
)

// ValidBackendNames lists known backend names per backend kind.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = map[string][]string{
	"capture":     {"command", "file"},
	"recognition": {"tesseract", "static"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw := Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg := raw.WithDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Capture
	validateBackendName("capture", cfg.Capture.Source)
	switch cfg.Capture.Source {
	case "command":
		if cfg.Capture.Command == "" {
			errs = append(errs, errors.New("capture.command is required when source is command"))
		}
	case "file":
		if cfg.Capture.File == "" {
			errs = append(errs, errors.New("capture.file is required when source is file"))
		}
	}
	d := cfg.Capture.Display
	if d.Width < 0 || d.Height < 0 {
		errs = append(errs, fmt.Errorf("capture.display %dx%d must not be negative", d.Width, d.Height))
	}
	if err := cfg.Capture.Region.Validate(cfg.DisplayPoint()); err != nil {
		errs = append(errs, fmt.Errorf("capture.region: %w", err))
	}

	// Recognition
	validateBackendName("recognition", cfg.Recognition.Engine)
	if t := cfg.Recognition.Threshold; t < 0 || t > 255 {
		errs = append(errs, fmt.Errorf("recognition.threshold %d is out of range [0, 255]", t))
	}
	if p := cfg.Recognition.PageSegMode; p < 0 || p > 13 {
		errs = append(errs, fmt.Errorf("recognition.page_seg_mode %d is out of range [0, 13]", p))
	}
	if cfg.Recognition.Timeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.timeout %s must not be negative", cfg.Recognition.Timeout))
	}

	// Trigger
	if _, err := trigger.ParseKind(cfg.Trigger.Kind); err != nil {
		errs = append(errs, fmt.Errorf("trigger.kind: %w", err))
	}
	if cfg.Trigger.Phrase != "" && text.Normalize(cfg.Trigger.Phrase) == "" {
		errs = append(errs, fmt.Errorf("trigger.phrase %q has no letters or digits", cfg.Trigger.Phrase))
	}
	if cfg.Trigger.Debounce < 0 {
		errs = append(errs, fmt.Errorf("trigger.debounce %s must not be negative", cfg.Trigger.Debounce))
	}

	// Target
	if t := cfg.Target; t != nil {
		usable := slices.ContainsFunc(t.Variants, func(v string) bool { return text.Normalize(v) != "" })
		if !usable {
			errs = append(errs, errors.New("target.variants must contain at least one name"))
		}
		if t.FuzzyThreshold < 0 || t.FuzzyThreshold > 1 {
			errs = append(errs, fmt.Errorf("target.fuzzy_threshold %.2f is out of range [0, 1]", t.FuzzyThreshold))
		}
	}

	// Audio
	errs = append(errs, validateAudio(&cfg.Audio)...)

	// Loop
	if fps := cfg.Loop.TargetFPS; fps < 1 || fps > 240 {
		errs = append(errs, fmt.Errorf("loop.target_fps %d is out of range [1, 240]", fps))
	}
	if cfg.Loop.PauseInterval < 0 {
		errs = append(errs, fmt.Errorf("loop.pause_interval %s must not be negative", cfg.Loop.PauseInterval))
	}

	// Diagnostics
	if addr := cfg.Diagnostics.ListenAddr; addr != "" {
		if err := validateLoopback(addr); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics.listen_addr: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateAudio(a *AudioConfig) []error {
	var errs []error

	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", a.SampleRate))
	}

	ids := make(map[string]int, len(a.Library))
	for i, tr := range a.Library {
		prefix := fmt.Sprintf("audio.library[%d]", i)
		if tr.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := ids[tr.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of audio.library[%d]", prefix, tr.ID, prev))
			}
			ids[tr.ID] = i
		}
		if tr.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		} else if ext := strings.ToLower(filepath.Ext(tr.Path)); !slices.Contains(audio.SupportedExtensions, ext) {
			errs = append(errs, fmt.Errorf("%s.path %q has unsupported extension; supported: %s",
				prefix, tr.Path, strings.Join(audio.SupportedExtensions, ", ")))
		}
	}

	known := func(field, id string) {
		if _, ok := ids[id]; !ok {
			errs = append(errs, fmt.Errorf("%s %q is not in audio.library", field, id))
		}
	}
	for i, id := range a.Playlist {
		known(fmt.Sprintf("audio.playlist[%d]", i), id)
	}
	if a.SelectedTrack != "" {
		known("audio.selected_track", a.SelectedTrack)
	}
	if a.AmbianceTrack != "" {
		known("audio.ambiance_track", a.AmbianceTrack)
	}
	if len(a.Playlist) == 0 && a.SelectedTrack == "" {
		slog.Warn("audio.playlist is empty and no selected_track is set; triggers will not play")
	}

	for _, v := range []struct {
		field string
		value *int
	}{{"audio.primary_volume", a.PrimaryVolume}, {"audio.ambiance_volume", a.AmbianceVolume}} {
		if v.value != nil && (*v.value < audio.MinVolume || *v.value > audio.MaxVolume) {
			errs = append(errs, fmt.Errorf("%s %d is out of range [%d, %d]", v.field, *v.value, audio.MinVolume, audio.MaxVolume))
		}
	}
	return errs
}

// validateLoopback rejects listen addresses reachable from other hosts.
func validateLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%q is not a loopback address", addr)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given kind.
func validateBackendName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
