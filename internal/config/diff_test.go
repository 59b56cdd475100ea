package config_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/goalhorn/internal/config"
)

func load(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(load(t, sampleYAML), load(t, sampleYAML))
	if d.LogLevelChanged || d.DetectionChanged || d.LibraryChanged() || len(d.RestartRequired) > 0 {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()

	old := load(t, sampleYAML)
	new := load(t, sampleYAML)
	new.LogLevel = config.LogWarn

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogWarn {
		t.Errorf("log level change not detected: %+v", d)
	}
	if d.DetectionChanged {
		t.Error("log level is not a detection setting")
	}
}

func TestDiff_DetectionChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"region", func(c *config.Config) { c.Capture.Region.Y += 5 }},
		{"threshold", func(c *config.Config) { c.Recognition.Threshold = 128 }},
		{"phrase", func(c *config.Config) { c.Trigger.Phrase = "goal" }},
		{"debounce", func(c *config.Config) { c.Trigger.Debounce = time.Second }},
		{"target variants", func(c *config.Config) { c.Target.Variants = append(c.Target.Variants, "MUFC") }},
		{"target removed", func(c *config.Config) { c.Target = nil }},
		{"playlist", func(c *config.Config) { c.Audio.Playlist = []string{"siren"} }},
		{"ambiance", func(c *config.Config) { c.Audio.AmbianceTrack = "" }},
		{"volume", func(c *config.Config) { v := 10; c.Audio.PrimaryVolume = &v }},
		{"fps", func(c *config.Config) { c.Loop.TargetFPS = 60 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := load(t, sampleYAML)
			new := load(t, sampleYAML)
			tc.mutate(new)

			d := config.Diff(old, new)
			if !d.DetectionChanged {
				t.Errorf("%s change not detected", tc.name)
			}
			if len(d.RestartRequired) > 0 {
				t.Errorf("%s change should not need a restart, got %v", tc.name, d.RestartRequired)
			}
		})
	}
}

func TestDiff_Library(t *testing.T) {
	t.Parallel()

	old := load(t, sampleYAML)
	new := load(t, sampleYAML)
	new.Audio.Library = []config.TrackConfig{
		{ID: "horn", Name: "Classic horn", Path: "sounds/horn.mp3"},
		{ID: "crowd", Path: "sounds/crowd-loud.ogg"},
		{ID: "drums", Path: "sounds/drums.flac"},
	}

	d := config.Diff(old, new)
	if !d.LibraryChanged() {
		t.Fatal("library change not detected")
	}
	var added []string
	for _, tr := range d.AddedTracks {
		added = append(added, tr.ID)
	}
	if !slices.Equal(added, []string{"crowd", "drums"}) {
		t.Errorf("AddedTracks = %v, want [crowd drums]", added)
	}
	if !slices.Equal(d.RemovedTracks, []string{"siren"}) {
		t.Errorf("RemovedTracks = %v, want [siren]", d.RemovedTracks)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	old := load(t, sampleYAML)
	new := load(t, sampleYAML)
	new.Capture.Command = "scrot"
	new.Recognition.Engine = "static"
	new.Audio.SampleRate = 44100
	new.Diagnostics.ListenAddr = ""

	d := config.Diff(old, new)
	want := []string{"capture.command", "recognition.engine", "audio.sample_rate", "diagnostics.listen_addr"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
}
