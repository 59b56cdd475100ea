package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DetectionChanged is true when any setting that feeds the detection
	// snapshot changed: region, preprocessing, trigger, target, playlist,
	// volumes or pacing. These apply without restart.
	DetectionChanged bool

	// AddedTracks are library entries that are new or whose path or name
	// changed. They must be imported before the new playlist can use them.
	AddedTracks []TrackConfig

	// RemovedTracks are ids no longer in the library.
	RemovedTracks []string

	// RestartRequired names the changed settings that only take effect
	// after a restart.
	RestartRequired []string
}

// LibraryChanged reports whether tracks were added or removed.
func (d ConfigDiff) LibraryChanged() bool {
	return len(d.AddedTracks) > 0 || len(d.RemovedTracks) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	d.DetectionChanged = old.Capture.Region != new.Capture.Region ||
		old.Capture.Display != new.Capture.Display ||
		old.Recognition.Threshold != new.Recognition.Threshold ||
		old.Recognition.Opening != new.Recognition.Opening ||
		old.Recognition.Invert != new.Recognition.Invert ||
		old.Trigger != new.Trigger ||
		!reflect.DeepEqual(old.Target, new.Target) ||
		!slices.Equal(old.Audio.Playlist, new.Audio.Playlist) ||
		old.Audio.SelectedTrack != new.Audio.SelectedTrack ||
		old.Audio.AmbianceTrack != new.Audio.AmbianceTrack ||
		!equalIntPtr(old.Audio.PrimaryVolume, new.Audio.PrimaryVolume) ||
		!equalIntPtr(old.Audio.AmbianceVolume, new.Audio.AmbianceVolume) ||
		old.Loop != new.Loop

	d.AddedTracks, d.RemovedTracks = diffLibrary(old.Audio.Library, new.Audio.Library)

	restart := []struct {
		name    string
		changed bool
	}{
		{"capture.source", old.Capture.Source != new.Capture.Source},
		{"capture.command", old.Capture.Command != new.Capture.Command || !slices.Equal(old.Capture.Args, new.Capture.Args)},
		{"capture.file", old.Capture.File != new.Capture.File},
		{"recognition.engine", old.Recognition.Engine != new.Recognition.Engine},
		{"recognition.command", old.Recognition.Command != new.Recognition.Command},
		{"recognition.language", old.Recognition.Language != new.Recognition.Language},
		{"recognition.page_seg_mode", old.Recognition.PageSegMode != new.Recognition.PageSegMode},
		{"recognition.text", old.Recognition.Text != new.Recognition.Text},
		{"recognition.timeout", old.Recognition.Timeout != new.Recognition.Timeout},
		{"audio.sample_rate", old.Audio.SampleRate != new.Audio.SampleRate},
		{"audio.cache_dir", old.Audio.CacheDir != new.Audio.CacheDir},
		{"diagnostics.listen_addr", old.Diagnostics != new.Diagnostics},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.name)
		}
	}

	return d
}

// diffLibrary compares two track lists keyed by id.
func diffLibrary(old, new []TrackConfig) (added []TrackConfig, removed []string) {
	oldByID := make(map[string]TrackConfig, len(old))
	for _, t := range old {
		oldByID[t.ID] = t
	}
	newIDs := make(map[string]struct{}, len(new))
	for _, t := range new {
		newIDs[t.ID] = struct{}{}
		if prev, ok := oldByID[t.ID]; !ok || prev != t {
			added = append(added, t)
		}
	}
	for _, t := range old {
		if _, ok := newIDs[t.ID]; !ok {
			removed = append(removed, t.ID)
		}
	}
	return added, removed
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
