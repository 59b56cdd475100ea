package detect

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MrWong99/goalhorn/internal/match"
	"github.com/MrWong99/goalhorn/internal/playlist"
	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/audio"
	"github.com/MrWong99/goalhorn/pkg/capture"
	"github.com/MrWong99/goalhorn/pkg/vision"
)

// Defaults applied to zero-valued [Config] fields.
const (
	DefaultInterval      = time.Second / 60
	DefaultPauseInterval = 100 * time.Millisecond
	DefaultDebounce      = 8 * time.Second
)

// Config is the detection configuration. The engine compiles it into an
// immutable snapshot; changes take effect through [Engine.ReplaceConfig].
type Config struct {
	// Region is the screen area to capture.
	Region capture.Region

	// Display is the screen size used to bounds-check Region. Zero skips
	// the check.
	Display image.Point

	// Recognition controls frame preprocessing.
	Recognition vision.Settings

	// Detector selects the trigger detector. Kind defaults to the phrase
	// detector and Phrase to [trigger.DefaultPhrase].
	Detector trigger.Spec

	// Debounce is the minimum time between two accepted triggers. Zero
	// accepts every trigger.
	Debounce time.Duration

	// Target restricts triggers to one identifier. Nil accepts all.
	Target *match.Target

	// FuzzyThreshold enables fuzzy identifier matching when in (0, 1].
	FuzzyThreshold float64

	// Playlist holds the track ids to choose from.
	Playlist []string

	// SelectedTrack is used as a single-track playlist when Playlist is
	// empty.
	SelectedTrack string

	// Ambiance is an optional track id played alongside every celebration.
	Ambiance string

	// PrimaryVolume and AmbianceVolume are in [audio.MinVolume,
	// audio.MaxVolume].
	PrimaryVolume  int
	AmbianceVolume int

	// Interval is the target cycle period. Defaults to [DefaultInterval].
	Interval time.Duration

	// PauseInterval is the polling period while paused. Defaults to
	// [DefaultPauseInterval].
	PauseInterval time.Duration
}

// Validate reports every invariant violation in c.
func (c Config) Validate() error {
	var errs []error
	if err := c.Region.Validate(c.Display); err != nil {
		errs = append(errs, err)
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("detect: debounce %s is negative", c.Debounce))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("detect: interval %s is negative", c.Interval))
	}
	if c.PauseInterval < 0 {
		errs = append(errs, fmt.Errorf("detect: pause interval %s is negative", c.PauseInterval))
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("detect: fuzzy threshold %g is outside [0, 1]", c.FuzzyThreshold))
	}
	for _, v := range []struct {
		name  string
		value int
	}{{"primary", c.PrimaryVolume}, {"ambiance", c.AmbianceVolume}} {
		if v.value < audio.MinVolume || v.value > audio.MaxVolume {
			errs = append(errs, fmt.Errorf("detect: %s volume %d is outside [%d, %d]", v.name, v.value, audio.MinVolume, audio.MaxVolume))
		}
	}
	return errors.Join(errs...)
}

// withDefaults returns c with zero-valued timing fields filled in.
func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.PauseInterval == 0 {
		c.PauseInterval = DefaultPauseInterval
	}
	if c.Detector.Phrase == "" {
		c.Detector.Phrase = trigger.DefaultPhrase
	}
	return c
}

// snapshot is the compiled, immutable form of a [Config]. The detection
// goroutine loads it once at the top of every cycle.
type snapshot struct {
	cfg      Config
	detector trigger.Detector
	matcher  *match.Matcher
	playlist playlist.Playlist
}

// compile validates cfg and builds its snapshot.
func compile(cfg Config) (*snapshot, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	det, err := trigger.New(cfg.Detector)
	if err != nil {
		return nil, err
	}

	var m *match.Matcher
	if cfg.Target != nil {
		if m, err = match.New(*cfg.Target, match.WithFuzzyThreshold(cfg.FuzzyThreshold)); err != nil {
			return nil, err
		}
	}

	return &snapshot{
		cfg:      cfg,
		detector: det,
		matcher:  m,
		playlist: playlist.Resolve(cfg.Playlist, cfg.SelectedTrack),
	}, nil
}
