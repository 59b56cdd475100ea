package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/faiface/beep"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// defaultParallelism bounds concurrent imports in [Library.Load].
const defaultParallelism = 4

// BufferCache stores decoded buffers across restarts. It is implemented by
// *cache.Cache.
type BufferCache interface {
	Lookup(path string, format beep.Format) (*beep.Buffer, bool)
	Store(path string, format beep.Format, buf *beep.Buffer) error
}

// LibraryOption configures a [Library].
type LibraryOption func(*Library)

// WithCache enables the decoded-buffer cache.
func WithCache(c BufferCache) LibraryOption {
	return func(l *Library) {
		l.cache = c
	}
}

// WithParallelism sets how many tracks [Library.Load] imports concurrently.
// Values below 1 are ignored.
func WithParallelism(n int) LibraryOption {
	return func(l *Library) {
		if n > 0 {
			l.parallelism = n
		}
	}
}

// Library maps track ids to preloaded tracks. Lookups are cheap and
// lock-shared; the library is only modified from the control side.
// All methods are safe for concurrent use.
type Library struct {
	format      beep.Format
	cache       BufferCache
	parallelism int

	mu     sync.RWMutex
	tracks map[string]*Track
}

// NewLibrary returns an empty library whose tracks are stored in format.
func NewLibrary(format beep.Format, opts ...LibraryOption) *Library {
	l := &Library{
		format:      format,
		parallelism: defaultParallelism,
		tracks:      make(map[string]*Track),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Format returns the sample format of every track in the library.
func (l *Library) Format() beep.Format { return l.format }

// Get returns the track with the given id.
func (l *Library) Get(id string) (*Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[id]
	return t, ok
}

// Has reports whether a track with the given id is loaded.
func (l *Library) Has(id string) bool {
	_, ok := l.Get(id)
	return ok
}

// Put adds or replaces t.
func (l *Library) Put(t *Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks[t.ID] = t
}

// Remove drops the track with the given id, if any.
func (l *Library) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tracks, id)
}

// Len returns the number of loaded tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Tracks returns the loaded tracks ordered by name, then id.
func (l *Library) Tracks() []*Track {
	l.mu.RLock()
	out := make([]*Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Track) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Load imports specs concurrently and adds them to the library. Specs whose
// id is already loaded from the same path are skipped. A failing track does
// not prevent the others from loading; all failures are returned joined.
// Load returns the tracks it added.
func (l *Library) Load(ctx context.Context, specs ...TrackSpec) ([]*Track, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)

	var (
		mu     sync.Mutex
		added  []*Track
		failed []error
	)
	for _, spec := range specs {
		if spec.ID != "" {
			if t, ok := l.Get(spec.ID); ok && t.Path == spec.Path {
				continue
			}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := l.importTrack(spec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return nil
			}
			added = append(added, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failed = append(failed, err)
	}

	for _, t := range added {
		l.Put(t)
	}
	return added, errors.Join(failed...)
}

func (l *Library) importTrack(spec TrackSpec) (*Track, error) {
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := spec.Name
	if name == "" {
		name = id
	}

	if l.cache != nil {
		if buf, ok := l.cache.Lookup(spec.Path, l.format); ok {
			slog.Debug("audio: track loaded from cache", "id", id, "path", spec.Path)
			return &Track{ID: id, Name: name, Path: spec.Path, Buffer: buf}, nil
		}
	}

	buf, err := Import(spec.Path, l.format)
	if err != nil {
		return nil, fmt.Errorf("audio: load track %q: %w", id, err)
	}
	if l.cache != nil {
		if err := l.cache.Store(spec.Path, l.format, buf); err != nil {
			slog.Warn("audio: failed to cache decoded track", "id", id, "err", err)
		}
	}
	t := &Track{ID: id, Name: name, Path: spec.Path, Buffer: buf}
	slog.Info("audio: track imported", "id", id, "name", name, "duration", t.Duration())
	return t, nil
}
