// Package playlist picks which celebration track to play next.
//
// Selection is uniform over the playlist except that the track played last
// is never picked twice in a row when there is an alternative.
package playlist

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// ErrEmptyPlaylist is returned by [Selector.Select] when there is nothing to
// choose from.
var ErrEmptyPlaylist = errors.New("playlist: playlist is empty")

// Playlist is an ordered set of track ids.
type Playlist struct {
	Tracks []string
}

// Len returns the number of tracks.
func (p Playlist) Len() int { return len(p.Tracks) }

// Equal reports whether p and o hold the same ids in the same order.
func (p Playlist) Equal(o Playlist) bool {
	return slices.Equal(p.Tracks, o.Tracks)
}

// Resolve builds a playlist from configured ids. Empty ids and duplicates are
// dropped, keeping the first occurrence. When no id remains and legacy is
// non-empty, the result is a single-track playlist of legacy; this keeps old
// single-track configurations working.
func Resolve(ids []string, legacy string) Playlist {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 && legacy != "" {
		out = []string{legacy}
	}
	return Playlist{Tracks: out}
}

// Option is a functional option for configuring a [Selector].
type Option func(*Selector)

// WithRand sets the random source. Tests use a seeded source for
// reproducibility.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		s.rng = r
	}
}

// Selector remembers the last played id. It is not safe for concurrent use;
// it is owned by the detection goroutine.
type Selector struct {
	rng     *rand.Rand
	last    string
	hasLast bool
}

// NewSelector returns a Selector with no play history.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select returns the next track id from p and records it as last played.
func (s *Selector) Select(p Playlist) (string, error) {
	n := len(p.Tracks)
	switch {
	case n == 0:
		return "", ErrEmptyPlaylist
	case n == 1:
		s.remember(p.Tracks[0])
		return p.Tracks[0], nil
	}

	exclude := -1
	if s.hasLast {
		for i, id := range p.Tracks {
			if id == s.last {
				exclude = i
				break
			}
		}
	}

	var id string
	if exclude < 0 {
		id = p.Tracks[s.intN(n)]
	} else {
		// Draw from the n-1 other slots, skipping over the excluded one.
		i := s.intN(n - 1)
		if i >= exclude {
			i++
		}
		id = p.Tracks[i]
	}
	s.remember(id)
	return id, nil
}

// Last returns the last selected id and whether there is one.
func (s *Selector) Last() (string, bool) {
	return s.last, s.hasLast
}

// Reset forgets the play history.
func (s *Selector) Reset() {
	s.last = ""
	s.hasLast = false
}

func (s *Selector) remember(id string) {
	s.last = id
	s.hasLast = true
}

func (s *Selector) intN(n int) int {
	if s.rng != nil {
		return s.rng.IntN(n)
	}
	return rand.IntN(n)
}
