// Package debounce provides the accept/reject gate that keeps a single goal
// banner, which stays on screen for several seconds, from triggering more
// than one celebration.
package debounce

import "time"

// Debouncer accepts an event when no event was accepted within the window
// before it. Rejected events do not extend the window.
//
// The zero value is ready to use. A Debouncer is not safe for concurrent use;
// it is owned by the detection goroutine.
type Debouncer struct {
	last time.Time
	set  bool
}

// Allow reports whether an event at now is accepted. The first call is always
// accepted. A later call is accepted when now-last >= window, in which case
// now becomes the new last accepted time.
func (d *Debouncer) Allow(now time.Time, window time.Duration) bool {
	if d.set && now.Sub(d.last) < window {
		return false
	}
	d.last = now
	d.set = true
	return true
}

// Reset forgets the last accepted time.
func (d *Debouncer) Reset() {
	d.last = time.Time{}
	d.set = false
}

// Last returns the last accepted time and whether there is one.
func (d *Debouncer) Last() (time.Time, bool) {
	return d.last, d.set
}
