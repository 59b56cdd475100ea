// Package trigger implements detection of trigger events in recognized screen
// text.
//
// The set of detector kinds is closed: each [Kind] has exactly one
// implementation, constructed by [New] from a [Spec]. The detection loop only
// sees the [Detector] interface. Today the only kind is [KindPhrase], which
// looks for a fixed phrase and captures the identifier that trails it on the
// same line (e.g. "GOAL FOR Arsenal" yields the identifier "arsenal").
package trigger

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPhrase is the trigger phrase used when none is configured.
const DefaultPhrase = "goal for"

// ErrEmptyPhrase is returned by [New] when the phrase normalizes to nothing.
var ErrEmptyPhrase = errors.New("trigger: phrase is empty after normalization")

// Kind identifies a detector variant.
type Kind int

const (
	// KindPhrase detects "<phrase> <optional identifier>" on a single line.
	KindPhrase Kind = iota
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration name to a [Kind]. The empty string selects
// [KindPhrase].
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "phrase":
		return KindPhrase, nil
	default:
		return 0, fmt.Errorf("trigger: unknown detector kind %q", s)
	}
}

// Event is a detected trigger candidate for one cycle.
type Event struct {
	// Kind is the detector that produced the event.
	Kind Kind

	// Identifier is the normalized text that followed the phrase on the same
	// line. It may be empty.
	Identifier string

	// Line is the normalized line the phrase was found on.
	Line string
}

// Detector inspects the raw recognizer output of one frame and reports at
// most one event.
//
// Implementations are immutable after construction and safe for concurrent
// use.
type Detector interface {
	Kind() Kind
	Detect(raw string) (Event, bool)
}

// Spec describes a detector to build with [New].
type Spec struct {
	Kind   Kind
	Phrase string
}

// New constructs the detector described by spec.
func New(spec Spec) (Detector, error) {
	switch spec.Kind {
	case KindPhrase:
		return NewPhrase(spec.Phrase)
	default:
		return nil, fmt.Errorf("trigger: unsupported detector kind %s", spec.Kind)
	}
}
