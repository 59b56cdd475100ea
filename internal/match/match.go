// Package match decides whether an identifier extracted after the trigger
// phrase refers to the configured target.
//
// Matching proceeds in three stages, stopping at the first hit:
//
//  1. Exact: the normalized candidate equals a normalized variant.
//  2. Token subset: every token of some variant occurs among the candidate's
//     tokens, in any order. "manchester united fc" matches the variant
//     "Manchester United" but not "Manchester Utd".
//  3. Fuzzy subset (opt-in via [WithFuzzyThreshold]): like the token subset,
//     but a variant token is satisfied by any candidate token whose
//     Jaro-Winkler similarity reaches the threshold. This absorbs single
//     character recognition errors such as "arsenai" for "arsenal".
//
// A nil *Matcher represents "no target configured" and matches everything.
package match

import (
	"errors"
	"fmt"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/goalhorn/pkg/text"
)

// ErrNoVariants is returned by [New] when none of the target's variants
// survive normalization.
var ErrNoVariants = errors.New("match: target has no usable variants")

// Target is the configured team (or other identifier) to celebrate.
type Target struct {
	// Key is a stable identifier for the target, used in logs.
	Key string

	// DisplayName is shown on the control surface.
	DisplayName string

	// Variants are the accepted spellings. They are normalized on
	// construction, so casing and punctuation do not matter.
	Variants []string
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithFuzzyThreshold enables the fuzzy token stage with the given minimum
// Jaro-Winkler similarity. Values outside (0, 1] disable the stage, which is
// the default.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.fuzzy = threshold
		} else {
			m.fuzzy = 0
		}
	}
}

type variant struct {
	full   string
	tokens []string
}

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	target   Target
	variants []variant
	fuzzy    float64
}

// New compiles t into a [Matcher].
func New(t Target, opts ...Option) (*Matcher, error) {
	m := &Matcher{target: t}
	seen := make(map[string]struct{}, len(t.Variants))
	for _, raw := range t.Variants {
		n := text.Normalize(raw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		m.variants = append(m.variants, variant{full: n, tokens: text.Tokens(n)})
	}
	if len(m.variants) == 0 {
		return nil, fmt.Errorf("match: target %q: %w", t.Key, ErrNoVariants)
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Target returns the target the matcher was built from. A nil matcher
// returns the zero Target.
func (m *Matcher) Target() Target {
	if m == nil {
		return Target{}
	}
	return m.target
}

// Match reports whether candidate refers to the target. candidate may be raw
// or normalized text.
func (m *Matcher) Match(candidate string) bool {
	if m == nil {
		return true
	}
	norm := text.Normalize(candidate)
	if norm == "" {
		return false
	}

	for _, v := range m.variants {
		if v.full == norm {
			return true
		}
	}

	tokens := text.Tokens(norm)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	for _, v := range m.variants {
		if subset(v.tokens, set) {
			return true
		}
	}

	if m.fuzzy == 0 {
		return false
	}
	for _, v := range m.variants {
		if m.fuzzySubset(v.tokens, tokens) {
			return true
		}
	}
	return false
}

func subset(want []string, have map[string]struct{}) bool {
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

func (m *Matcher) fuzzySubset(want, have []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if w == h || matchr.JaroWinkler(w, h, false) >= m.fuzzy {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
