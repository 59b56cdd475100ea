package trigger

import (
	"strings"

	"github.com/MrWong99/goalhorn/pkg/text"
)

// Compile-time interface assertion.
var _ Detector = (*Phrase)(nil)

// Phrase is the [KindPhrase] detector.
type Phrase struct {
	phrase string
	tokens []string
}

// NewPhrase returns a detector for phrase. The phrase is normalized, so
// "GOAL FOR" and "goal for" are equivalent.
func NewPhrase(phrase string) (*Phrase, error) {
	norm := text.Normalize(phrase)
	if norm == "" {
		return nil, ErrEmptyPhrase
	}
	return &Phrase{phrase: norm, tokens: text.Tokens(norm)}, nil
}

// Kind implements [Detector].
func (p *Phrase) Kind() Kind { return KindPhrase }

// String returns the normalized phrase.
func (p *Phrase) String() string { return p.phrase }

// Detect normalizes raw line by line and returns the first occurrence of the
// phrase. Later occurrences in the same frame are ignored: one frame yields
// at most one event.
func (p *Phrase) Detect(raw string) (Event, bool) {
	for _, line := range text.Lines(raw) {
		norm := text.Normalize(line)
		if norm == "" {
			continue
		}
		ident, ok := ExtractPhrase(text.Tokens(norm), p.tokens)
		if ok {
			return Event{Kind: KindPhrase, Identifier: ident, Line: norm}, true
		}
	}
	return Event{}, false
}

// ExtractPhrase finds the first contiguous occurrence of phrase within line
// and returns the tokens after it joined by single spaces. Both arguments
// must already be normalized tokens. ok is false when the phrase does not
// occur or is empty.
func ExtractPhrase(line, phrase []string) (identifier string, ok bool) {
	n := len(phrase)
	if n == 0 || len(line) < n {
		return "", false
	}
	for i := 0; i+n <= len(line); i++ {
		if line[i] != phrase[0] {
			continue
		}
		match := true
		for j := 1; j < n; j++ {
			if line[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return strings.Join(line[i+n:], " "), true
		}
	}
	return "", false
}
