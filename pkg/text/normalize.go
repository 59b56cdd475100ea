// Package text turns raw recognizer output into the canonical token form used
// by trigger detection and identifier matching.
//
// The canonical form is lowercase, free of diacritics, restricted to letters,
// digits and single spaces, and trimmed. [Normalize] is total, deterministic,
// and idempotent: Normalize(Normalize(s)) == Normalize(s) for every s.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folds maps letters that carry no canonical decomposition onto the ASCII
// spelling players and recognizers typically use for them.
var folds = map[rune]string{
	'ı': "i",
	'ß': "ss",
	'æ': "ae",
	'ø': "o",
	'œ': "oe",
	'ł': "l",
	'đ': "d",
	'ð': "d",
	'þ': "th",
}

// Normalize returns the canonical form of s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// A fresh chain per call: transform.Chain is stateful and not safe for
	// concurrent use.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.M)))
	decomposed, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		// Only possible on malformed transformer state; fall back to the
		// lowercased input so Normalize stays total.
		decomposed = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingSpace := false
	for _, r := range decomposed {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			if f, ok := folds[r]; ok {
				b.WriteString(f)
				continue
			}
			// Some letters only lower-case after decomposition.
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Tokens splits a normalized string into its space-separated tokens.
// It returns nil for the empty string.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// Lines splits raw text into lines, accepting \n, \r\n and \r terminators.
// Empty lines are kept so callers can report positions if they need to.
func Lines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(raw, "\n")
}
