// Package recognize defines the text recognizer interface consumed by the
// detection loop and ships the built-in backends.
//
// Recognition is lossy and non-deterministic. A failed call is diagnostic
// only: callers treat it the same as a frame without text.
package recognize

import (
	"context"
	"image"
)

// Recognizer extracts plain text from a preprocessed image. Lines are
// separated by newlines. The returned text is "" whenever err is non-nil.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, img *image.Gray) (string, error)
}

// Compile-time interface assertion.
var _ Recognizer = Static("")

// Static always recognizes the same text. It drives dry runs of the whole
// pipeline without a recognition engine installed.
type Static string

// Recognize implements [Recognizer].
func (s Static) Recognize(ctx context.Context, _ *image.Gray) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}
