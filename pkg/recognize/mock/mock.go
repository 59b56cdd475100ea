// Package mock provides an in-memory [recognize.Recognizer] for unit tests.
//
// The mock is safe for concurrent use. Queue texts with Texts, or set
// RecognizeFunc for full control.
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/MrWong99/goalhorn/pkg/recognize"
)

// Compile-time interface assertion.
var _ recognize.Recognizer = (*Recognizer)(nil)

// Recognizer is a mock implementation of [recognize.Recognizer].
type Recognizer struct {
	mu sync.Mutex

	// Text is returned once Texts is exhausted.
	Text string

	// Texts are returned in order, one per call.
	Texts []string

	// Err is returned (with empty text) when set.
	Err error

	// RecognizeFunc, when set, overrides every other field.
	RecognizeFunc func(ctx context.Context, img *image.Gray) (string, error)

	callCount int
}

// Recognize implements [recognize.Recognizer].
func (r *Recognizer) Recognize(ctx context.Context, img *image.Gray) (string, error) {
	r.mu.Lock()
	r.callCount++
	fn := r.RecognizeFunc
	if fn != nil {
		r.mu.Unlock()
		return fn(ctx, img)
	}
	defer r.mu.Unlock()

	if r.Err != nil {
		return "", r.Err
	}
	if len(r.Texts) > 0 {
		t := r.Texts[0]
		r.Texts = r.Texts[1:]
		return t, nil
	}
	return r.Text, nil
}

// SetText replaces the text returned once the queue is empty.
func (r *Recognizer) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Text = text
}

// SetErr replaces the error returned by subsequent calls.
func (r *Recognizer) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// CallCount returns the number of Recognize calls.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callCount
}
