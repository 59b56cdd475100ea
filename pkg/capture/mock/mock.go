// Package mock provides an in-memory [capture.Source] for unit tests.
//
// The mock is safe for concurrent use. Set the exported fields to control
// return values; inspect CallCount and Regions afterwards.
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/MrWong99/goalhorn/pkg/capture"
)

// Compile-time interface assertion.
var _ capture.Source = (*Source)(nil)

// Source is a mock implementation of [capture.Source].
type Source struct {
	mu sync.Mutex

	// Image is returned by Capture when CaptureFunc is nil. A 1x1 gray image
	// is returned when both are nil.
	Image image.Image

	// Err is returned by Capture when CaptureFunc is nil.
	Err error

	// CaptureFunc, when set, overrides Image and Err.
	CaptureFunc func(ctx context.Context, region capture.Region) (image.Image, error)

	callCount int
	regions   []capture.Region
}

// Capture implements [capture.Source].
func (s *Source) Capture(ctx context.Context, region capture.Region) (image.Image, error) {
	s.mu.Lock()
	s.callCount++
	s.regions = append(s.regions, region)
	fn, img, err := s.CaptureFunc, s.Image, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, region)
	}
	if err != nil {
		return nil, err
	}
	if img == nil {
		img = image.NewGray(image.Rect(0, 0, 1, 1))
	}
	return img, nil
}

// SetErr replaces the error returned by subsequent calls.
func (s *Source) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// CallCount returns the number of Capture calls.
func (s *Source) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// Regions returns a copy of the regions passed to Capture.
func (s *Source) Regions() []capture.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capture.Region, len(s.regions))
	copy(out, s.regions)
	return out
}
