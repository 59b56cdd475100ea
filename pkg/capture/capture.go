// Package capture defines the frame source the detection loop reads screen
// regions from, together with the built-in implementations.
//
// Implementations:
//
//   - [File] decodes a still image once and crops it per call. Used for
//     replays and dry runs.
//   - [Command] runs an external screenshot tool and decodes its PNG output.
//   - mock.Source for tests.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidRegion is returned when a region has a non-positive size or a
	// negative origin.
	ErrInvalidRegion = errors.New("capture: invalid region")

	// ErrRegionOutOfBounds is returned when a region does not fit the display
	// or source image.
	ErrRegionOutOfBounds = errors.New("capture: region out of bounds")
)

// Region is a rectangular area of the screen in pixels.
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect returns r as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// String formats r as "WxH+X+Y".
func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Validate checks the region invariants. display is the screen size; a zero
// display skips the bounds check.
func (r Region) Validate(display image.Point) error {
	if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegion, r)
	}
	if display != (image.Point{}) && !r.Rect().In(image.Rectangle{Max: display}) {
		return fmt.Errorf("%w: %s exceeds %dx%d", ErrRegionOutOfBounds, r, display.X, display.Y)
	}
	return nil
}

// Source produces an image of a screen region on demand. Errors are
// transient from the caller's point of view; the next call may succeed.
//
// Implementations must be safe for concurrent use.
type Source interface {
	Capture(ctx context.Context, region Region) (image.Image, error)
}

// crop returns the part of img covered by region, where region is relative to
// the image's origin.
func crop(img image.Image, region Region) (image.Image, error) {
	b := img.Bounds()
	want := region.Rect().Add(b.Min)
	if !want.In(b) {
		return nil, fmt.Errorf("%w: %s in %dx%d image", ErrRegionOutOfBounds, region, b.Dx(), b.Dy())
	}
	if si, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return si.SubImage(want), nil
	}
	return nil, fmt.Errorf("capture: image type %T does not support cropping", img)
}
