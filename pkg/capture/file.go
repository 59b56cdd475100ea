package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
)

// Compile-time interface assertion.
var _ Source = (*File)(nil)

// File serves crops of a still image loaded from disk.
type File struct {
	path string
	img  image.Image
}

// NewFile decodes the PNG or JPEG image at path.
func NewFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("capture: decode %s: %w", path, err)
	}
	return &File{path: path, img: img}, nil
}

// NewImage serves crops of img.
func NewImage(img image.Image) *File {
	return &File{path: "<memory>", img: img}
}

// Size returns the dimensions of the underlying image.
func (f *File) Size() image.Point {
	return f.img.Bounds().Size()
}

// Capture implements [Source].
func (f *File) Capture(ctx context.Context, region Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := region.Validate(image.Point{}); err != nil {
		return nil, err
	}
	return crop(f.img, region)
}
