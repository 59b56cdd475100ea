// Package vision prepares captured frames for text recognition: grayscale
// conversion, binarization and optional morphological opening.
package vision

import (
	"image"
	"image/color"
	"image/draw"
)

// Settings control preprocessing. They are immutable for the duration of a
// cycle.
type Settings struct {
	// Threshold is the binarization cut-off. 0 selects Otsu's method per
	// frame; 1–255 is a fixed threshold.
	Threshold uint8

	// Opening removes isolated specks with a 3x3 erosion followed by a 3x3
	// dilation of the foreground.
	Opening bool

	// Invert produces dark text on a light background. Recognizers such as
	// tesseract prefer that polarity; most score banners are light-on-dark.
	Invert bool
}

// Preprocess converts img into a binary grayscale image according to s.
// Pixels brighter than the threshold become foreground (white) before any
// inversion. The result has its origin at (0, 0).
func Preprocess(img image.Image, s Settings) *image.Gray {
	gray := Grayscale(img)
	t := s.Threshold
	if t == 0 {
		t = Otsu(gray)
	}
	bin := Binarize(gray, t)
	if s.Opening {
		bin = Dilate(Erode(bin))
	}
	if s.Invert {
		invert(bin)
	}
	return bin
}

// Grayscale returns a copy of img in 8-bit luma, rebased to (0, 0).
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		// Sub-images keep the parent's stride and offset, so copy row by row.
		w, h := b.Dx(), b.Dy()
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := range h {
			i := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*w:(y+1)*w], g.Pix[i:i+w])
		}
		return out
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Otsu returns the threshold that maximises between-class variance of the
// luma histogram.
func Otsu(g *image.Gray) uint8 {
	var hist [256]int
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	total := w * h
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var (
		sumB    float64
		wB      int
		best    float64
		bestIdx int
	)
	for i, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * c)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestIdx = i
		}
	}
	return uint8(bestIdx)
}

// Binarize maps pixels above t to 255 and the rest to 0.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// Erode sets a pixel to foreground only when its whole 3x3 neighbourhood is
// foreground. Pixels outside the image count as background.
func Erode(g *image.Gray) *image.Gray {
	return morph(g, true)
}

// Dilate sets a pixel to foreground when any pixel in its 3x3 neighbourhood is
// foreground.
func Dilate(g *image.Gray) *image.Gray {
	return morph(g, false)
}

func morph(g *image.Gray, erode bool) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			fg := erode
			for dy := -1; dy <= 1 && fg == erode; dy++ {
				for dx := -1; dx <= 1; dx++ {
					p := image.Pt(x+dx, y+dy)
					on := p.In(b) && g.GrayAt(p.X, p.Y).Y == 255
					if erode && !on {
						fg = false
						break
					}
					if !erode && on {
						fg = true
						break
					}
				}
			}
			if fg {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

func invert(g *image.Gray) {
	for i, v := range g.Pix {
		g.Pix[i] = 255 - v
	}
}
