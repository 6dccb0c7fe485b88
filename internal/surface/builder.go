package surface

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when the source image has zero area.
var ErrEmptyImage = errors.New("image has zero area")

// flatten divides the inverted luminance so that image slopes stay small
// relative to the gravity constant.
const flatten = 400.0

// Paraboloid bias parameters. The center is shifted off the image center
// so that a featureless input still has a nonzero slope almost everywhere.
const (
	biasA       = 1.0
	biasB       = 0.5
	biasCenterX = 0.55
	biasCenterY = 0.5
)

// Surface is a square height field derived from an image. Heights live in
// [0, 1]; positions elsewhere in the system address it in unit-square
// coordinates.
type Surface struct {
	W, H int
	Data []float64 // row-major, Data[y*W+x]
}

// At returns the height at grid cell (x, y).
func (s *Surface) At(x, y int) float64 { return s.Data[y*s.W+x] }

// Set writes the height at grid cell (x, y).
func (s *Surface) Set(x, y int, v float64) { s.Data[y*s.W+x] = v }

// NewUniform returns an n×n surface filled with the given height.
func NewUniform(n int, v float64) *Surface {
	s := &Surface{W: n, H: n, Data: make([]float64, n*n)}
	for i := range s.Data {
		s.Data[i] = v
	}
	return s
}

// Build turns an image into a simulation surface:
// grayscale, center-crop to the largest square, gaussian blur, invert
// (dark becomes high), flatten, then blend in the paraboloid bias and
// renormalize to [0, 1].
func Build(img image.Image, blurSigma float64) (*Surface, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}

	size := w
	if h < size {
		size = h
	}

	gray := imaging.Grayscale(img)
	gray = imaging.CropCenter(gray, size, size)
	if blurSigma > 0 {
		gray = imaging.Blur(gray, blurSigma)
	}

	s := &Surface{W: size, H: size, Data: make([]float64, size*size)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// NRGBA from imaging is gray, any channel carries the luminance.
			lum := float64(gray.NRGBAAt(x, y).R) / 255.0
			s.Data[y*size+x] = (1.0 - lum) / flatten
		}
	}

	applyBias(s)

	return s, nil
}

// applyBias adds the off-center paraboloid to the surface and min-max
// renormalizes the sum to [0, 1], guaranteeing a nonzero gradient on
// otherwise flat inputs.
func applyBias(s *Surface) {
	n := s.W
	min, max := math.Inf(1), math.Inf(-1)

	den := float64(n - 1)
	if den == 0 {
		den = 1
	}

	for y := 0; y < n; y++ {
		fy := float64(y) / den
		dy := fy - biasCenterY
		for x := 0; x < n; x++ {
			fx := float64(x) / den
			dx := fx - biasCenterX

			v := s.Data[y*n+x] + biasA*dx*dx + biasB*dy*dy
			s.Data[y*n+x] = v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}

	span := max - min
	if span <= 0 {
		span = 1
	}
	for i := range s.Data {
		s.Data[i] = (s.Data[i] - min) / span
	}
}
