package surface

import "errors"

// ErrNotSquare is returned when gradients are requested for a non-square
// surface. Build never produces one; this guards hand-made surfaces.
var ErrNotSquare = errors.New("surface must be square")

// Field holds the per-cell partial derivatives of a surface, expressed in
// unit-square coordinates (grid spacing 1/N), aligned cell-for-cell with it.
type Field struct {
	N      int
	SlopeX []float64
	SlopeY []float64
}

// Gradients computes the slope field of the surface using central
// differences at interior cells and one-sided differences at the edges.
func Gradients(s *Surface) (*Field, error) {
	if s.W != s.H {
		return nil, ErrNotSquare
	}

	n := s.W
	f := &Field{
		N:      n,
		SlopeX: make([]float64, n*n),
		SlopeY: make([]float64, n*n),
	}
	if n < 2 {
		return f, nil
	}

	spacing := 1.0 / float64(n)

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x

			switch {
			case x == 0:
				f.SlopeX[i] = (s.At(1, y) - s.At(0, y)) / spacing
			case x == n-1:
				f.SlopeX[i] = (s.At(n-1, y) - s.At(n-2, y)) / spacing
			default:
				f.SlopeX[i] = (s.At(x+1, y) - s.At(x-1, y)) / (2 * spacing)
			}

			switch {
			case y == 0:
				f.SlopeY[i] = (s.At(x, 1) - s.At(x, 0)) / spacing
			case y == n-1:
				f.SlopeY[i] = (s.At(x, n-1) - s.At(x, n-2)) / spacing
			default:
				f.SlopeY[i] = (s.At(x, y+1) - s.At(x, y-1)) / (2 * spacing)
			}
		}
	}

	return f, nil
}
