package surface

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniformImage(w, h int, gray uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}

func TestBuild_EmptyImage(t *testing.T) {
	if _, err := Build(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 4); err != ErrEmptyImage {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := Build(image.NewNRGBA(image.Rect(0, 0, 10, 0)), 4); err != ErrEmptyImage {
		t.Errorf("expected ErrEmptyImage for zero height, got %v", err)
	}
}

func TestBuild_CropsToSquare(t *testing.T) {
	s, err := Build(uniformImage(120, 80, 128), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.W != 80 || s.H != 80 {
		t.Errorf("expected 80x80 surface, got %dx%d", s.W, s.H)
	}
}

func TestBuild_ValuesFiniteAndNormalized(t *testing.T) {
	s, err := Build(uniformImage(100, 100, 40), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range s.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("surface contains non-finite value %v", v)
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min < 0 || max > 1 {
		t.Errorf("surface not in [0,1]: min=%f max=%f", min, max)
	}
	if max-min < 1e-9 {
		t.Error("expected a nontrivial height range after renormalization")
	}
}

func TestBuild_FlatImageHasNonzeroGradient(t *testing.T) {
	// A featureless input must still slope everywhere thanks to the
	// paraboloid bias, so the ball never stalls.
	s, err := Build(uniformImage(100, 100, 128), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := Gradients(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Grid cell at the default start position (0.5, 0.5).
	i := 50*f.N + 50
	if f.SlopeX[i] == 0 && f.SlopeY[i] == 0 {
		t.Error("expected nonzero gradient at the center of a flat image")
	}
}
