package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/aliskhannn/line-draw/internal/sim"
)

func drawnPixels(img image.Image) int {
	b := img.Bounds()
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || bl != 0xffff {
				count++
			}
		}
	}
	return count
}

func TestTrajectory_DrawsShortSegments(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 100

	img := Trajectory([]sim.Point{
		{X: 0.2, Y: 0.2},
		{X: 0.25, Y: 0.2},
		{X: 0.25, Y: 0.25},
	}, opts)

	if drawnPixels(img) == 0 {
		t.Error("expected drawn pixels for short segments")
	}
}

func TestTrajectory_SkipsLongSegments(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 100

	// A single segment spanning 60% of the canvas: a bounce artifact,
	// must not be drawn.
	img := Trajectory([]sim.Point{
		{X: 0.2, Y: 0.5},
		{X: 0.8, Y: 0.5},
	}, opts)

	if n := drawnPixels(img); n != 0 {
		t.Errorf("expected blank canvas, got %d drawn pixels", n)
	}
}

func TestTrajectory_SkipsOnlyTheJump(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 100

	// Short, jump, short: the two short segments render, the jump does not.
	img := Trajectory([]sim.Point{
		{X: 0.1, Y: 0.1},
		{X: 0.15, Y: 0.1},
		{X: 0.85, Y: 0.9},
		{X: 0.9, Y: 0.9},
	}, opts)

	if drawnPixels(img) == 0 {
		t.Fatal("expected the short segments to be drawn")
	}

	// The jump's midpoint region must stay blank.
	r, g, b, _ := img.At(50, 50).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Error("expected no pixel at the skipped jump's midpoint")
	}
}

func TestTrajectory_VelocityWidth(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 100
	opts.VelocityWidth = true

	// A slow segment followed by a fast one: both below the skip
	// threshold, the fast one should paint more pixels.
	slowOnly := Trajectory([]sim.Point{
		{X: 0.5, Y: 0.48},
		{X: 0.5, Y: 0.5},
	}, opts)

	img := Trajectory([]sim.Point{
		{X: 0.5, Y: 0.48},
		{X: 0.5, Y: 0.5},
		{X: 0.5, Y: 0.58},
	}, opts)

	if drawnPixels(img) <= drawnPixels(slowOnly) {
		t.Error("expected the fast segment to add drawn pixels")
	}
}

func TestEncodePNG(t *testing.T) {
	opts := DefaultOptions()
	opts.Size = 50

	img := Trajectory([]sim.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}}, opts)

	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected PNG bytes")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Size != 800 {
		t.Errorf("default size = %d, want 800", opts.Size)
	}
	if opts.Background != color.White || opts.Line != color.Black {
		t.Error("default palette should be black on white")
	}
}
