package render

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/line-draw/internal/sim"
)

// maxSegmentFraction filters out segments produced by boundary bounces:
// any segment longer than this fraction of the canvas is not drawn.
const maxSegmentFraction = 0.1

// Options controls how a trajectory is rasterized.
type Options struct {
	Size       int     // output canvas size (square), pixels
	LineWidth  float64 // stroke width for fixed-width rendering
	Background color.Color
	Line       color.Color

	// VelocityWidth maps per-segment speed into [MinWidth, MaxWidth]
	// instead of drawing with the fixed LineWidth.
	VelocityWidth bool
	MinWidth      float64
	MaxWidth      float64
}

// DefaultOptions mirrors the renderer defaults of the original tool:
// 800px canvas, thin black line on white.
func DefaultOptions() Options {
	return Options{
		Size:       800,
		LineWidth:  1.0,
		Background: color.White,
		Line:       color.Black,
		MinWidth:   0.5,
		MaxWidth:   3.0,
	}
}

// Trajectory rasterizes consecutive trajectory points as line segments on
// a square canvas, skipping bounce artifacts longer than 10% of the canvas.
func Trajectory(points []sim.Point, opts Options) image.Image {
	dc := gg.NewContext(opts.Size, opts.Size)
	dc.SetColor(opts.Background)
	dc.Clear()
	dc.SetColor(opts.Line)

	size := float64(opts.Size)
	maxSegment := size * maxSegmentFraction

	var speeds []float64
	if opts.VelocityWidth {
		speeds = segmentSpeeds(points, size)
	}

	for i := 0; i+1 < len(points); i++ {
		x1, y1 := points[i].X*size, points[i].Y*size
		x2, y2 := points[i+1].X*size, points[i+1].Y*size

		if math.Hypot(x2-x1, y2-y1) > maxSegment {
			continue
		}

		width := opts.LineWidth
		if opts.VelocityWidth {
			width = opts.MinWidth + speeds[i+1]*(opts.MaxWidth-opts.MinWidth)
		}
		if width < 1 {
			width = 1
		}

		dc.SetLineWidth(width)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	return dc.Image()
}

// segmentSpeeds returns per-point step distances in canvas space,
// normalized against the run's maximum. speeds[0] is zero.
func segmentSpeeds(points []sim.Point, size float64) []float64 {
	speeds := make([]float64, len(points))

	max := 0.0
	for i := 1; i < len(points); i++ {
		dx := (points[i].X - points[i-1].X) * size
		dy := (points[i].Y - points[i-1].Y) * size
		speeds[i] = math.Hypot(dx, dy)
		if speeds[i] > max {
			max = speeds[i]
		}
	}

	if max > 0 {
		for i := range speeds {
			speeds[i] /= max
		}
	}

	return speeds
}

// EncodePNG writes the image to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}
