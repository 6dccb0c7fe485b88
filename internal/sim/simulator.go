package sim

import (
	"fmt"
	"image"
	"math"

	"github.com/aliskhannn/line-draw/internal/surface"
)

// Physics constants. Gravity is negative so that a positive slope
// accelerates the ball toward decreasing height.
const (
	gravity         = -1e-6
	initialVelocity = 1e-5

	// positionMax keeps positions strictly below 1.0 after clamping.
	positionMax = 0.9999

	// DefaultProgressInterval is the step count between progress callbacks.
	DefaultProgressInterval = 10000
)

// Config holds the parameters of a single simulation run.
type Config struct {
	BlurSigma  float64
	Iterations int
	StartX     float64
	StartY     float64

	// ProgressInterval overrides DefaultProgressInterval when positive.
	ProgressInterval int
}

// Progress reports how far a running simulation has advanced.
type Progress struct {
	CurrentIteration int
	TotalIterations  int
	Percent          float64
	TrajectoryPoints int
}

// Point is a trajectory sample in unit-square coordinates.
type Point struct {
	X, Y float64
}

// Simulator rolls a ball across a height field and records its path.
// The surface and its gradient field are immutable for the simulator's
// lifetime; per-run state lives on the stack of Run.
type Simulator struct {
	surface *surface.Surface
	field   *surface.Field
}

// New precomputes the gradient field for the given surface.
func New(s *surface.Surface) (*Simulator, error) {
	f, err := surface.Gradients(s)
	if err != nil {
		return nil, fmt.Errorf("compute gradients: %w", err)
	}

	return &Simulator{surface: s, field: f}, nil
}

// slopeAt samples the gradient at unit-square coordinates using
// nearest-neighbor lookup. Sub-cell interpolation is deliberately not
// performed; trajectories depend on this exact sampling.
func (s *Simulator) slopeAt(x, y float64) (float64, float64) {
	n := s.field.N

	px := int(x * float64(n))
	if px < 0 {
		px = 0
	} else if px > n-1 {
		px = n - 1
	}

	py := int(y * float64(n))
	if py < 0 {
		py = 0
	} else if py > n-1 {
		py = n - 1
	}

	i := py*n + px
	return s.field.SlopeX[i], s.field.SlopeY[i]
}

// accelFromSlope converts a slope into the along-axis acceleration of a
// body on an inclined plane: g * sin(theta) * cos(theta).
func accelFromSlope(slope float64) float64 {
	theta := math.Atan(slope)
	return gravity * math.Sin(theta) * math.Cos(theta)
}

// Run executes the full simulation and returns the trajectory, which has
// exactly Iterations+1 points. onProgress, when non-nil, is invoked every
// ProgressInterval steps from the calling goroutine. The loop always runs
// to completion; there is no convergence cutoff.
func (s *Simulator) Run(cfg Config, onProgress func(Progress)) ([]Point, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}

	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	px, py := cfg.StartX, cfg.StartY
	vx, vy := initialVelocity, initialVelocity

	trajectory := make([]Point, 0, cfg.Iterations+1)
	trajectory = append(trajectory, Point{X: px, Y: py})

	for i := 0; i < cfg.Iterations; i++ {
		sx, sy := s.slopeAt(px, py)

		vx += accelFromSlope(sx)
		vy += accelFromSlope(sy)

		px += vx
		py += vy

		// Elastic bounce, per axis. Each axis undoes its own position
		// update with the velocity it was moved by, so simultaneous
		// violations on both axes compose independently.
		if px >= 1.0 || px < 0.0 {
			px -= vx
			vx = -vx
		}
		if py >= 1.0 || py < 0.0 {
			py -= vy
			vy = -vy
		}

		px = clamp(px, 0, positionMax)
		py = clamp(py, 0, positionMax)

		trajectory = append(trajectory, Point{X: px, Y: py})

		if onProgress != nil && i > 0 && i%interval == 0 {
			onProgress(Progress{
				CurrentIteration: i,
				TotalIterations:  cfg.Iterations,
				Percent:          float64(i) / float64(cfg.Iterations) * 100,
				TrajectoryPoints: len(trajectory),
			})
		}
	}

	return trajectory, nil
}

// Trace preprocesses the image into a surface and runs a full simulation
// on it.
func Trace(img image.Image, cfg Config, onProgress func(Progress)) ([]Point, error) {
	srf, err := surface.Build(img, cfg.BlurSigma)
	if err != nil {
		return nil, fmt.Errorf("build surface: %w", err)
	}

	sim, err := New(srf)
	if err != nil {
		return nil, err
	}

	return sim.Run(cfg, onProgress)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
