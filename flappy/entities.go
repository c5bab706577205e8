package flappy

import (
	"math"
	"math/rand"
)

// NumInputs is the length of the sensor vector handed to a Brain.
const NumInputs = 5

// NumOutputs is the minimum number of outputs a Brain must produce.
// The feller flaps when the first output exceeds the second.
const NumOutputs = 2

// Brain decides whether a feller flaps.
type Brain interface {
	Activate(inputs []float64) ([]float64, error)
}

// Pipe is an obstacle with a hole between Top and Bottom.
type Pipe struct {
	X      float64 // Left edge
	Top    float64 // y of the top of the hole
	Bottom float64 // y of the bottom of the hole
}

// randomPipe spawns a pipe at the right edge with a randomized hole.
func randomPipe(cfg *WorldConfig, rng *rand.Rand) Pipe {
	top := uniform(rng, cfg.PipeMinTop, cfg.PipeMaxTop)
	return Pipe{
		X:      cfg.Width,
		Top:    top,
		Bottom: top + uniform(rng, cfg.PipeMinAperture, cfg.PipeMaxAperture),
	}
}

// Feller is a single agent of the population.
type Feller struct {
	Y             float64
	Speed         float64
	Alive         bool
	StepsSurvived int
	Brain         Brain
}

// newFeller places a feller at the start height.
func newFeller(cfg *WorldConfig, brain Brain) *Feller {
	return &Feller{
		Y:     cfg.Height * cfg.StartHeightRatio,
		Alive: true,
		Brain: brain,
	}
}

// Sense builds the normalized sensor vector for the given pipe.
func (f *Feller) Sense(cfg *WorldConfig, p Pipe) []float64 {
	return []float64{
		f.Y / cfg.Height,
		f.Speed / cfg.FellerMaxSpeed,
		p.X / cfg.Width,
		p.Top / cfg.Height,
		p.Bottom / cfg.Height,
	}
}

// wantsFlap asks the brain for its move. Anything but a clean answer is a no.
func (f *Feller) wantsFlap(inputs []float64) bool {
	if f.Brain == nil {
		return false
	}
	out, err := f.Brain.Activate(inputs)
	if err != nil || len(out) < NumOutputs {
		return false
	}
	return out[0] > out[1]
}

// collides reports whether the feller overlaps the pipe's solid parts.
func (f *Feller) collides(cfg *WorldConfig, p Pipe) bool {
	if math.Abs(p.X-cfg.FellerX) >= cfg.FellerRadius {
		return false
	}
	return f.Y-cfg.FellerRadius < p.Top || f.Y+cfg.FellerRadius > p.Bottom
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
