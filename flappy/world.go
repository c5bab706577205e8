// Package flappy simulates the pipe gauntlet the fellers fly through.
//
// Every feller of a population shares one World, so all of them face the
// same pipes. A World is not safe for concurrent use; run independent
// episodes in separate Worlds.
package flappy

import (
	"context"
	"math/rand"
)

// World is one episode of the game.
type World struct {
	Config  WorldConfig
	Pipes   []Pipe    // Ordered by X, left to right
	Fellers []*Feller // One per brain, in the order the brains were given
	steps   int
	rng     *rand.Rand
}

// NewWorld creates a world with one feller per brain. A nil brain yields a
// feller that never flaps.
func NewWorld(cfg WorldConfig, rng *rand.Rand, brains []Brain) *World {
	w := &World{
		Config:  cfg,
		Fellers: make([]*Feller, len(brains)),
		rng:     rng,
	}
	for i, b := range brains {
		w.Fellers[i] = newFeller(&w.Config, b)
	}
	return w
}

// Steps returns the number of steps simulated so far.
func (w *World) Steps() int {
	return w.steps
}

// Step simulates a single step: pipes first, then every living feller.
func (w *World) Step() {
	w.stepPipes()
	for _, f := range w.Fellers {
		if f.Alive {
			w.stepFeller(f)
		}
	}
	w.steps++
}

// stepPipes moves the pipes ahead, occasionally spawning new ones.
func (w *World) stepPipes() {
	cfg := &w.Config
	if len(w.Pipes) == 0 || w.rng.Float64() < cfg.PipeProbability {
		spawnAllowed := true
		if n := len(w.Pipes); n > 0 {
			spawnAllowed = w.Pipes[n-1].X+cfg.PipeMinDistance < cfg.Width
		}
		if spawnAllowed {
			w.Pipes = append(w.Pipes, randomPipe(cfg, w.rng))
		}
	}

	kept := w.Pipes[:0]
	for _, p := range w.Pipes {
		p.X -= cfg.HSpeed
		if p.X+cfg.PipeWidth > 0 {
			kept = append(kept, p)
		}
	}
	w.Pipes = kept
}

// stepFeller applies the brain's decision, gravity and collisions.
func (w *World) stepFeller(f *Feller) {
	cfg := &w.Config
	if p, ok := w.NextPipe(); ok {
		if f.wantsFlap(f.Sense(cfg, p)) {
			f.Speed -= cfg.Lift
		}
	}

	f.Speed = clamp(f.Speed+cfg.Gravity, -cfg.FellerMaxSpeed, cfg.FellerMaxSpeed)
	f.Y += f.Speed

	if f.Y < 0 || f.Y > cfg.Height {
		w.kill(f)
		return
	}
	for _, p := range w.Pipes {
		if f.collides(cfg, p) {
			w.kill(f)
			return
		}
	}
}

func (w *World) kill(f *Feller) {
	f.Alive = false
	f.StepsSurvived = w.steps
}

// NextPipe returns the closest pipe still ahead of the fellers.
func (w *World) NextPipe() (Pipe, bool) {
	for _, p := range w.Pipes {
		if p.X > w.Config.FellerX {
			return p, true
		}
	}
	return Pipe{}, false
}

// Alive reports whether at least one feller is still flying.
func (w *World) Alive() bool {
	for _, f := range w.Fellers {
		if f.Alive {
			return true
		}
	}
	return false
}

// Survivors returns the number of fellers still flying.
func (w *World) Survivors() int {
	n := 0
	for _, f := range w.Fellers {
		if f.Alive {
			n++
		}
	}
	return n
}

// Results returns the steps survived by each feller, in feller order.
// Fellers still alive report the current step count.
func (w *World) Results() []int {
	res := make([]int, len(w.Fellers))
	for i, f := range w.Fellers {
		if f.Alive {
			res[i] = w.steps
		} else {
			res[i] = f.StepsSurvived
		}
	}
	return res
}

// Run steps the world until every feller is dead, maxSteps is reached
// (maxSteps <= 0 means no cap) or ctx is done. onStep, when non-nil, runs
// after every step; a non-nil error from it stops the run and is returned.
// Fellers alive at the cap are credited with maxSteps.
func (w *World) Run(ctx context.Context, maxSteps int, onStep func(*World) error) error {
	for w.Alive() {
		if maxSteps > 0 && w.steps >= maxSteps {
			for _, f := range w.Fellers {
				if f.Alive {
					f.StepsSurvived = maxSteps
				}
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		w.Step()
		if onStep != nil {
			if err := onStep(w); err != nil {
				return err
			}
		}
	}
	return nil
}
