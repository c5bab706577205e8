package flappy

import (
	"fmt"
	"strings"
	"sync"
)

// Bounds of Speed, in steps per frame.
const (
	MinSpeed = 1
	MaxSpeed = 100
)

// Speed is the number of simulation steps run per displayed frame.
// It is safe for concurrent use and always stays within [MinSpeed, MaxSpeed].
type Speed struct {
	mu sync.Mutex
	n  int
}

// NewSpeed returns a Speed starting at one step per frame.
func NewSpeed() *Speed {
	return &Speed{n: MinSpeed}
}

// Get returns the current number of steps per frame.
func (s *Speed) Get() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *Speed) update(fn func(int) int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = min(max(fn(s.n), MinSpeed), MaxSpeed)
	return s.n
}

// Faster adds one step per frame.
func (s *Speed) Faster() int { return s.update(func(n int) int { return n + 1 }) }

// Slower removes one step per frame.
func (s *Speed) Slower() int { return s.update(func(n int) int { return n - 1 }) }

// Reset goes back to MinSpeed.
func (s *Speed) Reset() int { return s.update(func(int) int { return MinSpeed }) }

// Boost adds ten steps per frame.
func (s *Speed) Boost() int { return s.update(func(n int) int { return n + 10 }) }

// Apply runs a named speed action: faster, slower, reset or boost.
func (s *Speed) Apply(action string) (int, error) {
	switch strings.ToLower(action) {
	case "faster":
		return s.Faster(), nil
	case "slower":
		return s.Slower(), nil
	case "reset":
		return s.Reset(), nil
	case "boost":
		return s.Boost(), nil
	}
	return s.Get(), fmt.Errorf("unknown speed action %q", action)
}

// HUDLine formats the heads-up display shown above every frame.
func HUDLine(generation, survivors, speed int) string {
	return fmt.Sprintf("Generation %d; Fellers: %d; Speed: %d", generation, survivors, speed)
}

// Render draws the world as text: '#' for pipes and '@' for living fellers,
// preceded by the HUD line.
func Render(w *World, generation, speed, cols, rows int) string {
	cfg := &w.Config
	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", cols))
	}
	sx := float64(cols) / cfg.Width
	sy := float64(rows) / cfg.Height

	for _, p := range w.Pipes {
		c0 := max(int(p.X*sx), 0)
		c1 := min(int((p.X+cfg.PipeWidth)*sx), cols-1)
		for r := 0; r < rows; r++ {
			y := (float64(r) + 0.5) / sy
			if y >= p.Top && y <= p.Bottom {
				continue
			}
			for c := c0; c <= c1; c++ {
				grid[r][c] = '#'
			}
		}
	}

	fc := min(int(cfg.FellerX*sx), cols-1)
	for _, f := range w.Fellers {
		if !f.Alive {
			continue
		}
		r := int(f.Y * sy)
		if r >= 0 && r < rows && fc >= 0 {
			grid[r][fc] = '@'
		}
	}

	var b strings.Builder
	b.WriteString(HUDLine(generation, w.Survivors(), speed))
	b.WriteByte('\n')
	for _, line := range grid {
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
