package trainer

import (
	"sync"
	"time"

	"github.com/baldhumanity/flappyfeller/flappy"
)

// Snapshot is the live state of a training run.
type Snapshot struct {
	RunID      string    `json:"run_id"`
	Strategy   string    `json:"strategy"`
	Generation int       `json:"generation"`
	Survivors  int       `json:"survivors"`
	Population int       `json:"population"`
	Speed      int       `json:"speed"`
	BestScore  float64   `json:"best_score"`
	Running    bool      `json:"running"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Monitor publishes the progress of a run to readers on other goroutines,
// such as the HTTP API. It also owns the simulation speed of paced runs.
type Monitor struct {
	mu    sync.RWMutex
	snap  Snapshot
	frame string
	speed *flappy.Speed
}

// NewMonitor creates a monitor controlling speed. A nil speed gets a fresh one.
func NewMonitor(speed *flappy.Speed) *Monitor {
	if speed == nil {
		speed = flappy.NewSpeed()
	}
	return &Monitor{speed: speed}
}

// Speed returns the speed control shared with the trainer.
func (m *Monitor) Speed() *flappy.Speed {
	return m.speed
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snap
	m.mu.RUnlock()
	s.Speed = m.speed.Get()
	return s
}

// Frame returns the last rendered frame, empty until a paced run drew one.
func (m *Monitor) Frame() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame
}

func (m *Monitor) update(fn func(s *Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snap)
	m.snap.UpdatedAt = time.Now()
}

func (m *Monitor) start(runID, strategy string) {
	m.update(func(s *Snapshot) {
		*s = Snapshot{RunID: runID, Strategy: strategy, Running: true}
	})
}

func (m *Monitor) beginGeneration(generation, population int) {
	m.update(func(s *Snapshot) {
		s.Generation = generation
		s.Population = population
		s.Survivors = population
	})
}

func (m *Monitor) survivors(n int) {
	m.update(func(s *Snapshot) { s.Survivors = n })
}

func (m *Monitor) publishFrame(survivors int, frame string) {
	m.mu.Lock()
	m.frame = frame
	m.mu.Unlock()
	m.survivors(survivors)
}

func (m *Monitor) best(score float64) {
	m.update(func(s *Snapshot) {
		if score > s.BestScore {
			s.BestScore = score
		}
	})
}

func (m *Monitor) stop() {
	m.update(func(s *Snapshot) { s.Running = false })
}
