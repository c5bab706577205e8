package runsapi

import "github.com/baldhumanity/flappyfeller/trainer"

// GenerationsResponse lists the per generation statistics of a run.
type GenerationsResponse struct {
	RunID       string            `json:"run_id"`
	Generations []trainer.Summary `json:"generations"`
}
