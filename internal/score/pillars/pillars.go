// Package pillars computes the six pillar scores F, T, R, O, Q and S. Each
// pillar returns a 0-100 score plus a per-component breakdown used in score
// explanations.
package pillars

import (
	"github.com/greyoak/score/internal/domain"
)

// Component is one scored sub-signal of a pillar.
type Component struct {
	Name    string  `json:"name"`
	Raw     domain.Metric `json:"raw"`
	Points  float64 `json:"points"`
	Weight  float64 `json:"weight"`
	Skipped bool    `json:"skipped,omitempty"`
}

// Result is a pillar score with its breakdown.
type Result struct {
	Score      float64     `json:"score"`
	Components []Component `json:"components"`
}

// aggregate folds components into a weighted score, renormalizing over the
// components that were actually available. All components unavailable yields
// a neutral 50.
func aggregate(components []Component) Result {
	var sum, weight float64
	for _, c := range components {
		if c.Skipped {
			continue
		}
		sum += c.Points * c.Weight
		weight += c.Weight
	}
	score := 50.0
	if weight > 0 {
		score = sum / weight
	}
	return Result{Score: domain.Clamp(score, 0, 100), Components: components}
}
