// Package ranking orders a pattern's solutions by observed effectiveness.
package ranking

import (
	"sort"

	"errorshare/backend/pkg/models"
)

// DefaultPriorWeight treats every solution as having two virtual feedback
// observations at 0.5, so one or two real reports cannot make it look
// perfect or worthless.
const DefaultPriorWeight = 2.0

// SmoothedRate returns the additively smoothed success rate for a solution
// with the given helpful count out of total feedback events. More feedback
// monotonically narrows the rate toward the raw empirical average.
func SmoothedRate(helpful, total int64, priorWeight float64) float64 {
	if priorWeight < 0 {
		priorWeight = 0
	}
	if total < 0 {
		total = 0
	}
	denom := float64(total) + priorWeight
	if denom == 0 {
		return 0.5
	}
	return (float64(helpful) + priorWeight*0.5) / denom
}

// Ranker sorts solutions for presentation.
type Ranker struct {
	PriorWeight float64
}

// Sort orders solutions in place: verified first, then success rate desc,
// then votes desc, then created_at asc so the oldest equivalent solution
// wins ties.
func (Ranker) Sort(solutions []*models.Solution) {
	sort.SliceStable(solutions, func(i, j int) bool {
		a, b := solutions[i], solutions[j]
		if a.Verified != b.Verified {
			return a.Verified
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
