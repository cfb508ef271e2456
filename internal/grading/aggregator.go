// Package grading derives a course final grade from weighted assignment scores.
package grading

import (
	"math"
	"sort"
)

// Score is a single graded assignment as seen by the aggregator.
type Score struct {
	Grade  float64 `json:"grade"`
	Weight float64 `json:"weight"`
}

// FinalGrade returns Σ(grade·weight) / Σ(weight), rounded to two decimals.
//
// ok is false when there is nothing to aggregate: no scores, or no score with
// a positive weight. Callers must leave the stored final grade untouched in
// that case rather than writing zero.
//
// Scores are summed in a canonical order, so any permutation of the input
// yields a bit-identical result.
func FinalGrade(scores []Score) (grade float64, ok bool) {
	usable := make([]Score, 0, len(scores))
	for _, s := range scores {
		if !(s.Weight > 0) || math.IsNaN(s.Grade) || math.IsInf(s.Grade, 0) || math.IsInf(s.Weight, 0) {
			continue
		}
		usable = append(usable, s)
	}
	if len(usable) == 0 {
		return 0, false
	}

	sort.Slice(usable, func(i, j int) bool {
		if usable[i].Grade != usable[j].Grade {
			return usable[i].Grade < usable[j].Grade
		}
		return usable[i].Weight < usable[j].Weight
	})

	var weighted, total float64
	for _, s := range usable {
		weighted += s.Grade * s.Weight
		total += s.Weight
	}
	if total == 0 {
		return 0, false
	}

	return Round(weighted / total), true
}

// Round rounds to the two decimals final grades are stored with.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Equal compares two optional grades at storage precision.
func Equal(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Round(*a) == Round(*b)
}
