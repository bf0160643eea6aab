// Package normalize converts raw metric values to 0-100 point scores within
// a peer group. Large groups with dispersion use a sector z-score mapping;
// small or degenerate groups fall back to an empirical percentile rank.
package normalize

import (
	"math"
	"sort"

	"github.com/greyoak/score/internal/domain"
)

const (
	// Tiny guards every divisor against zero dispersion.
	Tiny = 1e-8

	// Neutral is the score assigned when a value cannot be ranked.
	Neutral = 50.0

	center = 50.0
	scale  = 15.0

	// smallGroup is the peer count below which the percentile path applies.
	smallGroup = 6
)

// Method records which path produced a point score.
type Method string

const (
	MethodZScore  Method = "zscore"
	MethodECDF    Method = "ecdf"
	MethodNeutral Method = "neutral"
)

// Result is one normalized observation.
type Result struct {
	Points  float64
	Method  Method
	Imputed bool
}

// ZScore computes the sector-relative z for a value. Direction is flipped
// when lower values are better so positive z always means favorable.
func ZScore(value, median, std float64, higherBetter bool) float64 {
	if higherBetter {
		return (value - median) / (std + Tiny)
	}
	return (median - value) / (std + Tiny)
}

// PointsFromZ maps a z-score onto the 0-100 scale: clamp(50 + 15z).
func PointsFromZ(z float64) float64 {
	return domain.Clamp(center+scale*z, 0, 100)
}

// percentilePoints maps an averaged rank (1 = worst) to points via
// rank/(n+1)*100.
func percentilePoints(rank float64, n int) float64 {
	if n < 1 {
		return Neutral
	}
	return rank / float64(n+1) * 100
}

// Median returns the median of vals. vals must be non-empty; it is not
// modified.
func Median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// SampleStd returns the sample standard deviation (n-1 denominator) of vals.
// Fewer than two values yields 0.
func SampleStd(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(n)
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// averageRanks assigns 1-based ranks ascending by value with ties sharing
// the mean of their rank positions.
func averageRanks(vals []float64) []float64 {
	n := len(vals)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && vals[order[j+1]] == vals[order[i]] {
			j++
		}
		// positions i..j are tied; their 1-based ranks average to
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Scores normalizes each observation of one metric within a single peer
// group. Missing observations score Neutral and are marked imputed. Groups
// with fewer than two present values score Neutral across the board.
func Scores(values []domain.Metric, higherBetter bool) []Result {
	out := make([]Result, len(values))

	present := make([]float64, 0, len(values))
	for _, m := range values {
		if m.Valid {
			present = append(present, m.Value)
		}
	}
	n := len(present)

	if n <= 1 {
		for i, m := range values {
			out[i] = Result{Points: Neutral, Method: MethodNeutral, Imputed: !m.Valid}
		}
		return out
	}

	median := Median(present)
	std := SampleStd(present)

	if n >= smallGroup && std > Tiny {
		for i, m := range values {
			if !m.Valid {
				out[i] = Result{Points: Neutral, Method: MethodNeutral, Imputed: true}
				continue
			}
			z := ZScore(m.Value, median, std, higherBetter)
			out[i] = Result{Points: PointsFromZ(z), Method: MethodZScore}
		}
		return out
	}

	// Percentile path: rank present values only, ties averaged.
	ranked := make([]float64, 0, n)
	for _, m := range values {
		if m.Valid {
			v := m.Value
			if !higherBetter {
				v = -v
			}
			ranked = append(ranked, v)
		}
	}
	ranks := averageRanks(ranked)

	ri := 0
	for i, m := range values {
		if !m.Valid {
			out[i] = Result{Points: Neutral, Method: MethodNeutral, Imputed: true}
			continue
		}
		out[i] = Result{Points: percentilePoints(ranks[ri], n), Method: MethodECDF}
		ri++
	}
	return out
}

// Score normalizes a single target value against its peer values. The target
// participates in the group statistics, matching a full cross-sectional run.
func Score(target domain.Metric, peers []domain.Metric, higherBetter bool) Result {
	group := make([]domain.Metric, 0, len(peers)+1)
	group = append(group, target)
	group = append(group, peers...)
	return Scores(group, higherBetter)[0]
}
