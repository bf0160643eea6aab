package pillars

import (
	"math"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/score/normalize"
)

// SectorMomentum scores the S pillar for one sector and reports S_z, the
// weighted cross-sector momentum z-score the SectorBear guardrail reads.
//
// Per horizon each sector's excess return over the market is normalized by
// its own volatility, then z-scored across sectors. The horizon z-scores
// blend 1M/3M/6M and the blend is percentile-ranked into the 0-100 score.
// With fewer than two sectors there is no cross-section: S_z is 0 and the
// score neutral.
func SectorMomentum(cfg *config.Config, sector string, aggs []domain.SectorAggregate, market domain.MarketBenchmark) (Result, float64) {
	neutral := Result{Score: 50, Components: []Component{{Name: "weighted_s_z", Raw: domain.M(0), Points: 50, Weight: 1}}}
	if len(aggs) < 2 {
		return neutral, 0
	}

	idx := -1
	for i, a := range aggs {
		if a.Sector == sector {
			idx = i
			break
		}
	}
	if idx < 0 {
		return neutral, 0
	}

	hw := cfg.SectorMomentum.HorizonWeights
	weighted := make([]float64, len(aggs))
	for _, horizon := range []struct {
		weight    float64
		marketRet float64
		get       func(domain.SectorAggregate) float64
	}{
		{hw.M1, market.Ret21d, func(a domain.SectorAggregate) float64 { return a.Ret21d }},
		{hw.M3, market.Ret63d, func(a domain.SectorAggregate) float64 { return a.Ret63d }},
		{hw.M6, market.Ret126d, func(a domain.SectorAggregate) float64 { return a.Ret126d }},
	} {
		zs := horizonZScores(aggs, horizon.marketRet, horizon.get)
		for i := range weighted {
			weighted[i] += zs[i] * horizon.weight
		}
	}

	sz := weighted[idx]
	score := sectorPercentile(weighted, idx)
	return Result{
		Score: score,
		Components: []Component{
			{Name: "weighted_s_z", Raw: domain.M(sz), Points: score, Weight: 1},
		},
	}, sz
}

// horizonZScores computes the cross-sector z of volatility-normalized
// excess returns for one horizon. Degenerate cross-sections yield zeros.
func horizonZScores(aggs []domain.SectorAggregate, marketRet float64, get func(domain.SectorAggregate) float64) []float64 {
	exNorm := make([]float64, len(aggs))
	for i, a := range aggs {
		exNorm[i] = (get(a) - marketRet) / (a.Sigma20 + normalize.Tiny)
	}

	mean := 0.0
	for _, v := range exNorm {
		mean += v
	}
	mean /= float64(len(exNorm))
	std := normalize.SampleStd(exNorm)

	zs := make([]float64, len(aggs))
	if len(aggs) > 1 && std > normalize.Tiny {
		for i, v := range exNorm {
			zs[i] = (v - mean) / std
		}
	}
	return zs
}

// sectorPercentile ranks one sector's blend among all sectors, averaging
// the strict and weak percentile so ties land mid-block.
func sectorPercentile(values []float64, idx int) float64 {
	n := len(values)
	if n < 2 {
		return 50
	}
	target := values[idx]
	less, lessEq := 0, 0
	for _, v := range values {
		if v < target {
			less++
		}
		if v <= target {
			lessEq++
		}
	}
	pct := (float64(less) + float64(lessEq)) / 2 / float64(n) * 100
	return math.Min(100, math.Max(0, pct))
}
