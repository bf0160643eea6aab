package pillars

import (
	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// RelativeStrength scores the R pillar: risk-adjusted alpha versus the
// sector and market benchmarks, blended across 1M/3M/6M horizons, then
// percentile-ranked against the peer set. A horizon with missing return or
// non-positive volatility contributes zero alpha.
func RelativeStrength(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet, market domain.MarketBenchmark) Result {
	sector := sectorReturns(peers)

	alphas := make([]float64, len(peers.Members))
	for i, member := range peers.Members {
		alphas[i] = weightedAlpha(cfg, member.Price, sector, market)
	}

	idx := peers.IndexOf(snap.Ticker)
	target := weightedAlpha(cfg, snap.Price, sector, market)

	score := percentileOf(target, alphas, idx)
	return Result{
		Score: score,
		Components: []Component{
			{Name: "weighted_alpha", Raw: domain.M(target), Points: score, Weight: 1},
		},
	}
}

type horizonReturns struct {
	ret21d, ret63d, ret126d float64
}

// sectorReturns is the equal-weighted mean return per horizon across the
// peer set. Horizons with no present values fall back to zero.
func sectorReturns(peers domain.PeerSet) horizonReturns {
	mean := func(get func(domain.Snapshot) domain.Metric) float64 {
		sum, n := 0.0, 0
		for _, m := range peers.Members {
			if v := get(m); v.Valid {
				sum += v.Value
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}
	return horizonReturns{
		ret21d:  mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret21d }),
		ret63d:  mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret63d }),
		ret126d: mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret126d }),
	}
}

func weightedAlpha(cfg *config.Config, p domain.PriceRecord, sector horizonReturns, market domain.MarketBenchmark) float64 {
	hw := cfg.RelativeStrength.HorizonWeights
	// 1M uses the 20-day volatility; longer horizons use the 60-day.
	a1 := horizonAlpha(cfg, p.Ret21d, p.Sigma20, sector.ret21d, market.Ret21d)
	a3 := horizonAlpha(cfg, p.Ret63d, p.Sigma60, sector.ret63d, market.Ret63d)
	a6 := horizonAlpha(cfg, p.Ret126d, p.Sigma60, sector.ret126d, market.Ret126d)
	return a1*hw.M1 + a3*hw.M3 + a6*hw.M6
}

func horizonAlpha(cfg *config.Config, ret, vol domain.Metric, sectorRet, marketRet float64) float64 {
	if !ret.Valid || !vol.Valid || vol.Value <= 0 {
		return 0
	}
	aw := cfg.RelativeStrength.AlphaWeights
	sectorAlpha := (ret.Value - sectorRet) / vol.Value
	marketAlpha := (ret.Value - marketRet) / vol.Value
	return sectorAlpha*aw.Sector + marketAlpha*aw.Market
}

// percentileOf converts the target's weighted alpha into an averaged-tie
// percentile rank over the peer alphas, scaled to 0-100. When the target is
// a peer member its own alpha counts once; otherwise the target joins the
// population. Fewer than two observations is neutral.
func percentileOf(target float64, alphas []float64, memberIdx int) float64 {
	pop := alphas
	if memberIdx < 0 {
		pop = append(append([]float64(nil), alphas...), target)
	}
	n := len(pop)
	if n < 2 {
		return 50
	}
	less, equal := 0, 0
	for _, a := range pop {
		switch {
		case a < target:
			less++
		case a == target:
			equal++
		}
	}
	// Averaged rank of the tied block, as pct of population.
	rank := float64(less) + (float64(equal)+1)/2
	return rank / float64(n) * 100
}
