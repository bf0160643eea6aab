package pillars

import (
	"math"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// Ownership scores the O pillar from the shareholding structure: promoter
// holding (higher better), promoter pledge (inverted rank minus an absolute
// penalty curve) and the quarter-on-quarter FII/DII delta. All components
// rank within the peer set.
func Ownership(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) Result {
	w := cfg.Ownership.Weights

	components := []Component{
		{
			Name:   "promoter_hold",
			Raw:    snap.Own.PromoterHoldPct,
			Weight: w.PromoterHold,
			Points: strictPercentile(snap.Own.PromoterHoldPct, peers,
				func(s domain.Snapshot) domain.Metric { return s.Own.PromoterHoldPct }, true),
		},
		{
			Name:   "pledge",
			Raw:    snap.Own.PromoterPledgeFrac,
			Weight: w.Pledge,
			Points: pledgeScore(cfg, snap, peers),
		},
		{
			Name:   "fii_dii_change",
			Raw:    snap.Own.FIIDIIDeltaPP,
			Weight: w.FIIDIIChange,
			Points: strictPercentile(snap.Own.FIIDIIDeltaPP, peers,
				func(s domain.Snapshot) domain.Metric { return s.Own.FIIDIIDeltaPP }, true),
		},
	}
	return aggregate(components)
}

// pledgeScore ranks the pledge fraction inverted (lower pledge is better)
// then subtracts the absolute pledge penalty from the curve, floored at 0.
func pledgeScore(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) float64 {
	pledge := snap.Own.PromoterPledgeFrac
	if !pledge.Valid {
		return 50
	}
	base := strictPercentile(pledge, peers,
		func(s domain.Snapshot) domain.Metric { return s.Own.PromoterPledgeFrac }, false)
	penalty := PledgePenalty(cfg.Ownership.PledgePenaltyCurve, pledge.Value)
	return math.Max(0, base-penalty)
}

// PledgePenalty interpolates the piecewise-linear pledge penalty curve at a
// pledge fraction. Fractions beyond the last node take its penalty; negative
// or absent fractions cost nothing.
func PledgePenalty(curve []config.CurvePoint, fraction float64) float64 {
	if len(curve) == 0 || fraction < 0 {
		return 0
	}
	for i := 0; i+1 < len(curve); i++ {
		x1, y1 := curve[i].Fraction, curve[i].Penalty
		x2, y2 := curve[i+1].Fraction, curve[i+1].Penalty
		if fraction >= x1 && fraction <= x2 {
			if x2 == x1 {
				return y1
			}
			return y1 + (y2-y1)*(fraction-x1)/(x2-x1)
		}
	}
	return curve[len(curve)-1].Penalty
}

// strictPercentile is the share of present peer values strictly beaten by
// the target, scaled to 0-100. higherBetter false inverts the comparison.
// Fewer than two present values is neutral.
func strictPercentile(target domain.Metric, peers domain.PeerSet, get func(domain.Snapshot) domain.Metric, higherBetter bool) float64 {
	if !target.Valid {
		return 50
	}
	n, beaten := 0, 0
	for _, m := range peers.Members {
		v := get(m)
		if !v.Valid {
			continue
		}
		n++
		if higherBetter && v.Value < target.Value {
			beaten++
		}
		if !higherBetter && v.Value > target.Value {
			beaten++
		}
	}
	if n <= 1 {
		return 50
	}
	return domain.Clamp(float64(beaten)/float64(n)*100, 0, 100)
}
