// Package guardrails applies the fixed-order rule sequence that constrains
// a composite score's band after risk adjustment. Rules only ever make the
// band more conservative; SectorBear in investor mode additionally adjusts
// the score itself before re-banding.
package guardrails

import (
	"strings"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// Guardrail flag names, in the order the rules run. The order is fixed:
// reordering changes which flags fire against an already-capped band and
// breaks reproducibility of persisted outputs.
const (
	FlagLowDataHold = "LowDataHold"
	FlagIlliquidity = "Illiquidity"
	FlagPledgeCap   = "PledgeCap"
	FlagHighRiskCap = "HighRiskCap"
	FlagSectorBear  = "SectorBear"
	FlagLowCoverage = "LowCoverage"
)

// Inputs carries everything the rules read. Score is the post-penalty
// composite the band derives from.
type Inputs struct {
	Score           float64
	Mode            domain.Mode
	Confidence      float64
	ImputedFraction float64
	SZ              float64
	RiskPenalty     float64
	MTVCr           float64
	PledgeFrac      domain.Metric
}

// Outcome is the guardrail-adjusted result.
type Outcome struct {
	Score float64
	Band  domain.Band
	Flags []string
}

type rule struct {
	flag  string
	apply func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool)
}

func capAtHold(score float64, band domain.Band) (float64, domain.Band) {
	return score, domain.MostConservative(band, domain.BandHold)
}

var rules = []rule{
	{FlagLowDataHold, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.Confidence < cfg.Guardrails.Confidence {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		return score, band, false
	}},
	{FlagIlliquidity, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.MTVCr < cfg.IlliquidityThreshold(in.Mode) {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		return score, band, false
	}},
	{FlagPledgeCap, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.PledgeFrac.Valid && in.PledgeFrac.Value > cfg.Guardrails.PledgeCap {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		return score, band, false
	}},
	{FlagHighRiskCap, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.RiskPenalty >= cfg.Guardrails.HighRiskRP {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		return score, band, false
	}},
	{FlagSectorBear, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.SZ > cfg.Guardrails.SectorBearSZ {
			return score, band, false
		}
		if in.Mode == domain.ModeTrader {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		// Investor mode pays the bear penalty in score, then re-bands;
		// the merge keeps any cap an earlier rule already imposed.
		score = max(0, score-cfg.Guardrails.SectorBearPenalty)
		band = domain.MostConservative(band, BandFor(cfg, score))
		return score, band, true
	}},
	{FlagLowCoverage, func(cfg *config.Config, in Inputs, score float64, band domain.Band) (float64, domain.Band, bool) {
		if in.ImputedFraction >= cfg.Guardrails.LowCoverage {
			score, band = capAtHold(score, band)
			return score, band, true
		}
		return score, band, false
	}},
}

// Apply runs the rule sequence against a scored snapshot.
func Apply(cfg *config.Config, in Inputs) Outcome {
	score := in.Score
	band := BandFor(cfg, score)
	flags := make([]string, 0, len(rules))

	for _, r := range rules {
		var fired bool
		score, band, fired = r.apply(cfg, in, score, band)
		if fired {
			flags = append(flags, r.flag)
		}
	}
	return Outcome{Score: score, Band: band, Flags: flags}
}

// BandFor maps a score to its band by the configured cutoffs.
func BandFor(cfg *config.Config, score float64) domain.Band {
	switch {
	case score >= cfg.Banding.StrongBuy:
		return domain.BandStrongBuy
	case score >= cfg.Banding.Buy:
		return domain.BandBuy
	case score >= cfg.Banding.Hold:
		return domain.BandHold
	default:
		return domain.BandAvoid
	}
}

// Summary renders triggered flags for logs and explanations.
func Summary(flags []string) string {
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ",")
}
