// Package risk computes the additive risk penalty (RP) subtracted from the
// weighted pillar blend. Five factors sum and then cap at the sector's RP
// ceiling: liquidity, promoter pledge, volatility, event window and
// governance proxies.
package risk

import (
	"math"
	"time"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// Governance proxy trigger levels. Real governance event feeds would
// replace these financial-stress heuristics.
const (
	lowROEThreshold       = 0.05
	highOPMStdevThreshold = 0.10
)

// earningsLagDays approximates the gap between quarter end and the results
// announcement.
const earningsLagDays = 45

// Breakdown itemizes the penalty factors. Total is capped at the sector
// ceiling; TotalBeforeCap preserves the raw sum for explanations.
type Breakdown struct {
	Liquidity      float64 `json:"liquidity"`
	Pledge         float64 `json:"pledge"`
	Volatility     float64 `json:"volatility"`
	Event          float64 `json:"event"`
	Governance     float64 `json:"governance"`
	TotalBeforeCap float64 `json:"total_before_cap"`
	SectorCap      float64 `json:"sector_cap"`
	Total          float64 `json:"total"`
}

// Compute evaluates the risk penalty for one snapshot at a scoring date.
func Compute(cfg *config.Config, snap domain.Snapshot, mode domain.Mode, asOf time.Time) Breakdown {
	b := Breakdown{
		Liquidity:  liquidityPenalty(cfg, snap.Price.MTVCr(), mode),
		Pledge:     pledgePenalty(cfg, snap.Own.PromoterPledgeFrac),
		Volatility: volatilityPenalty(cfg, snap.Price.Sigma20, snap.SectorGroup),
		Event:      eventPenalty(cfg, snap.Fund.QuarterEnd, asOf),
		Governance: governancePenalty(cfg, snap.Fund),
	}
	b.TotalBeforeCap = b.Liquidity + b.Pledge + b.Volatility + b.Event + b.Governance
	b.SectorCap = cfg.RPCap(snap.SectorGroup)
	b.Total = math.Min(b.TotalBeforeCap, b.SectorCap)
	return b
}

// liquidityPenalty walks the mode's bins descending and takes the first one
// the MTV clears. Negative or zero MTV lands in the bottom bin.
func liquidityPenalty(cfg *config.Config, mtvCr float64, mode domain.Mode) float64 {
	if mtvCr < 0 {
		mtvCr = 0
	}
	bins := cfg.LiquidityBins(mode)
	for _, bin := range bins {
		if mtvCr >= bin.Threshold {
			return bin.Penalty
		}
	}
	if len(bins) > 0 {
		return bins[len(bins)-1].Penalty
	}
	return 0
}

// pledgePenalty is the RP-side pledge charge, separate from the O pillar's
// penalty curve. Bins match on pledge strictly above threshold.
func pledgePenalty(cfg *config.Config, pledge domain.Metric) float64 {
	frac := pledge.Or(0)
	if frac < 0 {
		frac = 0
	}
	for _, bin := range cfg.RiskPenalty.PledgeBins {
		if frac > bin.Threshold {
			return bin.Penalty
		}
	}
	return 0
}

// volatilityPenalty fires when the stock's 20-day volatility exceeds the
// configured multiple of its sector's volatility estimate.
func volatilityPenalty(cfg *config.Config, sigma20 domain.Metric, sector string) float64 {
	if !sigma20.Valid || sigma20.Value <= 0 {
		return 0
	}
	if sigma20.Value > cfg.RiskPenalty.Volatility.Multiplier*cfg.SectorSigma(sector) {
		return cfg.RiskPenalty.Volatility.Penalty
	}
	return 0
}

// eventPenalty charges inside the window around the estimated earnings
// date, taken as quarter end plus the customary reporting lag.
func eventPenalty(cfg *config.Config, quarterEnd domain.Metric, asOf time.Time) float64 {
	if !quarterEnd.Valid || asOf.IsZero() {
		return 0
	}
	qe := time.Unix(int64(quarterEnd.Value), 0).UTC()
	earnings := qe.AddDate(0, 0, earningsLagDays)

	days := earnings.Sub(asOf.UTC()).Hours() / 24
	if math.Abs(days) <= float64(cfg.RiskPenalty.EventWindow.Days) {
		return cfg.RiskPenalty.EventWindow.Penalty
	}
	return 0
}

// governancePenalty proxies governance stress from the financials: very low
// ROE charges the auditor-qualification penalty, erratic operating margins
// the board-resignation one. The sum caps at twice the former.
func governancePenalty(cfg *config.Config, fund domain.FundamentalsRecord) float64 {
	total := 0.0
	if roe := fund.ROE(); roe.Valid && roe.Value < lowROEThreshold {
		total += cfg.RiskPenalty.Governance.AuditorQualification
	}
	if opm := fund.OPMStdev12q; opm.Valid && opm.Value > highOPMStdevThreshold {
		total += cfg.RiskPenalty.Governance.BoardResignation
	}
	return math.Min(total, cfg.RiskPenalty.Governance.AuditorQualification*2)
}
