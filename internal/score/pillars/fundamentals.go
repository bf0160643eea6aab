package pillars

import (
	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/score/normalize"
)

// Fundamentals scores the F pillar. Banking sectors score ROA, ROE, GNPA,
// PCR and NIM; everything else scores ROE, sales growth, EPS growth and
// valuation. Each metric is normalized against the peer set before the
// weighted blend; weights renormalize over whichever metrics are present.
func Fundamentals(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) Result {
	if cfg.IsBanking(snap.SectorGroup) {
		return bankingFundamentals(cfg, snap, peers)
	}
	return standardFundamentals(cfg, snap, peers)
}

type fundMetric struct {
	name         string
	weight       float64
	higherBetter bool
	get          func(domain.Snapshot) domain.Metric
}

func standardFundamentals(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) Result {
	w := cfg.Fundamentals.NonFinancial
	metrics := []fundMetric{
		{"roe_3y", w.ROE3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Standard.ROE3y }},
		{"sales_cagr_3y", w.SalesCAGR3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Standard.SalesCAGR3y }},
		{"eps_cagr_3y", w.EPSCAGR3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Standard.EPSCAGR3y }},
		{"valuation", w.Valuation, false, func(s domain.Snapshot) domain.Metric { return s.Fund.Standard.Valuation() }},
	}
	return scoreFundMetrics(snap, peers, metrics)
}

func bankingFundamentals(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) Result {
	w := cfg.Fundamentals.Banking
	metrics := []fundMetric{
		{"roa_3y", w.ROA3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Banking.ROA3y }},
		{"roe_3y", w.ROE3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Banking.ROE3y }},
		{"gnpa_pct", w.GNPAPct, false, func(s domain.Snapshot) domain.Metric { return s.Fund.Banking.GNPAPct }},
		{"pcr_pct", w.PCRPct, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Banking.PCRPct }},
		{"nim_3y", w.NIM3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.Banking.NIM3y }},
	}
	return scoreFundMetrics(snap, peers, metrics)
}

func scoreFundMetrics(snap domain.Snapshot, peers domain.PeerSet, metrics []fundMetric) Result {
	idx := peers.IndexOf(snap.Ticker)
	components := make([]Component, 0, len(metrics))
	for _, m := range metrics {
		raw := m.get(snap)
		comp := Component{Name: m.name, Raw: raw, Weight: m.weight}
		if !raw.Valid || idx < 0 {
			comp.Skipped = true
			comp.Points = normalize.Neutral
			components = append(components, comp)
			continue
		}
		res := normalize.Scores(peers.Column(m.get), m.higherBetter)[idx]
		comp.Points = res.Points
		components = append(components, comp)
	}
	return aggregate(components)
}
