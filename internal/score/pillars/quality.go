package pillars

import (
	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// Quality scores the Q pillar: three-year ROCE (higher better) and the
// twelve-quarter operating margin stability (lower stdev better), both
// normalized against the peer set.
func Quality(cfg *config.Config, snap domain.Snapshot, peers domain.PeerSet) Result {
	w := cfg.Quality.Weights
	metrics := []fundMetric{
		{"roce_3y", w.ROCE3y, true, func(s domain.Snapshot) domain.Metric { return s.Fund.ROCE3y }},
		{"opm_stdev_12q", w.OPMStability, false, func(s domain.Snapshot) domain.Metric { return s.Fund.OPMStdev12q }},
	}
	return scoreFundMetrics(snap, peers, metrics)
}
