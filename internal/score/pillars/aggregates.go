package pillars

import (
	"sort"

	"github.com/greyoak/score/internal/domain"
)

// BuildPeerSets groups a universe of snapshots into per-sector peer sets.
// Members sort by ticker and sectors come back sorted by name so downstream
// statistics are reproducible run to run.
func BuildPeerSets(universe []domain.Snapshot) []domain.PeerSet {
	bySector := make(map[string][]domain.Snapshot)
	for _, s := range universe {
		bySector[s.SectorGroup] = append(bySector[s.SectorGroup], s)
	}

	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	out := make([]domain.PeerSet, 0, len(sectors))
	for _, sector := range sectors {
		members := bySector[sector]
		sort.Slice(members, func(a, b int) bool { return members[a].Ticker < members[b].Ticker })
		ps := domain.PeerSet{Sector: sector, Members: members}
		if len(members) > 0 {
			ps.Date = members[0].Date
		}
		out = append(out, ps)
	}
	return out
}

// MarketFromUniverse computes the equal-weighted market benchmark return
// per horizon across every snapshot with a present value.
func MarketFromUniverse(universe []domain.Snapshot) domain.MarketBenchmark {
	mean := func(get func(domain.Snapshot) domain.Metric) float64 {
		sum, n := 0.0, 0
		for _, s := range universe {
			if v := get(s); v.Valid {
				sum += v.Value
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}
	return domain.MarketBenchmark{
		Ret21d:  mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret21d }),
		Ret63d:  mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret63d }),
		Ret126d: mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret126d }),
	}
}

// SectorAggregates computes each sector's equal-weighted return and
// volatility profile. Sectors where any horizon or the volatility has no
// present values are dropped, mirroring how an all-missing cross-section
// cannot participate in sector momentum. Output is sorted by sector name.
func SectorAggregates(peerSets []domain.PeerSet) []domain.SectorAggregate {
	out := make([]domain.SectorAggregate, 0, len(peerSets))
	for _, ps := range peerSets {
		agg, ok := sectorAggregate(ps)
		if ok {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Sector < out[b].Sector })
	return out
}

func sectorAggregate(ps domain.PeerSet) (domain.SectorAggregate, bool) {
	mean := func(get func(domain.Snapshot) domain.Metric) (float64, bool) {
		sum, n := 0.0, 0
		for _, m := range ps.Members {
			if v := get(m); v.Valid {
				sum += v.Value
				n++
			}
		}
		if n == 0 {
			return 0, false
		}
		return sum / float64(n), true
	}

	r21, ok1 := mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret21d })
	r63, ok2 := mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret63d })
	r126, ok3 := mean(func(s domain.Snapshot) domain.Metric { return s.Price.Ret126d })
	sigma, ok4 := mean(func(s domain.Snapshot) domain.Metric { return s.Price.Sigma20 })
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.SectorAggregate{}, false
	}
	return domain.SectorAggregate{
		Sector:  ps.Sector,
		Ret21d:  r21,
		Ret63d:  r63,
		Ret126d: r126,
		Sigma20: sigma,
	}, true
}
