package pillars

import (
	"fmt"
	"time"

	"github.com/greyoak/score/internal/domain"
)

// Shared fixture helpers for pillar tests.

var testDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func stdSnapshot(ticker, sector string, roe float64) domain.Snapshot {
	return domain.Snapshot{
		Ticker:      ticker,
		Date:        testDate,
		SectorGroup: sector,
		Fund: domain.FundamentalsRecord{
			Kind: domain.FundamentalsStandard,
			Standard: domain.StandardFundamentals{
				ROE3y:       domain.M(roe),
				SalesCAGR3y: domain.M(0.10),
				EPSCAGR3y:   domain.M(0.12),
				PE:          domain.M(25),
			},
		},
	}
}

// sectorOf builds n standard snapshots with ROE spread linearly.
func sectorOf(sector string, n int) []domain.Snapshot {
	out := make([]domain.Snapshot, n)
	for i := range out {
		out[i] = stdSnapshot(fmt.Sprintf("%s%02d", sector, i), sector, 0.05+0.03*float64(i))
	}
	return out
}

func peersFrom(members ...domain.Snapshot) domain.PeerSet {
	ps := domain.PeerSet{Date: testDate, Members: members}
	if len(members) > 0 {
		ps.Sector = members[0].SectorGroup
	}
	return ps
}

func pricedSnapshot(ticker, sector string, ret21, ret63, ret126, sigma20, sigma60 float64) domain.Snapshot {
	s := stdSnapshot(ticker, sector, 0.15)
	s.Price = domain.PriceRecord{
		Ret21d:  domain.M(ret21),
		Ret63d:  domain.M(ret63),
		Ret126d: domain.M(ret126),
		Sigma20: domain.M(sigma20),
		Sigma60: domain.M(sigma60),
	}
	return s
}
