package composite

import (
	"github.com/greyoak/score/internal/domain"
)

// DataQuality measures coverage over the fields every score fundamentally
// depends on: six price/technical, three fundamental, two ownership.
// Confidence is the present fraction; the imputed fraction is its
// complement and feeds the LowCoverage guardrail.
func DataQuality(snap domain.Snapshot) (confidence, imputedFraction float64) {
	required := []domain.Metric{
		snap.Price.Close,
		snap.Price.Volume,
		snap.Price.RSI14,
		snap.Price.ATR14,
		snap.Price.DMA20,
		snap.Price.DMA200,

		snap.Fund.MarketCapCr,
		snap.Fund.ROE(),
		snap.Fund.Standard.SalesCAGR3y,

		snap.Own.PromoterHoldPct,
		snap.Own.FIIHoldingPct,
	}

	present := 0
	for _, m := range required {
		if m.Valid {
			present++
		}
	}
	confidence = float64(present) / float64(len(required))
	return confidence, 1 - confidence
}
