package pillars

import (
	"math"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

// minVolumeBars is the history the volume surprise component needs before it
// trusts the 20-day average.
const minVolumeBars = 20

// Technicals scores the T pillar from absolute price signals; no peer
// normalization is involved. Five components: trend position above the 200
// DMA, the 20/50 golden cross, RSI momentum, breakout strength past recent
// resistance, and volume surprise against the 20-day average.
func Technicals(cfg *config.Config, snap domain.Snapshot) Result {
	w := cfg.Technicals.Weights
	p := snap.Price
	components := []Component{
		{Name: "above_200", Weight: w.Above200, Points: above200(p)},
		{Name: "golden_cross", Weight: w.GoldenCross, Points: goldenCross(p)},
		{Name: "rsi", Raw: p.RSI14, Weight: w.RSI, Points: rsiScore(cfg, p)},
		{Name: "breakout", Weight: w.Breakout, Points: breakoutScore(cfg, p)},
		{Name: "volume", Raw: p.Volume, Weight: w.Volume, Points: volumeScore(p)},
	}
	return aggregate(components)
}

// Binary trend components score 0 when inputs are missing rather than
// skipping, so a chartless instrument lands low on T instead of neutral.
func above200(p domain.PriceRecord) float64 {
	if !p.Close.Valid || !p.DMA200.Valid {
		return 0
	}
	if p.Close.Value > p.DMA200.Value {
		return 100
	}
	return 0
}

func goldenCross(p domain.PriceRecord) float64 {
	if !p.DMA20.Valid || !p.DMA50.Valid {
		return 0
	}
	if p.DMA20.Value > p.DMA50.Value {
		return 100
	}
	return 0
}

// rsiScore maps RSI linearly across the oversold/overbought band: 30 or
// below scores 0, 70 or above scores 100.
func rsiScore(cfg *config.Config, p domain.PriceRecord) float64 {
	if !p.RSI14.Valid {
		return 50
	}
	lo := cfg.Technicals.RSIBands.Oversold
	hi := cfg.Technicals.RSIBands.Overbought
	rsi := p.RSI14.Value
	switch {
	case rsi <= lo:
		return 0
	case rsi >= hi:
		return 100
	default:
		return (rsi - lo) / (hi - lo) * 100
	}
}

// breakoutScore measures how far the close has cleared recent resistance,
// as a fraction of an ATR-adjusted threshold:
//
//	gap       = max(0, close - max(hi20, dma20))
//	threshold = max(0.75*ATR14, 0.01*close)
//	score     = min(100, gap/threshold * 100)
func breakoutScore(cfg *config.Config, p domain.PriceRecord) float64 {
	if !p.Close.Valid || !p.Hi20.Valid || !p.DMA20.Valid || !p.ATR14.Valid {
		return 0
	}
	close := p.Close.Value
	resistance := math.Max(p.Hi20.Value, p.DMA20.Value)
	gap := math.Max(0, close-resistance)

	threshold := math.Max(cfg.Technicals.Breakout.ATRMultiplier*p.ATR14.Value,
		cfg.Technicals.Breakout.ClosePct*close)
	if threshold <= 0 {
		return 0
	}
	return math.Min(100, gap/threshold*100)
}

// volumeScore rates the day's volume against the trailing 20-day average:
// a ratio of 0.5 or below scores 0, 2.0 or above scores 100, linear in
// between. Insufficient history scores neutral.
func volumeScore(p domain.PriceRecord) float64 {
	if !p.Volume.Valid || p.Volume.Value <= 0 {
		return 50
	}
	if p.VolumeBars < minVolumeBars || !p.AvgVolume20.Valid || p.AvgVolume20.Value <= 0 {
		return 50
	}
	ratio := p.Volume.Value / p.AvgVolume20.Value
	switch {
	case ratio >= 2.0:
		return 100
	case ratio <= 0.5:
		return 0
	default:
		return (ratio - 0.5) / 1.5 * 100
	}
}
