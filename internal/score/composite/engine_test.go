package composite

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

var asOf = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(config.Default(), zerolog.Nop())
}

// fullSnapshot fills every field so no guardrail fires on data quality.
// strength in [0,1] scales the fundamentals and momentum spread.
func fullSnapshot(ticker, sector string, strength float64) domain.Snapshot {
	return domain.Snapshot{
		Ticker:      ticker,
		Date:        asOf,
		SectorGroup: sector,
		Price: domain.PriceRecord{
			Close:               domain.M(100 + 40*strength),
			Volume:              domain.M(2_000_000),
			DMA20:               domain.M(100 + 30*strength),
			DMA50:               domain.M(100 + 20*strength),
			DMA200:              domain.M(100 + 10*strength),
			RSI14:               domain.M(35 + 30*strength),
			ATR14:               domain.M(3),
			Hi20:                domain.M(100 + 35*strength),
			Ret21d:              domain.M(-0.04 + 0.12*strength),
			Ret63d:              domain.M(-0.06 + 0.20*strength),
			Ret126d:             domain.M(-0.08 + 0.30*strength),
			Sigma20:             domain.M(0.018),
			Sigma60:             domain.M(0.020),
			AvgVolume20:         domain.M(1_800_000),
			VolumeBars:          20,
			MedianTradedValueCr: domain.M(25),
		},
		Fund: domain.FundamentalsRecord{
			Kind: domain.FundamentalsStandard,
			Standard: domain.StandardFundamentals{
				ROE3y:       domain.M(0.08 + 0.15*strength),
				SalesCAGR3y: domain.M(0.05 + 0.15*strength),
				EPSCAGR3y:   domain.M(0.05 + 0.18*strength),
				PE:          domain.M(40 - 20*strength),
			},
			MarketCapCr: domain.M(5_000 + 50_000*strength),
			ROCE3y:      domain.M(0.10 + 0.12*strength),
			OPMStdev12q: domain.M(0.06 - 0.04*strength),
		},
		Own: domain.OwnershipRecord{
			PromoterHoldPct:    domain.M(0.40 + 0.25*strength),
			PromoterPledgeFrac: domain.M(0),
			FIIDIIDeltaPP:      domain.M(-0.5 + 1.5*strength),
			FIIHoldingPct:      domain.M(0.15 + 0.10*strength),
		},
	}
}

// testUniverse spans two sectors with a spread of strengths.
func testUniverse() []domain.Snapshot {
	var u []domain.Snapshot
	for i := 0; i < 7; i++ {
		u = append(u, fullSnapshot(fmt.Sprintf("IT%02d", i), "it", float64(i)/6))
	}
	for i := 0; i < 7; i++ {
		u = append(u, fullSnapshot(fmt.Sprintf("PH%02d", i), "pharma", 0.3+0.4*float64(i)/6))
	}
	return u
}

func TestScoreProducesCompleteOutput(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()
	uctx := BuildContext(universe)

	out, err := e.Score(universe[6], uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)

	assert.Equal(t, "IT06", out.Ticker)
	assert.Equal(t, domain.ModeTrader, out.Mode)
	assert.GreaterOrEqual(t, out.Score, 0.0)
	assert.LessOrEqual(t, out.Score, 100.0)
	assert.True(t, domain.ValidBand(out.Band))
	assert.Equal(t, 1.0, out.Confidence)
	assert.Equal(t, e.Config().Hash(), out.ConfigHash)
	assert.Equal(t, asOf, out.AsOf)
	assert.NotNil(t, out.GuardrailFlags)
}

func TestScoreStrongerBeatsWeakerSameSector(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()
	uctx := BuildContext(universe)

	weak, err := e.Score(universe[0], uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)
	strong, err := e.Score(universe[6], uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)

	assert.Greater(t, strong.Score, weak.Score)
}

func TestScoreModeChangesWeighting(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()
	uctx := BuildContext(universe)

	trader, err := e.Score(universe[5], uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)
	investor, err := e.Score(universe[5], uctx, domain.ModeInvestor, asOf)
	require.NoError(t, err)

	// Same pillar scores, different blend.
	assert.Equal(t, trader.Pillars, investor.Pillars)
	assert.NotEqual(t, trader.Score, investor.Score)
}

func TestScoreDeterministic(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()
	uctx := BuildContext(universe)

	a, err := e.Score(universe[3], uctx, domain.ModeInvestor, asOf)
	require.NoError(t, err)
	b, err := e.Score(universe[3], uctx, domain.ModeInvestor, asOf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScoreRejectsBadInput(t *testing.T) {
	e := newTestEngine()
	uctx := BuildContext(testUniverse())

	_, err := e.Score(domain.Snapshot{}, uctx, domain.ModeTrader, asOf)
	assert.ErrorIs(t, err, domain.ErrInvalidTicker)

	snap := fullSnapshot("X", "crypto", 0.5)
	_, err = e.Score(snap, uctx, domain.ModeTrader, asOf)
	assert.ErrorIs(t, err, domain.ErrUnknownSector)

	snap = fullSnapshot("X", "it", 0.5)
	_, err = e.Score(snap, uctx, domain.Mode("Gambler"), asOf)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestScoreSingleSectorUniverseNeutralS(t *testing.T) {
	e := newTestEngine()
	var universe []domain.Snapshot
	for i := 0; i < 7; i++ {
		universe = append(universe, fullSnapshot(fmt.Sprintf("IT%02d", i), "it", float64(i)/6))
	}
	uctx := BuildContext(universe)

	out, err := e.Score(universe[3], uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.SZ)
	assert.InDelta(t, 50.0, out.Pillars.S, 1e-9)
}

func TestScoreSparseDataTriggersQualityGuardrails(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()

	sparse := domain.Snapshot{
		Ticker: "SPARSE", Date: asOf, SectorGroup: "it",
		Price: domain.PriceRecord{
			Close:               domain.M(100),
			MedianTradedValueCr: domain.M(25),
		},
		Fund: domain.FundamentalsRecord{Kind: domain.FundamentalsStandard},
	}
	universe = append(universe, sparse)
	uctx := BuildContext(universe)

	out, err := e.Score(sparse, uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)

	assert.Less(t, out.Confidence, 0.70)
	assert.Contains(t, out.GuardrailFlags, "LowDataHold")
	assert.Contains(t, out.GuardrailFlags, "LowCoverage")
	assert.LessOrEqual(t, out.Band.Rank(), domain.BandHold.Rank())
}

func TestScoreHighRiskProfileCapped(t *testing.T) {
	e := newTestEngine()
	universe := testUniverse()

	risky := fullSnapshot("RISKY", "it", 0.9)
	risky.Price.MedianTradedValueCr = domain.M(0.3) // bottom liquidity bin
	risky.Own.PromoterPledgeFrac = domain.M(0.35)   // pledge bin 8 + guardrail
	risky.Price.Sigma20 = domain.M(0.08)            // volatility penalty
	universe = append(universe, risky)
	uctx := BuildContext(universe)

	out, err := e.Score(risky, uctx, domain.ModeTrader, asOf)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, out.RiskPenalty, 15.0)
	assert.Contains(t, out.GuardrailFlags, "Illiquidity")
	assert.Contains(t, out.GuardrailFlags, "PledgeCap")
	assert.Contains(t, out.GuardrailFlags, "HighRiskCap")
	assert.LessOrEqual(t, out.Band.Rank(), domain.BandHold.Rank())
}

func TestDataQualityCounts(t *testing.T) {
	conf, imputed := DataQuality(fullSnapshot("FULL", "it", 0.5))
	assert.Equal(t, 1.0, conf)
	assert.Equal(t, 0.0, imputed)

	conf, imputed = DataQuality(domain.Snapshot{Ticker: "EMPTY", Date: asOf, SectorGroup: "it"})
	assert.Equal(t, 0.0, conf)
	assert.Equal(t, 1.0, imputed)

	partial := fullSnapshot("PART", "it", 0.5)
	partial.Price.RSI14 = domain.Metric{}
	partial.Own.FIIHoldingPct = domain.Metric{}
	conf, _ = DataQuality(partial)
	assert.InDelta(t, 9.0/11.0, conf, 1e-9)
}

func TestExplainCoversAllAspects(t *testing.T) {
	out := domain.ScoreOutput{
		Pillars:        domain.PillarScores{F: 60, T: 70, R: 55, O: 50, Q: 65, S: 45},
		RiskPenalty:    4,
		GuardrailFlags: []string{"SectorBear"},
		Confidence:     0.909,
		SZ:             -1.8,
	}
	ex := Explain(out)
	assert.Contains(t, ex["risk_penalty"], "4.00")
	assert.Contains(t, ex["guardrails"], "SectorBear")
	assert.Contains(t, ex["sector_momentum"], "negative")
	assert.Contains(t, ex["data_quality"], "90.9")

	out.RiskPenalty = 0
	out.GuardrailFlags = nil
	out.SZ = 0.4
	ex = Explain(out)
	assert.Equal(t, "No risk penalty applied", ex["risk_penalty"])
	assert.Equal(t, "No guardrails triggered", ex["guardrails"])
	assert.Contains(t, ex["sector_momentum"], "positive")
}
