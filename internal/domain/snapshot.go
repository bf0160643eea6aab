package domain

import (
	"fmt"
	"strings"
	"time"
)

// PriceRecord carries the latest price/technical state for one instrument.
// All indicator fields may be absent; returns are decimals (0.05 = 5%),
// volatilities are daily, not annualized.
type PriceRecord struct {
	Close  Metric `json:"close"`
	Volume Metric `json:"volume"`

	DMA20  Metric `json:"dma20"`
	DMA50  Metric `json:"dma50"`
	DMA200 Metric `json:"dma200"`

	RSI14 Metric `json:"rsi14"`
	ATR14 Metric `json:"atr14"`
	Hi20  Metric `json:"hi20"`

	Ret21d  Metric `json:"ret_21d"`
	Ret63d  Metric `json:"ret_63d"`
	Ret126d Metric `json:"ret_126d"`

	Sigma20 Metric `json:"sigma20"`
	Sigma60 Metric `json:"sigma60"`

	// AvgVolume20 is the trailing 20-session mean volume excluding the
	// current session; VolumeBars is how many sessions backed it.
	AvgVolume20 Metric `json:"avg_volume_20"`
	VolumeBars  int    `json:"volume_bars"`

	// MedianTradedValueCr is the median traded value in crores. When absent
	// it is estimated from volume and close.
	MedianTradedValueCr Metric `json:"median_traded_value_cr"`
}

// MTVCr returns the median traded value in crores, estimating
// volume*close/1e7 when the field itself is absent. Zero when neither is
// available, which the liquidity bins treat as maximally illiquid.
func (p PriceRecord) MTVCr() float64 {
	if p.MedianTradedValueCr.Valid {
		return p.MedianTradedValueCr.Value
	}
	if p.Volume.Valid && p.Close.Valid && p.Volume.Value > 0 && p.Close.Value > 0 {
		return p.Volume.Value * p.Close.Value / 1e7
	}
	return 0
}

// FundamentalsKind tags the mutually exclusive fundamentals variants.
type FundamentalsKind string

const (
	FundamentalsStandard FundamentalsKind = "standard"
	FundamentalsBanking  FundamentalsKind = "banking"
)

// StandardFundamentals is the non-financial metric set.
type StandardFundamentals struct {
	ROE3y       Metric `json:"roe_3y"`
	SalesCAGR3y Metric `json:"sales_cagr_3y"`
	EPSCAGR3y   Metric `json:"eps_cagr_3y"`
	PE          Metric `json:"pe"`
	EVEBITDA    Metric `json:"ev_ebitda"`
}

// Valuation prefers EV/EBITDA and falls back to PE.
func (s StandardFundamentals) Valuation() Metric {
	if s.EVEBITDA.Valid {
		return s.EVEBITDA
	}
	return s.PE
}

// BankingFundamentals is the bank/NBFC metric set. Banking instruments never
// populate the standard set and vice versa.
type BankingFundamentals struct {
	ROA3y   Metric `json:"roa_3y"`
	ROE3y   Metric `json:"roe_3y"`
	GNPAPct Metric `json:"gnpa_pct"`
	PCRPct  Metric `json:"pcr_pct"`
	NIM3y   Metric `json:"nim_3y"`
}

// FundamentalsRecord is a tagged union of the two variants plus the metrics
// shared by both (quality and risk inputs).
type FundamentalsRecord struct {
	Kind     FundamentalsKind     `json:"kind"`
	Standard StandardFundamentals `json:"standard,omitempty"`
	Banking  BankingFundamentals  `json:"banking,omitempty"`

	MarketCapCr Metric `json:"market_cap_cr"`
	ROCE3y      Metric `json:"roce_3y"`
	OPMStdev12q Metric `json:"opm_stdev_12q"`
	QuarterEnd  Metric `json:"quarter_end_unix"` // unix seconds; absent when unknown
}

// ROE returns the 3-year ROE of whichever variant is populated.
func (f FundamentalsRecord) ROE() Metric {
	if f.Kind == FundamentalsBanking {
		return f.Banking.ROE3y
	}
	return f.Standard.ROE3y
}

// OwnershipRecord carries the promoter/institutional structure.
type OwnershipRecord struct {
	PromoterHoldPct    Metric `json:"promoter_hold_pct"`    // 0-1
	PromoterPledgeFrac Metric `json:"promoter_pledge_frac"` // 0-1
	FIIDIIDeltaPP      Metric `json:"fii_dii_delta_pp"`
	FIIHoldingPct      Metric `json:"fii_holding_pct"`
}

// Snapshot is the unit of scoring work: one instrument on one date.
type Snapshot struct {
	Ticker      string             `json:"ticker"`
	Date        time.Time          `json:"date"`
	SectorGroup string             `json:"sector_group"`
	Price       PriceRecord        `json:"price"`
	Fund        FundamentalsRecord `json:"fundamentals"`
	Own         OwnershipRecord    `json:"ownership"`
}

// Validate fails fast on malformed identity fields. Metric-level gaps are
// handled downstream, not here.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Ticker) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTicker)
	}
	if strings.TrimSpace(s.SectorGroup) == "" {
		return fmt.Errorf("%w: snapshot %s has no sector group", ErrUnknownSector, s.Ticker)
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: snapshot %s has zero date", ErrInvalidTicker, s.Ticker)
	}
	return nil
}

// PeerSet is the read-only sector cohort a snapshot is normalized against.
// Members share a sector group and as-of date and include the target itself.
type PeerSet struct {
	Sector  string
	Date    time.Time
	Members []Snapshot
}

// Column extracts one metric across the peer set, preserving position so
// results line up with Members. Order follows Members, which callers keep
// sorted by ticker so every derived statistic is deterministic.
func (p PeerSet) Column(get func(Snapshot) Metric) []Metric {
	out := make([]Metric, len(p.Members))
	for i, m := range p.Members {
		out[i] = get(m)
	}
	return out
}

// IndexOf returns the member position of a ticker, or -1.
func (p PeerSet) IndexOf(ticker string) int {
	for i, m := range p.Members {
		if m.Ticker == ticker {
			return i
		}
	}
	return -1
}

// MarketBenchmark is the equal-weighted all-instrument return per horizon.
type MarketBenchmark struct {
	Ret21d  float64 `json:"ret_21d"`
	Ret63d  float64 `json:"ret_63d"`
	Ret126d float64 `json:"ret_126d"`
}

// SectorAggregate is one sector's equal-weighted return and volatility
// profile, computed once per scoring pass and shared read-only.
type SectorAggregate struct {
	Sector  string  `json:"sector"`
	Ret21d  float64 `json:"ret_21d"`
	Ret63d  float64 `json:"ret_63d"`
	Ret126d float64 `json:"ret_126d"`
	Sigma20 float64 `json:"sigma20"`
}
