// Package config loads the immutable scoring configuration bundle: pillar
// weight vectors per (sector, mode), guardrail thresholds, band cutoffs and
// risk-penalty bins. The bundle is validated fail-fast at load and identified
// by a SHA-256 hash recorded on every score output for audit reproducibility.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greyoak/score/internal/domain"
)

const weightSumTolerance = 1e-9

// Weights is a pillar weight vector. Every resolved vector sums to 1.0
// within tolerance.
type Weights struct {
	F float64 `yaml:"F" json:"F"`
	T float64 `yaml:"T" json:"T"`
	R float64 `yaml:"R" json:"R"`
	O float64 `yaml:"O" json:"O"`
	Q float64 `yaml:"Q" json:"Q"`
	S float64 `yaml:"S" json:"S"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 { return w.F + w.T + w.R + w.O + w.Q + w.S }

// Banding holds the score cutoffs for band assignment: >= StrongBuy,
// >= Buy, >= Hold, else Avoid.
type Banding struct {
	StrongBuy float64 `yaml:"strong_buy" json:"strong_buy"`
	Buy       float64 `yaml:"buy" json:"buy"`
	Hold      float64 `yaml:"hold" json:"hold"`
}

// GuardrailThresholds are the trigger levels for the six guardrails.
type GuardrailThresholds struct {
	Confidence   float64 `yaml:"confidence" json:"confidence"`       // LowDataHold: conf < this
	PledgeCap    float64 `yaml:"pledge_cap" json:"pledge_cap"`       // PledgeCap: pledge > this
	HighRiskRP   float64 `yaml:"high_risk_rp" json:"high_risk_rp"`   // HighRiskCap: RP >= this
	SectorBearSZ float64 `yaml:"sector_bear_sz" json:"sector_bear_sz"` // SectorBear: S_z <= this
	LowCoverage  float64 `yaml:"low_coverage" json:"low_coverage"`   // LowCoverage: imputed >= this
	// SectorBearPenalty is subtracted from the score in investor mode when
	// SectorBear fires; trader mode caps the band instead.
	SectorBearPenalty float64 `yaml:"sector_bear_penalty" json:"sector_bear_penalty"`
}

// Bin is one threshold-tiered penalty step. Liquidity bins match on
// value >= threshold; pledge bins on value > threshold.
type Bin struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Penalty   float64 `yaml:"penalty" json:"penalty"`
}

// CurvePoint is one node of the piecewise-linear pledge penalty curve.
type CurvePoint struct {
	Fraction float64 `yaml:"fraction" json:"fraction"`
	Penalty  float64 `yaml:"penalty" json:"penalty"`
}

// RiskPenaltyConfig parameterizes the additive risk penalty model.
type RiskPenaltyConfig struct {
	// Caps is the per-sector ceiling on total RP; "default" is required.
	Caps map[string]float64 `yaml:"caps" json:"caps"`
	// Liquidity bins per mode, sorted descending by threshold; the matched
	// bin's penalty applies. The lowest bin with penalty > 0 doubles as the
	// Illiquidity guardrail threshold.
	Liquidity map[string][]Bin `yaml:"liquidity" json:"liquidity"`
	// PledgeBins sorted descending by threshold; match on pledge > threshold.
	PledgeBins []Bin `yaml:"pledge_bins" json:"pledge_bins"`
	Volatility struct {
		Multiplier float64 `yaml:"multiplier" json:"multiplier"`
		Penalty    float64 `yaml:"penalty" json:"penalty"`
	} `yaml:"volatility" json:"volatility"`
	EventWindow struct {
		Days    int     `yaml:"days" json:"days"`
		Penalty float64 `yaml:"penalty" json:"penalty"`
	} `yaml:"event_window" json:"event_window"`
	Governance struct {
		AuditorQualification float64 `yaml:"auditor_qualification" json:"auditor_qualification"`
		BoardResignation     float64 `yaml:"board_resignation" json:"board_resignation"`
	} `yaml:"governance" json:"governance"`
	// SectorSigma is the per-sector daily volatility estimate the
	// volatility factor compares stock sigma against.
	SectorSigma map[string]float64 `yaml:"sector_sigma" json:"sector_sigma"`
}

// TechnicalsConfig parameterizes the T pillar's five components.
type TechnicalsConfig struct {
	Weights struct {
		Above200    float64 `yaml:"above_200" json:"above_200"`
		GoldenCross float64 `yaml:"golden_cross" json:"golden_cross"`
		RSI         float64 `yaml:"rsi" json:"rsi"`
		Breakout    float64 `yaml:"breakout" json:"breakout"`
		Volume      float64 `yaml:"volume" json:"volume"`
	} `yaml:"weights" json:"weights"`
	RSIBands struct {
		Oversold   float64 `yaml:"oversold" json:"oversold"`
		Overbought float64 `yaml:"overbought" json:"overbought"`
	} `yaml:"rsi_bands" json:"rsi_bands"`
	Breakout struct {
		ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier"`
		ClosePct      float64 `yaml:"close_pct" json:"close_pct"`
	} `yaml:"breakout" json:"breakout"`
}

// HorizonWeights blends the 1M/3M/6M horizons.
type HorizonWeights struct {
	M1 float64 `yaml:"1M" json:"1M"`
	M3 float64 `yaml:"3M" json:"3M"`
	M6 float64 `yaml:"6M" json:"6M"`
}

// Sum returns the total horizon weight.
func (h HorizonWeights) Sum() float64 { return h.M1 + h.M3 + h.M6 }

// RelativeStrengthConfig parameterizes the R pillar.
type RelativeStrengthConfig struct {
	HorizonWeights HorizonWeights `yaml:"horizon_weights" json:"horizon_weights"`
	AlphaWeights   struct {
		Sector float64 `yaml:"sector" json:"sector"`
		Market float64 `yaml:"market" json:"market"`
	} `yaml:"alpha_weights" json:"alpha_weights"`
}

// OwnershipConfig parameterizes the O pillar.
type OwnershipConfig struct {
	Weights struct {
		PromoterHold float64 `yaml:"promoter_hold" json:"promoter_hold"`
		Pledge       float64 `yaml:"pledge" json:"pledge"`
		FIIDIIChange float64 `yaml:"fii_dii_change" json:"fii_dii_change"`
	} `yaml:"weights" json:"weights"`
	// PledgePenaltyCurve must be monotonic in both fraction and penalty.
	PledgePenaltyCurve []CurvePoint `yaml:"pledge_penalty_curve" json:"pledge_penalty_curve"`
}

// QualityConfig parameterizes the Q pillar.
type QualityConfig struct {
	Weights struct {
		ROCE3y       float64 `yaml:"roce_3y" json:"roce_3y"`
		OPMStability float64 `yaml:"opm_stability" json:"opm_stability"`
	} `yaml:"weights" json:"weights"`
}

// FundamentalsConfig holds the metric weights for both variants.
type FundamentalsConfig struct {
	NonFinancial struct {
		ROE3y       float64 `yaml:"roe_3y" json:"roe_3y"`
		SalesCAGR3y float64 `yaml:"sales_cagr_3y" json:"sales_cagr_3y"`
		EPSCAGR3y   float64 `yaml:"eps_cagr_3y" json:"eps_cagr_3y"`
		Valuation   float64 `yaml:"valuation" json:"valuation"`
	} `yaml:"non_financial" json:"non_financial"`
	Banking struct {
		ROA3y   float64 `yaml:"roa_3y" json:"roa_3y"`
		ROE3y   float64 `yaml:"roe_3y" json:"roe_3y"`
		GNPAPct float64 `yaml:"gnpa_pct" json:"gnpa_pct"`
		PCRPct  float64 `yaml:"pcr_pct" json:"pcr_pct"`
		NIM3y   float64 `yaml:"nim_3y" json:"nim_3y"`
	} `yaml:"banking" json:"banking"`
}

// SectorInfo describes one sector group.
type SectorInfo struct {
	Name    string `yaml:"name" json:"name"`
	Banking bool   `yaml:"banking" json:"banking"`
}

// Config is the complete scoring bundle.
type Config struct {
	Version string `yaml:"version" json:"version"`

	// PillarWeights maps mode (lowercase) -> sector group -> weight vector.
	// A "default" sector entry is required per mode.
	PillarWeights map[string]map[string]Weights `yaml:"pillar_weights" json:"pillar_weights"`

	Banding          Banding                `yaml:"banding" json:"banding"`
	Guardrails       GuardrailThresholds    `yaml:"guardrails" json:"guardrails"`
	RiskPenalty      RiskPenaltyConfig      `yaml:"risk_penalty" json:"risk_penalty"`
	Technicals       TechnicalsConfig       `yaml:"technicals" json:"technicals"`
	RelativeStrength RelativeStrengthConfig `yaml:"relative_strength" json:"relative_strength"`
	Ownership        OwnershipConfig        `yaml:"ownership" json:"ownership"`
	Quality          QualityConfig          `yaml:"quality" json:"quality"`
	Fundamentals     FundamentalsConfig     `yaml:"fundamentals" json:"fundamentals"`
	SectorMomentum   struct {
		HorizonWeights HorizonWeights `yaml:"horizon_weights" json:"horizon_weights"`
	} `yaml:"sector_momentum" json:"sector_momentum"`

	Sectors map[string]SectorInfo `yaml:"sectors" json:"sectors"`

	hash string
}

// Load reads and validates a bundle from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	cfg.hash = cfg.computeHash()
	return &cfg, nil
}

// Hash is the SHA-256 identity of the loaded bundle.
func (c *Config) Hash() string { return c.hash }

func (c *Config) computeHash() string {
	// Canonical JSON: encoding/json sorts map keys, so identical bundles
	// hash identically regardless of YAML layout.
	blob, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// WeightsFor resolves the pillar weight vector for a sector and mode,
// falling back to the mode's default sector entry.
func (c *Config) WeightsFor(sector string, mode domain.Mode) (Weights, error) {
	modeKey := strings.ToLower(string(mode))
	byMode, ok := c.PillarWeights[modeKey]
	if !ok {
		return Weights{}, fmt.Errorf("%w: no weights for mode %q", domain.ErrInvalidMode, mode)
	}
	if w, ok := byMode[sector]; ok {
		return w, nil
	}
	if w, ok := byMode["default"]; ok {
		return w, nil
	}
	return Weights{}, fmt.Errorf("%w: no weights for sector %q and no default", domain.ErrUnknownSector, sector)
}

// IsBanking reports whether the sector group scores with the banking
// fundamentals variant.
func (c *Config) IsBanking(sector string) bool {
	if info, ok := c.Sectors[sector]; ok {
		return info.Banking
	}
	return false
}

// KnownSector reports whether the sector group is in the bundle.
func (c *Config) KnownSector(sector string) bool {
	_, ok := c.Sectors[sector]
	return ok
}

// RPCap returns the risk-penalty ceiling for a sector.
func (c *Config) RPCap(sector string) float64 {
	if cap, ok := c.RiskPenalty.Caps[sector]; ok {
		return cap
	}
	return c.RiskPenalty.Caps["default"]
}

// LiquidityBins returns the mode's MTV penalty bins.
func (c *Config) LiquidityBins(mode domain.Mode) []Bin {
	return c.RiskPenalty.Liquidity[strings.ToLower(string(mode))]
}

// IlliquidityThreshold is the highest MTV bin threshold carrying a non-zero
// penalty for the mode; below it the Illiquidity guardrail fires.
func (c *Config) IlliquidityThreshold(mode domain.Mode) float64 {
	threshold := 0.0
	for _, bin := range c.LiquidityBins(mode) {
		if bin.Penalty > 0 && bin.Threshold > threshold {
			threshold = bin.Threshold
		}
	}
	return threshold
}

// SectorSigma returns the volatility estimate the RP volatility factor uses
// for a sector.
func (c *Config) SectorSigma(sector string) float64 {
	if s, ok := c.RiskPenalty.SectorSigma[sector]; ok {
		return s
	}
	return c.RiskPenalty.SectorSigma["default"]
}

func (c *Config) validate() error {
	for mode, bySector := range c.PillarWeights {
		if mode != "trader" && mode != "investor" {
			return fmt.Errorf("%w: unknown mode %q in pillar_weights", domain.ErrInvalidMode, mode)
		}
		if _, ok := bySector["default"]; !ok {
			return fmt.Errorf("pillar_weights.%s: missing default sector entry", mode)
		}
		for sector, w := range bySector {
			if diff := math.Abs(w.Sum() - 1.0); diff > weightSumTolerance {
				return fmt.Errorf("%w: %s/%s sums to %.12f", domain.ErrInvalidWeights, mode, sector, w.Sum())
			}
		}
	}

	b := c.Banding
	if !(b.StrongBuy > b.Buy && b.Buy > b.Hold && b.Hold > 0) {
		return fmt.Errorf("band cutoffs not monotonic: strong_buy=%.1f buy=%.1f hold=%.1f", b.StrongBuy, b.Buy, b.Hold)
	}

	for sector, cap := range c.RiskPenalty.Caps {
		if cap <= 0 || cap > 20 {
			return fmt.Errorf("risk_penalty cap for %s is %.1f, must be in (0, 20]", sector, cap)
		}
	}

	curve := c.Ownership.PledgePenaltyCurve
	for i := 0; i+1 < len(curve); i++ {
		if curve[i].Fraction >= curve[i+1].Fraction {
			return fmt.Errorf("pledge penalty curve fractions not increasing at index %d", i)
		}
		if curve[i].Penalty > curve[i+1].Penalty {
			return fmt.Errorf("pledge penalty curve penalties not monotonic at index %d", i)
		}
	}

	tw := c.Technicals.Weights
	tSum := tw.Above200 + tw.GoldenCross + tw.RSI + tw.Breakout + tw.Volume
	if math.Abs(tSum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: technicals components sum to %.12f", domain.ErrInvalidWeights, tSum)
	}
	for name, hw := range map[string]HorizonWeights{
		"relative_strength": c.RelativeStrength.HorizonWeights,
		"sector_momentum":   c.SectorMomentum.HorizonWeights,
	} {
		if math.Abs(hw.Sum()-1.0) > weightSumTolerance {
			return fmt.Errorf("%w: %s horizon weights sum to %.12f", domain.ErrInvalidWeights, name, hw.Sum())
		}
	}

	return nil
}
