package domain

import (
	"math"
	"time"
)

// PillarScores holds the six 0-100 sub-scores.
type PillarScores struct {
	F float64 `json:"F" db:"pillar_f"`
	T float64 `json:"T" db:"pillar_t"`
	R float64 `json:"R" db:"pillar_r"`
	O float64 `json:"O" db:"pillar_o"`
	Q float64 `json:"Q" db:"pillar_q"`
	S float64 `json:"S" db:"pillar_s"`
}

// ScoreOutput is the final scoring artifact for one (ticker, date, mode)
// call. Immutable after creation; persisted with overwrite-on-conflict
// semantics keyed on that triple.
type ScoreOutput struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Mode   Mode      `json:"mode"`

	Score float64 `json:"score"`
	Band  Band    `json:"band"`

	Pillars     PillarScores `json:"pillars"`
	RiskPenalty float64      `json:"risk_penalty"`

	// GuardrailFlags lists triggered guardrails in engine order.
	GuardrailFlags []string `json:"guardrail_flags"`

	Confidence float64 `json:"confidence"`
	SZ         float64 `json:"s_z"`

	AsOf       time.Time `json:"as_of"`
	ConfigHash string    `json:"config_hash"`
}

// Round2 rounds to two decimals. Applied only at the output boundary.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round3 rounds to three decimals (confidence, S_z).
func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
