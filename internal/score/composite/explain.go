package composite

import (
	"fmt"
	"strings"

	"github.com/greyoak/score/internal/domain"
)

// Explanation is a human-readable account of one score, keyed by aspect.
type Explanation map[string]string

// Explain renders the major score drivers for API consumers and reports.
func Explain(out domain.ScoreOutput) Explanation {
	ex := Explanation{}

	ex["pillars"] = fmt.Sprintf(
		"Fundamentals: %.2f/100, Technicals: %.2f/100, Relative Strength: %.2f/100, "+
			"Ownership: %.2f/100, Quality: %.2f/100, Sector Momentum: %.2f/100",
		out.Pillars.F, out.Pillars.T, out.Pillars.R, out.Pillars.O, out.Pillars.Q, out.Pillars.S)

	if out.RiskPenalty > 0 {
		ex["risk_penalty"] = fmt.Sprintf("Risk penalty of %.2f points applied", out.RiskPenalty)
	} else {
		ex["risk_penalty"] = "No risk penalty applied"
	}

	if len(out.GuardrailFlags) > 0 {
		ex["guardrails"] = "Guardrails triggered: " + strings.Join(out.GuardrailFlags, ", ")
	} else {
		ex["guardrails"] = "No guardrails triggered"
	}

	ex["data_quality"] = fmt.Sprintf("Data confidence: %.1f%%", out.Confidence*100)

	if out.SZ > 0 {
		ex["sector_momentum"] = fmt.Sprintf("Sector showing positive momentum (z-score: %.2f)", out.SZ)
	} else {
		ex["sector_momentum"] = fmt.Sprintf("Sector showing negative momentum (z-score: %.2f)", out.SZ)
	}

	return ex
}
