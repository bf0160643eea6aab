package config

// Default returns the built-in bundle with the production parameter set.
// Callers needing an alternative parameterization load a YAML file instead.
func Default() *Config {
	cfg := &Config{
		Version: "1.0.0",
		PillarWeights: map[string]map[string]Weights{
			"trader": {
				"default": {F: 0.12, T: 0.32, R: 0.16, O: 0.08, Q: 0.04, S: 0.28},
			},
			"investor": {
				"default": {F: 0.38, T: 0.10, R: 0.08, O: 0.18, Q: 0.12, S: 0.14},
			},
		},
		Banding: Banding{StrongBuy: 75, Buy: 65, Hold: 50},
		Guardrails: GuardrailThresholds{
			Confidence:        0.70,
			PledgeCap:         0.10,
			HighRiskRP:        15,
			SectorBearSZ:      -1.5,
			LowCoverage:       0.25,
			SectorBearPenalty: 5,
		},
		Sectors: map[string]SectorInfo{
			"it":          {Name: "Information Technology"},
			"banks":       {Name: "Banks", Banking: true},
			"psu_banks":   {Name: "PSU Banks", Banking: true},
			"nbfcs":       {Name: "NBFCs", Banking: true},
			"metals":      {Name: "Metals & Mining"},
			"energy":      {Name: "Energy"},
			"fmcg":        {Name: "FMCG"},
			"pharma":      {Name: "Pharmaceuticals"},
			"auto_caps":   {Name: "Auto & Ancillaries"},
			"diversified": {Name: "Diversified"},
		},
	}

	cfg.RiskPenalty = RiskPenaltyConfig{
		Caps: map[string]float64{"default": 20},
		Liquidity: map[string][]Bin{
			"trader": {
				{Threshold: 5, Penalty: 0},
				{Threshold: 2, Penalty: 3},
				{Threshold: 1, Penalty: 6},
				{Threshold: 0, Penalty: 10},
			},
			"investor": {
				{Threshold: 2, Penalty: 0},
				{Threshold: 1, Penalty: 2},
				{Threshold: 0.5, Penalty: 4},
				{Threshold: 0, Penalty: 8},
			},
		},
		PledgeBins: []Bin{
			{Threshold: 0.20, Penalty: 8},
			{Threshold: 0.10, Penalty: 5},
			{Threshold: 0.05, Penalty: 2},
			{Threshold: 0, Penalty: 0},
		},
		SectorSigma: map[string]float64{
			"default":     0.03,
			"it":          0.02,
			"banks":       0.025,
			"psu_banks":   0.03,
			"nbfcs":       0.025,
			"metals":      0.04,
			"energy":      0.035,
			"fmcg":        0.02,
			"pharma":      0.025,
			"auto_caps":   0.03,
			"diversified": 0.03,
		},
	}
	cfg.RiskPenalty.Volatility.Multiplier = 2.5
	cfg.RiskPenalty.Volatility.Penalty = 5
	cfg.RiskPenalty.EventWindow.Days = 2
	cfg.RiskPenalty.EventWindow.Penalty = 2
	cfg.RiskPenalty.Governance.AuditorQualification = 2.0
	cfg.RiskPenalty.Governance.BoardResignation = 1.0

	cfg.Technicals.Weights.Above200 = 0.20
	cfg.Technicals.Weights.GoldenCross = 0.15
	cfg.Technicals.Weights.RSI = 0.20
	cfg.Technicals.Weights.Breakout = 0.25
	cfg.Technicals.Weights.Volume = 0.20
	cfg.Technicals.RSIBands.Oversold = 30
	cfg.Technicals.RSIBands.Overbought = 70
	cfg.Technicals.Breakout.ATRMultiplier = 0.75
	cfg.Technicals.Breakout.ClosePct = 0.01

	cfg.RelativeStrength.HorizonWeights = HorizonWeights{M1: 0.45, M3: 0.35, M6: 0.20}
	cfg.RelativeStrength.AlphaWeights.Sector = 0.60
	cfg.RelativeStrength.AlphaWeights.Market = 0.40

	cfg.Ownership.Weights.PromoterHold = 0.30
	cfg.Ownership.Weights.Pledge = 0.30
	cfg.Ownership.Weights.FIIDIIChange = 0.40
	cfg.Ownership.PledgePenaltyCurve = []CurvePoint{
		{Fraction: 0.00, Penalty: 0},
		{Fraction: 0.05, Penalty: 5},
		{Fraction: 0.10, Penalty: 10},
		{Fraction: 0.20, Penalty: 20},
		{Fraction: 1.00, Penalty: 30},
	}

	cfg.Quality.Weights.ROCE3y = 0.65
	cfg.Quality.Weights.OPMStability = 0.35

	cfg.Fundamentals.NonFinancial.ROE3y = 0.30
	cfg.Fundamentals.NonFinancial.SalesCAGR3y = 0.25
	cfg.Fundamentals.NonFinancial.EPSCAGR3y = 0.25
	cfg.Fundamentals.NonFinancial.Valuation = 0.20
	cfg.Fundamentals.Banking.ROA3y = 0.25
	cfg.Fundamentals.Banking.ROE3y = 0.20
	cfg.Fundamentals.Banking.GNPAPct = 0.25
	cfg.Fundamentals.Banking.PCRPct = 0.15
	cfg.Fundamentals.Banking.NIM3y = 0.15

	cfg.SectorMomentum.HorizonWeights = HorizonWeights{M1: 0.20, M3: 0.30, M6: 0.50}

	cfg.hash = cfg.computeHash()
	return cfg
}
