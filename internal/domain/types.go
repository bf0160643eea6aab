package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the scoring horizon. Trader favors technicals and sector
// momentum over shorter windows; Investor favors fundamentals and ownership.
type Mode string

const (
	ModeTrader   Mode = "Trader"
	ModeInvestor Mode = "Investor"
)

// ParseMode normalizes and validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trader":
		return ModeTrader, nil
	case "investor":
		return ModeInvestor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Band is the discrete recommendation derived from the final score.
type Band string

const (
	BandStrongBuy Band = "Strong Buy"
	BandBuy       Band = "Buy"
	BandHold      Band = "Hold"
	BandAvoid     Band = "Avoid"
)

// bandRank orders bands from most conservative (lowest) to most favorable.
var bandRank = map[Band]int{
	BandAvoid:     0,
	BandHold:      1,
	BandBuy:       2,
	BandStrongBuy: 3,
}

// Rank returns the band's position in the Avoid < Hold < Buy < Strong Buy
// hierarchy. Unknown bands rank as Avoid.
func (b Band) Rank() int { return bandRank[b] }

// MostConservative returns the lower-ranked of the two bands. Guardrails use
// this to cap recommendations: a cap can never upgrade a band.
func MostConservative(a, b Band) Band {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// ValidBand reports whether b is one of the four fixed bands.
func ValidBand(b Band) bool {
	_, ok := bandRank[b]
	return ok
}

// Sentinel errors for the invalid-input and configuration-error taxonomy.
// Missing data and degenerate statistics are never errors: they resolve to
// neutral defaults and show up in confidence instead.
var (
	ErrInvalidTicker  = errors.New("invalid ticker")
	ErrInvalidMode    = errors.New("invalid mode")
	ErrUnknownSector  = errors.New("unknown sector group")
	ErrInvalidWeights = errors.New("pillar weights do not sum to 1.0")
	ErrEmptyUniverse  = errors.New("empty scoring universe")
)
