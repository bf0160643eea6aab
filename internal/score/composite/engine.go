// Package composite assembles the final 0-100 score: six pillar scores,
// the mode/sector weight blend, risk penalty subtraction, data-quality
// metrics and the guardrail pass.
package composite

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/score/guardrails"
	"github.com/greyoak/score/internal/score/pillars"
	"github.com/greyoak/score/internal/score/risk"
)

// Engine computes scores against a fixed configuration bundle. It carries
// no mutable state and is safe for concurrent use.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewEngine builds an engine on a validated configuration.
func NewEngine(cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log.With().Str("component", "composite").Logger()}
}

// Config exposes the engine's bundle, mainly for handlers that report the
// active hash.
func (e *Engine) Config() *config.Config { return e.cfg }

// UniverseContext is the shared cross-sectional state one scoring pass
// computes once and every ticker reads.
type UniverseContext struct {
	PeerSets []domain.PeerSet
	Market   domain.MarketBenchmark
	Sectors  []domain.SectorAggregate
}

// BuildContext derives the cross-sectional context from a universe of
// snapshots.
func BuildContext(universe []domain.Snapshot) UniverseContext {
	peerSets := pillars.BuildPeerSets(universe)
	return UniverseContext{
		PeerSets: peerSets,
		Market:   pillars.MarketFromUniverse(universe),
		Sectors:  pillars.SectorAggregates(peerSets),
	}
}

func (c UniverseContext) peersFor(sector string) (domain.PeerSet, bool) {
	for _, ps := range c.PeerSets {
		if ps.Sector == sector {
			return ps, true
		}
	}
	return domain.PeerSet{}, false
}

// Score computes the full output for one snapshot. The snapshot must be a
// member of its sector's peer set in uctx.
func (e *Engine) Score(snap domain.Snapshot, uctx UniverseContext, mode domain.Mode, asOf time.Time) (domain.ScoreOutput, error) {
	if err := snap.Validate(); err != nil {
		return domain.ScoreOutput{}, err
	}
	if !e.cfg.KnownSector(snap.SectorGroup) {
		return domain.ScoreOutput{}, fmt.Errorf("%w: %q", domain.ErrUnknownSector, snap.SectorGroup)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	peers, ok := uctx.peersFor(snap.SectorGroup)
	if !ok {
		peers = domain.PeerSet{Sector: snap.SectorGroup, Date: snap.Date, Members: []domain.Snapshot{snap}}
	}

	f := pillars.Fundamentals(e.cfg, snap, peers)
	t := pillars.Technicals(e.cfg, snap)
	r := pillars.RelativeStrength(e.cfg, snap, peers, uctx.Market)
	o := pillars.Ownership(e.cfg, snap, peers)
	q := pillars.Quality(e.cfg, snap, peers)
	s, sz := pillars.SectorMomentum(e.cfg, snap.SectorGroup, uctx.Sectors, uctx.Market)

	ps := domain.PillarScores{
		F: domain.Round2(f.Score),
		T: domain.Round2(t.Score),
		R: domain.Round2(r.Score),
		O: domain.Round2(o.Score),
		Q: domain.Round2(q.Score),
		S: domain.Round2(s.Score),
	}

	w, err := e.cfg.WeightsFor(snap.SectorGroup, mode)
	if err != nil {
		return domain.ScoreOutput{}, err
	}
	weighted := ps.F*w.F + ps.T*w.T + ps.R*w.R + ps.O*w.O + ps.Q*w.Q + ps.S*w.S

	rp := risk.Compute(e.cfg, snap, mode, asOf)
	preGuard := max(0, weighted-rp.Total)

	confidence, imputed := DataQuality(snap)

	outcome := guardrails.Apply(e.cfg, guardrails.Inputs{
		Score:           preGuard,
		Mode:            mode,
		Confidence:      confidence,
		ImputedFraction: imputed,
		SZ:              sz,
		RiskPenalty:     rp.Total,
		MTVCr:           snap.Price.MTVCr(),
		PledgeFrac:      snap.Own.PromoterPledgeFrac,
	})

	out := domain.ScoreOutput{
		Ticker:         snap.Ticker,
		Date:           snap.Date,
		Mode:           mode,
		Score:          domain.Round2(outcome.Score),
		Band:           outcome.Band,
		Pillars:        ps,
		RiskPenalty:    domain.Round2(rp.Total),
		GuardrailFlags: outcome.Flags,
		Confidence:     domain.Round3(confidence),
		SZ:             domain.Round3(sz),
		AsOf:           asOf,
		ConfigHash:     e.cfg.Hash(),
	}

	e.log.Debug().
		Str("ticker", out.Ticker).
		Str("mode", string(mode)).
		Float64("score", out.Score).
		Str("band", string(out.Band)).
		Float64("risk_penalty", out.RiskPenalty).
		Str("guardrails", guardrails.Summary(out.GuardrailFlags)).
		Msg("score computed")

	return out, nil
}
