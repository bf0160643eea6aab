package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/persistence"
	"github.com/greyoak/score/internal/score/composite"
	"github.com/greyoak/score/internal/universe"
)

// DefaultRescoreSchedule fires after Indian market close, 18:30 local.
const DefaultRescoreSchedule = "30 18 * * 1-5"

// RescoreJob reloads the universe from disk and rescores it under both
// modes, persisting all outputs.
type RescoreJob struct {
	loader   *universe.Loader
	engine   *composite.Engine
	store    persistence.ScoresRepo
	dataDir  string
	schedule string
	log      zerolog.Logger
}

// NewRescoreJob wires the daily rescore. An empty schedule uses the
// default post-close slot.
func NewRescoreJob(loader *universe.Loader, engine *composite.Engine, store persistence.ScoresRepo, dataDir, schedule string, log zerolog.Logger) *RescoreJob {
	if schedule == "" {
		schedule = DefaultRescoreSchedule
	}
	return &RescoreJob{
		loader:   loader,
		engine:   engine,
		store:    store,
		dataDir:  dataDir,
		schedule: schedule,
		log:      log.With().Str("component", "rescore").Logger(),
	}
}

func (j *RescoreJob) Name() string     { return "daily-rescore" }
func (j *RescoreJob) Schedule() string { return j.schedule }

// Run scores the whole universe for trader and investor modes. A run with
// partial per-ticker failures still persists what it scored; only a run
// that scores nothing is an error.
func (j *RescoreJob) Run(ctx context.Context) error {
	snaps, err := j.loader.LoadDir(j.dataDir)
	if err != nil {
		return fmt.Errorf("loading universe: %w", err)
	}

	asOf := time.Now().UTC()
	for _, mode := range []domain.Mode{domain.ModeTrader, domain.ModeInvestor} {
		result, err := j.engine.ScoreUniverse(ctx, snaps, mode, asOf, nil)
		if err != nil {
			return fmt.Errorf("scoring %s universe: %w", mode, err)
		}
		for _, f := range result.Failures {
			j.log.Warn().Str("ticker", f.Ticker).Str("mode", string(mode)).Err(f.Err).Msg("ticker failed")
		}
		if len(result.Outputs) == 0 {
			return fmt.Errorf("%s run produced no scores (%d failures)", mode, len(result.Failures))
		}
		if err := j.store.UpsertBatch(ctx, result.Outputs); err != nil {
			return fmt.Errorf("persisting %s scores: %w", mode, err)
		}
		j.log.Info().
			Str("mode", string(mode)).
			Int("scored", len(result.Outputs)).
			Int("failed", len(result.Failures)).
			Dur("elapsed", result.Elapsed).
			Msg("rescore pass persisted")
	}
	return nil
}
