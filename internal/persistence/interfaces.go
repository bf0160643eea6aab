// Package persistence defines the storage contracts for score artifacts.
// Implementations live in subpackages (postgres today).
package persistence

import (
	"context"
	"time"

	"github.com/greyoak/score/internal/domain"
)

// TimeRange bounds a query window, inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ScoresRepo stores and queries immutable score outputs keyed on
// (ticker, date, mode). Rescoring the same key overwrites the row: the
// output for a key is a pure function of inputs plus config hash, so the
// newest write is always the authoritative one.
type ScoresRepo interface {
	// Upsert writes one score output.
	Upsert(ctx context.Context, out domain.ScoreOutput) error

	// UpsertBatch writes many outputs atomically.
	UpsertBatch(ctx context.Context, outs []domain.ScoreOutput) error

	// Get fetches one exact (ticker, date, mode) row.
	Get(ctx context.Context, ticker string, date time.Time, mode domain.Mode) (domain.ScoreOutput, error)

	// ListByTicker returns a ticker's score history within a range,
	// newest first.
	ListByTicker(ctx context.Context, ticker string, mode domain.Mode, tr TimeRange, limit int) ([]domain.ScoreOutput, error)

	// ListByBand returns all scores in a band on a date, highest score
	// first then ticker for ties.
	ListByBand(ctx context.Context, band domain.Band, date time.Time, mode domain.Mode) ([]domain.ScoreOutput, error)

	// Latest returns the most recent score per ticker for a mode, highest
	// score first.
	Latest(ctx context.Context, mode domain.Mode, limit int) ([]domain.ScoreOutput, error)

	// Health verifies connectivity.
	Health(ctx context.Context) error
}
