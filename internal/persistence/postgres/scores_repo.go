// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx. Guardrail flags are stored as a text array, pillar scores as flat
// columns so band and score queries stay indexable.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/persistence"
)

// ErrNotFound reports a missing (ticker, date, mode) row.
var ErrNotFound = errors.New("score not found")

// Schema creates the scores table. Idempotent; invoked at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS scores (
	ticker          TEXT             NOT NULL,
	date            DATE             NOT NULL,
	mode            TEXT             NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	band            TEXT             NOT NULL,
	pillar_f        DOUBLE PRECISION NOT NULL,
	pillar_t        DOUBLE PRECISION NOT NULL,
	pillar_r        DOUBLE PRECISION NOT NULL,
	pillar_o        DOUBLE PRECISION NOT NULL,
	pillar_q        DOUBLE PRECISION NOT NULL,
	pillar_s        DOUBLE PRECISION NOT NULL,
	risk_penalty    DOUBLE PRECISION NOT NULL,
	guardrail_flags TEXT[]           NOT NULL DEFAULT '{}',
	confidence      DOUBLE PRECISION NOT NULL,
	s_z             DOUBLE PRECISION NOT NULL,
	as_of           TIMESTAMPTZ      NOT NULL,
	config_hash     TEXT             NOT NULL,
	created_at      TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (ticker, date, mode)
);
CREATE INDEX IF NOT EXISTS idx_scores_band_date ON scores (band, date, mode);
CREATE INDEX IF NOT EXISTS idx_scores_date ON scores (date);
`

const scoreColumns = `ticker, date, mode, score, band,
	pillar_f, pillar_t, pillar_r, pillar_o, pillar_q, pillar_s,
	risk_penalty, guardrail_flags, confidence, s_z, as_of, config_hash`

const upsertQuery = `
	INSERT INTO scores (` + scoreColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (ticker, date, mode) DO UPDATE SET
		score = EXCLUDED.score,
		band = EXCLUDED.band,
		pillar_f = EXCLUDED.pillar_f,
		pillar_t = EXCLUDED.pillar_t,
		pillar_r = EXCLUDED.pillar_r,
		pillar_o = EXCLUDED.pillar_o,
		pillar_q = EXCLUDED.pillar_q,
		pillar_s = EXCLUDED.pillar_s,
		risk_penalty = EXCLUDED.risk_penalty,
		guardrail_flags = EXCLUDED.guardrail_flags,
		confidence = EXCLUDED.confidence,
		s_z = EXCLUDED.s_z,
		as_of = EXCLUDED.as_of,
		config_hash = EXCLUDED.config_hash`

type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoresRepo builds the PostgreSQL scores repository.
func NewScoresRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoresRepo {
	return &scoresRepo{db: db, timeout: timeout}
}

// EnsureSchema applies the scores schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply scores schema: %w", err)
	}
	return nil
}

// scoreRow is the flat database image of a ScoreOutput.
type scoreRow struct {
	Ticker         string         `db:"ticker"`
	Date           time.Time      `db:"date"`
	Mode           string         `db:"mode"`
	Score          float64        `db:"score"`
	Band           string         `db:"band"`
	PillarF        float64        `db:"pillar_f"`
	PillarT        float64        `db:"pillar_t"`
	PillarR        float64        `db:"pillar_r"`
	PillarO        float64        `db:"pillar_o"`
	PillarQ        float64        `db:"pillar_q"`
	PillarS        float64        `db:"pillar_s"`
	RiskPenalty    float64        `db:"risk_penalty"`
	GuardrailFlags pq.StringArray `db:"guardrail_flags"`
	Confidence     float64        `db:"confidence"`
	SZ             float64        `db:"s_z"`
	AsOf           time.Time      `db:"as_of"`
	ConfigHash     string         `db:"config_hash"`
}

func (r scoreRow) toDomain() domain.ScoreOutput {
	return domain.ScoreOutput{
		Ticker: r.Ticker,
		Date:   r.Date,
		Mode:   domain.Mode(r.Mode),
		Score:  r.Score,
		Band:   domain.Band(r.Band),
		Pillars: domain.PillarScores{
			F: r.PillarF, T: r.PillarT, R: r.PillarR,
			O: r.PillarO, Q: r.PillarQ, S: r.PillarS,
		},
		RiskPenalty:    r.RiskPenalty,
		GuardrailFlags: []string(r.GuardrailFlags),
		Confidence:     r.Confidence,
		SZ:             r.SZ,
		AsOf:           r.AsOf,
		ConfigHash:     r.ConfigHash,
	}
}

func upsertArgs(out domain.ScoreOutput) []any {
	return []any{
		out.Ticker, out.Date, string(out.Mode), out.Score, string(out.Band),
		out.Pillars.F, out.Pillars.T, out.Pillars.R, out.Pillars.O, out.Pillars.Q, out.Pillars.S,
		out.RiskPenalty, pq.StringArray(out.GuardrailFlags),
		out.Confidence, out.SZ, out.AsOf, out.ConfigHash,
	}
}

func (r *scoresRepo) Upsert(ctx context.Context, out domain.ScoreOutput) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, upsertQuery, upsertArgs(out)...); err != nil {
		return fmt.Errorf("upsert score %s/%s: %w", out.Ticker, out.Mode, err)
	}
	return nil
}

func (r *scoresRepo) UpsertBatch(ctx context.Context, outs []domain.ScoreOutput) error {
	if len(outs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(outs)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scores batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare scores upsert: %w", err)
	}
	defer stmt.Close()

	for _, out := range outs {
		if _, err := stmt.ExecContext(ctx, upsertArgs(out)...); err != nil {
			return fmt.Errorf("upsert score %s in batch: %w", out.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *scoresRepo) Get(ctx context.Context, ticker string, date time.Time, mode domain.Mode) (domain.ScoreOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + scoreColumns + ` FROM scores WHERE ticker = $1 AND date = $2 AND mode = $3`

	var row scoreRow
	err := r.db.GetContext(ctx, &row, query, ticker, date, string(mode))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScoreOutput{}, fmt.Errorf("%w: %s on %s (%s)", ErrNotFound, ticker, date.Format("2006-01-02"), mode)
	}
	if err != nil {
		return domain.ScoreOutput{}, fmt.Errorf("get score %s: %w", ticker, err)
	}
	return row.toDomain(), nil
}

func (r *scoresRepo) ListByTicker(ctx context.Context, ticker string, mode domain.Mode, tr persistence.TimeRange, limit int) ([]domain.ScoreOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + scoreColumns + ` FROM scores
		WHERE ticker = $1 AND mode = $2 AND date >= $3 AND date <= $4
		ORDER BY date DESC
		LIMIT $5`

	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, ticker, string(mode), tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("list scores for %s: %w", ticker, err)
	}
	return toDomainSlice(rows), nil
}

func (r *scoresRepo) ListByBand(ctx context.Context, band domain.Band, date time.Time, mode domain.Mode) ([]domain.ScoreOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + scoreColumns + ` FROM scores
		WHERE band = $1 AND date = $2 AND mode = $3
		ORDER BY score DESC, ticker ASC`

	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, string(band), date, string(mode)); err != nil {
		return nil, fmt.Errorf("list scores in band %s: %w", band, err)
	}
	return toDomainSlice(rows), nil
}

func (r *scoresRepo) Latest(ctx context.Context, mode domain.Mode, limit int) ([]domain.ScoreOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + scoreColumns + ` FROM (
			SELECT DISTINCT ON (ticker) ` + scoreColumns + `
			FROM scores
			WHERE mode = $1
			ORDER BY ticker, date DESC
		) latest
		ORDER BY score DESC, ticker ASC
		LIMIT $2`

	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, string(mode), limit); err != nil {
		return nil, fmt.Errorf("list latest scores: %w", err)
	}
	return toDomainSlice(rows), nil
}

func (r *scoresRepo) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

func toDomainSlice(rows []scoreRow) []domain.ScoreOutput {
	out := make([]domain.ScoreOutput, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}
