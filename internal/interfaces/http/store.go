package http

import (
	"context"
	"errors"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/persistence"
	"github.com/greyoak/score/internal/persistence/postgres"
)

// BreakerStore wraps a ScoresRepo with a circuit breaker so a struggling
// database sheds load fast instead of piling up timed-out handlers.
type BreakerStore struct {
	repo persistence.ScoresRepo
	cb   *cb.CircuitBreaker
}

// NewBreakerStore builds the breaker with the store's trip policy: three
// consecutive failures, or a >5% failure rate once traffic is meaningful.
// A not-found row is a business outcome, not a store failure, so it never
// counts toward the trip threshold.
func NewBreakerStore(repo persistence.ScoresRepo) *BreakerStore {
	st := cb.Settings{Name: "scores-store"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, postgres.ErrNotFound)
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &BreakerStore{repo: repo, cb: cb.NewCircuitBreaker(st)}
}

func (s *BreakerStore) execute(fn func() (any, error)) (any, error) {
	return s.cb.Execute(fn)
}

func (s *BreakerStore) Upsert(ctx context.Context, out domain.ScoreOutput) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.repo.Upsert(ctx, out)
	})
	return err
}

func (s *BreakerStore) UpsertBatch(ctx context.Context, outs []domain.ScoreOutput) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.repo.UpsertBatch(ctx, outs)
	})
	return err
}

func (s *BreakerStore) Get(ctx context.Context, ticker string, date time.Time, mode domain.Mode) (domain.ScoreOutput, error) {
	v, err := s.execute(func() (any, error) {
		return s.repo.Get(ctx, ticker, date, mode)
	})
	if err != nil {
		return domain.ScoreOutput{}, err
	}
	return v.(domain.ScoreOutput), nil
}

func (s *BreakerStore) ListByTicker(ctx context.Context, ticker string, mode domain.Mode, tr persistence.TimeRange, limit int) ([]domain.ScoreOutput, error) {
	v, err := s.execute(func() (any, error) {
		return s.repo.ListByTicker(ctx, ticker, mode, tr, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ScoreOutput), nil
}

func (s *BreakerStore) ListByBand(ctx context.Context, band domain.Band, date time.Time, mode domain.Mode) ([]domain.ScoreOutput, error) {
	v, err := s.execute(func() (any, error) {
		return s.repo.ListByBand(ctx, band, date, mode)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ScoreOutput), nil
}

func (s *BreakerStore) Latest(ctx context.Context, mode domain.Mode, limit int) ([]domain.ScoreOutput, error) {
	v, err := s.execute(func() (any, error) {
		return s.repo.Latest(ctx, mode, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ScoreOutput), nil
}

func (s *BreakerStore) Health(ctx context.Context) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.repo.Health(ctx)
	})
	return err
}

var _ persistence.ScoresRepo = (*BreakerStore)(nil)
