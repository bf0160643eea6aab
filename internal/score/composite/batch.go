package composite

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/greyoak/score/internal/domain"
)

// TickerError records one snapshot the batch could not score.
type TickerError struct {
	Ticker string
	Err    error
}

func (e TickerError) Error() string {
	return fmt.Sprintf("score %s: %v", e.Ticker, e.Err)
}

// BatchResult is the outcome of a universe scoring pass. Outputs are sorted
// by ticker; Failures by ticker as well. A pass with failures is still
// usable, the caller decides whether partial coverage is acceptable.
type BatchResult struct {
	Outputs  []domain.ScoreOutput
	Failures []TickerError
	Elapsed  time.Duration
}

// ProgressFunc observes batch completion; done counts both scored and
// failed snapshots.
type ProgressFunc func(done, total int)

// ScoreUniverse scores every snapshot in the universe under one mode,
// fanning work across a bounded pool. The cross-sectional context is built
// once up front, so every worker reads identical sector statistics and the
// result is independent of scheduling order.
func (e *Engine) ScoreUniverse(ctx context.Context, universe []domain.Snapshot, mode domain.Mode, asOf time.Time, progress ProgressFunc) (BatchResult, error) {
	start := time.Now()
	if len(universe) == 0 {
		return BatchResult{}, domain.ErrEmptyUniverse
	}
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return BatchResult{}, err
	}

	uctx := BuildContext(universe)

	workers := runtime.GOMAXPROCS(0)
	if workers > len(universe) {
		workers = len(universe)
	}

	type item struct {
		out domain.ScoreOutput
		err *TickerError
	}

	jobs := make(chan domain.Snapshot)
	results := make(chan item, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range jobs {
				out, err := e.Score(snap, uctx, mode, asOf)
				if err != nil {
					results <- item{err: &TickerError{Ticker: snap.Ticker, Err: err}}
					continue
				}
				results <- item{out: out}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, snap := range universe {
			select {
			case jobs <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := BatchResult{}
	done := 0
	for it := range results {
		done++
		if it.err != nil {
			res.Failures = append(res.Failures, *it.err)
		} else {
			res.Outputs = append(res.Outputs, it.out)
		}
		if progress != nil {
			progress(done, len(universe))
		}
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	sort.Slice(res.Outputs, func(a, b int) bool { return res.Outputs[a].Ticker < res.Outputs[b].Ticker })
	sort.Slice(res.Failures, func(a, b int) bool { return res.Failures[a].Ticker < res.Failures[b].Ticker })
	res.Elapsed = time.Since(start)

	e.log.Info().
		Int("scored", len(res.Outputs)).
		Int("failed", len(res.Failures)).
		Str("mode", string(mode)).
		Dur("elapsed", res.Elapsed).
		Msg("universe scored")

	return res, nil
}
