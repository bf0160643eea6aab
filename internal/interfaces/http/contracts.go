package http

import (
	"time"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/score/composite"
)

// ErrorResponse is the standard API error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreResponse wraps one score output, optionally with its explanation.
type ScoreResponse struct {
	Score   domain.ScoreOutput    `json:"score"`
	Explain composite.Explanation `json:"explain,omitempty"`
}

// ScoreListResponse wraps a list query result.
type ScoreListResponse struct {
	Scores    []domain.ScoreOutput `json:"scores"`
	Count     int                  `json:"count"`
	Generated time.Time            `json:"generated"`
}

// ScoreRequest submits a universe for synchronous scoring. The full universe
// is required even when only some tickers matter, because normalization is
// cross-sectional within each sector.
type ScoreRequest struct {
	Mode     string            `json:"mode"`
	AsOf     *time.Time        `json:"as_of,omitempty"`
	Persist  bool              `json:"persist"`
	Universe []domain.Snapshot `json:"universe"`
}

// BatchFailure reports one ticker that could not be scored.
type BatchFailure struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// ScoreBatchResponse is the result of a synchronous universe scoring run.
type ScoreBatchResponse struct {
	Scores    []domain.ScoreOutput `json:"scores"`
	Failures  []BatchFailure       `json:"failures,omitempty"`
	ElapsedMs int64                `json:"elapsed_ms"`
	Persisted bool                 `json:"persisted"`
}

// HealthResponse reports liveness of the API and its dependencies.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	ConfigHash string            `json:"config_hash"`
	Checks     map[string]string `json:"checks"`
	Timestamp  time.Time         `json:"timestamp"`
}
