package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	cb "github.com/sony/gobreaker"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/metrics"
	"github.com/greyoak/score/internal/persistence"
	"github.com/greyoak/score/internal/persistence/postgres"
	"github.com/greyoak/score/internal/score/composite"
)

const apiVersion = "v1.0.0"

const (
	defaultHistoryLimit = 90
	defaultRankingLimit = 50
	maxListLimit        = 500
	maxUniverseSize     = 5000
)

// Handlers serves the scoring API. The store is expected to be wrapped in
// a circuit breaker; open-breaker errors map to 503.
type Handlers struct {
	engine  *composite.Engine
	store   persistence.ScoresRepo
	metrics *metrics.Registry
	hub     *ProgressHub
	log     zerolog.Logger
}

// NewHandlers wires handler dependencies.
func NewHandlers(engine *composite.Engine, store persistence.ScoresRepo, reg *metrics.Registry, hub *ProgressHub, log zerolog.Logger) *Handlers {
	return &Handlers{
		engine:  engine,
		store:   store,
		metrics: reg,
		hub:     hub,
		log:     log.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC(),
	})
}

// writeStoreError maps storage failures onto API statuses.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "score_not_found", err.Error())
	case errors.Is(err, cb.ErrOpenState), errors.Is(err, cb.ErrTooManyRequests):
		h.writeError(w, r, http.StatusServiceUnavailable, "store_unavailable",
			"score store is temporarily unavailable")
	default:
		h.log.Error().Err(err).Str("request_id", requestIDFrom(r)).Msg("store query failed")
		h.writeError(w, r, http.StatusInternalServerError, "store_error", "storage query failed")
	}
}

// NotFound handles unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"the requested endpoint does not exist")
}

// Health reports API liveness plus store connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status := "healthy"
	code := http.StatusOK

	if err := h.store.Health(r.Context()); err != nil {
		checks["store"] = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, HealthResponse{
		Status:     status,
		Version:    apiVersion,
		ConfigHash: h.engine.Config().Hash(),
		Checks:     checks,
		Timestamp:  time.Now().UTC(),
	})
}

// GetScore handles GET /v1/scores/{ticker}?date=&mode=&explain=.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	mode, ok := h.parseMode(w, r)
	if !ok {
		return
	}
	date, ok := h.parseDate(w, r, "date", time.Now().UTC().Truncate(24*time.Hour))
	if !ok {
		return
	}

	out, err := h.store.Get(r.Context(), ticker, date, mode)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	resp := ScoreResponse{Score: out}
	if r.URL.Query().Get("explain") == "true" {
		resp.Explain = composite.Explain(out)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ScoreHistory handles GET /v1/scores/{ticker}/history?mode=&from=&to=&limit=.
func (h *Handlers) ScoreHistory(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	mode, ok := h.parseMode(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	from, ok := h.parseDate(w, r, "from", now.AddDate(0, -3, 0))
	if !ok {
		return
	}
	to, ok := h.parseDate(w, r, "to", now)
	if !ok {
		return
	}
	limit := parseLimit(r, "limit", defaultHistoryLimit)

	scores, err := h.store.ListByTicker(r.Context(), ticker, mode, persistence.TimeRange{From: from, To: to}, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreListResponse{
		Scores:    scores,
		Count:     len(scores),
		Generated: time.Now().UTC(),
	})
}

// ListScores handles GET /v1/scores?band=&date=&mode=.
func (h *Handlers) ListScores(w http.ResponseWriter, r *http.Request) {
	band := domain.Band(r.URL.Query().Get("band"))
	if !domain.ValidBand(band) {
		h.writeError(w, r, http.StatusBadRequest, "invalid_band",
			"band must be one of: Strong Buy, Buy, Hold, Avoid")
		return
	}
	mode, ok := h.parseMode(w, r)
	if !ok {
		return
	}
	date, ok := h.parseDate(w, r, "date", time.Now().UTC().Truncate(24*time.Hour))
	if !ok {
		return
	}

	scores, err := h.store.ListByBand(r.Context(), band, date, mode)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreListResponse{
		Scores:    scores,
		Count:     len(scores),
		Generated: time.Now().UTC(),
	})
}

// Rankings handles GET /v1/rankings?mode=&limit=, the latest score per
// ticker ordered by score.
func (h *Handlers) Rankings(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.parseMode(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r, "limit", defaultRankingLimit)

	scores, err := h.store.Latest(r.Context(), mode, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreListResponse{
		Scores:    scores,
		Count:     len(scores),
		Generated: time.Now().UTC(),
	})
}

// ScoreUniverse handles POST /v1/scores: synchronous scoring of a submitted
// universe, optionally persisting the outputs.
func (h *Handlers) ScoreUniverse(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.Universe) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "empty_universe",
			"universe must contain at least one snapshot")
		return
	}
	if len(req.Universe) > maxUniverseSize {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "universe_too_large",
			"universe exceeds the maximum batch size")
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_mode", err.Error())
		return
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	h.metrics.ActiveBatches.Inc()
	defer h.metrics.ActiveBatches.Dec()

	result, err := h.engine.ScoreUniverse(r.Context(), req.Universe, mode, asOf, h.hub.Progress())
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "scoring_failed", err.Error())
		return
	}
	h.metrics.BatchDuration.Observe(result.Elapsed.Seconds())
	for _, out := range result.Outputs {
		h.metrics.RecordScore(string(out.Mode), string(out.Band), out.GuardrailFlags)
	}
	failures := make([]BatchFailure, 0, len(result.Failures))
	for _, f := range result.Failures {
		h.metrics.BatchFailures.Inc()
		failures = append(failures, BatchFailure{Ticker: f.Ticker, Error: f.Err.Error()})
	}

	persisted := false
	if req.Persist && len(result.Outputs) > 0 {
		if err := h.store.UpsertBatch(r.Context(), result.Outputs); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		persisted = true
	}

	h.writeJSON(w, http.StatusOK, ScoreBatchResponse{
		Scores:    result.Outputs,
		Failures:  failures,
		ElapsedMs: result.Elapsed.Milliseconds(),
		Persisted: persisted,
	})
}

func (h *Handlers) parseMode(w http.ResponseWriter, r *http.Request) (domain.Mode, bool) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return domain.ModeTrader, true
	}
	mode, err := domain.ParseMode(raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_mode", err.Error())
		return "", false
	}
	return mode, true
}

func (h *Handlers) parseDate(w http.ResponseWriter, r *http.Request, key string, def time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_date",
			key+" must be formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func parseLimit(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
