package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/metrics"
	"github.com/greyoak/score/internal/persistence"
	"github.com/greyoak/score/internal/persistence/postgres"
	"github.com/greyoak/score/internal/score/composite"
)

var testDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

// memRepo is an in-memory ScoresRepo for handler tests.
type memRepo struct {
	rows map[string]domain.ScoreOutput
	err  error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]domain.ScoreOutput)}
}

func repoKey(ticker string, date time.Time, mode domain.Mode) string {
	return fmt.Sprintf("%s|%s|%s", ticker, date.Format("2006-01-02"), mode)
}

func (m *memRepo) Upsert(ctx context.Context, out domain.ScoreOutput) error {
	if m.err != nil {
		return m.err
	}
	m.rows[repoKey(out.Ticker, out.Date, out.Mode)] = out
	return nil
}

func (m *memRepo) UpsertBatch(ctx context.Context, outs []domain.ScoreOutput) error {
	for _, out := range outs {
		if err := m.Upsert(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) Get(ctx context.Context, ticker string, date time.Time, mode domain.Mode) (domain.ScoreOutput, error) {
	if m.err != nil {
		return domain.ScoreOutput{}, m.err
	}
	out, ok := m.rows[repoKey(ticker, date, mode)]
	if !ok {
		return domain.ScoreOutput{}, postgres.ErrNotFound
	}
	return out, nil
}

func (m *memRepo) ListByTicker(ctx context.Context, ticker string, mode domain.Mode, tr persistence.TimeRange, limit int) ([]domain.ScoreOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	var outs []domain.ScoreOutput
	for _, out := range m.rows {
		if out.Ticker == ticker && out.Mode == mode && !out.Date.Before(tr.From) && !out.Date.After(tr.To) {
			outs = append(outs, out)
		}
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].Date.After(outs[j].Date) })
	if len(outs) > limit {
		outs = outs[:limit]
	}
	return outs, nil
}

func (m *memRepo) ListByBand(ctx context.Context, band domain.Band, date time.Time, mode domain.Mode) ([]domain.ScoreOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	var outs []domain.ScoreOutput
	for _, out := range m.rows {
		if out.Band == band && out.Mode == mode && out.Date.Equal(date) {
			outs = append(outs, out)
		}
	}
	sort.Slice(outs, func(i, j int) bool {
		if outs[i].Score != outs[j].Score {
			return outs[i].Score > outs[j].Score
		}
		return outs[i].Ticker < outs[j].Ticker
	})
	return outs, nil
}

func (m *memRepo) Latest(ctx context.Context, mode domain.Mode, limit int) ([]domain.ScoreOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	latest := make(map[string]domain.ScoreOutput)
	for _, out := range m.rows {
		if out.Mode != mode {
			continue
		}
		if cur, ok := latest[out.Ticker]; !ok || out.Date.After(cur.Date) {
			latest[out.Ticker] = out
		}
	}
	outs := make([]domain.ScoreOutput, 0, len(latest))
	for _, out := range latest {
		outs = append(outs, out)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].Score > outs[j].Score })
	if len(outs) > limit {
		outs = outs[:limit]
	}
	return outs, nil
}

func (m *memRepo) Health(ctx context.Context) error { return m.err }

func testServer(t *testing.T, repo persistence.ScoresRepo) (*Server, *memRepo) {
	t.Helper()
	mem, _ := repo.(*memRepo)
	engine := composite.NewEngine(config.Default(), zerolog.Nop())
	reg := metrics.New()
	hub := NewProgressHub(zerolog.Nop())
	h := NewHandlers(engine, repo, reg, hub, zerolog.Nop())

	cfg := DefaultServerConfig()
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
		config:   cfg,
		log:      zerolog.Nop(),
		metrics:  reg,
		limiter:  newClientLimiter(cfg.RateRPS, cfg.RateBurst),
	}
	s.setupRoutes()
	return s, mem
}

// testUniverse builds two sectors with enough members for z-score
// normalization and full data coverage.
func testUniverse() []domain.Snapshot {
	var u []domain.Snapshot
	for i := 0; i < 7; i++ {
		u = append(u, universeSnapshot(fmt.Sprintf("IT%02d", i), "it", float64(i)/6))
	}
	for i := 0; i < 7; i++ {
		u = append(u, universeSnapshot(fmt.Sprintf("PH%02d", i), "pharma", 0.3+0.4*float64(i)/6))
	}
	return u
}

func universeSnapshot(ticker, sector string, strength float64) domain.Snapshot {
	return domain.Snapshot{
		Ticker:      ticker,
		Date:        testDate,
		SectorGroup: sector,
		Price: domain.PriceRecord{
			Close:               domain.M(100 + 40*strength),
			Volume:              domain.M(2_000_000),
			DMA20:               domain.M(100 + 30*strength),
			DMA50:               domain.M(100 + 20*strength),
			DMA200:              domain.M(100 + 10*strength),
			RSI14:               domain.M(35 + 30*strength),
			ATR14:               domain.M(3),
			Hi20:                domain.M(100 + 35*strength),
			Ret21d:              domain.M(-0.04 + 0.12*strength),
			Ret63d:              domain.M(-0.06 + 0.20*strength),
			Ret126d:             domain.M(-0.08 + 0.30*strength),
			Sigma20:             domain.M(0.018),
			Sigma60:             domain.M(0.020),
			AvgVolume20:         domain.M(1_800_000),
			VolumeBars:          20,
			MedianTradedValueCr: domain.M(25),
		},
		Fund: domain.FundamentalsRecord{
			Kind: domain.FundamentalsStandard,
			Standard: domain.StandardFundamentals{
				ROE3y:       domain.M(0.08 + 0.15*strength),
				SalesCAGR3y: domain.M(0.05 + 0.15*strength),
				EPSCAGR3y:   domain.M(0.05 + 0.18*strength),
				PE:          domain.M(40 - 20*strength),
			},
			MarketCapCr: domain.M(5_000 + 50_000*strength),
			ROCE3y:      domain.M(0.10 + 0.12*strength),
			OPMStdev12q: domain.M(0.06 - 0.04*strength),
		},
		Own: domain.OwnershipRecord{
			PromoterHoldPct:    domain.M(0.40 + 0.25*strength),
			PromoterPledgeFrac: domain.M(0),
			FIIDIIDeltaPP:      domain.M(-0.5 + 1.5*strength),
			FIIHoldingPct:      domain.M(0.15 + 0.10*strength),
		},
	}
}

func sampleScore(ticker string, score float64, band domain.Band) domain.ScoreOutput {
	return domain.ScoreOutput{
		Ticker: ticker, Date: testDate, Mode: domain.ModeTrader,
		Score: score, Band: band,
		GuardrailFlags: []string{},
		AsOf:           testDate, ConfigHash: "deadbeef",
	}
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestGetScore(t *testing.T) {
	s, repo := testServer(t, newMemRepo())
	want := sampleScore("INFY", 72.5, domain.BandBuy)
	require.NoError(t, repo.Upsert(context.Background(), want))

	rec := doRequest(s, "GET", "/v1/scores/INFY?date=2024-06-28&mode=trader", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INFY", resp.Score.Ticker)
	assert.Equal(t, 72.5, resp.Score.Score)
	assert.Nil(t, resp.Explain)
}

func TestGetScoreWithExplain(t *testing.T) {
	s, repo := testServer(t, newMemRepo())
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("INFY", 72.5, domain.BandBuy)))

	rec := doRequest(s, "GET", "/v1/scores/INFY?date=2024-06-28&explain=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Explain, "pillars")
	assert.Contains(t, resp.Explain, "guardrails")
}

func TestGetScoreNotFound(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/v1/scores/NOPE?date=2024-06-28", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "score_not_found", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestGetScoreBadInputs(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/v1/scores/INFY?mode=swing", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, "GET", "/v1/scores/INFY?date=28-06-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListScoresByBand(t *testing.T) {
	s, repo := testServer(t, newMemRepo())
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("AAA", 80, domain.BandStrongBuy)))
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("BBB", 77, domain.BandStrongBuy)))
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("CCC", 60, domain.BandHold)))

	rec := doRequest(s, "GET", "/v1/scores?band=Strong+Buy&date=2024-06-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScoreListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "AAA", resp.Scores[0].Ticker)
	assert.Equal(t, "BBB", resp.Scores[1].Ticker)
}

func TestListScoresRejectsBadBand(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/v1/scores?band=Moon&date=2024-06-28", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_band", resp.Code)
}

func TestRankings(t *testing.T) {
	s, repo := testServer(t, newMemRepo())
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("AAA", 80, domain.BandStrongBuy)))
	require.NoError(t, repo.Upsert(context.Background(), sampleScore("BBB", 55, domain.BandHold)))

	rec := doRequest(s, "GET", "/v1/rankings?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScoreListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "AAA", resp.Scores[0].Ticker)
}

func TestScoreHistory(t *testing.T) {
	s, repo := testServer(t, newMemRepo())
	for i := 0; i < 3; i++ {
		out := sampleScore("INFY", 60+float64(i), domain.BandHold)
		out.Date = testDate.AddDate(0, 0, -i)
		require.NoError(t, repo.Upsert(context.Background(), out))
	}

	rec := doRequest(s, "GET", "/v1/scores/INFY/history?from=2024-06-01&to=2024-06-28&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScoreListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.True(t, resp.Scores[0].Date.After(resp.Scores[1].Date))
}

func TestScoreUniversePersists(t *testing.T) {
	s, repo := testServer(t, newMemRepo())

	req := ScoreRequest{Mode: "trader", Persist: true, Universe: testUniverse()}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := doRequest(s, "POST", "/v1/scores", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ScoreBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Scores, len(req.Universe))
	assert.Empty(t, resp.Failures)
	assert.True(t, resp.Persisted)
	assert.Len(t, repo.rows, len(req.Universe))
}

func TestScoreUniverseValidation(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "POST", "/v1/scores", []byte(`{"mode":"trader","universe":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, "POST", "/v1/scores", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ := json.Marshal(ScoreRequest{Mode: "swing", Universe: testUniverse()})
	rec = doRequest(s, "POST", "/v1/scores", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.NotEmpty(t, resp.ConfigHash)
}

func TestHealthDegraded(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	s, _ := testServer(t, repo)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestNotFoundRoute(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "endpoint_not_found", resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t, newMemRepo())

	rec := doRequest(s, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	s, _ := testServer(t, newMemRepo())
	s.limiter = newClientLimiter(1, 2)

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := doRequest(s, "GET", "/health", nil)
		codes[rec.Code]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}
