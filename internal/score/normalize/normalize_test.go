package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyoak/score/internal/domain"
)

func metrics(vals ...float64) []domain.Metric {
	out := make([]domain.Metric, len(vals))
	for i, v := range vals {
		out[i] = domain.M(v)
	}
	return out
}

func TestPointsFromZBounds(t *testing.T) {
	assert.InDelta(t, 50.0, PointsFromZ(0), 1e-12)
	assert.InDelta(t, 80.0, PointsFromZ(2), 1e-12)
	assert.InDelta(t, 20.0, PointsFromZ(-2), 1e-12)
	assert.Equal(t, 100.0, PointsFromZ(5))
	assert.Equal(t, 0.0, PointsFromZ(-5))
}

func TestZScoreDirectionFlip(t *testing.T) {
	higher := ZScore(12, 10, 2, true)
	lower := ZScore(12, 10, 2, false)
	assert.InDelta(t, 1.0, higher, 1e-6)
	assert.InDelta(t, -1.0, lower, 1e-6)
}

func TestScoresZPathMonotonic(t *testing.T) {
	// Seven members with spread: z-score path.
	vals := metrics(10, 20, 30, 40, 50, 60, 70)
	res := Scores(vals, true)
	require.Len(t, res, 7)
	for i, r := range res {
		assert.Equal(t, MethodZScore, r.Method, "index %d", i)
		assert.False(t, r.Imputed)
		assert.GreaterOrEqual(t, r.Points, 0.0)
		assert.LessOrEqual(t, r.Points, 100.0)
	}
	for i := 1; i < len(res); i++ {
		assert.Greater(t, res[i].Points, res[i-1].Points)
	}
	// Median sits at the center of the scale.
	assert.InDelta(t, 50.0, res[3].Points, 1e-6)
}

func TestScoresLowerBetterInverts(t *testing.T) {
	vals := metrics(10, 20, 30, 40, 50, 60, 70)
	hb := Scores(vals, true)
	lb := Scores(vals, false)
	for i := range vals {
		assert.InDelta(t, hb[i].Points, 100-lb[i].Points, 1e-6, "index %d", i)
	}
}

func TestScoresSmallGroupUsesPercentiles(t *testing.T) {
	vals := metrics(5, 15, 25)
	res := Scores(vals, true)
	require.Len(t, res, 3)
	assert.Equal(t, MethodECDF, res[0].Method)
	assert.InDelta(t, 25.0, res[0].Points, 1e-6) // rank 1 of 3 -> 1/4
	assert.InDelta(t, 50.0, res[1].Points, 1e-6)
	assert.InDelta(t, 75.0, res[2].Points, 1e-6)
}

func TestScoresZeroVarianceFallsBack(t *testing.T) {
	vals := metrics(7, 7, 7, 7, 7, 7, 7)
	res := Scores(vals, true)
	for _, r := range res {
		assert.Equal(t, MethodECDF, r.Method)
		// All tied: averaged rank 4 of 7 -> 4/8.
		assert.InDelta(t, 50.0, r.Points, 1e-6)
	}
}

func TestScoresTiesShareAveragedRank(t *testing.T) {
	vals := metrics(10, 20, 20, 30)
	res := Scores(vals, true)
	assert.InDelta(t, res[1].Points, res[2].Points, 1e-12)
	assert.InDelta(t, 50.0, res[1].Points, 1e-6) // ranks 2,3 average 2.5 of n+1=5
}

func TestScoresMissingImputedNeutral(t *testing.T) {
	vals := []domain.Metric{domain.M(10), {}, domain.M(30), domain.M(40), domain.M(50), domain.M(60), domain.M(70)}
	res := Scores(vals, true)
	assert.True(t, res[1].Imputed)
	assert.Equal(t, MethodNeutral, res[1].Method)
	assert.InDelta(t, 50.0, res[1].Points, 1e-12)
	assert.False(t, res[0].Imputed)
}

func TestScoresDegenerateGroups(t *testing.T) {
	res := Scores([]domain.Metric{domain.M(42)}, true)
	require.Len(t, res, 1)
	assert.InDelta(t, 50.0, res[0].Points, 1e-12)
	assert.Equal(t, MethodNeutral, res[0].Method)
	assert.False(t, res[0].Imputed)

	res = Scores([]domain.Metric{{}, {}}, true)
	for _, r := range res {
		assert.InDelta(t, 50.0, r.Points, 1e-12)
		assert.True(t, r.Imputed)
	}

	assert.Empty(t, Scores(nil, true))
}

func TestScoreTargetAgainstPeers(t *testing.T) {
	peers := metrics(10, 20, 30, 40, 50, 60)
	r := Score(domain.M(70), peers, true)
	assert.Equal(t, MethodZScore, r.Method)
	assert.Greater(t, r.Points, 50.0)
}

func TestMedianAndSampleStd(t *testing.T) {
	assert.InDelta(t, 25.0, Median([]float64{10, 20, 30, 40}), 1e-12)
	assert.InDelta(t, 30.0, Median([]float64{10, 30, 50}), 1e-12)
	assert.InDelta(t, 0.0, SampleStd([]float64{5}), 1e-12)
	// Sample std of {2,4,4,4,5,5,7,9} is ~2.138.
	assert.InDelta(t, 2.13809, SampleStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-4)
}
