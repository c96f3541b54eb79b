package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

func testParams() *config.TemporalParams {
	return &config.TemporalParams{
		WindowSize:             24,
		OutlierSigma:           3.0,
		OutlierConfidenceMin:   0.7,
		OutlierConfidenceScale: 0.6,
		AnomalyPenalty:         0.5,
		TrendWorseningSlope:    0.05,
		TrendSustainedCycles:   4,
	}
}

func feed(e *Engine, p *config.TemporalParams, param model.ParameterID, values []float64) Adjusted {
	var last Adjusted
	for _, v := range values {
		out := e.Process(map[model.ParameterID]model.FusedParameter{
			param: {Parameter: param, Value: v, Confidence: 0.9},
		}, p)
		last = out[param]
	}
	return last
}

// Steady-state history with mild jitter around 10.
var jitter = []float64{10.0, 10.2, 9.9, 10.1, 9.8, 10.0, 10.15, 9.95, 10.05, 9.9, 10.1, 10.0}

func TestOutlierSubstitutedWithTrendPrediction(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	feed(e, p, model.ParamInfraEMF, jitter)

	out := e.Process(map[model.ParameterID]model.FusedParameter{
		model.ParamInfraEMF: {Parameter: model.ParamInfraEMF, Value: 100.0, Confidence: 0.9},
	}, p)
	adj := out[model.ParamInfraEMF]

	require.True(t, adj.Substituted)
	assert.InDelta(t, 10.0, adj.Value, 0.5, "prediction follows the flat trend, not the spike")
	assert.LessOrEqual(t, adj.Confidence, 0.9*p.OutlierConfidenceScale)
	assert.Greater(t, adj.Confidence, 0.0)
}

func TestMarginalOutlierKeptRaw(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	feed(e, p, model.ParamInfraEMF, jitter)

	// Past the outlier gate but with low outlier confidence: kept as-is.
	out := e.Process(map[model.ParameterID]model.FusedParameter{
		model.ParamInfraEMF: {Parameter: model.ParamInfraEMF, Value: 10.45, Confidence: 0.9},
	}, p)
	adj := out[model.ParamInfraEMF]

	assert.False(t, adj.Substituted)
	assert.InDelta(t, 10.45, adj.Value, 1e-9)
}

func TestShortHistoryNeverFlagsOutliers(t *testing.T) {
	e := New(logging.Default())
	p := testParams()

	adj := feed(e, p, model.ParamVOCFormaldehyde, []float64{5, 500})
	assert.False(t, adj.Substituted)
	assert.InDelta(t, 500, adj.Value, 1e-9)
}

func TestSubstitutedValueEntersHistory(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	feed(e, p, model.ParamInfraEMF, jitter)

	// A spike must not poison the history it was screened against.
	first := e.Process(map[model.ParameterID]model.FusedParameter{
		model.ParamInfraEMF: {Parameter: model.ParamInfraEMF, Value: 100.0, Confidence: 0.9},
	}, p)[model.ParamInfraEMF]
	require.True(t, first.Substituted)

	second := e.Process(map[model.ParameterID]model.FusedParameter{
		model.ParamInfraEMF: {Parameter: model.ParamInfraEMF, Value: 10.0, Confidence: 0.9},
	}, p)[model.ParamInfraEMF]
	assert.False(t, second.Substituted, "normal value after a screened spike is not an outlier")
}

func TestTrendRisingAndSustainedWorsening(t *testing.T) {
	e := New(logging.Default())
	p := testParams()

	rising := make([]float64, 12)
	for i := range rising {
		rising[i] = float64(i) * 2
	}
	adj := feed(e, p, model.ParamInfraThermal, rising)

	assert.Equal(t, DirectionRising, adj.Trend.Direction)
	assert.Greater(t, adj.Trend.Magnitude, p.TrendWorseningSlope)
	assert.True(t, adj.Trend.SustainedWorsening)
}

func TestTrendFallingAndStable(t *testing.T) {
	e := New(logging.Default())
	p := testParams()

	falling := feed(e, p, model.ParamInfraThermal, []float64{50, 48, 46, 44, 42, 40})
	assert.Equal(t, DirectionFalling, falling.Trend.Direction)
	assert.False(t, falling.Trend.SustainedWorsening)

	stable := feed(e, p, model.ParamMetHumidity, []float64{50, 50.01, 49.99, 50, 50.01, 50})
	assert.Equal(t, DirectionStable, stable.Trend.Direction)
}

func TestTrendAcceleration(t *testing.T) {
	e := New(logging.Default())
	p := testParams()

	quadratic := make([]float64, 12)
	for i := range quadratic {
		quadratic[i] = float64(i * i)
	}
	adj := feed(e, p, model.ParamInfraThermal, quadratic)
	assert.Greater(t, adj.Trend.Acceleration, 0.0)

	linear := make([]float64, 12)
	for i := range linear {
		linear[i] = float64(i) * 3
	}
	e.Reset()
	adj = feed(e, p, model.ParamInfraThermal, linear)
	assert.InDelta(t, 0.0, adj.Trend.Acceleration, 1e-6)
}

func TestPeriodicityDetection(t *testing.T) {
	periodic := []float64{0, 10, 0, 10, 0, 10, 0, 10, 0, 10}
	assert.Greater(t, periodicity(periodic), 0.7)

	flat := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	assert.Zero(t, periodicity(flat))

	ramp := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Greater(t, periodicity(periodic), periodicity(ramp))
}

func TestAnomalyScorePenalizesConfidence(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	feed(e, p, model.ParamVOCAcrolein, jitter)

	// In-gate excursion (below the outlier sigma) still raises the
	// anomaly score and trims confidence.
	out := e.Process(map[model.ParameterID]model.FusedParameter{
		model.ParamVOCAcrolein: {Parameter: model.ParamVOCAcrolein, Value: 10.3, Confidence: 0.9},
	}, p)
	adj := out[model.ParamVOCAcrolein]
	assert.False(t, adj.Substituted)
	assert.Less(t, adj.Confidence, 0.9)
	assert.GreaterOrEqual(t, adj.Trend.AnomalyScore, 0.0)
	assert.LessOrEqual(t, adj.Trend.AnomalyScore, 1.0)
}

func TestWindowBounded(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	p.WindowSize = 5

	long := make([]float64, 50)
	for i := range long {
		long[i] = float64(i)
	}
	feed(e, p, model.ParamMetTemperature, long)
	assert.Len(t, e.history[model.ParamMetTemperature].values, 5)
}

func TestResetClearsHistory(t *testing.T) {
	e := New(logging.Default())
	p := testParams()
	feed(e, p, model.ParamMetTemperature, jitter)

	e.Reset()
	assert.Empty(t, e.history)
}
