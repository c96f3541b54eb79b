package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
)

func testParams() *config.FusionParams {
	return &config.FusionParams{
		OutlierDeviationSigma: 2.5,
		FallbackConfidence:    0.2,
		MinSources:            2,
	}
}

func reading(sensor string, param model.ParameterID, value, confidence float64) model.SensorReading {
	return model.SensorReading{
		Sensor:     model.SensorID(sensor),
		Parameter:  param,
		Value:      value,
		Timestamp:  time.Now().UTC(),
		Confidence: confidence,
	}
}

func TestFuseWeightedAverage(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamMetTemperature: {
			reading("temp-a", model.ParamMetTemperature, 20.0, 0.9),
			reading("temp-b", model.ParamMetTemperature, 24.0, 0.3),
		},
	}

	out := e.Fuse(readings, nil, testParams())
	fp, ok := out.Parameters[model.ParamMetTemperature]
	require.True(t, ok)

	// The high-confidence sensor dominates: (0.9*20 + 0.3*24) / 1.2 = 21.
	assert.InDelta(t, 21.0, fp.Value, 1e-9)
	assert.Less(t, math.Abs(fp.Value-20.0), math.Abs(fp.Value-24.0))
	assert.ElementsMatch(t, []model.SensorID{"temp-a", "temp-b"}, fp.Sources)
	assert.False(t, fp.Fallback)
}

func TestFuseExcludesOutlierSensor(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamVOCFormaldehyde: {
			reading("voc-a", model.ParamVOCFormaldehyde, 10.0, 0.9),
			reading("voc-b", model.ParamVOCFormaldehyde, 10.2, 0.9),
			reading("voc-c", model.ParamVOCFormaldehyde, 50.0, 0.9),
		},
	}

	out := e.Fuse(readings, nil, testParams())
	fp := out.Parameters[model.ParamVOCFormaldehyde]

	assert.NotContains(t, fp.Sources, model.SensorID("voc-c"))
	assert.GreaterOrEqual(t, fp.Value, 10.0)
	assert.LessOrEqual(t, fp.Value, 10.2)
}

func TestFuseTwoSensorsCannotVoteEachOtherOut(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamInfraEMF: {
			reading("emf-a", model.ParamInfraEMF, 40.0, 0.8),
			reading("emf-b", model.ParamInfraEMF, 90.0, 0.8),
		},
	}

	out := e.Fuse(readings, nil, testParams())
	fp := out.Parameters[model.ParamInfraEMF]
	assert.Len(t, fp.Sources, 2)
	assert.InDelta(t, 65.0, fp.Value, 1e-9)
}

func TestFuseAgreementScalesConfidence(t *testing.T) {
	e := New(logging.Default())
	agreeing := map[model.ParameterID][]model.SensorReading{
		model.ParamMetHumidity: {
			reading("h-a", model.ParamMetHumidity, 50.0, 0.8),
			reading("h-b", model.ParamMetHumidity, 50.0, 0.8),
		},
	}
	spread := map[model.ParameterID][]model.SensorReading{
		model.ParamMetHumidity: {
			reading("h-a", model.ParamMetHumidity, 30.0, 0.8),
			reading("h-b", model.ParamMetHumidity, 70.0, 0.8),
		},
	}

	agreeConf := e.Fuse(agreeing, nil, testParams()).Parameters[model.ParamMetHumidity].Confidence
	spreadConf := e.Fuse(spread, nil, testParams()).Parameters[model.ParamMetHumidity].Confidence

	assert.InDelta(t, 0.8, agreeConf, 1e-9, "perfect agreement keeps the mean sensor confidence")
	assert.Less(t, spreadConf, agreeConf)
}

func TestFuseFallsBackToLastKnownGood(t *testing.T) {
	e := New(logging.Default())
	bad := math.NaN()
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamInfraThermal: {
			reading("th-a", model.ParamInfraThermal, bad, 0.9),
			reading("th-b", model.ParamInfraThermal, bad, 0.9),
		},
	}
	baselines := map[model.ParameterID]*state.Baseline{
		model.ParamInfraThermal: {Count: 20, Mean: 31, StdDev: 1, LastGood: 30.5},
	}

	out := e.Fuse(readings, baselines, testParams())
	fp, ok := out.Parameters[model.ParamInfraThermal]
	require.True(t, ok)
	assert.True(t, fp.Fallback)
	assert.Empty(t, fp.Sources, "fallback values carry no live sources")
	assert.InDelta(t, 30.5, fp.Value, 1e-9)
	assert.InDelta(t, 0.2, fp.Confidence, 1e-9)
}

func TestFuseDropsParameterWithoutHistory(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamInfraThermal: {
			reading("th-a", model.ParamInfraThermal, math.Inf(1), 0.9),
			reading("th-b", model.ParamInfraThermal, math.NaN(), 0.9),
		},
	}

	out := e.Fuse(readings, nil, testParams())
	_, ok := out.Parameters[model.ParamInfraThermal]
	assert.False(t, ok)
}

func TestFuseSingleSensorPassthrough(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamMetWindSpeed: {
			reading("wind-a", model.ParamMetWindSpeed, 5.5, 0.75),
		},
	}

	out := e.Fuse(readings, nil, testParams())
	fp := out.Parameters[model.ParamMetWindSpeed]
	assert.InDelta(t, 5.5, fp.Value, 1e-9)
	assert.InDelta(t, 0.75, fp.Confidence, 1e-9)
	assert.Equal(t, []model.SensorID{"wind-a"}, fp.Sources)
}

func TestFuseValueWithinRetainedHull(t *testing.T) {
	e := New(logging.Default())
	faker := gofakeit.New(7)

	for i := 0; i < 200; i++ {
		n := 2 + faker.Number(0, 3)
		group := make([]model.SensorReading, n)
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := range group {
			v := faker.Float64Range(-100, 100)
			group[j] = reading(faker.LetterN(6), model.ParamMetTemperature, v, faker.Float64Range(0, 1))
		}

		out := e.Fuse(map[model.ParameterID][]model.SensorReading{
			model.ParamMetTemperature: group,
		}, nil, testParams())
		fp, ok := out.Parameters[model.ParamMetTemperature]
		require.True(t, ok)

		retained := make(map[model.SensorID]bool, len(fp.Sources))
		for _, s := range fp.Sources {
			retained[s] = true
		}
		for _, r := range group {
			if retained[r.Sensor] {
				lo = math.Min(lo, r.Value)
				hi = math.Max(hi, r.Value)
			}
		}
		assert.GreaterOrEqual(t, fp.Value, lo)
		assert.LessOrEqual(t, fp.Value, hi)
		assert.GreaterOrEqual(t, fp.Confidence, 0.0)
		assert.LessOrEqual(t, fp.Confidence, 1.0)
	}
}

func TestConsistencyWarnings(t *testing.T) {
	e := New(logging.Default())

	tests := []struct {
		name     string
		readings map[model.ParameterID][]model.SensorReading
		wantTag  string
	}{
		{
			name: "dew point above air temperature",
			readings: map[model.ParameterID][]model.SensorReading{
				model.ParamMetTemperature: {reading("t", model.ParamMetTemperature, 10.0, 0.9)},
				model.ParamMetDewPoint:    {reading("d", model.ParamMetDewPoint, 15.0, 0.9)},
			},
			wantTag: "dew_point_above_temperature",
		},
		{
			name: "humidity out of range",
			readings: map[model.ParameterID][]model.SensorReading{
				model.ParamMetHumidity: {reading("h", model.ParamMetHumidity, 120.0, 0.9)},
			},
			wantTag: "humidity_out_of_range",
		},
		{
			name: "negative wind speed",
			readings: map[model.ParameterID][]model.SensorReading{
				model.ParamMetWindSpeed: {reading("w", model.ParamMetWindSpeed, -3.0, 0.9)},
			},
			wantTag: "negative_wind_speed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Fuse(tt.readings, nil, testParams())
			require.Len(t, out.Warnings, 1)
			assert.Equal(t, tt.wantTag, out.Warnings[0].Tag)
			// Warnings never block fused output.
			assert.NotEmpty(t, out.Parameters)
		})
	}
}

func TestConsistencyCleanCycle(t *testing.T) {
	e := New(logging.Default())
	readings := map[model.ParameterID][]model.SensorReading{
		model.ParamMetTemperature: {reading("t", model.ParamMetTemperature, 22.0, 0.9)},
		model.ParamMetDewPoint:    {reading("d", model.ParamMetDewPoint, 12.0, 0.9)},
		model.ParamMetHumidity:    {reading("h", model.ParamMetHumidity, 55.0, 0.9)},
	}

	out := e.Fuse(readings, nil, testParams())
	assert.Empty(t, out.Warnings)
}
