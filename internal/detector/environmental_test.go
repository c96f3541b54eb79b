package detector

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
)

func evalEnvironmental(t *testing.T, in *Input) Result {
	t.Helper()
	results, err := NewEnvironmental().Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func TestEnvironmentalBenignConditions(t *testing.T) {
	in := testInput(t)
	in.Env = model.EnvironmentalContext{
		TemperatureC: 8,
		HumidityPct:  85,
		WindSpeedMS:  1,
		TimeOfDay:    time.Date(2026, time.January, 10, 3, 0, 0, 0, time.UTC),
		Season:       model.SeasonWinter,
	}

	r := evalEnvironmental(t, in)
	assert.Equal(t, model.AlertFireWeather, r.Type)
	assert.Less(t, r.Probability, 0.10)
	tags := evidenceTags(r.Evidence)
	assert.NotContains(t, tags, "red_flag_conditions")
	assert.NotContains(t, tags, "temperature_factor")
}

func TestEnvironmentalRedFlagConditions(t *testing.T) {
	in := testInput(t)
	in.Env = model.EnvironmentalContext{
		TemperatureC: 41,
		HumidityPct:  8,
		WindSpeedMS:  18,
		TimeOfDay:    time.Date(2026, time.August, 5, 14, 0, 0, 0, time.UTC),
		Season:       model.SeasonSummer,
	}

	r := evalEnvironmental(t, in)
	tags := evidenceTags(r.Evidence)
	assert.Contains(t, tags, "red_flag_conditions")
	assert.Contains(t, tags, "critical_low_humidity")
	assert.Contains(t, tags, "wind_factor")
	assert.Contains(t, tags, "fuel_moisture")
	assert.GreaterOrEqual(t, r.Probability, 0.9)
	assert.LessOrEqual(t, r.Probability, 1.0)
}

func TestEnvironmentalLowHumidityNonLinear(t *testing.T) {
	in := testInput(t)
	e := NewEnvironmental()
	p := &in.Params.Environmental

	at60 := e.humidityFactor(60, p)
	at40 := e.humidityFactor(40, p)
	at20 := e.humidityFactor(20, p)

	// Equal 20-point humidity drops must yield growing factor increments.
	assert.Greater(t, at40-at60, 0.0)
	assert.Greater(t, at20-at40, at40-at60)
}

func TestEnvironmentalSeasonalAndDiurnal(t *testing.T) {
	base := func(season model.Season, hour int) float64 {
		in := testInput(t)
		in.Env = model.EnvironmentalContext{
			TemperatureC: 35,
			HumidityPct:  25,
			WindSpeedMS:  10,
			TimeOfDay:    time.Date(2026, time.June, 15, hour, 0, 0, 0, time.UTC),
			Season:       season,
		}
		return evalEnvironmental(t, in).Probability
	}

	summerNoon := base(model.SeasonSummer, 14)
	winterNoon := base(model.SeasonWinter, 14)
	summerNight := base(model.SeasonSummer, 2)

	assert.Greater(t, summerNoon, winterNoon)
	assert.Greater(t, summerNoon, summerNight)
}

func TestEnvironmentalDroughtFromPrecipitationBaseline(t *testing.T) {
	dry := testInput(t)
	dry.Env = model.EnvironmentalContext{
		TemperatureC: 30, HumidityPct: 30, WindSpeedMS: 8,
		TimeOfDay: time.Date(2026, time.July, 20, 15, 0, 0, 0, time.UTC),
		Season:    model.SeasonSummer,
	}
	drySamples := make([]float64, 14)
	dry.Baselines[model.ParamMetPrecipitation] = &state.Baseline{Count: 14, Samples: drySamples}

	wet := testInput(t)
	wet.Env = dry.Env
	wetSamples := make([]float64, 14)
	for i := range wetSamples {
		wetSamples[i] = 5.0
	}
	wet.Baselines[model.ParamMetPrecipitation] = &state.Baseline{Count: 14, Samples: wetSamples}

	dryResult := evalEnvironmental(t, dry)
	wetResult := evalEnvironmental(t, wet)

	assert.Greater(t, dryResult.Probability, wetResult.Probability)
	assert.Contains(t, evidenceTags(dryResult.Evidence), "drought_conditions")
	assert.NotContains(t, evidenceTags(wetResult.Evidence), "drought_conditions")
}

func TestEnvironmentalScoreBounds(t *testing.T) {
	in := testInput(t)
	in.Env = model.EnvironmentalContext{
		TemperatureC: 55,
		HumidityPct:  0,
		WindSpeedMS:  40,
		TimeOfDay:    time.Date(2026, time.August, 1, 15, 0, 0, 0, time.UTC),
		Season:       model.SeasonSummer,
	}
	drySamples := make([]float64, 30)
	in.Baselines[model.ParamMetPrecipitation] = &state.Baseline{Count: 30, Samples: drySamples}

	r := evalEnvironmental(t, in)
	assert.LessOrEqual(t, r.Probability, 1.0)
	assert.GreaterOrEqual(t, r.Probability, 0.0)
	assert.LessOrEqual(t, r.Confidence, 1.0)
}

func TestEnvironmentalBoundsRandomized(t *testing.T) {
	faker := gofakeit.New(23)
	in := testInput(t)

	for i := 0; i < 300; i++ {
		when := time.Date(2026, time.Month(faker.Number(1, 12)), faker.Number(1, 28),
			faker.Number(0, 23), 0, 0, 0, time.UTC)
		in.Env = model.EnvironmentalContext{
			TemperatureC: faker.Float64Range(-40, 60),
			HumidityPct:  faker.Float64Range(0, 100),
			WindSpeedMS:  faker.Float64Range(0, 50),
			TimeOfDay:    when,
			Season:       model.SeasonOf(when),
		}

		in.Baselines = make(map[model.ParameterID]*state.Baseline)
		if faker.Bool() {
			samples := make([]float64, faker.Number(1, 30))
			for j := range samples {
				samples[j] = faker.Float64Range(0, 20)
			}
			in.Baselines[model.ParamMetPrecipitation] = &state.Baseline{
				Count:   int64(len(samples)),
				Samples: samples,
			}
		}

		r := evalEnvironmental(t, in)
		require.GreaterOrEqual(t, r.Probability, 0.0, "iteration %d", i)
		require.LessOrEqual(t, r.Probability, 1.0, "iteration %d", i)
		require.GreaterOrEqual(t, r.Confidence, 0.0, "iteration %d", i)
		require.LessOrEqual(t, r.Confidence, 1.0, "iteration %d", i)
	}
}
