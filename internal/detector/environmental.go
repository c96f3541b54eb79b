package detector

import (
	"context"
	"fmt"
	"math"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// Environmental computes a fire-weather composite index from ambient
// conditions: additive per-factor scores, seasonal and diurnal
// multipliers, and a red-flag combination bonus.
type Environmental struct{}

// NewEnvironmental creates the environmental risk analyzer.
func NewEnvironmental() *Environmental { return &Environmental{} }

// Name implements Detector.
func (e *Environmental) Name() string { return "environmental" }

// Evaluate implements Detector.
func (e *Environmental) Evaluate(_ context.Context, in *Input) ([]Result, error) {
	p := &in.Params.Environmental
	env := in.Env

	var evidence []model.DetectionEvidence
	present := 0

	tempFactor := e.temperatureFactor(env.TemperatureC, p)
	if tempFactor > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "temperature_factor",
			Contribution: tempFactor,
			Measurement:  fmt.Sprintf("%.1fC", env.TemperatureC),
		})
	}
	present++

	humidityFactor := e.humidityFactor(env.HumidityPct, p)
	if humidityFactor > 0 {
		tag := "humidity_factor"
		if env.HumidityPct < p.HumidityCritical {
			tag = "critical_low_humidity"
		}
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          tag,
			Contribution: humidityFactor,
			Measurement:  fmt.Sprintf("%.0f%%", env.HumidityPct),
		})
	}
	present++

	windFactor := e.windFactor(env.WindSpeedMS, p)
	if windFactor > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "wind_factor",
			Contribution: windFactor,
			Measurement:  fmt.Sprintf("%.1fm/s", env.WindSpeedMS),
		})
	}
	present++

	droughtFactor := e.droughtFactor(in, p)
	if droughtFactor > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "drought_conditions",
			Contribution: droughtFactor,
		})
		present++
	}

	fuelFactor := e.fuelMoistureFactor(env, p)
	if fuelFactor > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "fuel_moisture",
			Contribution: fuelFactor,
		})
	}

	score := tempFactor + humidityFactor + windFactor + droughtFactor + fuelFactor

	score *= e.seasonMultiplier(env.Season, p)
	score *= e.diurnalMultiplier(env.TimeOfDay.Hour(), p)

	// Red-flag conditions: all three primary factors simultaneously high.
	if tempFactor >= p.RedFlagTempFrac*p.TempFactorMax &&
		humidityFactor >= p.RedFlagHumidityFrac*p.HumidityFactorMax &&
		windFactor >= p.RedFlagWindFrac*p.WindFactorMax {
		score *= p.RedFlagBonus
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "red_flag_conditions",
			Contribution: p.RedFlagBonus,
		})
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	confidence := model.Clamp01(0.4 + 0.15*float64(present))

	return []Result{{
		Type:        model.AlertFireWeather,
		Probability: model.Clamp01(score / 100.0),
		Confidence:  confidence,
		Evidence:    evidence,
	}}, nil
}

func (e *Environmental) temperatureFactor(tempC float64, p *config.EnvironmentalParams) float64 {
	if tempC <= p.TempLowC {
		return 0
	}
	frac := (tempC - p.TempLowC) / (p.TempHighC - p.TempLowC)
	return math.Min(frac, 1.0) * p.TempFactorMax
}

// humidityFactor weighs dryness quadratically so low humidity contributes
// disproportionately.
func (e *Environmental) humidityFactor(humidityPct float64, p *config.EnvironmentalParams) float64 {
	if humidityPct >= 100 {
		return 0
	}
	if humidityPct < 0 {
		humidityPct = 0
	}
	dryness := (100 - humidityPct) / 100
	return dryness * dryness * p.HumidityFactorMax
}

func (e *Environmental) windFactor(windMS float64, p *config.EnvironmentalParams) float64 {
	if windMS <= 0 {
		return 0
	}
	return math.Min(windMS/p.WindHighMS, 1.0) * p.WindFactorMax
}

// droughtFactor derives dryness from the precipitation channel's rolling
// baseline: the fraction of recent samples with effectively no rain.
func (e *Environmental) droughtFactor(in *Input, p *config.EnvironmentalParams) float64 {
	b := in.Baselines[model.ParamMetPrecipitation]
	if !b.HasData() || len(b.Samples) == 0 {
		return 0
	}
	window := recentWindow(b.Samples, p.DroughtDays)
	dry := 0
	for _, v := range window {
		if v < 0.1 {
			dry++
		}
	}
	return float64(dry) / float64(len(window)) * p.DroughtFactorMax
}

func (e *Environmental) fuelMoistureFactor(env model.EnvironmentalContext, p *config.EnvironmentalParams) float64 {
	dryness := math.Max(0, (100-env.HumidityPct)/100)
	tempNorm := 0.0
	if env.TemperatureC > p.TempLowC {
		tempNorm = math.Min((env.TemperatureC-p.TempLowC)/(p.TempHighC-p.TempLowC), 1.0)
	}
	return (0.6*dryness + 0.4*tempNorm) * p.FuelFactorMax
}

func (e *Environmental) seasonMultiplier(season model.Season, p *config.EnvironmentalParams) float64 {
	switch season {
	case model.SeasonSummer:
		return p.SeasonSummerMult
	case model.SeasonAutumn:
		return p.SeasonAutumnMult
	case model.SeasonWinter:
		return p.SeasonWinterMult
	default:
		return p.SeasonSpringMult
	}
}

func (e *Environmental) diurnalMultiplier(hour int, p *config.EnvironmentalParams) float64 {
	switch {
	case hour >= 12 && hour < 18:
		return p.DiurnalPeakMult
	case hour >= 22 || hour < 6:
		return p.DiurnalNightMult
	default:
		return 1.0
	}
}
