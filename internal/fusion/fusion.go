// Package fusion combines same-parameter readings from multiple sensors
// into one fused value with a derived confidence. It is a pure per-cycle
// transform: readings and baselines in, fused parameters and consistency
// warnings out.
package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
)

// Output is the result of fusing one cycle's readings.
type Output struct {
	// Parameters maps each reported parameter to its fused result.
	Parameters map[model.ParameterID]model.FusedParameter

	// Warnings carries cross-parameter consistency findings. They annotate
	// the cycle without blocking any fused output.
	Warnings []model.DetectionEvidence
}

// Engine fuses multi-sensor readings. Stateless between cycles.
type Engine struct {
	log *logging.Logger
}

// New creates a fusion engine.
func New(log *logging.Logger) *Engine {
	return &Engine{log: log.WithSubsystem("fusion")}
}

// Fuse combines the cycle's readings per parameter. Parameters reported by
// a single sensor pass through with that sensor's confidence. Parameters
// whose readings are all excluded as outliers fall back to the last
// known-good baseline value at the configured fallback confidence.
func (e *Engine) Fuse(readings map[model.ParameterID][]model.SensorReading,
	baselines map[model.ParameterID]*state.Baseline, p *config.FusionParams) Output {

	out := Output{Parameters: make(map[model.ParameterID]model.FusedParameter, len(readings))}

	for _, param := range sortedParams(readings) {
		group := readings[param]
		if len(group) == 0 {
			continue
		}
		if len(group) < p.MinSources {
			r := group[0]
			out.Parameters[param] = model.FusedParameter{
				Parameter:  param,
				Value:      r.Value,
				Confidence: model.Clamp01(r.Confidence),
				Sources:    []model.SensorID{r.Sensor},
			}
			continue
		}

		retained := excludeOutliers(group, p.OutlierDeviationSigma)
		if len(retained) == 0 {
			fp, ok := e.fallback(param, baselines[param], p)
			if !ok {
				// Every reading excluded and no history to fall back on.
				// Drop the parameter for this cycle rather than fuse garbage.
				e.log.Warn("no valid readings and no baseline, dropping parameter",
					"parameter", string(param))
				continue
			}
			out.Parameters[param] = fp
			continue
		}

		out.Parameters[param] = fuseGroup(param, retained)
	}

	out.Warnings = e.consistencyWarnings(out.Parameters)
	return out
}

// excludeOutliers drops non-finite readings, then readings whose value sits
// beyond sigma standard deviations of the rest of the group (leave-one-out,
// so a single bad sensor cannot drag the statistics it is tested against).
func excludeOutliers(group []model.SensorReading, sigma float64) []model.SensorReading {
	finite := make([]model.SensorReading, 0, len(group))
	for _, r := range group {
		if !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
			finite = append(finite, r)
		}
	}
	if len(finite) < 3 {
		// Two readings cannot vote each other out.
		return finite
	}

	retained := make([]model.SensorReading, 0, len(finite))
	for i, r := range finite {
		var sum, sumSq float64
		for j, other := range finite {
			if j == i {
				continue
			}
			sum += other.Value
			sumSq += other.Value * other.Value
		}
		n := float64(len(finite) - 1)
		mean := sum / n
		variance := sumSq/n - mean*mean
		std := 0.0
		if variance > 0 {
			std = math.Sqrt(variance)
		} else {
			// Rest of the group agrees exactly; allow 1% of scale as spread.
			std = 0.01 * math.Max(1.0, math.Abs(mean))
		}
		if math.Abs(r.Value-mean) <= sigma*std {
			retained = append(retained, r)
		}
	}
	return retained
}

// fuseGroup computes the confidence-weighted average of the retained
// readings. The result always lies within their min/max. Fused confidence
// is the mean sensor confidence scaled by an inter-sensor agreement factor.
func fuseGroup(param model.ParameterID, retained []model.SensorReading) model.FusedParameter {
	var weightSum, valueSum, confSum float64
	lo, hi := retained[0].Value, retained[0].Value
	sources := make([]model.SensorID, 0, len(retained))
	for _, r := range retained {
		w := r.Confidence
		if w <= 0 {
			w = 1e-6 // zero-confidence readings still count, barely
		}
		weightSum += w
		valueSum += w * r.Value
		confSum += r.Confidence
		sources = append(sources, r.Sensor)
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}
	fused := valueSum / weightSum
	// Weighted averages stay inside the hull; clamp guards rounding.
	fused = math.Max(lo, math.Min(hi, fused))

	meanConf := confSum / float64(len(retained))
	confidence := meanConf * agreementFactor(retained, fused)

	return model.FusedParameter{
		Parameter:  param,
		Value:      fused,
		Confidence: model.Clamp01(confidence),
		Sources:    sources,
	}
}

// agreementFactor maps inter-sensor spread to (0,1]: perfectly agreeing
// sensors score 1, spread relative to the fused value discounts it.
func agreementFactor(retained []model.SensorReading, fused float64) float64 {
	if len(retained) < 2 {
		return 1.0
	}
	var spread float64
	for _, r := range retained {
		spread += math.Abs(r.Value - fused)
	}
	spread /= float64(len(retained))

	scale := math.Abs(fused)
	if scale < 1.0 {
		scale = 1.0
	}
	return 1.0 / (1.0 + spread/scale)
}

func (e *Engine) fallback(param model.ParameterID, b *state.Baseline, p *config.FusionParams) (model.FusedParameter, bool) {
	if !b.HasData() {
		return model.FusedParameter{}, false
	}
	e.log.Warn("all readings excluded as outliers, using last known-good",
		"parameter", string(param), "value", b.LastGood)
	return model.FusedParameter{
		Parameter:  param,
		Value:      b.LastGood,
		Confidence: p.FallbackConfidence,
		Fallback:   true,
	}, true
}

// consistencyWarnings flags physically implausible cross-parameter
// combinations. Warnings annotate the cycle; fused values stand.
func (e *Engine) consistencyWarnings(fused map[model.ParameterID]model.FusedParameter) []model.DetectionEvidence {
	var warnings []model.DetectionEvidence

	temp, hasTemp := fused[model.ParamMetTemperature]
	dew, hasDew := fused[model.ParamMetDewPoint]
	if hasTemp && hasDew && dew.Value > temp.Value+0.5 {
		warnings = append(warnings, model.DetectionEvidence{
			Tag:          "dew_point_above_temperature",
			Contribution: dew.Value - temp.Value,
			Measurement:  fmt.Sprintf("dew %.1fC, air %.1fC", dew.Value, temp.Value),
		})
	}

	humidity, hasHumidity := fused[model.ParamMetHumidity]
	if hasHumidity && (humidity.Value < 0 || humidity.Value > 100) {
		warnings = append(warnings, model.DetectionEvidence{
			Tag:          "humidity_out_of_range",
			Contribution: humidity.Value,
			Measurement:  fmt.Sprintf("%.1f%%", humidity.Value),
		})
	}

	wind, hasWind := fused[model.ParamMetWindSpeed]
	if hasWind && wind.Value < 0 {
		warnings = append(warnings, model.DetectionEvidence{
			Tag:          "negative_wind_speed",
			Contribution: wind.Value,
		})
	}

	if len(warnings) > 0 {
		e.log.Warn("cross-parameter consistency check flagged readings", "count", len(warnings))
	}
	return warnings
}

func sortedParams(readings map[model.ParameterID][]model.SensorReading) []model.ParameterID {
	params := make([]model.ParameterID, 0, len(readings))
	for p := range readings {
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })
	return params
}
