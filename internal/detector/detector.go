// Package detector holds the domain detectors: independent analyzers that
// each examine one evidence domain (chemical, electrical, environmental)
// and produce probability-scored, evidence-backed findings. The engine
// runs them against a shared read-only cycle input and treats them
// uniformly through the Detector interface.
package detector

import (
	"context"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
)

// Input is the read-only snapshot a detector evaluates during one cycle.
// Detectors never mutate it; each writes only to its own Result.
type Input struct {
	Env       model.EnvironmentalContext
	Readings  map[model.ParameterID][]model.SensorReading
	Baselines map[model.ParameterID]*state.Baseline
	Params    *config.DetectionParameters

	// Waveforms carries raw sample blocks for channels where the driver
	// exposes them (acoustic). Optional; detectors fall back to the
	// scalar reading when absent.
	Waveforms    map[model.ParameterID][]float64
	SampleRateHz float64
}

// Result is one finding from a detector. A detector may produce several
// per cycle (e.g. arcing and equipment degradation independently).
type Result struct {
	Type        model.AlertType
	Probability float64
	Confidence  float64
	Evidence    []model.DetectionEvidence
}

// Detector evaluates one evidence domain.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, in *Input) ([]Result, error)
}

// reading returns the first reading for a parameter, preferring the scalar
// view when multiple sensors report it (fusion handles the combination;
// detectors only need an indicative value).
func reading(in *Input, param model.ParameterID) (model.SensorReading, bool) {
	rs := in.Readings[param]
	if len(rs) == 0 {
		return model.SensorReading{}, false
	}
	return rs[0], true
}

// baselineDeviation returns the reading's deviation from its rolling
// baseline mean. With no baseline history the raw value is the deviation.
func baselineDeviation(in *Input, param model.ParameterID) (float64, bool) {
	r, ok := reading(in, param)
	if !ok {
		return 0, false
	}
	b := in.Baselines[param]
	if b.HasData() {
		return r.Value - b.Mean, true
	}
	return r.Value, true
}
