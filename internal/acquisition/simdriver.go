package acquisition

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// SensorProfile describes one simulated sensor channel.
type SensorProfile struct {
	ID        model.SensorID
	Parameter model.ParameterID
	Unit      string
	Baseline  float64
	Jitter    float64 // half-width of uniform noise around baseline
}

// SimDriver generates plausible synthetic readings for the simulate
// command and tests. A seed makes the stream reproducible.
type SimDriver struct {
	profiles []SensorProfile
	faker    *gofakeit.Faker
	now      func() time.Time

	// offsets lets scenarios push channels away from baseline,
	// e.g. to stage a pyrolysis event.
	offsets map[model.ParameterID]float64
}

// NewSimDriver creates a driver over the given profiles.
func NewSimDriver(profiles []SensorProfile, seed int64) *SimDriver {
	return &SimDriver{
		profiles: profiles,
		faker:    gofakeit.New(seed),
		now:      time.Now,
		offsets:  make(map[model.ParameterID]float64),
	}
}

// DefaultProfiles returns a dual-redundant channel set resembling a field
// node's sensor complement.
func DefaultProfiles() []SensorProfile {
	return []SensorProfile{
		{ID: "voc-a-form", Parameter: model.ParamVOCFormaldehyde, Unit: "ppb", Baseline: 8, Jitter: 2},
		{ID: "voc-b-form", Parameter: model.ParamVOCFormaldehyde, Unit: "ppb", Baseline: 8, Jitter: 3},
		{ID: "voc-a-acet", Parameter: model.ParamVOCAcetaldehyde, Unit: "ppb", Baseline: 10, Jitter: 2},
		{ID: "voc-a-acro", Parameter: model.ParamVOCAcrolein, Unit: "ppb", Baseline: 1.5, Jitter: 0.5},
		{ID: "gas-co", Parameter: model.ParamGasCO, Unit: "ppm", Baseline: 2, Jitter: 0.8},
		{ID: "gas-no2", Parameter: model.ParamGasNO2, Unit: "ppb", Baseline: 12, Jitter: 4},
		{ID: "emf-1", Parameter: model.ParamInfraEMF, Unit: "uT", Baseline: 40, Jitter: 3},
		{ID: "thermal-1", Parameter: model.ParamInfraThermal, Unit: "C", Baseline: 32, Jitter: 2},
		{ID: "acoustic-1", Parameter: model.ParamInfraAcousticBand, Unit: "ratio", Baseline: 0.1, Jitter: 0.05},
		{ID: "vib-1", Parameter: model.ParamInfraVibrationHF, Unit: "g2", Baseline: 0.05, Jitter: 0.02},
		{ID: "met-temp-a", Parameter: model.ParamMetTemperature, Unit: "C", Baseline: 24, Jitter: 1},
		{ID: "met-temp-b", Parameter: model.ParamMetTemperature, Unit: "C", Baseline: 24, Jitter: 1.5},
		{ID: "met-hum", Parameter: model.ParamMetHumidity, Unit: "%", Baseline: 45, Jitter: 5},
		{ID: "met-wind", Parameter: model.ParamMetWindSpeed, Unit: "m/s", Baseline: 4, Jitter: 2},
	}
}

// SetOffset shifts every subsequent reading of the given parameter.
func (d *SimDriver) SetOffset(param model.ParameterID, offset float64) {
	d.offsets[param] = offset
}

// ClearOffsets resets all scenario offsets.
func (d *SimDriver) ClearOffsets() {
	d.offsets = make(map[model.ParameterID]float64)
}

// Sensors lists the simulated sensors.
func (d *SimDriver) Sensors() []model.SensorID {
	ids := make([]model.SensorID, len(d.profiles))
	for i, p := range d.profiles {
		ids[i] = p.ID
	}
	return ids
}

// Read samples one simulated sensor.
func (d *SimDriver) Read(ctx context.Context, id model.SensorID) (model.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return model.SensorReading{}, err
	}

	for _, p := range d.profiles {
		if p.ID != id {
			continue
		}
		value := p.Baseline + d.offsets[p.Parameter]
		if p.Jitter > 0 {
			value += d.faker.Float64Range(-p.Jitter, p.Jitter)
		}
		if value < 0 {
			value = 0
		}
		return model.SensorReading{
			Sensor:     p.ID,
			Parameter:  p.Parameter,
			Value:      value,
			Unit:       p.Unit,
			Timestamp:  d.now().UTC(),
			Confidence: d.faker.Float64Range(0.85, 1.0),
		}, nil
	}

	return model.SensorReading{}, &SensorFault{Sensor: id, Kind: FaultDisconnected}
}

const (
	waveformBlockLen = 1024
	waveformRateHz   = 48000.0
)

// Waveforms synthesizes an acoustic sample block whose spectral shape
// tracks the scalar band level: a fixed mains hum plus broadband noise
// that grows with the band energy channel. Quiet nodes produce a
// hum-dominated block, staged arcing a noise-dominated one.
func (d *SimDriver) Waveforms(ctx context.Context) (map[model.ParameterID][]float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	for _, p := range d.profiles {
		if p.Parameter != model.ParamInfraAcousticBand {
			continue
		}
		level := p.Baseline + d.offsets[p.Parameter]
		samples := make([]float64, waveformBlockLen)
		for i := range samples {
			t := float64(i) / waveformRateHz
			samples[i] = 0.4*math.Sin(2*math.Pi*120*t) + d.faker.Float64Range(-level, level)
		}
		return map[model.ParameterID][]float64{p.Parameter: samples}, waveformRateHz, nil
	}
	return nil, 0, nil
}

// Calibrate is a no-op for simulated sensors.
func (d *SimDriver) Calibrate(_ context.Context, id model.SensorID) error {
	for _, p := range d.profiles {
		if p.ID == id {
			return nil
		}
	}
	return fmt.Errorf("unknown sensor %s", id)
}
