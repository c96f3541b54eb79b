package acquisition

import (
	"context"
	"errors"
	"math"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// historyDepth bounds the per-sensor raw history used for spike rejection.
const historyDepth = 16

// levelShiftAfter is how many consecutive mutually consistent rejections
// the spike filter treats as a real step change rather than noise.
const levelShiftAfter = 3

// levelShiftTolerance is the allowed spread among those rejections,
// relative to the size of the jump from the old level.
const levelShiftTolerance = 0.25

// degradedRetryAfter is how many cycles a degraded sensor sits out
// before the sampler retries it.
const degradedRetryAfter = 5

// Sampler reads every configured sensor once per cycle, filters and
// compensates the raw values, and tracks degraded sensors. Fail-partial:
// a faulting sensor is excluded for the cycle, the rest proceed.
type Sampler struct {
	driver  Driver
	log     *logging.Logger
	history map[model.SensorID][]float64
	faults  map[model.SensorID]int
	rejects map[model.SensorID][]float64
	skips   map[model.SensorID]int
}

// NewSampler creates a sampler over the given driver.
func NewSampler(driver Driver, log *logging.Logger) *Sampler {
	return &Sampler{
		driver:  driver,
		log:     log.WithSubsystem("acquisition"),
		history: make(map[model.SensorID][]float64),
		faults:  make(map[model.SensorID]int),
		rejects: make(map[model.SensorID][]float64),
		skips:   make(map[model.SensorID]int),
	}
}

// CycleResult is the acquisition output for one detection cycle.
type CycleResult struct {
	Readings []model.SensorReading
	Degraded []model.SensorID

	// Waveforms carries raw sample blocks when the driver exposes them.
	Waveforms    map[model.ParameterID][]float64
	SampleRateHz float64
}

// Collect reads all sensors under the cycle deadline carried by ctx.
// Returned readings are smoothed, spike-filtered and environmentally
// compensated; degraded sensors are excluded.
func (s *Sampler) Collect(ctx context.Context, env model.EnvironmentalContext, params *config.AcquisitionParams) CycleResult {
	var result CycleResult

	for _, id := range s.driver.Sensors() {
		if s.faults[id] >= params.FaultDegradeCount {
			s.skips[id]++
			if s.skips[id] < degradedRetryAfter {
				result.Degraded = append(result.Degraded, id)
				continue
			}
			// Retry the sensor: a transient fault (loose cable,
			// brown-out) must not exclude it forever.
			s.skips[id] = 0
		}

		reading, err := s.sample(ctx, id, env, params)
		if err != nil {
			if fault, ok := AsSensorFault(err); ok && fault.Kind == FaultOutOfRange {
				// The sensor answered; its reading failed the spike
				// filter. A data-quality rejection is not a hardware
				// fault and must not degrade the sensor.
				s.log.Warn("reading rejected as spike", "sensor", string(id))
				if s.faults[id] >= params.FaultDegradeCount {
					result.Degraded = append(result.Degraded, id)
				}
				continue
			}

			s.faults[id]++
			if fault, ok := AsSensorFault(err); ok {
				s.log.Warn("sensor fault",
					"sensor", string(fault.Sensor),
					"kind", string(fault.Kind),
					"consecutive", s.faults[id])
			} else {
				s.log.Warn("sensor read failed", "sensor", string(id), "error", err)
			}
			if s.faults[id] >= params.FaultDegradeCount {
				result.Degraded = append(result.Degraded, id)
				s.log.Warn("sensor degraded, excluded from fusion", "sensor", string(id))
			}
			continue
		}

		s.faults[id] = 0
		s.skips[id] = 0
		result.Readings = append(result.Readings, reading)
	}

	if wd, ok := s.driver.(WaveformDriver); ok {
		blocks, rate, err := wd.Waveforms(ctx)
		if err != nil {
			s.log.Warn("waveform capture failed", "error", err)
		} else {
			result.Waveforms = blocks
			result.SampleRateHz = rate
		}
	}

	return result
}

// Calibrate forwards a calibration request to the driver and, on
// success, clears the sensor's fault tracking and filter history.
func (s *Sampler) Calibrate(ctx context.Context, id model.SensorID) error {
	if err := s.driver.Calibrate(ctx, id); err != nil {
		return err
	}
	s.faults[id] = 0
	s.skips[id] = 0
	delete(s.rejects, id)
	delete(s.history, id)
	return nil
}

// sample performs one validated read: deadline mapping, spike rejection
// against immediate history, low-pass smoothing, compensation.
func (s *Sampler) sample(ctx context.Context, id model.SensorID, env model.EnvironmentalContext, params *config.AcquisitionParams) (model.SensorReading, error) {
	reading, err := s.driver.Read(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.SensorReading{}, &SensorFault{Sensor: id, Kind: FaultTimeout, Err: err}
		}
		return model.SensorReading{}, err
	}

	hist := s.history[id]

	// Spike rejection against immediate history. Needs a few samples of
	// history before it can judge what a spike looks like.
	if len(hist) >= 3 {
		mean, stddev := meanStddev(hist)
		if stddev > 0 && math.Abs(reading.Value-mean) > params.SpikeRejectionSigma*stddev {
			if !s.levelShift(id, reading.Value, mean) {
				return model.SensorReading{}, &SensorFault{Sensor: id, Kind: FaultOutOfRange}
			}
			// Consecutive consistent excursions are a sustained step
			// change, not noise. Restart history at the new level so
			// the shift is reported instead of filtered.
			hist = nil
		}
	}
	delete(s.rejects, id)

	hist = append(hist, reading.Value)
	if len(hist) > historyDepth {
		hist = hist[len(hist)-historyDepth:]
	}
	s.history[id] = hist

	// Low-pass: average the most recent smoothing window.
	smoothed := reading.Value
	n := params.SmoothingSamples
	if n > 1 && len(hist) >= n {
		window := hist[len(hist)-n:]
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		smoothed = sum / float64(n)
	}

	compensated := Compensate(reading.Parameter, smoothed, env, params)

	out := reading
	out.Value = compensated
	out.Confidence = model.Clamp01(reading.Confidence * filterConfidence(hist, smoothed))
	return out, nil
}

// levelShift records a rejected value and reports whether the last
// levelShiftAfter rejections agree with each other. Agreeing excursions
// mark a step to a new signal level; scattered ones are noise.
func (s *Sampler) levelShift(id model.SensorID, value, histMean float64) bool {
	r := append(s.rejects[id], value)
	if len(r) > levelShiftAfter {
		r = r[len(r)-levelShiftAfter:]
	}
	s.rejects[id] = r
	if len(r) < levelShiftAfter {
		return false
	}

	lo, hi := r[0], r[0]
	for _, v := range r[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	jump := math.Abs((lo+hi)/2 - histMean)
	return hi-lo <= levelShiftTolerance*jump
}

// Compensate corrects a value for ambient temperature and humidity.
// VOC channels drift with both; other channels are passed through.
func Compensate(param model.ParameterID, value float64, env model.EnvironmentalContext, params *config.AcquisitionParams) float64 {
	if !param.IsVOC() {
		return value
	}
	tempFactor := 1.0 + params.TempCompPerDegree*(env.TemperatureC-params.TempReferenceC)
	humFactor := 1.0 + params.HumidityCompPerPct*(env.HumidityPct-params.HumidityReferencePc)
	if tempFactor <= 0 {
		tempFactor = 1.0
	}
	if humFactor <= 0 {
		humFactor = 1.0
	}
	return value / (tempFactor * humFactor)
}

// filterConfidence derates confidence when the raw window disagrees with
// the smoothed value.
func filterConfidence(hist []float64, smoothed float64) float64 {
	if len(hist) < 2 || smoothed == 0 {
		return 1.0
	}
	_, stddev := meanStddev(hist)
	spread := stddev / math.Max(math.Abs(smoothed), 1e-9)
	return 1.0 / (1.0 + spread)
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
