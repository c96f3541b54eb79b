package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// scriptedDriver replays canned values or faults per sensor.
type scriptedDriver struct {
	sensors []model.SensorID
	values  map[model.SensorID][]float64
	errs    map[model.SensorID]error
	cursor  map[model.SensorID]int
}

func newScriptedDriver() *scriptedDriver {
	return &scriptedDriver{
		values: make(map[model.SensorID][]float64),
		errs:   make(map[model.SensorID]error),
		cursor: make(map[model.SensorID]int),
	}
}

func (d *scriptedDriver) addSensor(id model.SensorID, values ...float64) {
	d.sensors = append(d.sensors, id)
	d.values[id] = values
}

func (d *scriptedDriver) Sensors() []model.SensorID { return d.sensors }

func (d *scriptedDriver) Read(_ context.Context, id model.SensorID) (model.SensorReading, error) {
	if err := d.errs[id]; err != nil {
		return model.SensorReading{}, err
	}
	vals := d.values[id]
	i := d.cursor[id]
	if i >= len(vals) {
		i = len(vals) - 1
	}
	d.cursor[id]++
	return model.SensorReading{
		Sensor:     id,
		Parameter:  model.ParamVOCFormaldehyde,
		Value:      vals[i],
		Unit:       "ppb",
		Timestamp:  time.Now().UTC(),
		Confidence: 0.95,
	}, nil
}

func (d *scriptedDriver) Calibrate(context.Context, model.SensorID) error { return nil }

func defaultAcqParams(t *testing.T) *config.AcquisitionParams {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return &cfg.Detection.Acquisition
}

func neutralEnv() model.EnvironmentalContext {
	return model.EnvironmentalContext{
		TemperatureC: 25,
		HumidityPct:  50,
		TimeOfDay:    time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC),
		Season:       model.SeasonSummer,
	}
}

func TestCollectSmoothsReadings(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10, 12, 14)

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	env := neutralEnv()

	ctx := context.Background()
	_ = s.Collect(ctx, env, params)
	_ = s.Collect(ctx, env, params)
	result := s.Collect(ctx, env, params)

	require.Len(t, result.Readings, 1)
	// Third cycle averages the 3-sample window (10, 12, 14) = 12 at
	// reference conditions, so compensation is identity.
	assert.InDelta(t, 12.0, result.Readings[0].Value, 1e-9)
	assert.LessOrEqual(t, result.Readings[0].Confidence, 0.95)
	assert.Greater(t, result.Readings[0].Confidence, 0.0)
}

func TestCollectRejectsSpike(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10, 10.5, 9.8, 10.2, 500)

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	env := neutralEnv()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result := s.Collect(ctx, env, params)
		require.Len(t, result.Readings, 1, "cycle %d", i)
	}

	// The 500 reading is a spike far beyond sigma bounds.
	result := s.Collect(ctx, env, params)
	assert.Empty(t, result.Readings)
	assert.Empty(t, result.Degraded, "one spike must not degrade the sensor")
}

func TestCollectAcceptsSustainedStepChange(t *testing.T) {
	driver := newScriptedDriver()
	// Quiet level, then a sustained step to ~40 ppb.
	driver.addSensor("voc-1", 10, 10.3, 9.8, 10.1, 40, 40.4, 39.8)

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	env := neutralEnv()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result := s.Collect(ctx, env, params)
		require.Len(t, result.Readings, 1, "cycle %d", i)
	}

	// The first two cycles at the new level look like spikes and are
	// held back, but never count as hardware faults.
	for i := 0; i < 2; i++ {
		result := s.Collect(ctx, env, params)
		assert.Empty(t, result.Readings, "cycle %d", i)
		assert.Empty(t, result.Degraded, "cycle %d", i)
	}

	// The third consistent excursion is accepted as the new level.
	result := s.Collect(ctx, env, params)
	require.Len(t, result.Readings, 1)
	assert.InDelta(t, 39.8, result.Readings[0].Value, 1e-9)
	assert.Empty(t, result.Degraded)

	// The shifted level keeps flowing on later cycles.
	result = s.Collect(ctx, env, params)
	require.Len(t, result.Readings, 1)
	assert.Empty(t, result.Degraded)
}

func TestCollectRejectsInconsistentExcursions(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10, 10.2, 9.9, 10.1, 500, 40, 900)

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	env := neutralEnv()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result := s.Collect(ctx, env, params)
		require.Len(t, result.Readings, 1, "cycle %d", i)
	}

	// Scattered excursions never agree, so none is accepted and the
	// sensor is never degraded for them.
	for i := 0; i < 3; i++ {
		result := s.Collect(ctx, env, params)
		assert.Empty(t, result.Readings, "cycle %d", i)
		assert.Empty(t, result.Degraded, "cycle %d", i)
	}
}

func TestCollectRetriesDegradedSensor(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10)
	driver.errs["voc-1"] = &SensorFault{Sensor: "voc-1", Kind: FaultDisconnected}

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	ctx := context.Background()

	for i := 0; i < params.FaultDegradeCount; i++ {
		s.Collect(ctx, neutralEnv(), params)
	}
	result := s.Collect(ctx, neutralEnv(), params)
	require.Contains(t, result.Degraded, model.SensorID("voc-1"))

	// The cable comes back. Within the backoff the sampler retries
	// and the sensor recovers without operator intervention.
	driver.errs["voc-1"] = nil
	recovered := false
	for i := 0; i < 2*degradedRetryAfter && !recovered; i++ {
		result = s.Collect(ctx, neutralEnv(), params)
		recovered = len(result.Readings) == 1
	}
	assert.True(t, recovered)
	assert.Empty(t, result.Degraded)
}

func TestCollectCapturesWaveforms(t *testing.T) {
	driver := NewSimDriver(DefaultProfiles(), 7)
	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)

	result := s.Collect(context.Background(), neutralEnv(), params)
	require.NotEmpty(t, result.Readings)
	require.Contains(t, result.Waveforms, model.ParamInfraAcousticBand)
	assert.Len(t, result.Waveforms[model.ParamInfraAcousticBand], waveformBlockLen)
	assert.Equal(t, waveformRateHz, result.SampleRateHz)
}

func TestCollectDegradesAfterRepeatedFaults(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10)
	driver.addSensor("voc-2", 11)
	driver.errs["voc-2"] = &SensorFault{Sensor: "voc-2", Kind: FaultDisconnected}

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	env := neutralEnv()
	ctx := context.Background()

	var result CycleResult
	for i := 0; i < params.FaultDegradeCount; i++ {
		result = s.Collect(ctx, env, params)
		// Healthy sensor keeps reporting throughout.
		require.Len(t, result.Readings, 1)
	}
	require.Contains(t, result.Degraded, model.SensorID("voc-2"))

	// Degraded sensor stays excluded while the retry backoff holds.
	result = s.Collect(ctx, env, params)
	assert.Contains(t, result.Degraded, model.SensorID("voc-2"))
	assert.Len(t, result.Readings, 1)
}

func TestCollectMapsDeadlineToTimeoutFault(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10)
	driver.errs["voc-1"] = context.DeadlineExceeded

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)

	result := s.Collect(context.Background(), neutralEnv(), params)
	assert.Empty(t, result.Readings)
}

func TestCompensateVOCOnly(t *testing.T) {
	params := defaultAcqParams(t)

	hotHumid := model.EnvironmentalContext{TemperatureC: 35, HumidityPct: 70}
	ref := model.EnvironmentalContext{TemperatureC: params.TempReferenceC, HumidityPct: params.HumidityReferencePc}

	voc := Compensate(model.ParamVOCFormaldehyde, 100, hotHumid, params)
	assert.Less(t, voc, 100.0, "VOC reading shrinks under hot humid correction")

	same := Compensate(model.ParamVOCFormaldehyde, 100, ref, params)
	assert.InDelta(t, 100.0, same, 1e-9)

	emf := Compensate(model.ParamInfraEMF, 100, hotHumid, params)
	assert.Equal(t, 100.0, emf, "non-VOC channels pass through")
}

func TestCalibrateClearsFaultCount(t *testing.T) {
	driver := newScriptedDriver()
	driver.addSensor("voc-1", 10)
	driver.errs["voc-1"] = &SensorFault{Sensor: "voc-1", Kind: FaultDisconnected}

	s := NewSampler(driver, logging.Default())
	params := defaultAcqParams(t)
	ctx := context.Background()

	for i := 0; i < params.FaultDegradeCount; i++ {
		s.Collect(ctx, neutralEnv(), params)
	}
	result := s.Collect(ctx, neutralEnv(), params)
	require.Contains(t, result.Degraded, model.SensorID("voc-1"))

	driver.errs["voc-1"] = nil
	require.NoError(t, s.Calibrate(ctx, "voc-1"))

	result = s.Collect(ctx, neutralEnv(), params)
	assert.Empty(t, result.Degraded)
	assert.Len(t, result.Readings, 1)
}

func TestSimDriverProducesValidReadings(t *testing.T) {
	driver := NewSimDriver(DefaultProfiles(), 42)
	ctx := context.Background()

	for _, id := range driver.Sensors() {
		reading, err := driver.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, reading.Sensor)
		assert.GreaterOrEqual(t, reading.Value, 0.0)
		assert.GreaterOrEqual(t, reading.Confidence, 0.85)
		assert.LessOrEqual(t, reading.Confidence, 1.0)
	}

	_, err := driver.Read(ctx, "no-such-sensor")
	fault, ok := AsSensorFault(err)
	require.True(t, ok)
	assert.Equal(t, FaultDisconnected, fault.Kind)
}

func TestSimDriverOffsets(t *testing.T) {
	driver := NewSimDriver([]SensorProfile{
		{ID: "voc", Parameter: model.ParamVOCFormaldehyde, Unit: "ppb", Baseline: 8, Jitter: 0},
	}, 1)
	ctx := context.Background()

	reading, err := driver.Read(ctx, "voc")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, reading.Value, 1e-9)

	driver.SetOffset(model.ParamVOCFormaldehyde, 32)
	reading, err = driver.Read(ctx, "voc")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, reading.Value, 1e-9)

	driver.ClearOffsets()
	reading, err = driver.Read(ctx, "voc")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, reading.Value, 1e-9)
}
