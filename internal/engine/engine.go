// Package engine orchestrates the detection cycle: acquisition, domain
// detectors, fusion, temporal correlation and classification run in strict
// order on a single goroutine, under a per-cycle deadline. Parameter
// snapshots are taken at cycle start, so configuration hot reloads apply
// between cycles and never during one.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pyrewatch-systems/sentinel-node/internal/acquisition"
	"github.com/pyrewatch-systems/sentinel-node/internal/classifier"
	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/detector"
	"github.com/pyrewatch-systems/sentinel-node/internal/fusion"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/metrics"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
	"github.com/pyrewatch-systems/sentinel-node/internal/temporal"
	"github.com/pyrewatch-systems/sentinel-node/internal/transport"
)

// Mode is the engine's operating mode. It scales the cycle interval.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeAlert     Mode = "alert"      // recent alert, sample faster
	ModePowerSave Mode = "power_save" // battery conservation, sample slower
)

// quietCyclesToNormal is how many alert-free cycles alert mode holds
// before dropping back to normal.
const quietCyclesToNormal = 6

// Deps wires the engine's collaborators.
type Deps struct {
	Config     *config.Config
	Watcher    *config.Watcher
	Sampler    *acquisition.Sampler
	Detectors  []detector.Detector
	Fuser      *fusion.Engine
	Temporal   *temporal.Engine
	Classifier *classifier.Classifier
	Store      state.Store
	Publisher  transport.Publisher
	Log        *logging.Logger

	// Clock overrides time.Now for deterministic tests.
	Clock func() time.Time
}

// Status is a read-only snapshot of engine state for the HTTP surface.
type Status struct {
	NodeID      string           `json:"node_id"`
	Location    string           `json:"location"`
	Mode        Mode             `json:"mode"`
	Cycle       uint64           `json:"cycle"`
	LastCycleAt time.Time        `json:"last_cycle_at"`
	Degraded    []model.SensorID `json:"degraded,omitempty"`
	AlertsTotal uint64           `json:"alerts_total"`
}

// Engine runs the detection pipeline. All pipeline state is confined to
// the Run goroutine; Status and SetMode are the only concurrent surfaces.
type Engine struct {
	deps Deps
	log  *logging.Logger
	now  func() time.Time

	mu          sync.RWMutex
	mode        Mode
	cycle       uint64
	alertsTotal uint64
	lastCycleAt time.Time
	degraded    []model.SensorID
	quietCycles int

	lastEnv model.EnvironmentalContext
}

// New creates an engine. The initial environmental context is neutral
// until the first cycle fuses real meteorological readings.
func New(deps Deps) *Engine {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		deps: deps,
		log:  deps.Log.WithSubsystem("engine"),
		now:  now,
		mode: ModeNormal,
		lastEnv: model.EnvironmentalContext{
			TemperatureC: 20,
			HumidityPct:  50,
		},
	}
}

// Run executes detection cycles until ctx is canceled. The interval
// follows the current mode; mode changes take effect on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started",
		"interval", e.deps.Config.Engine.CycleInterval.String(),
		"deadline", e.deps.Config.Engine.CycleDeadline.String())

	timer := time.NewTimer(e.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped", "cycles", e.CycleCount())
			return ctx.Err()
		case <-timer.C:
			if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("cycle failed", "error", err)
			}
			timer.Reset(e.interval())
		}
	}
}

// RunCycle executes one full detection cycle. Exported so the simulate
// command and tests can drive the pipeline without the ticker.
func (e *Engine) RunCycle(ctx context.Context) (classifier.Outcome, error) {
	params := e.deps.Watcher.Current()
	cctx, cancel := context.WithTimeout(ctx, e.deps.Config.Engine.CycleDeadline)
	defer cancel()

	started := e.now()
	env := e.environment(started)

	acq := e.deps.Sampler.Collect(cctx, env, &params.Acquisition)
	metrics.ReadingsTotal.WithLabelValues("ok").Add(float64(len(acq.Readings)))
	metrics.DegradedSensors.Set(float64(len(acq.Degraded)))

	readings := groupByParameter(acq.Readings)
	baselines, err := e.loadBaselines(cctx, readings)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return classifier.Outcome{}, err
	}

	in := &detector.Input{
		Env:          env,
		Readings:     readings,
		Baselines:    baselines,
		Params:       params,
		Waveforms:    acq.Waveforms,
		SampleRateHz: acq.SampleRateHz,
	}

	var results []detector.Result
	for _, d := range e.deps.Detectors {
		if cctx.Err() != nil {
			// Deadline hit mid-pipeline: discard partial evidence, the
			// next cycle starts clean.
			metrics.CyclesTotal.WithLabelValues("timeout").Inc()
			return classifier.Outcome{}, cctx.Err()
		}
		t0 := time.Now()
		rs, err := d.Evaluate(cctx, in)
		metrics.DetectorDuration.WithLabelValues(d.Name()).Observe(time.Since(t0).Seconds())
		if err != nil {
			e.log.Error("detector failed, continuing without it",
				"detector", d.Name(), "error", err)
			continue
		}
		results = append(results, rs...)
	}

	fused := e.deps.Fuser.Fuse(readings, baselines, &params.Fusion)
	metrics.FusedParameters.Set(float64(len(fused.Parameters)))
	for _, fp := range fused.Parameters {
		if fp.Fallback {
			metrics.FusionFallbacks.Inc()
		}
	}

	adjusted := e.deps.Temporal.Process(fused.Parameters, &params.Temporal)
	e.updateBaselines(cctx, adjusted)

	if cctx.Err() != nil {
		metrics.CyclesTotal.WithLabelValues("timeout").Inc()
		return classifier.Outcome{}, cctx.Err()
	}

	outcome, err := e.deps.Classifier.Classify(cctx, &classifier.Input{
		Results:  results,
		Warnings: fused.Warnings,
		Trends:   adjusted,
	}, &params.Classifier)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return classifier.Outcome{}, err
	}

	e.publish(cctx, &outcome, adjusted, acq.Degraded, fused)
	e.finishCycle(started, &outcome, adjusted, acq.Degraded)

	metrics.CyclesTotal.WithLabelValues("completed").Inc()
	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	metrics.AlertsSuppressed.Add(float64(len(outcome.Suppressed)))
	for _, a := range outcome.Emitted {
		metrics.AlertsTotal.WithLabelValues(string(a.Type), a.Severity.String()).Inc()
	}

	return outcome, nil
}

// environment builds the cycle's ambient snapshot from the previous
// cycle's fused meteorological values and the cycle clock.
func (e *Engine) environment(now time.Time) model.EnvironmentalContext {
	env := e.lastEnv
	env.TimeOfDay = now
	env.Season = model.SeasonOf(now)
	return env
}

// loadBaselines fetches rolling baselines for every reported parameter,
// plus precipitation history for the drought factor. Sorted iteration
// keeps storage access order stable.
func (e *Engine) loadBaselines(ctx context.Context, readings map[model.ParameterID][]model.SensorReading) (map[model.ParameterID]*state.Baseline, error) {
	params := make([]model.ParameterID, 0, len(readings)+1)
	for id := range readings {
		params = append(params, id)
	}
	if _, ok := readings[model.ParamMetPrecipitation]; !ok {
		params = append(params, model.ParamMetPrecipitation)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })

	out := make(map[model.ParameterID]*state.Baseline, len(params))
	for _, id := range params {
		b, err := e.deps.Store.Baseline(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = b
	}
	return out, nil
}

// updateBaselines folds the cycle's accepted values into storage, once
// per parameter per cycle. Storage failures lose history, not the cycle.
func (e *Engine) updateBaselines(ctx context.Context, adjusted map[model.ParameterID]temporal.Adjusted) {
	params := make([]model.ParameterID, 0, len(adjusted))
	for id := range adjusted {
		params = append(params, id)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })

	for _, id := range params {
		if err := e.deps.Store.UpdateBaseline(ctx, id, adjusted[id].Value); err != nil {
			e.log.Warn("baseline update failed", "parameter", string(id), "error", err)
		}
	}
}

// publish hands alerts to transport and sends the telemetry snapshot.
// Telemetry failure never affects the cycle result.
func (e *Engine) publish(ctx context.Context, outcome *classifier.Outcome, adjusted map[model.ParameterID]temporal.Adjusted, degraded []model.SensorID, fused fusion.Output) {
	for i := range outcome.Emitted {
		if err := e.deps.Publisher.PublishAlert(ctx, &outcome.Emitted[i]); err != nil {
			e.log.Error("alert publish failed",
				"alert", outcome.Emitted[i].ID.String(), "error", err)
		}
	}

	snapshot := transport.Telemetry{
		NodeID:    e.deps.Config.Node.ID,
		Location:  e.deps.Config.Node.Location,
		Timestamp: e.now().UTC(),
		Cycle:     e.CycleCount() + 1,
		Mode:      string(e.CurrentMode()),
		Degraded:  degraded,
		Warnings:  fused.Warnings,
	}
	params := make([]model.ParameterID, 0, len(adjusted))
	for id := range adjusted {
		params = append(params, id)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })
	for _, id := range params {
		a := adjusted[id]
		snapshot.Fused = append(snapshot.Fused, model.FusedParameter{
			Parameter:  id,
			Value:      a.Value,
			Confidence: a.Confidence,
		})
	}
	_ = e.deps.Publisher.PublishTelemetry(ctx, &snapshot)
}

// finishCycle commits cycle bookkeeping: environment carry-over, mode
// transitions, status counters.
func (e *Engine) finishCycle(started time.Time, outcome *classifier.Outcome, adjusted map[model.ParameterID]temporal.Adjusted, degraded []model.SensorID) {
	if t, ok := adjusted[model.ParamMetTemperature]; ok {
		e.lastEnv.TemperatureC = t.Value
	}
	if h, ok := adjusted[model.ParamMetHumidity]; ok {
		e.lastEnv.HumidityPct = h.Value
	}
	if w, ok := adjusted[model.ParamMetWindSpeed]; ok {
		e.lastEnv.WindSpeedMS = w.Value
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycle++
	e.lastCycleAt = started
	e.alertsTotal += uint64(len(outcome.Emitted))
	e.degraded = append(e.degraded[:0], degraded...)

	// Alert mode: sample faster while alerts are fresh. Power-save is
	// operator-controlled and never auto-exited here.
	if e.mode == ModePowerSave {
		return
	}
	if len(outcome.Emitted) > 0 {
		e.mode = ModeAlert
		e.quietCycles = 0
		return
	}
	if e.mode == ModeAlert {
		e.quietCycles++
		if e.quietCycles >= quietCyclesToNormal {
			e.mode = ModeNormal
			e.quietCycles = 0
		}
	}
}

// interval returns the tick interval for the current mode.
func (e *Engine) interval() time.Duration {
	cfg := e.deps.Config.Engine
	switch e.CurrentMode() {
	case ModeAlert:
		if cfg.AlertModeDivisor > 1 {
			return cfg.CycleInterval / time.Duration(cfg.AlertModeDivisor)
		}
	case ModePowerSave:
		if cfg.PowerSaveMultiplier > 1 {
			return cfg.CycleInterval * time.Duration(cfg.PowerSaveMultiplier)
		}
	}
	return cfg.CycleInterval
}

// SetMode switches the operating mode. Takes effect on the next tick.
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
	e.quietCycles = 0
	e.log.Info("mode changed", "mode", string(m))
}

// CurrentMode returns the engine's operating mode.
func (e *Engine) CurrentMode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// CycleCount returns the number of completed cycles.
func (e *Engine) CycleCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycle
}

// Status snapshots engine state for the HTTP surface.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		NodeID:      e.deps.Config.Node.ID,
		Location:    e.deps.Config.Node.Location,
		Mode:        e.mode,
		Cycle:       e.cycle,
		LastCycleAt: e.lastCycleAt,
		Degraded:    append([]model.SensorID(nil), e.degraded...),
		AlertsTotal: e.alertsTotal,
	}
}

// groupByParameter indexes the cycle's readings for fusion and detectors.
func groupByParameter(readings []model.SensorReading) map[model.ParameterID][]model.SensorReading {
	out := make(map[model.ParameterID][]model.SensorReading, len(readings))
	for _, r := range readings {
		out[r.Parameter] = append(out[r.Parameter], r)
	}
	return out
}
