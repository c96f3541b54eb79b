// Package temporal analyzes each fused parameter's short time series:
// outlier screening with trend-predicted substitution, trend description
// (direction, magnitude, acceleration, periodicity), and an anomaly score
// that discounts confidence. It owns the per-parameter rolling history.
package temporal

import (
	"math"
	"sort"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// Direction labels the sign of a parameter's trend.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

// Trend describes a parameter's recent time-series behavior.
type Trend struct {
	Direction    Direction `json:"direction"`
	Magnitude    float64   `json:"magnitude"`    // slope, units per cycle
	Acceleration float64   `json:"acceleration"` // slope change, units per cycle^2
	Periodicity  float64   `json:"periodicity"`  // autocorrelation peak strength [0,1]
	AnomalyScore float64   `json:"anomaly_score"`

	// SustainedWorsening is set when the parameter has risen faster than
	// the configured slope for the configured number of consecutive
	// cycles. The classifier escalates on it.
	SustainedWorsening bool `json:"sustained_worsening"`
}

// Adjusted is a fused parameter after temporal screening.
type Adjusted struct {
	Parameter   model.ParameterID `json:"parameter"`
	Value       float64           `json:"value"`
	Confidence  float64           `json:"confidence"`
	Substituted bool              `json:"substituted"` // outlier replaced by trend prediction
	Trend       Trend             `json:"trend"`
}

type series struct {
	values        []float64
	worseningRuns int
}

// Engine maintains per-parameter history across cycles. Not safe for
// concurrent use; the cycle engine is its only caller.
type Engine struct {
	log     *logging.Logger
	history map[model.ParameterID]*series
}

// New creates a temporal correlation engine with empty history.
func New(log *logging.Logger) *Engine {
	return &Engine{
		log:     log.WithSubsystem("temporal"),
		history: make(map[model.ParameterID]*series),
	}
}

// Process screens one cycle's fused parameters against their histories and
// folds the accepted values back in. Parameters are processed in sorted
// order so identical inputs yield identical outputs.
func (e *Engine) Process(fused map[model.ParameterID]model.FusedParameter, p *config.TemporalParams) map[model.ParameterID]Adjusted {
	out := make(map[model.ParameterID]Adjusted, len(fused))

	params := make([]model.ParameterID, 0, len(fused))
	for id := range fused {
		params = append(params, id)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })

	for _, id := range params {
		out[id] = e.analyze(fused[id], p)
	}
	return out
}

func (e *Engine) analyze(fp model.FusedParameter, p *config.TemporalParams) Adjusted {
	s := e.history[fp.Parameter]
	if s == nil {
		s = &series{}
		e.history[fp.Parameter] = s
	}

	adj := Adjusted{
		Parameter:  fp.Parameter,
		Value:      fp.Value,
		Confidence: fp.Confidence,
	}

	z := zScore(s.values, fp.Value)
	if z > p.OutlierSigma {
		// Outlier confidence grows with how far past the gate the value
		// sits; a marginal excursion is kept as-is.
		outlierConf := model.Clamp01((z - p.OutlierSigma) / p.OutlierSigma)
		if outlierConf >= p.OutlierConfidenceMin {
			predicted := e.predict(s.values)
			e.log.Debug("outlier substituted with trend prediction",
				"parameter", string(fp.Parameter),
				"raw", fp.Value, "predicted", predicted, "z", z)
			adj.Value = predicted
			adj.Confidence = fp.Confidence * p.OutlierConfidenceScale
			adj.Substituted = true
		}
	}

	s.values = append(s.values, adj.Value)
	if len(s.values) > p.WindowSize {
		s.values = s.values[len(s.values)-p.WindowSize:]
	}

	adj.Trend = e.describe(s, p)
	adj.Confidence = model.Clamp01(adj.Confidence * (1 - p.AnomalyPenalty*adj.Trend.AnomalyScore))
	return adj
}

// predict extrapolates one step ahead with a least-squares line over the
// history. An empty history predicts zero; a single sample repeats itself.
func (e *Engine) predict(values []float64) float64 {
	n := len(values)
	switch n {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	slope, intercept := fitLine(values)
	return intercept + slope*float64(n)
}

func (e *Engine) describe(s *series, p *config.TemporalParams) Trend {
	values := s.values
	var t Trend
	if len(values) < 3 {
		t.Direction = DirectionStable
		return t
	}

	slope, _ := fitLine(values)
	t.Magnitude = slope
	switch {
	case slope > p.TrendWorseningSlope/2:
		t.Direction = DirectionRising
	case slope < -p.TrendWorseningSlope/2:
		t.Direction = DirectionFalling
	default:
		t.Direction = DirectionStable
	}

	// Acceleration as the slope change between window halves.
	half := len(values) / 2
	firstSlope, _ := fitLine(values[:half+1])
	secondSlope, _ := fitLine(values[half:])
	t.Acceleration = secondSlope - firstSlope

	t.Periodicity = periodicity(values)

	// Anomaly score blends the latest value's deviation with periodicity
	// and acceleration pressure.
	z := zScore(values[:len(values)-1], values[len(values)-1])
	t.AnomalyScore = model.Clamp01(z/(2*p.OutlierSigma) + 0.2*t.Periodicity)

	if slope > p.TrendWorseningSlope {
		s.worseningRuns++
	} else {
		s.worseningRuns = 0
	}
	t.SustainedWorsening = s.worseningRuns >= p.TrendSustainedCycles

	return t
}

// zScore measures how far value sits from the history's mean in units of
// its standard deviation. Short or flat histories score zero.
func zScore(history []float64, value float64) float64 {
	if len(history) < 3 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range history {
		sum += v
		sumSq += v * v
	}
	n := float64(len(history))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Abs(value-mean) / math.Sqrt(variance)
}

// fitLine returns the least-squares slope and intercept of values indexed
// 0..n-1.
func fitLine(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n < 2 {
		if n == 1 {
			return 0, values[0]
		}
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// periodicity returns the strongest normalized autocorrelation over lags
// 2..len/2, clamped to [0,1]. Aperiodic series score near zero.
func periodicity(values []float64) float64 {
	n := len(values)
	if n < 6 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var denom float64
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return 0
	}

	best := 0.0
	for lag := 2; lag <= n/2; lag++ {
		var num float64
		for i := lag; i < n; i++ {
			num += (values[i] - mean) * (values[i-lag] - mean)
		}
		if r := num / denom; r > best {
			best = r
		}
	}
	return model.Clamp01(best)
}

// Reset drops all accumulated history. Used when the node switches
// deployment location or after calibration invalidates past readings.
func (e *Engine) Reset() {
	e.history = make(map[model.ParameterID]*series)
}
