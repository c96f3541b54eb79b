// Package acquisition produces validated sensor readings for the detection
// pipeline. It owns low-pass filtering, spike rejection, environmental
// compensation and degraded-sensor tracking. Hardware access goes through
// the Driver interface; a fault in one sensor never halts the cycle.
package acquisition

import (
	"context"
	"errors"
	"fmt"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// FaultKind classifies sensor faults.
type FaultKind string

const (
	FaultTimeout      FaultKind = "timeout"
	FaultOutOfRange   FaultKind = "out_of_range"
	FaultDisconnected FaultKind = "disconnected"
)

// SensorFault reports a failed or rejected read from one sensor.
type SensorFault struct {
	Sensor model.SensorID
	Kind   FaultKind
	Err    error
}

func (f *SensorFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("sensor %s: %s: %v", f.Sensor, f.Kind, f.Err)
	}
	return fmt.Sprintf("sensor %s: %s", f.Sensor, f.Kind)
}

func (f *SensorFault) Unwrap() error { return f.Err }

// AsSensorFault extracts a SensorFault from an error chain.
func AsSensorFault(err error) (*SensorFault, bool) {
	var f *SensorFault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Driver abstracts heterogeneous sensor hardware. Read must respect the
// context deadline: a reading not ready by the cycle deadline is a timeout
// fault for that cycle, never a blocking wait.
type Driver interface {
	// Sensors lists the sensors this driver serves.
	Sensors() []model.SensorID

	// Read samples one sensor. Implementations return *SensorFault for
	// sensor-level failures.
	Read(ctx context.Context, id model.SensorID) (model.SensorReading, error)

	// Calibrate re-zeros a sensor against current ambient conditions.
	Calibrate(ctx context.Context, id model.SensorID) error
}

// WaveformDriver is implemented by drivers that capture raw sample
// blocks for channels needing spectral analysis, keyed by parameter.
// The returned rate applies to every block.
type WaveformDriver interface {
	Waveforms(ctx context.Context) (map[model.ParameterID][]float64, float64, error)
}
