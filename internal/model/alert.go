package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType is the closed taxonomy of conditions this node can report.
type AlertType string

const (
	AlertChemicalSignature    AlertType = "chemical_signature"
	AlertElectricalArcing     AlertType = "electrical_arcing"
	AlertEquipmentDegradation AlertType = "equipment_degradation"
	AlertFireWeather          AlertType = "fire_weather"
	AlertSensorConsistency    AlertType = "sensor_consistency"
)

// AlertState is the lifecycle state of an alert. This node only ever emits
// alerts in StateNew; downstream alert management owns later transitions.
type AlertState string

const (
	StateNew          AlertState = "new"
	StateAcknowledged AlertState = "acknowledged"
	StateDismissed    AlertState = "dismissed"
	StateInProgress   AlertState = "in_progress"
	StateEscalated    AlertState = "escalated"
	StateResolved     AlertState = "resolved"
	StateClosed       AlertState = "closed"
)

// DetectionEvidence is a named observation supporting a detection decision.
// Produced by a detector or pipeline stage, carried on the alert unchanged.
type DetectionEvidence struct {
	Tag          string  `json:"tag"`
	Contribution float64 `json:"contribution"`
	Measurement  string  `json:"measurement,omitempty"`
}

// FusedParameter is the per-cycle result of combining multiple sensors'
// readings of one parameter. The fused value always lies within the
// min/max of the retained (non-outlier) contributing readings. Sources
// is non-empty except on fallback values, where Fallback marks the value
// as the last known-good baseline rather than any live sensor.
type FusedParameter struct {
	Parameter  ParameterID `json:"parameter"`
	Value      float64     `json:"value"`
	Confidence float64     `json:"confidence"`
	Sources    []SensorID  `json:"sources"`
	Fallback   bool        `json:"fallback,omitempty"`
}

// AlertEvent is a fully formed, immutable alert produced by the classifier.
// It always carries at least one evidence entry.
type AlertEvent struct {
	ID          uuid.UUID           `json:"id"`
	Type        AlertType           `json:"type"`
	Severity    Severity            `json:"severity"`
	Probability float64             `json:"probability"`
	Confidence  float64             `json:"confidence"`
	Evidence    []DetectionEvidence `json:"evidence"`
	Location    string              `json:"location"`
	Timestamp   time.Time           `json:"timestamp"`
	State       AlertState          `json:"state"`
	Related     []uuid.UUID         `json:"related,omitempty"`
}
