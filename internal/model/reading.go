package model

import "time"

// SensorID identifies a physical sensor on the node.
type SensorID string

// SensorReading is a single validated measurement from one sensor channel.
// Readings are immutable once produced by the acquisition layer.
type SensorReading struct {
	Sensor     SensorID    `json:"sensor"`
	Parameter  ParameterID `json:"parameter"`
	Value      float64     `json:"value"`
	Unit       string      `json:"unit"`
	Timestamp  time.Time   `json:"timestamp"`
	Confidence float64     `json:"confidence"` // in [0,1]
}

// EnvironmentalContext is a read-only snapshot of ambient conditions taken
// at the start of a detection cycle. Detectors use it for compensation and
// seasonal/diurnal adjustments; it is never mutated during a cycle.
type EnvironmentalContext struct {
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
	TimeOfDay    time.Time `json:"time_of_day"`
	Season       Season    `json:"season"`
}

// Season partitions the year for risk-model multipliers.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// SeasonOf maps a timestamp to a northern-hemisphere season.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// Clamp01 bounds a probability or confidence value to [0,1].
// Every score leaving a pipeline stage passes through this.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
