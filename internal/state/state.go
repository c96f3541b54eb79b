// Package state owns the node's cross-cycle state: per-parameter rolling
// baselines, last known-good values, and the recent-alert window used for
// duplicate suppression. The engine mutates state only at well-defined
// points at the end of pipeline stages; the HTTP status surface reads it.
package state

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// Baseline holds rolling statistics for one parameter. Mean and StdDev
// are computed over the bounded Samples window so they track recent
// conditions and seasonal drift; Count alone is lifetime.
type Baseline struct {
	Samples    []float64 `json:"samples"`
	Count      int64     `json:"count"`
	Sum        float64   `json:"sum"`
	SumSquares float64   `json:"sum_squares"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"stddev"`
	LastGood   float64   `json:"last_good"`
	UpdatedAt  int64     `json:"updated_at"` // Unix timestamp
}

// HasData reports whether the baseline has accumulated any samples.
func (b *Baseline) HasData() bool {
	return b != nil && b.Count > 0
}

// Store persists cross-cycle detection state. Implementations must degrade
// gracefully: a storage failure may lose state but never blocks a cycle.
type Store interface {
	// Baseline returns the rolling baseline for a parameter. A parameter
	// never seen before returns an empty baseline, not an error.
	Baseline(ctx context.Context, param model.ParameterID) (*Baseline, error)

	// UpdateBaseline folds a fused value into the parameter's baseline.
	UpdateBaseline(ctx context.Context, param model.ParameterID, value float64) error

	// RecordAlert records an emitted alert and opens its suppression
	// window. Alerts of the same type and location within the window are
	// duplicates.
	RecordAlert(ctx context.Context, alert *model.AlertEvent, window time.Duration) error

	// FindDuplicate returns the alert an incoming candidate of the given
	// type/location would duplicate, or nil if the window is clear.
	FindDuplicate(ctx context.Context, typ model.AlertType, location string) (*model.AlertEvent, error)

	// MergeEvidence appends evidence to a previously recorded alert.
	MergeEvidence(ctx context.Context, id uuid.UUID, evidence []model.DetectionEvidence) error

	// RecentAlerts returns up to limit most recently recorded alerts,
	// newest first.
	RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error)

	// Close releases any resources held by the store.
	Close() error
}

// maxBaselineSamples bounds the rolling sample window kept per parameter.
const maxBaselineSamples = 256

// foldSample updates baseline statistics with a new sample. Statistics
// are recomputed over the retained window, so evicted samples stop
// contributing and long uptimes cannot accumulate rounding error.
func foldSample(b *Baseline, value float64, now time.Time) {
	b.Samples = append(b.Samples, value)
	if len(b.Samples) > maxBaselineSamples {
		b.Samples = b.Samples[len(b.Samples)-maxBaselineSamples:]
	}
	b.Count++
	b.LastGood = value
	b.UpdatedAt = now.Unix()

	sum, sumSquares := 0.0, 0.0
	for _, v := range b.Samples {
		sum += v
		sumSquares += v * v
	}
	n := float64(len(b.Samples))
	b.Sum = sum
	b.SumSquares = sumSquares
	b.Mean = sum / n
	// Var(X) = E[X^2] - (E[X])^2
	variance := sumSquares/n - b.Mean*b.Mean
	if variance > 0 {
		b.StdDev = math.Sqrt(variance)
	} else {
		b.StdDev = 0
	}
}
