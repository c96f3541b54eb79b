// Package transport hands finished alerts and telemetry snapshots to the
// outside world. Delivery reliability, retries and alert workflow belong
// to the receiving side; this node publishes fire-and-forget.
package transport

import (
	"context"
	"time"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// Telemetry is the per-cycle snapshot published for fleet observability.
type Telemetry struct {
	NodeID    string                    `json:"node_id"`
	Location  string                    `json:"location"`
	Timestamp time.Time                 `json:"timestamp"`
	Cycle     uint64                    `json:"cycle"`
	Mode      string                    `json:"mode"`
	Degraded  []model.SensorID          `json:"degraded,omitempty"`
	Fused     []model.FusedParameter    `json:"fused,omitempty"`
	Warnings  []model.DetectionEvidence `json:"warnings,omitempty"`
}

// Publisher delivers alerts and telemetry. Alert publish failures are
// reported to the caller; telemetry is strictly best-effort and its
// errors never reach the detection pipeline.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *model.AlertEvent) error
	PublishTelemetry(ctx context.Context, t *Telemetry) error
	Close() error
}

// Noop discards everything. Used by the simulate command and tests.
type Noop struct{}

// NewNoop creates a publisher that drops all output.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) PublishAlert(context.Context, *model.AlertEvent) error { return nil }
func (*Noop) PublishTelemetry(context.Context, *Telemetry) error    { return nil }
func (*Noop) Close() error                                          { return nil }
