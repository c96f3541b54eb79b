package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/metrics"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// NATSPublisher publishes alerts to sentinel.alerts.<type> and telemetry
// to sentinel.telemetry.<node>. The connection reconnects indefinitely in
// the background; publishes during an outage buffer in the client.
type NATSPublisher struct {
	conn   *nats.Conn
	nodeID string
	log    *logging.Logger
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.NATSConfig, nodeID string, log *logging.Logger) (*NATSPublisher, error) {
	l := log.WithSubsystem("transport")

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{conn: conn, nodeID: nodeID, log: l}, nil
}

// PublishAlert sends one alert on its per-type subject.
func (p *NATSPublisher) PublishAlert(_ context.Context, alert *model.AlertEvent) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	subject := fmt.Sprintf("sentinel.alerts.%s", alert.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		metrics.PublishErrors.WithLabelValues("alerts").Inc()
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// PublishTelemetry sends the cycle snapshot. Errors are logged and
// swallowed; telemetry must never block detection.
func (p *NATSPublisher) PublishTelemetry(_ context.Context, t *Telemetry) error {
	payload, err := json.Marshal(t)
	if err != nil {
		p.log.Error("marshal telemetry", "error", err)
		return nil
	}
	subject := fmt.Sprintf("sentinel.telemetry.%s", p.nodeID)
	if err := p.conn.Publish(subject, payload); err != nil {
		metrics.PublishErrors.WithLabelValues("telemetry").Inc()
		p.log.Warn("telemetry publish failed", "error", err)
	}
	return nil
}

// Close drains the connection so buffered publishes flush before shutdown.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
