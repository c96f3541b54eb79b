// Package classifier turns detector, fusion and temporal outputs into
// severity-leveled alert events. Each candidate walks a fixed lifecycle:
// Candidate, then Verified when probability clears a severity threshold
// with corroborating evidence, then Emitted or Suppressed as a duplicate.
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/detector"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
	"github.com/pyrewatch-systems/sentinel-node/internal/temporal"
)

// Input carries one cycle's pipeline outputs into classification.
type Input struct {
	Results  []detector.Result
	Warnings []model.DetectionEvidence
	Trends   map[model.ParameterID]temporal.Adjusted
}

// Outcome reports what the classifier did with the cycle's candidates.
type Outcome struct {
	// Emitted alerts, fully formed and immutable. Order follows the
	// detector result order, so identical cycles emit identically.
	Emitted []model.AlertEvent

	// Suppressed lists the ids of existing alerts that absorbed a
	// duplicate candidate's evidence this cycle.
	Suppressed []uuid.UUID
}

// Classifier verifies, grades and de-duplicates alert candidates.
type Classifier struct {
	log      *logging.Logger
	store    state.Store
	location string
	now      func() time.Time
}

// New creates a classifier. location identifies this node's deployment
// site and stamps every emitted alert; now is the cycle clock.
func New(store state.Store, location string, log *logging.Logger, now func() time.Time) *Classifier {
	return &Classifier{
		log:      log.WithSubsystem("classifier"),
		store:    store,
		location: location,
		now:      now,
	}
}

// Classify processes one cycle's candidates. Storage errors during
// duplicate lookup degrade to emitting (a lost suppression beats a lost
// alert); storage errors during recording are logged and do not block
// the emission.
func (c *Classifier) Classify(ctx context.Context, in *Input, p *config.ClassifierParams) (Outcome, error) {
	var out Outcome

	candidates := make([]detector.Result, 0, len(in.Results)+1)
	candidates = append(candidates, in.Results...)
	if len(in.Warnings) > 0 {
		candidates = append(candidates, consistencyCandidate(in.Warnings))
	}

	for _, cand := range candidates {
		severity, verified := c.verify(cand, in.Trends, p)
		if !verified {
			continue
		}

		existing, err := c.store.FindDuplicate(ctx, cand.Type, c.location)
		if err != nil {
			c.log.Error("duplicate lookup failed, emitting without suppression",
				"type", string(cand.Type), "error", err)
		}
		if existing != nil {
			if err := c.store.MergeEvidence(ctx, existing.ID, cand.Evidence); err != nil {
				c.log.Error("evidence merge failed", "alert", existing.ID.String(), "error", err)
			}
			out.Suppressed = append(out.Suppressed, existing.ID)
			c.log.Debug("duplicate candidate merged",
				"type", string(cand.Type), "alert", existing.ID.String())
			continue
		}

		alert := model.AlertEvent{
			ID:          uuid.New(),
			Type:        cand.Type,
			Severity:    severity,
			Probability: cand.Probability,
			Confidence:  cand.Confidence,
			Evidence:    cand.Evidence,
			Location:    c.location,
			Timestamp:   c.now().UTC(),
			State:       model.StateNew,
		}
		if err := c.store.RecordAlert(ctx, &alert, p.SuppressionWindow); err != nil {
			c.log.Error("alert record failed, suppression window not opened",
				"alert", alert.ID.String(), "error", err)
		}
		out.Emitted = append(out.Emitted, alert)
		c.log.Info("alert emitted",
			"alert", alert.ID.String(),
			"type", string(alert.Type),
			"severity", alert.Severity.String(),
			"probability", alert.Probability)
	}

	return out, nil
}

// verify decides whether a candidate becomes Verified and at what
// severity. A sustained worsening trend on a related parameter escalates
// one level, and rescues a candidate sitting just below the lowest
// threshold.
func (c *Classifier) verify(cand detector.Result, trends map[model.ParameterID]temporal.Adjusted, p *config.ClassifierParams) (model.Severity, bool) {
	if len(cand.Evidence) == 0 {
		return 0, false
	}
	if cand.Confidence < p.ConfidenceMin {
		return 0, false
	}

	severity, cleared := severityFor(cand.Probability, p.SeverityThresholds)
	worsening := sustainedWorsening(cand.Type, trends)

	switch {
	case cleared && worsening:
		return severity.Escalate(), true
	case cleared:
		return severity, true
	case worsening && cand.Probability > 0:
		// Below every absolute threshold, but the underlying parameters
		// keep deteriorating cycle over cycle.
		return model.SeverityInformation, true
	default:
		return 0, false
	}
}

// severityFor maps a probability to the highest severity whose threshold
// it clears.
func severityFor(probability float64, thresholds map[string]float64) (model.Severity, bool) {
	best := model.SeverityInformation
	cleared := false
	for name, th := range thresholds {
		sev, err := model.ParseSeverity(name)
		if err != nil {
			continue
		}
		if probability >= th && (!cleared || sev > best) {
			best = sev
			cleared = true
		}
	}
	return best, cleared
}

// sustainedWorsening reports whether any parameter in the candidate's
// evidence domain shows a sustained worsening trend.
func sustainedWorsening(typ model.AlertType, trends map[model.ParameterID]temporal.Adjusted) bool {
	for param, adj := range trends {
		if !adj.Trend.SustainedWorsening {
			continue
		}
		switch typ {
		case model.AlertChemicalSignature:
			if param.IsVOC() {
				return true
			}
		case model.AlertElectricalArcing, model.AlertEquipmentDegradation:
			if !param.IsVOC() && !param.IsMeteorological() {
				return true
			}
		case model.AlertFireWeather:
			if param.IsMeteorological() {
				return true
			}
		}
	}
	return false
}

// consistencyCandidate wraps cross-sensor consistency warnings as a
// low-grade candidate so implausible sensor combinations surface as
// alerts instead of disappearing into logs.
func consistencyCandidate(warnings []model.DetectionEvidence) detector.Result {
	return detector.Result{
		Type:        model.AlertSensorConsistency,
		Probability: model.Clamp01(0.1 + 0.1*float64(len(warnings))),
		Confidence:  0.8,
		Evidence:    warnings,
	}
}

// Describe renders a one-line human summary for logs and the simulate
// command.
func Describe(a *model.AlertEvent) string {
	return fmt.Sprintf("[%s] %s p=%.2f c=%.2f evidence=%d",
		a.Severity.String(), a.Type, a.Probability, a.Confidence, len(a.Evidence))
}
